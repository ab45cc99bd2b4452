package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL: "ws://localhost:8000/ws",
			Reconnect: ReconnectConfig{
				MaxRetries: 3,
				Interval:   2 * time.Second,
			},
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "client.log",
		},
		Audio: AudioConfig{
			SampleRate:    24000,
			Channels:      1,
			FrameDuration: 60,
		},
		TTS: TTSConfig{
			Voice: "zh-CN-XiaoxiaoNeural",
		},
		Vision: VisionConfig{
			Enabled: true,
			APIURL:  "https://open.bigmodel.cn/api/paas/v4",
			Model:   "glm-4v-flash",
			Timeout: 10 * time.Second,
			Keywords: []string{
				"屏幕", "画面", "图片", "看到", "看见", "照片", "摄像头",
				"看看", "这是什么",
			},
			CameraKeywords: []CameraKeywordConfig{
				{Action: "open", Keywords: []string{"打开摄像头", "开启摄像头"}},
				{Action: "close", Keywords: []string{"关闭摄像头", "关掉摄像头"}},
			},
			DefaultPrompt: "图中描绘的是什么景象,请详细描述，因为用户可能是盲人",
			Security: SecurityConfig{
				MaxFileSize:    5 * 1024 * 1024,
				MaxPixels:      1920 * 1080 * 4,
				MaxEdgePixels:  800,
				AllowedFormats: []string{"jpeg", "png", "gif", "webp", "bmp"},
			},
		},
		Camera: CameraConfig{
			Index:       0,
			FrameWidth:  640,
			FrameHeight: 480,
		},
	}
}

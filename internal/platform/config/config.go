package config

import "time"

type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Audio  AudioConfig  `yaml:"audio"`
	TTS    TTSConfig    `yaml:"tts"`
	Vision VisionConfig `yaml:"vision"`
	Camera CameraConfig `yaml:"camera"`
}

type ServerConfig struct {
	URL       string          `yaml:"url"`
	Token     string          `yaml:"token"`
	DeviceID  string          `yaml:"device_id"`
	ClientID  string          `yaml:"client_id"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
}

type ReconnectConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	Interval   time.Duration `yaml:"interval"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type AudioConfig struct {
	SampleRate    int `yaml:"sample_rate"`
	Channels      int `yaml:"channels"`
	FrameDuration int `yaml:"frame_duration"` // 毫秒
}

type TTSConfig struct {
	Voice string `yaml:"voice"`
	Speed string `yaml:"speed"`
}

// VisionConfig 视觉功能配置，对应 ENABLED/API_KEY/API_URL/MODEL/
// KEYWORDS/CAMERA_KEYWORDS/DEFAULT_PROMPT 配置面
type VisionConfig struct {
	Enabled        bool                  `yaml:"enabled"`
	APIKey         string                `yaml:"api_key"`
	APIURL         string                `yaml:"api_url"`
	Model          string                `yaml:"model"`
	Timeout        time.Duration         `yaml:"timeout"`
	Keywords       []string              `yaml:"keywords"`
	CameraKeywords []CameraKeywordConfig `yaml:"camera_keywords"`
	DefaultPrompt  string                `yaml:"default_prompt"`
	Security       SecurityConfig        `yaml:"security"`
}

// CameraKeywordConfig 摄像头控制关键词，action 为 open 或 close
type CameraKeywordConfig struct {
	Action   string   `yaml:"action"`
	Keywords []string `yaml:"keywords"`
}

type CameraConfig struct {
	Index       int `yaml:"index"`
	FrameWidth  int `yaml:"frame_width"`
	FrameHeight int `yaml:"frame_height"`
}

// SecurityConfig 图像载荷的安全限制
type SecurityConfig struct {
	MaxFileSize    int64    `yaml:"max_file_size"`
	MaxPixels      int64    `yaml:"max_pixels"`
	MaxEdgePixels  int      `yaml:"max_edge_pixels"`
	AllowedFormats []string `yaml:"allowed_formats"`
}

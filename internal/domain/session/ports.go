package session

import (
	"context"
	"time"

	"xiaozhi-vision-go/internal/core/protocol"
	"xiaozhi-vision-go/internal/domain/camera"
	"xiaozhi-vision-go/internal/domain/speech"
	"xiaozhi-vision-go/internal/domain/vision"
)

// 状态机通过这些端口驱动副作用，测试用假实现注入。

// Transport 远端对话服务的出站面
type Transport interface {
	SendText(text string) error
	SendAudioChunk(chunk []byte) error
	SendControl(signal protocol.ControlSignal) error
	IsConnected() bool
}

// Camera 摄像头生命周期与截帧
type Camera interface {
	Open() (*camera.Handle, error)
	Close()
	CaptureFrame(ctx context.Context) ([]byte, error)
}

// Analyzer 图像理解服务，nil 表示视觉功能关闭
type Analyzer interface {
	Analyze(ctx context.Context, frame []byte, prompt string, timeout time.Duration) vision.Result
}

// Synthesizer 文本转语音
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*speech.Audio, error)
}

// Player 本地播放，必须在 ctx 取消后立即停止出帧
type Player interface {
	Play(ctx context.Context, audio *speech.Audio) error
}

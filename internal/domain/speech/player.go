package speech

import (
	"context"
	"time"

	"xiaozhi-vision-go/internal/platform/logging"
)

// Sink 本地音频输出设备（外部协作者）
type Sink interface {
	Play(frame []byte) error
	Close() error
}

// NullSink 无音频设备时的空实现
type NullSink struct{}

func (NullSink) Play(frame []byte) error { return nil }
func (NullSink) Close() error            { return nil }

// Player 按帧时长节拍播放音频序列。ctx 取消后立即停止，
// 不再向输出设备写入任何后续帧。
type Player struct {
	sink   Sink
	logger *logging.Logger
}

// NewPlayer 创建播放器，sink 为 nil 时使用空输出
func NewPlayer(sink Sink, logger *logging.Logger) *Player {
	if sink == nil {
		sink = NullSink{}
	}
	return &Player{sink: sink, logger: logger}
}

// Play 播放完整帧序列，返回 ctx.Err() 表示被打断
func (p *Player) Play(ctx context.Context, audio *Audio) error {
	if audio == nil || len(audio.Frames) == 0 {
		return nil
	}

	frameDuration := time.Duration(audio.FrameDuration) * time.Millisecond
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for _, frame := range audio.Frames {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if err := p.sink.Play(frame); err != nil {
			p.logger.WarnTag("TTS", "播放音频帧失败: %v", err)
			return err
		}
	}

	return nil
}

package speech

import (
	"context"
	"time"

	"github.com/wujunwei928/edge-tts-go/edge_tts"

	"xiaozhi-vision-go/internal/platform/config"
	perrors "xiaozhi-vision-go/internal/platform/errors"
	"xiaozhi-vision-go/internal/platform/logging"
)

// Audio 一次合成产出的完整音频帧序列。帧序列有限且可重放；
// 重新合成同一文本总是从头产出完整序列，无共享游标。
type Audio struct {
	Frames        [][]byte
	SampleRate    int
	FrameDuration int // 毫秒
}

// Duration 估算播放时长
func (a *Audio) Duration() time.Duration {
	return time.Duration(len(a.Frames)*a.FrameDuration) * time.Millisecond
}

// Synthesizer 基于 Edge TTS 的语音合成器
type Synthesizer struct {
	voice         string
	frameDuration int
	logger        *logging.Logger
}

// NewSynthesizer 创建语音合成器
func NewSynthesizer(ttsCfg config.TTSConfig, audioCfg config.AudioConfig, logger *logging.Logger) *Synthesizer {
	voice := ttsCfg.Voice
	if voice == "" {
		voice = "zh-CN-XiaoxiaoNeural"
	}
	frameDuration := audioCfg.FrameDuration
	if frameDuration <= 0 {
		frameDuration = 60
	}

	return &Synthesizer{
		voice:         voice,
		frameDuration: frameDuration,
		logger:        logger,
	}
}

// Synthesize 合成文本为音频帧序列
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (*Audio, error) {
	if err := ctx.Err(); err != nil {
		return nil, perrors.WrapCode(perrors.KindSpeech, perrors.CodeSynthesisFailed,
			"speech.Synthesize", "合成被取消", err)
	}

	start := time.Now()

	communicate, err := edge_tts.New(s.voice)
	if err != nil {
		return nil, perrors.WrapCode(perrors.KindSpeech, perrors.CodeSynthesisFailed,
			"speech.Synthesize", "创建TTS通信失败", err)
	}
	defer communicate.Close()

	mp3Data, err := communicate.Output(text)
	if err != nil {
		return nil, perrors.WrapCode(perrors.KindSpeech, perrors.CodeSynthesisFailed,
			"speech.Synthesize", "语音合成失败", err)
	}

	pcm, sampleRate, err := MP3ToPCM(mp3Data)
	if err != nil {
		return nil, perrors.WrapCode(perrors.KindSpeech, perrors.CodeSynthesisFailed,
			"speech.Synthesize", "MP3解码失败", err)
	}

	frames, err := PCMToOpusFrames(pcm, sampleRate, 1, s.frameDuration)
	if err != nil {
		return nil, perrors.WrapCode(perrors.KindSpeech, perrors.CodeSynthesisFailed,
			"speech.Synthesize", "Opus编码失败", err)
	}

	s.logger.DebugTag("TTS", "合成完成: text_length=%d frames=%d 耗时=%v",
		len(text), len(frames), time.Since(start))

	return &Audio{
		Frames:        frames,
		SampleRate:    sampleRate,
		FrameDuration: s.frameDuration,
	}, nil
}

package session

import (
	"context"

	"xiaozhi-vision-go/internal/domain/vision"
	xerr "xiaozhi-vision-go/internal/platform/errors"
)

// 后台工作者：截帧→分析与合成→播放都在各自的 goroutine 上跑，
// 完成后只通过 submit 回注事件，绝不直接碰状态机。

func (m *Machine) startVisionWorker(episode, prompt string) {
	ctx, cancel := context.WithCancel(m.runCtx)
	m.visionCancel = cancel

	m.workers.Add(1)
	go func() {
		defer m.workers.Done()
		defer cancel()

		frame, err := m.deps.Camera.CaptureFrame(ctx)
		if err != nil {
			m.deps.Logger.WarnTag(tagSession, "截帧失败: %v", err)
			m.submit(Event{
				Kind:    EventVisionPipelineDone,
				Episode: episode,
				Vision:  VisionOutcome{Failure: FailureCamera},
			}, PriorityNormal)
			return
		}

		res := m.deps.Analyzer.Analyze(ctx, frame, prompt, m.deps.VisionTimeout)
		m.submit(Event{
			Kind:    EventVisionPipelineDone,
			Episode: episode,
			Vision:  outcomeFromResult(res),
		}, PriorityNormal)
	}()
}

func outcomeFromResult(res vision.Result) VisionOutcome {
	if res.Success {
		return VisionOutcome{AnalysisText: res.AnalysisText, Success: true}
	}
	out := VisionOutcome{}
	switch res.ErrKind {
	case vision.ErrTimeout:
		out.Failure = FailureTimeout
	case vision.ErrMalformed:
		out.Failure = FailureMalformed
	default:
		out.Failure = FailureNetwork
	}
	return out
}

// startSpeakWorker 合成并播放一段文本。reportDone 为真时播放结束
// （或失败）回注 SpeechPlaybackDone，保证状态机不会卡在 Speaking。
func (m *Machine) startSpeakWorker(text string, reportDone bool) {
	ctx, cancel := context.WithCancel(m.runCtx)
	m.speakCancel = cancel

	m.workers.Add(1)
	go func() {
		defer m.workers.Done()
		defer cancel()
		if reportDone {
			defer m.submit(Event{Kind: EventSpeechPlaybackDone}, PriorityNormal)
		}

		audio, err := m.deps.Synthesizer.Synthesize(ctx, text)
		if err != nil {
			if xerr.CodeOf(err) == xerr.CodeSynthesisFailed {
				m.deps.Logger.ErrorTag(tagSession, "语音合成失败: %v", err)
			} else {
				m.deps.Logger.WarnTag(tagSession, "语音合成中止: %v", err)
			}
			return
		}

		// 视觉回答的音频同样推给远端，块顺序由出站队列保证
		if reportDone && m.deps.Transport.IsConnected() {
			for _, frame := range audio.Frames {
				if ctx.Err() != nil {
					return
				}
				if err := m.deps.Transport.SendAudioChunk(frame); err != nil {
					m.deps.Logger.WarnTag(tagSession, "音频块发送失败: %v", err)
					break
				}
			}
		}

		if err := m.deps.Player.Play(ctx, audio); err != nil && ctx.Err() == nil {
			m.deps.Logger.WarnTag(tagSession, "本地播放失败: %v", err)
		}
	}()
}

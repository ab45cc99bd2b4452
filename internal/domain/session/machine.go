package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"xiaozhi-vision-go/internal/core/protocol"
	"xiaozhi-vision-go/internal/domain/keyword"
	"xiaozhi-vision-go/internal/platform/logging"
)

const tagSession = "会话"

// failureNotices 视觉失败时播报的提示语，只说类别不说原始错误
var failureNotices = map[FailureKind]string{
	FailureCamera:    "摄像头暂时不可用，我看不到画面",
	FailureNetwork:   "视觉服务连接失败，请稍后再试",
	FailureTimeout:   "图像分析超时了，请稍后再试",
	FailureMalformed: "视觉服务返回了无法理解的结果",
}

// Deps 状态机的全部协作者
type Deps struct {
	Matcher     *keyword.Matcher
	Transport   Transport
	Camera      Camera
	Analyzer    Analyzer
	Synthesizer Synthesizer
	Player      Player
	Logger      *logging.Logger

	DefaultPrompt string
	VisionTimeout time.Duration
	Reconnect     ReconnectPolicy
}

// Machine 会话状态机。Handle 只在调度循环的单一 goroutine 上执行，
// 绝不重入；状态只在这里变更。
type Machine struct {
	deps  Deps
	state atomic.Int32

	// 以下字段只在调度 goroutine 上读写
	liveEpisode  string
	visionCancel context.CancelFunc
	speakCancel  context.CancelFunc

	runCtx  context.Context
	workers sync.WaitGroup

	submit func(ev Event, priority int)
	notify func(prev, next DeviceState)
}

func NewMachine(deps Deps) *Machine {
	m := &Machine{
		deps:   deps,
		runCtx: context.Background(),
		submit: func(Event, int) {},
	}
	m.state.Store(int32(StateIdle))
	return m
}

// SetSubmit 绑定完成事件的回注入口，必须在调度开始前调用
func (m *Machine) SetSubmit(fn func(ev Event, priority int)) {
	if fn != nil {
		m.submit = fn
	}
}

// SetNotify 绑定状态变更通知（显示层），可为空
func (m *Machine) SetNotify(fn func(prev, next DeviceState)) {
	m.notify = fn
}

// SetRunContext 绑定后台工作者的根上下文
func (m *Machine) SetRunContext(ctx context.Context) {
	if ctx != nil {
		m.runCtx = ctx
	}
}

// State 当前状态，可跨 goroutine 读取
func (m *Machine) State() DeviceState {
	return DeviceState(m.state.Load())
}

func (m *Machine) setState(next DeviceState) {
	prev := DeviceState(m.state.Swap(int32(next)))
	if prev == next {
		return
	}
	m.deps.Logger.InfoTag(tagSession, "状态 %s → %s", prev, next)
	if m.notify != nil {
		m.notify(prev, next)
	}
}

// Handle 处理一个事件。未知的状态/事件组合记录日志后忽略，
// 绝不让状态机崩溃或停在未定义状态。
func (m *Machine) Handle(ev Event) {
	switch ev.Kind {
	case EventConnected:
		m.onConnected()
	case EventDisconnected:
		m.onDisconnected()
	case EventSpeechRecognized:
		m.onSpeechRecognized(ev.Utterance)
	case EventUserInterrupt:
		m.onUserInterrupt()
	case EventVisionPipelineDone:
		m.onVisionPipelineDone(ev)
	case EventSpeechPlaybackDone:
		m.onSpeechPlaybackDone()
	default:
		m.deps.Logger.WarnTag(tagSession, "忽略未知事件 %d（状态 %s）", ev.Kind, m.State())
	}
}

func (m *Machine) onConnected() {
	switch m.State() {
	case StateIdle, StateConnecting:
		m.setState(StateListening)
		if err := m.deps.Transport.SendControl(protocol.ControlStartListening); err != nil {
			m.deps.Logger.WarnTag(tagSession, "开始拾音信号发送失败: %v", err)
		}
	default:
		m.deps.Logger.DebugTag(tagSession, "忽略 connected（状态 %s）", m.State())
	}
}

// onDisconnected 任一状态掉线都回 Idle：取消在途视觉与播放，
// 关闭摄像头，过期的视觉结果之后会按片段号被丢弃。
func (m *Machine) onDisconnected() {
	m.cancelVision()
	m.cancelSpeak()
	m.deps.Camera.Close()
	m.setState(StateIdle)
}

func (m *Machine) onSpeechRecognized(u Utterance) {
	state := m.State()
	if state != StateListening && state != StateIdle {
		m.deps.Logger.DebugTag(tagSession, "忽略语音事件（状态 %s）: %s", state, u.Text)
		return
	}

	cls := m.deps.Matcher.Classify(u.Text, u.Origin == OriginVisionAnswer)
	if u.Origin == OriginVisionAnswer {
		// 防环双保险：即使分类逻辑将来变了，带标记的话语也只能按普通文本走
		cls = keyword.Ordinary
	}

	switch cls {
	case keyword.CameraOpen:
		if _, err := m.deps.Camera.Open(); err != nil {
			m.deps.Logger.WarnTag(tagSession, "打开摄像头失败: %v", err)
		}
	case keyword.CameraClose:
		m.deps.Camera.Close()
	case keyword.VisionTrigger:
		if state != StateListening {
			m.deps.Logger.DebugTag(tagSession, "非拾音状态下的视觉请求被忽略: %s", u.Text)
			return
		}
		if m.deps.Analyzer == nil {
			m.deps.Logger.WarnTag(tagSession, "视觉功能未启用，按普通文本转发: %s", u.Text)
			m.forwardText(u.Text)
			return
		}
		m.beginVisionEpisode(u.Text)
	default:
		if state != StateListening {
			m.deps.Logger.DebugTag(tagSession, "未连接，丢弃话语: %s", u.Text)
			return
		}
		m.forwardText(u.Text)
	}
}

func (m *Machine) forwardText(text string) {
	if err := m.deps.Transport.SendText(text); err != nil {
		m.deps.Logger.WarnTag(tagSession, "转发文本失败: %v", err)
	}
}

// beginVisionEpisode 开启一个视觉片段：停止拾音，进入 VisionBusy，
// 异步截帧并分析。片段号保证过期结果不会被误用。
func (m *Machine) beginVisionEpisode(utteranceText string) {
	if err := m.deps.Transport.SendControl(protocol.ControlStopListening); err != nil {
		m.deps.Logger.WarnTag(tagSession, "停止拾音信号发送失败: %v", err)
	}

	episode := uuid.NewString()
	m.liveEpisode = episode
	m.setState(StateVisionBusy)

	prompt := m.deps.DefaultPrompt
	m.deps.Logger.InfoTag(tagSession, "视觉片段 %s 启动，触发语: %s", episode[:8], utteranceText)
	m.startVisionWorker(episode, prompt)
}

func (m *Machine) onVisionPipelineDone(ev Event) {
	if m.State() != StateVisionBusy || ev.Episode != m.liveEpisode {
		m.deps.Logger.InfoTag(tagSession, "丢弃过期的视觉结果（片段 %s，状态 %s）", shortEpisode(ev.Episode), m.State())
		return
	}
	m.liveEpisode = ""
	m.visionCancel = nil

	if ev.Vision.Success {
		marked := keyword.VisionAnswerMarker + ev.Vision.AnalysisText
		m.forwardText(marked)
		m.setState(StateSpeaking)
		m.startSpeakWorker(ev.Vision.AnalysisText, true)
		return
	}

	notice := failureNotices[ev.Vision.Failure]
	if notice == "" {
		notice = "视觉分析失败，请稍后再试"
	}
	m.deps.Logger.WarnTag(tagSession, "视觉片段失败（%s），播报提示", ev.Vision.Failure)
	m.setState(StateListening)
	if err := m.deps.Transport.SendControl(protocol.ControlStartListening); err != nil {
		m.deps.Logger.WarnTag(tagSession, "恢复拾音信号发送失败: %v", err)
	}
	// 提示语本地播报，不参与远端对话，也不产生回注事件
	m.startSpeakWorker(notice, false)
}

func (m *Machine) onUserInterrupt() {
	switch m.State() {
	case StateSpeaking:
		m.cancelSpeak()
		if err := m.deps.Transport.SendControl(protocol.ControlAbort); err != nil {
			m.deps.Logger.WarnTag(tagSession, "打断信号发送失败: %v", err)
		}
		m.setState(StateListening)
		m.deps.Transport.SendControl(protocol.ControlStartListening)
	case StateVisionBusy:
		m.cancelVision()
		m.liveEpisode = ""
		m.setState(StateListening)
		m.deps.Transport.SendControl(protocol.ControlStartListening)
	case StateListening:
		// 已在拾音；停掉可能还在播的本地提示音并向远端转发打断
		m.cancelSpeak()
		m.deps.Transport.SendControl(protocol.ControlAbort)
	default:
		m.deps.Logger.DebugTag(tagSession, "忽略打断（状态 %s）", m.State())
	}
}

func (m *Machine) onSpeechPlaybackDone() {
	if m.State() != StateSpeaking {
		m.deps.Logger.DebugTag(tagSession, "忽略播放完成（状态 %s）", m.State())
		return
	}
	m.setState(StateListening)
	if err := m.deps.Transport.SendControl(protocol.ControlStartListening); err != nil {
		m.deps.Logger.WarnTag(tagSession, "恢复拾音信号发送失败: %v", err)
	}
}

func (m *Machine) cancelVision() {
	if m.visionCancel != nil {
		m.visionCancel()
		m.visionCancel = nil
	}
}

func (m *Machine) cancelSpeak() {
	if m.speakCancel != nil {
		m.speakCancel()
		m.speakCancel = nil
	}
}

// WaitWorkers 等待所有后台工作者退出，关停时调用
func (m *Machine) WaitWorkers() {
	m.workers.Wait()
}

func shortEpisode(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

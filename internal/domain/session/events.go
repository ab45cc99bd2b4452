package session

// Origin 话语来源。VisionAnswer 是防环标记：携带该来源的话语
// 永远不会再触发关键词扫描。
type Origin int

const (
	OriginUserSpeech Origin = iota
	OriginVisionAnswer
)

func (o Origin) String() string {
	if o == OriginVisionAnswer {
		return "vision_answer"
	}
	return "user_speech"
}

// Utterance 一段识别或合成出的文本，创建后不可变
type Utterance struct {
	Text    string
	Origin  Origin
	Ordinal uint64
}

// FailureKind 视觉流水线失败类别，决定播报给用户的提示语
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureCamera    FailureKind = "camera"
	FailureNetwork   FailureKind = "network"
	FailureTimeout   FailureKind = "timeout"
	FailureMalformed FailureKind = "malformed"
)

// VisionOutcome 一次视觉片段的最终结果，只被状态机消费一次
type VisionOutcome struct {
	AnalysisText string
	Success      bool
	Failure      FailureKind
}

type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventSpeechRecognized
	EventUserInterrupt
	EventVisionPipelineDone
	EventSpeechPlaybackDone
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventSpeechRecognized:
		return "speech_recognized"
	case EventUserInterrupt:
		return "user_interrupt"
	case EventVisionPipelineDone:
		return "vision_pipeline_done"
	case EventSpeechPlaybackDone:
		return "speech_playback_done"
	default:
		return "unknown"
	}
}

// Event 进入调度循环的统一事件。Episode 只在
// EventVisionPipelineDone 上有意义，用于丢弃过期结果。
type Event struct {
	Kind      EventKind
	Utterance Utterance
	Vision    VisionOutcome
	Episode   string
}

// 事件优先级。打断事件先于所有排队中的普通事件被派发。
const (
	PriorityNormal    = 0
	PriorityInterrupt = 10
)

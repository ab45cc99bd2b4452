package protocol

import "context"

// ControlSignal 发往远端对话服务的控制信号
type ControlSignal string

const (
	ControlStartListening ControlSignal = "start_listening"
	ControlStopListening  ControlSignal = "stop_listening"
	ControlAbort          ControlSignal = "abort"
)

// InboundKind 入站事件类别
type InboundKind int

const (
	InboundConnected InboundKind = iota
	InboundDisconnected
	InboundTTSStart
	InboundTTSStop
	InboundTTSSentence
	InboundSTTResult
	InboundEmotion
	InboundAudio
)

func (k InboundKind) String() string {
	switch k {
	case InboundConnected:
		return "connected"
	case InboundDisconnected:
		return "disconnected"
	case InboundTTSStart:
		return "tts_start"
	case InboundTTSStop:
		return "tts_stop"
	case InboundTTSSentence:
		return "tts_sentence"
	case InboundSTTResult:
		return "stt_result"
	case InboundEmotion:
		return "emotion"
	case InboundAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Inbound 一条入站消息。状态机只消费 Connected/Disconnected，
// 其余由显示层订阅。
type Inbound struct {
	Kind    InboundKind
	Text    string
	Emotion string
	Audio   []byte
}

// Client 远端对话服务传输抽象。实现必须保证同一话语的音频块
// 按发送顺序到达远端（单写者出站队列）。
type Client interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool
	SendText(text string) error
	SendAudioChunk(chunk []byte) error
	SendControl(signal ControlSignal) error
	// Events 入站事件流。状态机绝不阻塞等待该流，只响应推送。
	Events() <-chan Inbound
}

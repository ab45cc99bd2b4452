package session

// DeviceState 设备状态。唯一属主是状态机，只在调度循环内变更。
type DeviceState int32

const (
	StateIdle DeviceState = iota
	StateConnecting
	StateListening
	StateSpeaking
	StateVisionBusy
)

func (s DeviceState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateListening:
		return "listening"
	case StateSpeaking:
		return "speaking"
	case StateVisionBusy:
		return "vision_busy"
	default:
		return "unknown"
	}
}

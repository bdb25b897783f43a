package recorder

import "fmt"

// State is the lifecycle position of a Session.
type State int32

const (
	StateIdle State = iota
	StateConfigured
	StateRecording
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfigured:
		return "configured"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

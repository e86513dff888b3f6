package capture

import "fmt"

type State int

const (
	StateIdle State = iota
	StateStreaming
	StateStaged
	// StateCameraUnavailable ends a failed start attempt. Start may be retried.
	StateCameraUnavailable
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateStaged:
		return "staged"
	case StateCameraUnavailable:
		return "camera-unavailable"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome records how the most recent staged image left the Staged state.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeSaved
	OutcomeDiscarded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSaved:
		return "saved"
	case OutcomeDiscarded:
		return "discarded"
	default:
		return "none"
	}
}

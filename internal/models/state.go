package models

// ItemState is the lifecycle position of one MediaItem inside a run.
type ItemState int

const (
	StatePending ItemState = iota
	StateAttempting
	StateResuming
	StateSkipped
	StateCompleted
	StateFailed
	StateCancelled
)

func (s ItemState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAttempting:
		return "attempting"
	case StateResuming:
		return "resuming"
	case StateSkipped:
		return "skipped"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// IsFinished reports whether the state is terminal.
func (s ItemState) IsFinished() bool {
	switch s {
	case StateSkipped, StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

package tracker

// State is the client-side view of the tracked job.
type State int

const (
	StateInit State = iota
	StateSubmitted
	StateListening
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateSubmitted:
		return "SUBMITTED"
	case StateListening:
		return "LISTENING"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

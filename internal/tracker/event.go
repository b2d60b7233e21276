package tracker

import (
	"github.com/joseph-ayodele/doffice/constants"
	"github.com/joseph-ayodele/doffice/internal/entity"
)

// Event is one notification dispatched while a job is tracked. The concrete types are
// StatusUpdate, Completed, Failed and ProtocolError.
type Event interface {
	Terminal() bool
	event()
}

// StatusUpdate reports an intermediate status; callers should show the job as busy.
type StatusUpdate struct {
	JobID    entity.JobID
	Status   constants.JobStatus
	Filename string
}

// Completed carries the final result text.
type Completed struct {
	JobID    entity.JobID
	Text     string
	Filename string
}

// FailureKind tells an application failure reported by the backend apart from a lost channel.
type FailureKind int

const (
	FailureApplication FailureKind = iota
	FailureChannel
)

func (k FailureKind) String() string {
	if k == FailureChannel {
		return "channel"
	}
	return "application"
}

// Failed ends the job with an error message.
type Failed struct {
	JobID   entity.JobID
	Message string
	Kind    FailureKind
	Err     error
}

// ProtocolError reports a push message that could not be parsed. The channel stays open.
type ProtocolError struct {
	JobID   entity.JobID
	Message string
	Raw     []byte
	Err     error
}

func (StatusUpdate) Terminal() bool  { return false }
func (Completed) Terminal() bool     { return true }
func (Failed) Terminal() bool        { return true }
func (ProtocolError) Terminal() bool { return false }

func (StatusUpdate) event()  {}
func (Completed) event()     {}
func (Failed) event()        {}
func (ProtocolError) event() {}

// Observer receives events in arrival order from a single goroutine. OnEvent must not block
// for long; it may call Tracker.Close.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

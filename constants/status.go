package constants

// JobStatus is the backend's status for a conversion job.
type JobStatus string

// Stable values (these exact strings travel on the wire).
const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Terminal reports whether no further transitions follow s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// MessageType is the "type" discriminator of a push-channel message.
type MessageType string

const (
	MessageStatusUpdate MessageType = "status_update"
	MessageJobCompleted MessageType = "job_completed"
	MessageJobFailed    MessageType = "job_failed"
	MessageError        MessageType = "error"
)

// AllMessageTypes lists every message type accepted on the push channel.
var AllMessageTypes = []MessageType{
	MessageStatusUpdate,
	MessageJobCompleted,
	MessageJobFailed,
	MessageError,
}

// AllJobStatuses lists every status accepted on the push channel.
var AllJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusProcessing,
	JobStatusCompleted,
	JobStatusFailed,
}

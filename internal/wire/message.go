// Package wire holds the JSON shapes exchanged with the doffice backend.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/joseph-ayodele/doffice/constants"
	"github.com/joseph-ayodele/doffice/internal/common"
	"github.com/joseph-ayodele/doffice/internal/entity"
)

// Message is one push-channel status message.
type Message struct {
	JobID    entity.JobID          `json:"job_id"`
	Status   constants.JobStatus   `json:"status"`
	Text     string                `json:"text,omitempty"`
	Error    string                `json:"error,omitempty"`
	Filename string                `json:"filename,omitempty"`
	Type     constants.MessageType `json:"type"`
}

// SubmitResponse is the body of a successful POST /submit.
type SubmitResponse struct {
	JobID   entity.JobID        `json:"job_id"`
	Status  constants.JobStatus `json:"status"`
	Message string              `json:"message"`
}

// ErrorBody is the backend's error payload. Detail is a string for handled errors; request
// validation failures carry a list there, which is kept raw.
type ErrorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// DetailString renders Detail for display.
func (b ErrorBody) DetailString() string {
	if len(b.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(b.Detail, &s); err == nil {
		return s
	}
	return string(b.Detail)
}

// ParseMessage validates raw against the push-message schema and decodes it.
// Failures are *common.AppError with code common.CodeProtocol wrapping common.ErrProtocol.
func ParseMessage(raw []byte) (Message, error) {
	if err := validatePushMessage(raw); err != nil {
		return Message{}, common.NewAppError(common.CodeProtocol, "invalid push message", fmt.Errorf("%w: %v", common.ErrProtocol, err))
	}
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, common.NewAppError(common.CodeProtocol, "decode push message", fmt.Errorf("%w: %v", common.ErrProtocol, err))
	}
	return m, nil
}

// Terminal reports whether m ends the job.
func (m Message) Terminal() bool {
	switch m.Type {
	case constants.MessageJobCompleted, constants.MessageJobFailed, constants.MessageError:
		return true
	}
	return false
}

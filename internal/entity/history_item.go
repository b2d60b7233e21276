package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/doffice/constants"
)

// HistoryItem is one locally recorded conversion.
type HistoryItem struct {
	ID           uuid.UUID           `json:"id"`
	JobID        JobID               `json:"job_id"`
	Kind         constants.MediaKind `json:"kind"`
	SourcePath   string              `json:"source_path"`
	Filename     string              `json:"filename"`
	MIMEType     string              `json:"mime_type"`
	Status       constants.JobStatus `json:"status"`
	ResultText   string              `json:"result_text,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

const previewRunes = 80

// Preview returns a short single-line excerpt of the result text.
func (h HistoryItem) Preview() string {
	text := h.ResultText
	if text == "" {
		text = h.ErrorMessage
	}
	out := make([]rune, 0, previewRunes)
	for _, r := range text {
		if len(out) == previewRunes {
			return string(out) + "…"
		}
		if r == '\n' || r == '\r' || r == '\t' {
			r = ' '
		}
		out = append(out, r)
	}
	return string(out)
}

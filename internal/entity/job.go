package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/joseph-ayodele/doffice/constants"
)

// JobID identifies a backend job. Early protocol revisions sent string ids; those are
// accepted on decode when they hold a decimal integer and always re-encoded as numbers.
type JobID int64

func (id JobID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseJobID parses a decimal job id.
func ParseJobID(s string) (JobID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid job id %q: %w", s, err)
	}
	return JobID(n), nil
}

func (id JobID) MarshalJSON() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *JobID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := ParseJobID(s)
		if err != nil {
			return err
		}
		*id = v
		return nil
	}
	v, err := ParseJobID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// Job is the client-side view of one backend conversion job.
type Job struct {
	ID           JobID               `json:"id"`
	Status       constants.JobStatus `json:"status"`
	Filename     string              `json:"filename,omitempty"`
	ResultText   string              `json:"text,omitempty"`
	ErrorMessage string              `json:"error,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

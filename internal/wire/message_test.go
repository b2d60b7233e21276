package wire

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/joseph-ayodele/doffice/constants"
	"github.com/joseph-ayodele/doffice/internal/common"
	"github.com/joseph-ayodele/doffice/internal/entity"
)

func TestParseMessageValid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Message
	}{
		{
			name: "status update",
			raw:  `{"job_id":42,"type":"status_update","status":"PROCESSING"}`,
			want: Message{JobID: 42, Type: constants.MessageStatusUpdate, Status: constants.JobStatusProcessing},
		},
		{
			name: "completed with text",
			raw:  `{"job_id":42,"type":"job_completed","status":"COMPLETED","text":"hello","filename":"a.png"}`,
			want: Message{JobID: 42, Type: constants.MessageJobCompleted, Status: constants.JobStatusCompleted, Text: "hello", Filename: "a.png"},
		},
		{
			name: "legacy string id",
			raw:  `{"job_id":"7","type":"job_failed","status":"FAILED","error":"no speech"}`,
			want: Message{JobID: 7, Type: constants.MessageJobFailed, Status: constants.JobStatusFailed, Error: "no speech"},
		},
		{
			name: "completed without status",
			raw:  `{"job_id":42,"type":"job_completed","text":"hello"}`,
			want: Message{JobID: 42, Type: constants.MessageJobCompleted, Text: "hello"},
		},
		{
			name: "failed without status or error",
			raw:  `{"job_id":42,"type":"job_failed"}`,
			want: Message{JobID: 42, Type: constants.MessageJobFailed},
		},
		{
			name: "null optionals and unknown fields",
			raw:  `{"job_id":1,"type":"error","status":"FAILED","text":null,"error":"boom","progress":50}`,
			want: Message{JobID: 1, Type: constants.MessageError, Status: constants.JobStatusFailed, Error: "boom"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseMessage([]byte(tc.raw))
			if err != nil {
				t.Fatalf("ParseMessage error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("ParseMessage = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParseMessageMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":           `hello`,
		"array":              `[1,2]`,
		"missing type":       `{"job_id":1,"status":"PENDING"}`,
		"missing job id":     `{"type":"status_update","status":"PENDING"}`,
		"unknown type":       `{"job_id":1,"type":"progress","status":"PENDING"}`,
		"unknown status":     `{"job_id":1,"type":"status_update","status":"QUEUED"}`,
		"status wrong type":  `{"job_id":1,"type":"job_completed","status":7}`,
		"fractional id":      `{"job_id":1.5,"type":"status_update","status":"PENDING"}`,
		"non numeric string": `{"job_id":"abc","type":"status_update","status":"PENDING"}`,
		"text wrong type":    `{"job_id":1,"type":"job_completed","status":"COMPLETED","text":3}`,
		"trailing garbage":   `{"job_id":1,"type":"status_update","status":"PENDING"} {}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMessage([]byte(raw))
			if err == nil {
				t.Fatalf("ParseMessage(%s) should fail", raw)
			}
			if !errors.Is(err, common.ErrProtocol) {
				t.Fatalf("ParseMessage error = %v, want ErrProtocol", err)
			}
			var ae *common.AppError
			if !errors.As(err, &ae) || ae.Code != common.CodeProtocol {
				t.Fatalf("ParseMessage error = %v, want %s", err, common.CodeProtocol)
			}
		})
	}
}

func TestMessageTerminal(t *testing.T) {
	cases := map[constants.MessageType]bool{
		constants.MessageStatusUpdate: false,
		constants.MessageJobCompleted: true,
		constants.MessageJobFailed:    true,
		constants.MessageError:        true,
	}
	for typ, want := range cases {
		if got := (Message{Type: typ}).Terminal(); got != want {
			t.Fatalf("Terminal(%s) = %v, want %v", typ, got, want)
		}
	}
}

func TestJobIDEncodesAsNumber(t *testing.T) {
	b, err := json.Marshal(SubmitResponse{JobID: entity.JobID(42), Status: constants.JobStatusPending})
	if err != nil {
		t.Fatalf("json.Marshal error = %v", err)
	}
	want := `{"job_id":42,"status":"PENDING","message":""}`
	if string(b) != want {
		t.Fatalf("json.Marshal = %s, want %s", b, want)
	}
}

func TestErrorBodyDetailString(t *testing.T) {
	var b ErrorBody
	if err := json.Unmarshal([]byte(`{"detail":"File too large"}`), &b); err != nil {
		t.Fatalf("json.Unmarshal error = %v", err)
	}
	if got := b.DetailString(); got != "File too large" {
		t.Fatalf("DetailString = %q, want %q", got, "File too large")
	}

	if err := json.Unmarshal([]byte(`{"detail":[{"msg":"field required"}]}`), &b); err != nil {
		t.Fatalf("json.Unmarshal error = %v", err)
	}
	if got := b.DetailString(); got != `[{"msg":"field required"}]` {
		t.Fatalf("DetailString = %q", got)
	}
}

package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/doffice/constants"
	"github.com/joseph-ayodele/doffice/internal/entity"
)

func TestWriteHistoryXLSX(t *testing.T) {
	items := []*entity.HistoryItem{
		{
			JobID:      2,
			Kind:       constants.MediaKindSpeech,
			Filename:   "memo.m4a",
			Status:     constants.JobStatusCompleted,
			ResultText: "meeting notes",
			CreatedAt:  time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC),
		},
		{
			JobID:        1,
			Kind:         constants.MediaKindOCR,
			SourcePath:   "/scans/blank.png",
			Status:       constants.JobStatusFailed,
			ErrorMessage: "no text found",
			CreatedAt:    time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		},
	}

	b, err := WriteHistoryXLSX(items)
	if err != nil {
		t.Fatalf("WriteHistoryXLSX error = %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("OpenReader error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("GetRows error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if strings.Join(rows[0], ",") != "Date,Kind,File,Status,Text" {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[1][1] != "speech" || rows[1][2] != "memo.m4a" || rows[1][4] != "meeting notes" {
		t.Fatalf("row 1 = %v", rows[1])
	}
	if rows[2][2] != "/scans/blank.png" || rows[2][3] != "FAILED" || rows[2][4] != "no text found" {
		t.Fatalf("row 2 = %v", rows[2])
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncate("héllo", 3); got != "hé…" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("hi", 3); got != "hi" {
		t.Fatalf("truncate = %q", got)
	}
}

package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/doffice/constants"
	"github.com/joseph-ayodele/doffice/internal/common"
	"github.com/joseph-ayodele/doffice/internal/media"
	"github.com/joseph-ayodele/doffice/internal/repository"
	"github.com/joseph-ayodele/doffice/internal/tracker"
)

func newService(t *testing.T) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := repository.Open(context.Background(), repository.Config{DSN: filepath.Join(t.TempDir(), "h.db")}, logger)
	if err != nil {
		t.Fatalf("Open error = %v", err)
	}
	t.Cleanup(func() { db.Close(logger) })
	return NewService(repository.NewHistoryRepository(db, logger), logger)
}

func TestRecorderStoresTerminalOutcomeOnce(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	file := media.FromBytes("memo.m4a", []byte("not really audio"))

	var forwarded int
	rec := svc.Recorder(ctx, file, tracker.ObserverFunc(func(tracker.Event) { forwarded++ }))
	rec.OnEvent(tracker.StatusUpdate{JobID: 5, Status: constants.JobStatusProcessing})
	if rec.Saved() != nil {
		t.Fatal("non-terminal event was recorded")
	}
	rec.OnEvent(tracker.Completed{JobID: 5, Text: "transcript"})
	rec.OnEvent(tracker.Completed{JobID: 5, Text: "duplicate"})

	if forwarded != 3 {
		t.Fatalf("forwarded = %d, want 3", forwarded)
	}
	saved := rec.Saved()
	if saved == nil || saved.ResultText != "transcript" || saved.Kind != constants.MediaKindSpeech {
		t.Fatalf("Saved = %+v", saved)
	}

	items, err := svc.List(ctx, ListRequest{})
	if err != nil || len(items) != 1 {
		t.Fatalf("List = %d items, %v", len(items), err)
	}
	if items[0].Filename != "memo.m4a" || items[0].JobID != 5 {
		t.Fatalf("item = %+v", items[0])
	}
}

func TestRecorderStoresFailure(t *testing.T) {
	svc := newService(t)
	rec := svc.Recorder(context.Background(), media.FromBytes("blank.png", nil), nil)
	rec.OnEvent(tracker.Failed{JobID: 8, Message: "no text found", Kind: tracker.FailureApplication})

	items, err := svc.List(context.Background(), ListRequest{Status: "failed"})
	if err != nil || len(items) != 1 || items[0].ErrorMessage != "no text found" {
		t.Fatalf("List(failed) = %+v, %v", items, err)
	}
}

func TestServiceEditAndDelete(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	rec := svc.Recorder(ctx, media.FromBytes("page.png", nil), nil)
	rec.OnEvent(tracker.Completed{JobID: 1, Text: "helo"})
	id := rec.Saved().ID.String()

	item, err := svc.UpdateText(ctx, id, "hello")
	if err != nil || item.ResultText != "hello" {
		t.Fatalf("UpdateText = %+v, %v", item, err)
	}
	if err := svc.Delete(ctx, id); err != nil {
		t.Fatalf("Delete error = %v", err)
	}
	if _, err := svc.Get(ctx, id); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("Get after delete error = %v, want ErrNotFound", err)
	}
}

func TestServiceRejectsBadInput(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	if _, err := svc.Get(ctx, "not-a-uuid"); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("Get error = %v, want ErrValidation", err)
	}
	if _, err := svc.List(ctx, ListRequest{Kind: "video"}); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("List error = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.List(ctx, ListRequest{JobID: "abc"}); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("List(job abc) error = %v, want ErrInvalidInput", err)
	}
}

func TestServiceListByJobID(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	svc.Recorder(ctx, media.FromBytes("one.png", nil), nil).OnEvent(tracker.Completed{JobID: 11, Text: "one"})
	svc.Recorder(ctx, media.FromBytes("two.png", nil), nil).OnEvent(tracker.Completed{JobID: 12, Text: "two"})

	items, err := svc.List(ctx, ListRequest{JobID: " 12 "})
	if err != nil || len(items) != 1 || items[0].ResultText != "two" {
		t.Fatalf("List(job 12) = %+v, %v", items, err)
	}
	items, err = svc.List(ctx, ListRequest{JobID: "99"})
	if err != nil || len(items) != 0 {
		t.Fatalf("List(job 99) = %+v, %v", items, err)
	}
	if all, err := svc.List(ctx, ListRequest{}); err != nil || len(all) != 2 {
		t.Fatalf("List() = %+v, %v", all, err)
	}
}

package history

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/doffice/constants"
	"github.com/joseph-ayodele/doffice/internal/entity"
	"github.com/joseph-ayodele/doffice/internal/media"
	"github.com/joseph-ayodele/doffice/internal/tracker"
)

// Recorder is a tracker.Observer that saves the terminal outcome of one job and forwards every
// event to Next.
type Recorder struct {
	ctx     context.Context
	service *Service
	file    media.File
	next    tracker.Observer
	logger  *slog.Logger

	saved *entity.HistoryItem
}

// Recorder builds an observer for file. ctx bounds the database write.
func (s *Service) Recorder(ctx context.Context, file media.File, next tracker.Observer) *Recorder {
	return &Recorder{ctx: ctx, service: s, file: file, next: next, logger: s.logger}
}

func (r *Recorder) OnEvent(ev tracker.Event) {
	if r.next != nil {
		r.next.OnEvent(ev)
	}
	if !ev.Terminal() || r.saved != nil {
		return
	}

	item := &entity.HistoryItem{
		Kind:       r.file.Kind,
		SourcePath: r.file.Path,
		Filename:   r.file.Name,
		MIMEType:   r.file.MIMEType,
	}
	switch e := ev.(type) {
	case tracker.Completed:
		item.JobID = e.JobID
		item.Status = constants.JobStatusCompleted
		item.ResultText = e.Text
		if item.Filename == "" {
			item.Filename = e.Filename
		}
	case tracker.Failed:
		item.JobID = e.JobID
		item.Status = constants.JobStatusFailed
		item.ErrorMessage = e.Message
	default:
		return
	}
	if !item.Kind.Valid() {
		item.Kind = constants.MediaKindOCR
	}

	if err := r.service.Record(r.ctx, item); err != nil {
		r.logger.Error("history.record_failed", "job_id", item.JobID, "error", err)
		return
	}
	r.saved = item
	r.logger.Info("history.recorded", "id", item.ID, "job_id", item.JobID, "status", item.Status)
}

// Saved returns the stored item once a terminal event was recorded.
func (r *Recorder) Saved() *entity.HistoryItem { return r.saved }

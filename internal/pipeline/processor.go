package pipeline

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/doffice/internal/async"
	"github.com/joseph-ayodele/doffice/internal/common"
	"github.com/joseph-ayodele/doffice/internal/history"
	"github.com/joseph-ayodele/doffice/internal/media"
	"github.com/joseph-ayodele/doffice/internal/tracker"
)

// Processor coordinates upload, tracking and history recording for one file at a time.
type Processor struct {
	Logger  *slog.Logger
	Tracker *tracker.Tracker
	History *history.Service // optional
}

func NewProcessor(logger *slog.Logger, tr *tracker.Tracker, hist *history.Service) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, Tracker: tr, History: hist}
}

// Process submits job.Path and blocks until the backend reports a terminal state or ctx ends.
func (p *Processor) Process(ctx context.Context, job async.Job) error {
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
		ctx = common.WithLogger(ctx, p.Logger.With("trace_id", job.TraceID))
	}

	file, err := media.Open(job.Path)
	if err != nil {
		p.Logger.Error("processor.open.failed", "path", job.Path, "err", err)
		return err
	}

	var obs tracker.Observer = tracker.ObserverFunc(func(ev tracker.Event) {
		switch e := ev.(type) {
		case tracker.StatusUpdate:
			p.Logger.Info("processor.status", "trace_id", job.TraceID, "job_id", e.JobID, "status", e.Status)
		case tracker.ProtocolError:
			p.Logger.Warn("processor.protocol_error", "trace_id", job.TraceID, "job_id", e.JobID, "err", e.Err)
		}
	})
	if p.History != nil {
		obs = p.History.Recorder(ctx, file, obs)
	}

	res, err := p.Tracker.Run(ctx, file, obs)
	if err != nil {
		p.Logger.Error("processor.job.failed", "path", job.Path, "job_id", res.ID, "err", err)
		return err
	}
	p.Logger.Info("processor.job.ok",
		"path", job.Path,
		"job_id", res.ID,
		"kind", file.Kind,
		"text_len", len(res.ResultText),
	)
	return nil
}

var _ async.Processor = (*Processor)(nil)

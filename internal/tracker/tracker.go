// Package tracker drives one conversion job from submission to a terminal state.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/joseph-ayodele/doffice/constants"
	"github.com/joseph-ayodele/doffice/internal/channel"
	"github.com/joseph-ayodele/doffice/internal/common"
	"github.com/joseph-ayodele/doffice/internal/entity"
	"github.com/joseph-ayodele/doffice/internal/media"
	"github.com/joseph-ayodele/doffice/internal/wire"
)

// ConnectivityMessage is reported when the push channel fails before a terminal message.
const ConnectivityMessage = "lost connection to the job status channel"

const unknownFailureMessage = "unknown error"

// Submitter uploads a media file to the backend job endpoint.
type Submitter interface {
	SubmitJob(ctx context.Context, file media.File) (wire.SubmitResponse, error)
}

// Tracker owns at most one push channel at a time. Submitting or tracking again closes the
// previous channel before anything else happens.
type Tracker struct {
	submitter      Submitter
	dialer         channel.Dialer
	logger         *slog.Logger
	initialPending bool

	mu      sync.Mutex
	state   State
	job     entity.Job
	conn    channel.Conn
	gen     uint64
	done    chan struct{}
	lastErr error
}

type Option func(*Tracker)

// WithInitialPending makes Track emit a synthetic PENDING status once the channel is open.
func WithInitialPending() Option {
	return func(t *Tracker) { t.initialPending = true }
}

// WithLogger sets the tracker logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func New(submitter Submitter, dialer channel.Dialer, opts ...Option) *Tracker {
	t := &Tracker{
		submitter: submitter,
		dialer:    dialer,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Job returns a snapshot of the tracked job.
func (t *Tracker) Job() entity.Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.job
}

// Err returns the failure that ended the last job, if any.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Done is closed when the current tracking session ends: terminal event, Close, or a new
// Submit/Track. It is nil before the first Track.
func (t *Tracker) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Submit discards any previous job, closes its channel and uploads file. Upload failures are
// returned as *common.UploadError (unreadable media as common.ErrInvalidInput) and leave the
// tracker in INIT.
func (t *Tracker) Submit(ctx context.Context, file media.File) (entity.JobID, error) {
	gen := t.reset()

	t.logger.Info("tracker.submit", "filename", file.Name, "mime_type", file.MIMEType, "size", file.Size)
	resp, err := t.submitter.SubmitJob(ctx, file)
	if err != nil {
		t.logger.Error("tracker.submit.failed", "filename", file.Name, "error", err)
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen {
		// Another Submit or Close won the race; this result is stale.
		return resp.JobID, common.NewAppError(common.CodeState, "submission superseded", common.ErrInvalidState)
	}
	status := resp.Status
	if !status.Valid() {
		status = constants.JobStatusPending
	}
	t.state = StateSubmitted
	t.job = entity.Job{ID: resp.JobID, Status: status, Filename: file.Name}
	t.logger.Info("tracker.submitted", "job_id", resp.JobID, "status", status)
	return resp.JobID, nil
}

// Track opens one channel bound to jobID and dispatches its events to obs until a terminal
// event, Close, or a new Submit/Track. When the job was just submitted, jobID must match it.
// Dial failures are not returned: they are dispatched as a terminal channel Failed event.
func (t *Tracker) Track(ctx context.Context, jobID entity.JobID, obs Observer) error {
	if obs == nil {
		return common.NewAppError(common.CodeState, "observer is required", common.ErrInvalidInput)
	}

	t.mu.Lock()
	if t.state == StateSubmitted && t.job.ID != jobID {
		submitted := t.job.ID
		t.mu.Unlock()
		return common.NewAppError(common.CodeState,
			fmt.Sprintf("track %s while job %s is submitted", jobID, submitted), common.ErrInvalidState)
	}
	prev := t.conn
	t.conn = nil
	t.gen++
	gen := t.gen
	if t.job.ID != jobID || t.state != StateSubmitted {
		t.job = entity.Job{ID: jobID, Status: constants.JobStatusPending}
	}
	t.state = StateListening
	t.lastErr = nil
	done := make(chan struct{})
	t.done = done
	t.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}

	conn, err := t.dialer.Dial(ctx, jobID)
	if err != nil {
		t.logger.Error("tracker.dial.failed", "job_id", jobID, "error", err)
		t.deliver(gen, Failed{JobID: jobID, Message: ConnectivityMessage, Kind: FailureChannel, Err: err}, obs)
		close(done)
		return nil
	}

	t.mu.Lock()
	if t.gen != gen {
		t.mu.Unlock()
		_ = conn.Close()
		close(done)
		return nil
	}
	t.conn = conn
	t.mu.Unlock()

	t.logger.Info("tracker.listening", "job_id", jobID)
	go t.listen(gen, jobID, conn, obs, done)
	return nil
}

// Close tears down the channel, if any. It is idempotent and safe from inside OnEvent.
// No dispatch starts after Close returns; an OnEvent already running on the listener
// goroutine is not waited for. An abandoned non-terminal job is cleared; a
// terminal job stays readable through Job.
func (t *Tracker) Close() {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.gen++
	if !t.state.Terminal() && t.state != StateInit {
		t.logger.Info("tracker.abandoned", "job_id", t.job.ID, "state", t.state)
		t.state = StateInit
		t.job = entity.Job{}
	}
	t.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// Run submits file, tracks the resulting job and blocks until it reaches a terminal state.
// Failed jobs return the job with an error wrapping common.ErrJobFailed or common.ErrChannel.
func (t *Tracker) Run(ctx context.Context, file media.File, obs Observer) (entity.Job, error) {
	if obs == nil {
		obs = ObserverFunc(func(Event) {})
	}
	jobID, err := t.Submit(ctx, file)
	if err != nil {
		return entity.Job{}, err
	}
	if err := t.Track(ctx, jobID, obs); err != nil {
		return t.Job(), err
	}
	return t.Wait(ctx)
}

// Wait blocks until the current tracking session ends or ctx is done. On ctx expiry the
// channel is closed.
func (t *Tracker) Wait(ctx context.Context) (entity.Job, error) {
	done := t.Done()
	if done == nil {
		return entity.Job{}, common.NewAppError(common.CodeState, "nothing is being tracked", common.ErrInvalidState)
	}
	select {
	case <-done:
	case <-ctx.Done():
		job := t.Job()
		t.Close()
		return job, ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case StateCompleted:
		return t.job, nil
	case StateFailed:
		return t.job, t.lastErr
	}
	return t.job, common.NewAppError(common.CodeState, "tracking ended before the job finished", common.ErrInvalidState)
}

func (t *Tracker) reset() uint64 {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.gen++
	gen := t.gen
	t.state = StateInit
	t.job = entity.Job{}
	t.lastErr = nil
	t.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	return gen
}

func (t *Tracker) listen(gen uint64, jobID entity.JobID, conn channel.Conn, obs Observer, done chan struct{}) {
	defer close(done)

	if t.initialPending {
		if !t.deliver(gen, StatusUpdate{JobID: jobID, Status: constants.JobStatusPending}, obs) {
			return
		}
	}

	for {
		raw, err := conn.Read()
		if err != nil {
			if errors.Is(err, channel.ErrClosed) {
				return
			}
			t.logger.Warn("tracker.channel.lost", "job_id", jobID, "error", err)
			t.deliver(gen, Failed{JobID: jobID, Message: ConnectivityMessage, Kind: FailureChannel, Err: err}, obs)
			return
		}

		msg, err := wire.ParseMessage(raw)
		if err != nil {
			t.logger.Warn("tracker.message.malformed", "job_id", jobID, "error", err)
			ev := ProtocolError{JobID: jobID, Message: "could not parse status message from server", Raw: raw, Err: err}
			if !t.deliver(gen, ev, obs) {
				return
			}
			continue
		}
		if msg.JobID != jobID {
			t.logger.Debug("tracker.message.foreign", "job_id", jobID, "message_job_id", msg.JobID)
			continue
		}

		ev := eventFromMessage(msg)
		if !t.deliver(gen, ev, obs) || ev.Terminal() {
			return
		}
	}
}

// deliver applies ev and hands it to obs if gen is still the live session. The gen check
// and the hand-off to obs are not separated by any blocking call, so a Close that wins the
// lock suppresses the event. Terminal events detach the channel under the lock and close
// it once obs has returned.
func (t *Tracker) deliver(gen uint64, ev Event, obs Observer) bool {
	t.mu.Lock()
	if t.gen != gen || t.state != StateListening {
		t.mu.Unlock()
		return false
	}
	t.apply(ev)
	var closing channel.Conn
	if ev.Terminal() {
		closing = t.conn
		t.conn = nil
	}
	t.mu.Unlock()

	obs.OnEvent(ev)
	if closing != nil {
		_ = closing.Close()
	}
	return true
}

// apply must be called with t.mu held.
func (t *Tracker) apply(ev Event) {
	switch e := ev.(type) {
	case StatusUpdate:
		if e.Status.Valid() {
			t.job.Status = e.Status
		}
		if e.Filename != "" {
			t.job.Filename = e.Filename
		}
	case Completed:
		t.state = StateCompleted
		t.job.Status = constants.JobStatusCompleted
		t.job.ResultText = e.Text
		if e.Filename != "" {
			t.job.Filename = e.Filename
		}
		t.logger.Info("tracker.completed", "job_id", e.JobID, "text_len", len(e.Text))
	case Failed:
		t.state = StateFailed
		t.job.Status = constants.JobStatusFailed
		t.job.ErrorMessage = e.Message
		if e.Kind == FailureChannel {
			t.lastErr = common.NewAppError(common.CodeChannel, e.Message, errors.Join(common.ErrChannel, e.Err))
		} else {
			t.lastErr = fmt.Errorf("%w: %s", common.ErrJobFailed, e.Message)
		}
		t.logger.Warn("tracker.failed", "job_id", e.JobID, "kind", e.Kind, "message", e.Message)
	}
}

func eventFromMessage(m wire.Message) Event {
	switch m.Type {
	case constants.MessageJobCompleted:
		return Completed{JobID: m.JobID, Text: m.Text, Filename: m.Filename}
	case constants.MessageJobFailed, constants.MessageError:
		msg := m.Error
		if msg == "" {
			msg = unknownFailureMessage
		}
		return Failed{JobID: m.JobID, Message: msg, Kind: FailureApplication}
	}
	return StatusUpdate{JobID: m.JobID, Status: m.Status, Filename: m.Filename}
}

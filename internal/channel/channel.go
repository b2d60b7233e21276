// Package channel opens push-notification connections scoped to one job.
package channel

import (
	"context"
	"errors"

	"github.com/joseph-ayodele/doffice/internal/entity"
)

// ErrClosed is returned by Read once the connection was closed locally.
var ErrClosed = errors.New("channel closed")

// Conn is one open push channel. Read blocks until a message arrives or the connection
// fails; Close unblocks a pending Read and may be called any number of times.
type Conn interface {
	Read() ([]byte, error)
	Close() error
}

// Dialer opens a Conn for a job.
type Dialer interface {
	Dial(ctx context.Context, jobID entity.JobID) (Conn, error)
}

// TokenSource supplies the bearer token sent when dialing. An empty token dials anonymously.
type TokenSource interface {
	Token() string
}

package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/joseph-ayodele/doffice/internal/common"
	"github.com/joseph-ayodele/doffice/internal/entity"
)

// StatusPath returns the push-channel path for a job, relative to the backend base.
func StatusPath(jobID entity.JobID) string {
	return "/ws/status/" + jobID.String()
}

// WSDialer dials {BaseURL}/ws/status/{job_id}.
type WSDialer struct {
	baseURL string
	tokens  TokenSource
	dialer  *websocket.Dialer
	logger  *slog.Logger
}

// NewWSDialer builds a dialer for a ws:// or wss:// base URL.
func NewWSDialer(baseURL string, tokens TokenSource, handshakeTimeout time.Duration, logger *slog.Logger) *WSDialer {
	if logger == nil {
		logger = slog.Default()
	}
	if handshakeTimeout <= 0 {
		handshakeTimeout = 10 * time.Second
	}
	return &WSDialer{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		logger: logger,
	}
}

func (d *WSDialer) Dial(ctx context.Context, jobID entity.JobID) (Conn, error) {
	url := d.baseURL + StatusPath(jobID)
	header := http.Header{}
	if d.tokens != nil {
		if tok := d.tokens.Token(); tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	c, resp, err := d.dialer.DialContext(ctx, url, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
			_ = resp.Body.Close()
		}
		d.logger.Error("channel.ws.dial_error", "job_id", jobID, "url", url, "status", status, "error", err)
		return nil, fmt.Errorf("%w: dial %s: %w", common.ErrChannel, url, err)
	}
	d.logger.Info("channel.ws.connected", "job_id", jobID, "elapsed_ms", time.Since(start).Milliseconds())
	return &wsConn{conn: c, jobID: jobID, logger: d.logger}, nil
}

type wsConn struct {
	conn   *websocket.Conn
	jobID  entity.JobID
	logger *slog.Logger

	once   sync.Once
	mu     sync.Mutex
	closed bool
}

func (c *wsConn) Read() ([]byte, error) {
	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if closed {
				return nil, ErrClosed
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, fmt.Errorf("%w: closed by server: %w", common.ErrChannel, err)
			}
			return nil, fmt.Errorf("%w: read: %w", common.ErrChannel, err)
		}
		if typ != websocket.TextMessage && typ != websocket.BinaryMessage {
			continue
		}
		return data, nil
	}
}

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if werr := c.conn.WriteControl(websocket.CloseMessage, msg, deadline); werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
			c.logger.Debug("channel.ws.close_frame_error", "job_id", c.jobID, "error", werr)
		}
		err = c.conn.Close()
		c.logger.Info("channel.ws.closed", "job_id", c.jobID)
	})
	return err
}

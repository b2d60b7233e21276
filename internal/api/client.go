// Package api is the REST client for the doffice backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/doffice/internal/common"
	"github.com/joseph-ayodele/doffice/internal/entity"
	"github.com/joseph-ayodele/doffice/internal/media"
	"github.com/joseph-ayodele/doffice/internal/wire"
)

// Auth supplies credentials for a request. Guest sessions have no token.
type Auth interface {
	Token() string
	Guest() bool
}

// BearerToken is an Auth for a bare token, e.g. one just returned by Login.
type BearerToken string

func (t BearerToken) Token() string { return string(t) }
func (t BearerToken) Guest() bool   { return t == "" }

// Config for the API client.
type Config struct {
	BaseURL string        // e.g. https://host/api/v1
	Timeout time.Duration // http client timeout
}

type Client struct {
	cfg    Config
	http   *http.Client
	auth   Auth
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// WithHTTPClient swaps the transport, mostly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	cp := *c
	cp.http = hc
	return &cp
}

// WithAuth returns a copy of c that sends auth's bearer token.
func (c *Client) WithAuth(auth Auth) *Client {
	cp := *c
	cp.auth = auth
	return &cp
}

// BaseURL returns the REST base the client targets.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// HTTPError is a non-2xx backend response. It unwraps to ErrUnauthorized for 401/403 and
// ErrNotFound for 404.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Detail     string
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return common.ErrUnauthorized
	case http.StatusNotFound:
		return common.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return common.ErrInvalidInput
	}
	return nil
}

// transportError marks failures where no response was received.
type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// Login exchanges email and password for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	v := common.NewValidator().
		Field("email", email, common.Required).
		SecretField("password", password, common.Required)
	if err := common.ValidateAndReturnError(v); err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("username", strings.TrimSpace(email))
	form.Set("password", password)

	var out wire.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/token", "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()), &out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

// GoogleLogin exchanges a Google ID token for an access token.
func (c *Client) GoogleLogin(ctx context.Context, idToken string) (string, error) {
	v := common.NewValidator().SecretField("id_token", idToken, common.Required)
	if err := common.ValidateAndReturnError(v); err != nil {
		return "", err
	}
	var out wire.TokenResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/google", wire.GoogleLoginRequest{IDToken: idToken}, &out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

// Limits enforced on sign up before any request is sent.
const (
	MinPasswordLength = 8
	MaxEmailLength    = 254
)

// SignUp creates an account. It does not sign in.
func (c *Client) SignUp(ctx context.Context, email, password string) (entity.User, error) {
	v := common.NewValidator().
		Field("email", email, common.Required, common.Email, common.MaxLen(MaxEmailLength)).
		SecretField("password", password, common.Required, common.MinLen(MinPasswordLength))
	if err := common.ValidateAndReturnError(v); err != nil {
		return entity.User{}, err
	}
	var out entity.User
	req := wire.SignUpRequest{Email: strings.TrimSpace(email), Password: password}
	if err := c.doJSON(ctx, http.MethodPost, "/users/", req, &out); err != nil {
		return entity.User{}, err
	}
	return out, nil
}

// Me returns the user behind the current token.
func (c *Client) Me(ctx context.Context) (entity.User, error) {
	var out entity.User
	if err := c.do(ctx, http.MethodGet, "/users/me", "", nil, &out); err != nil {
		return entity.User{}, err
	}
	return out, nil
}

// SubmitJob uploads file as multipart field "file". Transport and server failures are
// *common.UploadError; media that cannot be read locally wraps common.ErrInvalidInput.
func (c *Client) SubmitJob(ctx context.Context, file media.File) (wire.SubmitResponse, error) {
	body, contentType, err := multipartBody(file)
	if err != nil {
		return wire.SubmitResponse{}, common.NewAppError("MEDIA_ERROR", "read "+file.Name, fmt.Errorf("%w: %w", common.ErrInvalidInput, err))
	}

	var out wire.SubmitResponse
	err = c.do(ctx, http.MethodPost, "/submit", contentType, body, &out)
	if err == nil {
		return out, nil
	}
	var te *transportError
	if errors.As(err, &te) {
		return wire.SubmitResponse{}, common.NewNetworkUploadError(te.err)
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return wire.SubmitResponse{}, common.NewServerUploadError(he.StatusCode, he.Detail, he)
	}
	// decode failure of a 2xx response
	return wire.SubmitResponse{}, common.NewServerUploadError(http.StatusOK, "invalid submit response", err)
}

// ListJobs returns the account's remote job history, newest first.
func (c *Client) ListJobs(ctx context.Context) ([]entity.Job, error) {
	var out []entity.Job
	if err := c.do(ctx, http.MethodGet, "/jobs/", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateJobText replaces a finished job's text. Guests cannot edit.
func (c *Client) UpdateJobText(ctx context.Context, id entity.JobID, text string) (entity.Job, error) {
	if c.auth == nil || c.auth.Guest() {
		return entity.Job{}, common.NewAppError("AUTH_REQUIRED", "sign in to edit job text", common.ErrUnauthorized)
	}
	var out entity.Job
	if err := c.doJSON(ctx, http.MethodPut, "/jobs/"+id.String(), wire.UpdateTextRequest{Text: text}, &out); err != nil {
		return entity.Job{}, err
	}
	return out, nil
}

// DeleteJob removes a job from the remote history.
func (c *Client) DeleteJob(ctx context.Context, id entity.JobID) error {
	return c.do(ctx, http.MethodDelete, "/jobs/"+id.String(), "", nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	bs, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return c.do(ctx, method, path, "application/json", bytes.NewReader(bs), out)
}

// do sends one request and decodes a 2xx JSON body into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	logger := common.LoggerFromContext(ctx, c.logger)
	reqID := common.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.New().String()
	}
	start := time.Now()
	endpoint := c.cfg.BaseURL + path

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		logger.Error("api.http.build_request_error", "req_id", reqID, "error", err)
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if c.auth != nil {
		if tok := c.auth.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	logger.Info("api.http.request", "req_id", reqID, "method", method, "url", endpoint)

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Error("api.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return &transportError{err: err}
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn("api.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &transportError{err: fmt.Errorf("read response: %w", err)}
	}

	logger.Info("api.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		var eb wire.ErrorBody
		_ = json.Unmarshal(raw, &eb)
		return &HTTPError{Method: method, Path: path, StatusCode: resp.StatusCode, Detail: eb.DetailString()}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		logger.Error("api.http.decode_error", "req_id", reqID, "error", err, "raw_bytes", len(raw))
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func multipartBody(file media.File) (io.Reader, string, error) {
	rc, err := file.Reader()
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	h.Set("Content-Type", file.MIMEType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := io.Copy(part, rc); err != nil {
		return nil, "", fmt.Errorf("read media: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

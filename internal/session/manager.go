package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/doffice/internal/api"
	"github.com/joseph-ayodele/doffice/internal/common"
	"github.com/joseph-ayodele/doffice/internal/entity"
)

// ErrNoSession is returned by Load when no usable token is stored.
var ErrNoSession = common.NewAppError("AUTH_REQUIRED", "not signed in", common.ErrUnauthorized)

// Backend is the subset of the REST API the session flow needs.
type Backend interface {
	Login(ctx context.Context, email, password string) (string, error)
	GoogleLogin(ctx context.Context, idToken string) (string, error)
	SignUp(ctx context.Context, email, password string) (entity.User, error)
	Me(ctx context.Context, token string) (entity.User, error)
}

// APIBackend adapts api.Client to Backend.
type APIBackend struct {
	Client *api.Client
}

func (b APIBackend) Login(ctx context.Context, email, password string) (string, error) {
	return b.Client.Login(ctx, email, password)
}

func (b APIBackend) GoogleLogin(ctx context.Context, idToken string) (string, error) {
	return b.Client.GoogleLogin(ctx, idToken)
}

func (b APIBackend) SignUp(ctx context.Context, email, password string) (entity.User, error) {
	return b.Client.SignUp(ctx, email, password)
}

func (b APIBackend) Me(ctx context.Context, token string) (entity.User, error) {
	return b.Client.WithAuth(api.BearerToken(token)).Me(ctx)
}

type Manager struct {
	backend Backend
	store   TokenStore
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	current *Session
}

func NewManager(backend Backend, store TokenStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{backend: backend, store: store, logger: logger, now: time.Now}
}

// Current returns the active session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Load restores the stored token and confirms it with the backend. Expired or rejected
// tokens are cleared and ErrNoSession is returned.
func (m *Manager) Load(ctx context.Context) (*Session, error) {
	tok, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	if tok == "" {
		return nil, ErrNoSession
	}
	if exp := TokenExpiry(tok); !exp.IsZero() && !m.now().Before(exp) {
		m.logger.Info("session.token_expired", "expired_at", exp)
		m.clear()
		return nil, ErrNoSession
	}

	user, err := m.backend.Me(ctx, tok)
	if err != nil {
		m.logger.Warn("session.restore_failed", "error", err)
		m.clear()
		if errors.Is(err, common.ErrUnauthorized) {
			return nil, ErrNoSession
		}
		return nil, common.WrapError(err, "restore session")
	}
	return m.set(Authenticated(tok, user)), nil
}

// SignIn logs in with email and password and stores the token.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*Session, error) {
	tok, err := m.backend.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return m.establish(ctx, tok)
}

// SignUp creates the account and signs in with the same credentials.
func (m *Manager) SignUp(ctx context.Context, email, password string) (*Session, error) {
	if _, err := m.backend.SignUp(ctx, email, password); err != nil {
		return nil, err
	}
	return m.SignIn(ctx, email, password)
}

// GoogleSignIn exchanges a Google ID token for a backend session.
func (m *Manager) GoogleSignIn(ctx context.Context, idToken string) (*Session, error) {
	tok, err := m.backend.GoogleLogin(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return m.establish(ctx, tok)
}

// EnterGuest switches to a guest session and forgets any stored token.
func (m *Manager) EnterGuest() (*Session, error) {
	if err := m.store.Clear(); err != nil {
		return nil, err
	}
	m.logger.Info("session.guest")
	return m.set(Guest()), nil
}

func (m *Manager) SignOut() error {
	if err := m.store.Clear(); err != nil {
		return err
	}
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
	m.logger.Info("session.signed_out")
	return nil
}

func (m *Manager) establish(ctx context.Context, tok string) (*Session, error) {
	if tok == "" {
		return nil, common.NewAppError("AUTH_ERROR", "backend returned no access token", common.ErrUnauthorized)
	}
	user, err := m.backend.Me(ctx, tok)
	if err != nil {
		return nil, common.WrapError(err, "fetch user")
	}
	if err := m.store.Save(tok); err != nil {
		return nil, err
	}
	m.logger.Info("session.signed_in", "user_id", user.ID)
	return m.set(Authenticated(tok, user)), nil
}

func (m *Manager) set(s *Session) *Session {
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	return s
}

func (m *Manager) clear() {
	if err := m.store.Clear(); err != nil {
		m.logger.Warn("session.clear_failed", "error", err)
	}
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}

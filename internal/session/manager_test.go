package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joseph-ayodele/doffice/internal/common"
	"github.com/joseph-ayodele/doffice/internal/entity"
)

type fakeBackend struct {
	users   map[string]entity.User // by token
	loginTo string
	meErr   error
	signups int
}

func (b *fakeBackend) Login(_ context.Context, email, password string) (string, error) {
	if password != "correct-horse" {
		return "", common.ErrUnauthorized
	}
	return b.loginTo, nil
}

func (b *fakeBackend) GoogleLogin(_ context.Context, idToken string) (string, error) {
	if idToken == "" {
		return "", common.ErrInvalidInput
	}
	return b.loginTo, nil
}

func (b *fakeBackend) SignUp(_ context.Context, email, _ string) (entity.User, error) {
	b.signups++
	return entity.User{ID: 9, Email: email}, nil
}

func (b *fakeBackend) Me(_ context.Context, token string) (entity.User, error) {
	if b.meErr != nil {
		return entity.User{}, b.meErr
	}
	u, ok := b.users[token]
	if !ok {
		return entity.User{}, common.ErrUnauthorized
	}
	return u, nil
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "a@b.co",
		"exp": exp.Unix(),
	}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("SignedString error = %v", err)
	}
	return tok
}

func newManager(t *testing.T, b Backend) (*Manager, *FileTokenStore) {
	t.Helper()
	store := NewFileTokenStore(t.TempDir())
	return NewManager(b, store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func TestSignInPersistsToken(t *testing.T) {
	tok := signed(t, time.Now().Add(time.Hour))
	b := &fakeBackend{loginTo: tok, users: map[string]entity.User{tok: {ID: 1, Email: "a@b.co"}}}
	m, store := newManager(t, b)

	s, err := m.SignIn(context.Background(), "a@b.co", "correct-horse")
	if err != nil {
		t.Fatalf("SignIn error = %v", err)
	}
	if s.Token() != tok || s.Guest() || s.User.ID != 1 {
		t.Fatalf("session = %+v", s)
	}
	if s.ExpiresAt.IsZero() {
		t.Fatal("ExpiresAt not parsed from token")
	}

	stored, err := store.Load()
	if err != nil || stored != tok {
		t.Fatalf("stored token = %q, %v", stored, err)
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(store.Path())
		if err != nil {
			t.Fatalf("Stat error = %v", err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Fatalf("token file mode = %v, want 0600", info.Mode().Perm())
		}
	}
}

func TestSignInWrongPassword(t *testing.T) {
	m, store := newManager(t, &fakeBackend{})
	if _, err := m.SignIn(context.Background(), "a@b.co", "nope"); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("SignIn error = %v, want ErrUnauthorized", err)
	}
	if tok, _ := store.Load(); tok != "" {
		t.Fatal("failed sign in stored a token")
	}
}

func TestSignUpThenSignIn(t *testing.T) {
	tok := signed(t, time.Now().Add(time.Hour))
	b := &fakeBackend{loginTo: tok, users: map[string]entity.User{tok: {ID: 9, Email: "new@b.co"}}}
	m, _ := newManager(t, b)

	s, err := m.SignUp(context.Background(), "new@b.co", "correct-horse")
	if err != nil {
		t.Fatalf("SignUp error = %v", err)
	}
	if b.signups != 1 || s.User.Email != "new@b.co" {
		t.Fatalf("signups = %d session = %+v", b.signups, s)
	}
}

func TestLoadRestoresAndClears(t *testing.T) {
	good := signed(t, time.Now().Add(time.Hour))
	b := &fakeBackend{users: map[string]entity.User{good: {ID: 1}}}
	m, store := newManager(t, b)

	if _, err := m.Load(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Load with empty store error = %v, want ErrNoSession", err)
	}

	_ = store.Save(good)
	s, err := m.Load(context.Background())
	if err != nil || s.User.ID != 1 || m.Current() != s {
		t.Fatalf("Load = %+v, %v", s, err)
	}

	_ = store.Save("revoked")
	if _, err := m.Load(context.Background()); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("Load revoked error = %v, want ErrUnauthorized", err)
	}
	if tok, _ := store.Load(); tok != "" {
		t.Fatal("rejected token was not cleared")
	}
	if m.Current() != nil {
		t.Fatal("Current should be nil after a rejected restore")
	}
}

func TestLoadClearsExpiredWithoutRequest(t *testing.T) {
	expired := signed(t, time.Now().Add(-time.Minute))
	b := &fakeBackend{meErr: errors.New("must not be called")}
	m, store := newManager(t, b)
	_ = store.Save(expired)

	if _, err := m.Load(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Load error = %v, want ErrNoSession", err)
	}
	if tok, _ := store.Load(); tok != "" {
		t.Fatal("expired token was not cleared")
	}
}

func TestGuestAndSignOut(t *testing.T) {
	tok := signed(t, time.Now().Add(time.Hour))
	b := &fakeBackend{loginTo: tok, users: map[string]entity.User{tok: {ID: 1}}}
	m, store := newManager(t, b)
	if _, err := m.GoogleSignIn(context.Background(), "google-id-token"); err != nil {
		t.Fatalf("GoogleSignIn error = %v", err)
	}

	g, err := m.EnterGuest()
	if err != nil {
		t.Fatalf("EnterGuest error = %v", err)
	}
	if !g.Guest() || g.Token() != "" {
		t.Fatalf("guest session = %+v", g)
	}
	if stored, _ := store.Load(); stored != "" {
		t.Fatal("EnterGuest kept the stored token")
	}

	if err := m.SignOut(); err != nil {
		t.Fatalf("SignOut error = %v", err)
	}
	if err := m.SignOut(); err != nil {
		t.Fatalf("second SignOut error = %v", err)
	}
	if m.Current() != nil {
		t.Fatal("Current should be nil after SignOut")
	}
}

func TestTokenExpiryNonJWT(t *testing.T) {
	if exp := TokenExpiry("opaque-token"); !exp.IsZero() {
		t.Fatalf("TokenExpiry = %v, want zero", exp)
	}
	var s *Session
	if s.Token() != "" || !s.Guest() || s.Expired(time.Now()) {
		t.Fatal("nil session should be an anonymous guest")
	}
}

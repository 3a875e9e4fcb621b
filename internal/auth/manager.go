// Package auth keeps the signed-in session: it validates and submits login
// and registration, persists the token with its expiry, and tears the
// session down on logout or when the server rejects the token.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/five82/marquee/internal/api"
)

// TokenLifetime caps how long a stored token is trusted.
const TokenLifetime = time.Hour

// Backend performs the server side of sign-in.
type Backend interface {
	Login(ctx context.Context, creds api.Credentials) (api.AuthResponse, error)
	Register(ctx context.Context, creds api.Credentials) (api.AuthResponse, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// Manager owns the current credential.
type Manager struct {
	mu       sync.RWMutex
	path     string
	backend  Backend
	cred     Credential
	claims   Claims
	now      func() time.Time
	logger   *slog.Logger
	onLogout []func()
}

// NewManager restores a persisted credential from path, if still valid.
func NewManager(path string, backend Backend, opts ...Option) *Manager {
	m := &Manager{path: path, backend: backend, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}

	cred, err := LoadCredential(path)
	if err != nil {
		m.logger.Warn("credentials unreadable, starting signed out", slog.String("error", err.Error()))
		return m
	}
	if !cred.Valid(m.now()) {
		if cred.Token != "" {
			m.logger.Info("stored session expired")
			_ = ClearCredential(path)
		}
		return m
	}
	claims, err := DecodeToken(cred.Token)
	if err != nil {
		m.logger.Warn("stored token unreadable", slog.String("error", err.Error()))
		_ = ClearCredential(path)
		return m
	}
	m.cred, m.claims = cred, claims
	return m
}

// OnLogout registers fn to run whenever the session ends.
func (m *Manager) OnLogout(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLogout = append(m.onLogout, fn)
}

// Token returns the bearer token, or "" when signed out or expired. It
// satisfies api.TokenSource.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.cred.Valid(m.now()) {
		return ""
	}
	return m.cred.Token
}

// IsAuthenticated reports whether a valid session exists.
func (m *Manager) IsAuthenticated() bool {
	return m.Token() != ""
}

// Username returns the signed-in user's name.
func (m *Manager) Username() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred.Username
}

// Claims returns the decoded token claims.
func (m *Manager) Claims() Claims {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.claims
}

// Login validates the form, signs in, and persists the session.
func (m *Manager) Login(ctx context.Context, form LoginForm) error {
	if err := form.Validate(); err != nil {
		return err
	}
	resp, err := m.backend.Login(ctx, api.Credentials{Username: form.Username, Password: form.Password})
	if err != nil {
		return err
	}
	return m.establish(form.Username, resp.Token)
}

// Register validates the form, creates the account, and signs in.
func (m *Manager) Register(ctx context.Context, form RegisterForm) error {
	if err := form.Validate(); err != nil {
		return err
	}
	resp, err := m.backend.Register(ctx, api.Credentials{Username: form.Username, Password: form.Password})
	if err != nil {
		return err
	}
	return m.establish(form.Username, resp.Token)
}

func (m *Manager) establish(username, token string) error {
	claims, err := DecodeToken(token)
	if err != nil {
		return err
	}
	expires := m.now().Add(TokenLifetime)
	if !claims.ExpiresAt.IsZero() && claims.ExpiresAt.Before(expires) {
		expires = claims.ExpiresAt
	}
	cred := Credential{Token: token, Username: username, ExpiresAt: expires}

	m.mu.Lock()
	m.cred, m.claims = cred, claims
	m.mu.Unlock()

	if err := SaveCredential(m.path, cred); err != nil {
		// The session still works for this run.
		m.logger.Warn("persist credentials failed", slog.String("error", err.Error()))
	}
	m.logger.Info("signed in", slog.String("user_id", claims.UserID))
	return nil
}

// Logout ends the session and runs the logout hooks. It is safe to call
// when already signed out.
func (m *Manager) Logout() error {
	m.mu.Lock()
	hadSession := m.cred.Token != ""
	m.cred, m.claims = Credential{}, Claims{}
	hooks := append([]func(){}, m.onLogout...)
	m.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	if hadSession {
		m.logger.Info("signed out")
	}
	if err := ClearCredential(m.path); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

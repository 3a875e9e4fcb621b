package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/five82/marquee/internal/api"
	"github.com/five82/marquee/internal/apperr"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

type fakeBackend struct {
	token string
	err   error
	calls int
	last  api.Credentials
}

func (f *fakeBackend) Login(_ context.Context, c api.Credentials) (api.AuthResponse, error) {
	f.calls++
	f.last = c
	return api.AuthResponse{Token: f.token}, f.err
}

func (f *fakeBackend) Register(_ context.Context, c api.Credentials) (api.AuthResponse, error) {
	f.calls++
	f.last = c
	return api.AuthResponse{Token: f.token}, f.err
}

func TestDecodeToken(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   string
	}{
		{"string subject", jwt.MapClaims{"sub": "42", "exp": exp.Unix()}, "42"},
		{"numeric subject", jwt.MapClaims{"sub": 42, "exp": exp.Unix()}, "42"},
		{"id fallback", jwt.MapClaims{"id": 7, "exp": exp.Unix()}, "7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := DecodeToken(signToken(t, tt.claims))
			if err != nil {
				t.Fatalf("DecodeToken: %v", err)
			}
			if c.UserID != tt.want || !c.ExpiresAt.Equal(exp) {
				t.Fatalf("claims = %#v", c)
			}
		})
	}

	if _, err := DecodeToken("not-a-jwt"); err == nil {
		t.Fatal("malformed token should fail")
	}
	if _, err := DecodeToken(signToken(t, jwt.MapClaims{"exp": exp.Unix()})); err == nil {
		t.Fatal("token without subject should fail")
	}
}

func TestCredential_SaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.toml")
	want := Credential{Token: "abc", Username: "moviegoer", ExpiresAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
	if err := SaveCredential(path, want); err != nil {
		t.Fatalf("SaveCredential: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v, want 0600", info.Mode().Perm())
	}

	got, err := LoadCredential(path)
	if err != nil {
		t.Fatalf("LoadCredential: %v", err)
	}
	if got.Token != want.Token || got.Username != want.Username || !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Fatalf("loaded %#v, want %#v", got, want)
	}

	if err := ClearCredential(path); err != nil {
		t.Fatalf("ClearCredential: %v", err)
	}
	if err := ClearCredential(path); err != nil {
		t.Fatalf("second ClearCredential: %v", err)
	}
	if got, _ := LoadCredential(path); got.Token != "" {
		t.Fatalf("credential survived clear: %#v", got)
	}
}

func TestLoadCredential_DefaultPathUsesHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if err := SaveCredential("", Credential{Token: "t"}); err != nil {
		t.Fatalf("SaveCredential: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, ".config", "marquee", "credentials.toml")); err != nil {
		t.Fatalf("default credential file missing: %v", err)
	}
}

func TestForms(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"login ok", LoginForm{Username: "moviegoer", Password: "password1"}.Validate(), ""},
		{"login short user", LoginForm{Username: "bob", Password: "password1"}.Validate(), "Username must be at least 8 characters"},
		{"register ok", RegisterForm{Username: "moviegoer", Password: "Password1", PasswordConfirmation: "Password1"}.Validate(), ""},
		{"register no upper", RegisterForm{Username: "moviegoer", Password: "password1", PasswordConfirmation: "password1"}.Validate(), "Password must contain at least one uppercase letter"},
		{"register no digit", RegisterForm{Username: "moviegoer", Password: "Passwordx", PasswordConfirmation: "Passwordx"}.Validate(), "Password must contain at least one digit"},
		{"register mismatch", RegisterForm{Username: "moviegoer", Password: "Password1", PasswordConfirmation: "Password2"}.Validate(), "Passwords do not match"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.want == "" {
				if tt.err != nil {
					t.Fatalf("unexpected error: %v", tt.err)
				}
				return
			}
			if apperr.KindOf(tt.err) != apperr.KindValidation || apperr.Message(tt.err) != tt.want {
				t.Fatalf("err = %v, want validation %q", tt.err, tt.want)
			}
		})
	}
}

func TestManager_LoginPersistsAndLogoutTearsDown(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "credentials.toml")
	backend := &fakeBackend{token: signToken(t, jwt.MapClaims{"sub": "9", "exp": now.Add(24 * time.Hour).Unix()})}
	m := NewManager(path, backend, WithClock(func() time.Time { return now }))

	if m.IsAuthenticated() {
		t.Fatal("fresh manager should be signed out")
	}
	if err := m.Login(context.Background(), LoginForm{Username: "moviegoer", Password: "password1"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !m.IsAuthenticated() || m.Claims().UserID != "9" || m.Username() != "moviegoer" {
		t.Fatalf("after login token=%q claims=%#v", m.Token(), m.Claims())
	}

	stored, _ := LoadCredential(path)
	if !stored.ExpiresAt.Equal(now.Add(TokenLifetime)) {
		t.Fatalf("stored expiry = %v, want one hour", stored.ExpiresAt)
	}

	restored := NewManager(path, backend, WithClock(func() time.Time { return now.Add(30 * time.Minute) }))
	if !restored.IsAuthenticated() {
		t.Fatal("session should survive a restart within the hour")
	}
	expired := NewManager(path, backend, WithClock(func() time.Time { return now.Add(2 * time.Hour) }))
	if expired.IsAuthenticated() {
		t.Fatal("session must expire after the token lifetime")
	}

	if err := m.Login(context.Background(), LoginForm{Username: "moviegoer", Password: "password1"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	hooks := 0
	m.OnLogout(func() { hooks++ })
	if err := m.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if m.IsAuthenticated() || hooks != 1 {
		t.Fatalf("after logout authed=%v hooks=%d", m.IsAuthenticated(), hooks)
	}
	if c, _ := LoadCredential(path); c.Token != "" {
		t.Fatal("logout must clear the stored credential")
	}
}

func TestManager_ShortTokenExpiryWins(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	backend := &fakeBackend{token: signToken(t, jwt.MapClaims{"sub": "9", "exp": now.Add(10 * time.Minute).Unix()})}
	clock := now
	m := NewManager(filepath.Join(t.TempDir(), "c.toml"), backend, WithClock(func() time.Time { return clock }))

	if err := m.Register(context.Background(), RegisterForm{Username: "moviegoer", Password: "Password1", PasswordConfirmation: "Password1"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if backend.last.Password != "Password1" {
		t.Fatalf("backend got %#v", backend.last)
	}
	clock = now.Add(11 * time.Minute)
	if m.IsAuthenticated() {
		t.Fatal("token past its own exp must not be used")
	}
}

func TestManager_RejectsInvalidFormWithoutNetwork(t *testing.T) {
	backend := &fakeBackend{}
	m := NewManager(filepath.Join(t.TempDir(), "c.toml"), backend)
	err := m.Login(context.Background(), LoginForm{Username: "x", Password: "y"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	if backend.calls != 0 {
		t.Fatalf("backend calls = %d, want 0", backend.calls)
	}
}

func TestManager_PropagatesServerError(t *testing.T) {
	backend := &fakeBackend{err: &api.Error{Status: 401, Message: "Invalid credentials"}}
	m := NewManager(filepath.Join(t.TempDir(), "c.toml"), backend)
	err := m.Login(context.Background(), LoginForm{Username: "moviegoer", Password: "password1"})
	if apperr.KindOf(err) != apperr.KindAuth {
		t.Fatalf("err = %v, want auth kind", err)
	}
	if m.IsAuthenticated() {
		t.Fatal("failed login must not sign in")
	}
}

package auth

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Credential is the persisted sign-in state.
type Credential struct {
	Token     string    `toml:"token"`
	Username  string    `toml:"username"`
	ExpiresAt time.Time `toml:"expires_at"`
}

// Valid reports whether the credential carries a token that has not expired.
func (c Credential) Valid(now time.Time) bool {
	return strings.TrimSpace(c.Token) != "" && now.Before(c.ExpiresAt)
}

const defaultCredentialsPath = "~/.config/marquee/credentials.toml"

// DefaultPath returns the default credential file path.
func DefaultPath() string {
	return defaultCredentialsPath
}

// LoadCredential reads the credential file. A missing or unreadable file
// yields an empty credential.
func LoadCredential(path string) (Credential, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Credential{}, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credential{}, nil
		}
		return Credential{}, fmt.Errorf("open credentials: %w", err)
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Credential{}, fmt.Errorf("read credentials: %w", err)
	}

	var c Credential
	if err := toml.Unmarshal(bytes, &c); err != nil {
		return Credential{}, fmt.Errorf("parse credentials: %w", err)
	}
	c.Token = strings.TrimSpace(c.Token)
	c.Username = strings.TrimSpace(c.Username)
	return c, nil
}

// SaveCredential writes the credential file with owner-only permissions.
func SaveCredential(path string, c Credential) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}

	bytes, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	if err := os.WriteFile(resolved, bytes, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// ClearCredential removes the credential file.
func ClearCredential(path string) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if err := os.Remove(resolved); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultCredentialsPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}

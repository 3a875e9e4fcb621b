package config

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

// Config captures the settings Marquee reads at startup.
type Config struct {
	APIURL            string
	LogDir            string
	LogLevel          string
	CredentialsPath   string
	RequestsPerSecond float64
	CacheRetention    time.Duration
	// Stale overrides the staleness window per cache collection.
	Stale map[string]time.Duration
}

const (
	defaultConfigPath      = "~/.config/marquee/config.toml"
	defaultLogDir          = "~/.local/state/marquee"
	defaultAPIURL          = "http://localhost:3022"
	defaultLogLevel        = "info"
	defaultCredentialsPath = "~/.config/marquee/credentials.toml"
	defaultRequestsPerSec  = 10
	defaultCacheRetention  = 5 * time.Minute
)

// Load locates and parses the Marquee config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := defaults()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIURL            string         `toml:"api_url"`
		LogDir            string         `toml:"log_dir"`
		LogLevel          string         `toml:"log_level"`
		CredentialsPath   string         `toml:"credentials_path"`
		RequestsPerSecond float64        `toml:"requests_per_second"`
		CacheRetention    int            `toml:"cache_retention_seconds"`
		StaleSeconds      map[string]int `toml:"stale_seconds"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimRight(strings.TrimSpace(raw.APIURL), "/"); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.LogDir = mustExpand(v)
	}
	if v := strings.ToLower(strings.TrimSpace(raw.LogLevel)); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(raw.CredentialsPath); v != "" {
		cfg.CredentialsPath = mustExpand(v)
	}
	if raw.RequestsPerSecond > 0 {
		cfg.RequestsPerSecond = raw.RequestsPerSecond
	}
	if raw.CacheRetention > 0 {
		cfg.CacheRetention = time.Duration(raw.CacheRetention) * time.Second
	}
	for name, secs := range raw.StaleSeconds {
		name = strings.TrimSpace(name)
		if name == "" || secs <= 0 {
			continue
		}
		cfg.Stale[name] = time.Duration(secs) * time.Second
	}

	return cfg, nil
}

func defaults() Config {
	return Config{
		APIURL:            defaultAPIURL,
		LogDir:            mustExpand(defaultLogDir),
		LogLevel:          defaultLogLevel,
		CredentialsPath:   mustExpand(defaultCredentialsPath),
		RequestsPerSecond: defaultRequestsPerSec,
		CacheRetention:    defaultCacheRetention,
		Stale:             map[string]time.Duration{},
	}
}

// LogPath returns the path to the Marquee log file.
func (c Config) LogPath() string {
	if strings.TrimSpace(c.LogDir) == "" {
		return mustExpand(defaultLogDir + "/marquee.log")
	}
	return filepath.Join(c.LogDir, "marquee.log")
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
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

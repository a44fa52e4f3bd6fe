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
	"go.uber.org/zap/zapcore"
)

// Config captures the settings the labbcat CLI needs to reach a server.
type Config struct {
	URL         string
	Username    string
	Password    string
	Language    string
	Batch       bool
	Verbose     bool
	Timeout     time.Duration
	DownloadDir string
	LogLevel    string
	LogFormat   string
}

const (
	defaultConfigPath  = "~/.config/labbcat/config.toml"
	defaultDownloadDir = "~/.local/share/labbcat/downloads"
	defaultTimeout     = 5 * time.Minute
	defaultLogLevel    = "info"
	defaultLogFormat   = "console"
)

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return defaultConfigPath
}

// Load locates and parses the config, falling back to defaults when missing.
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
		URL            string `toml:"url"`
		Username       string `toml:"username"`
		Password       string `toml:"password"`
		Language       string `toml:"language"`
		Batch          bool   `toml:"batch"`
		Verbose        bool   `toml:"verbose"`
		TimeoutSeconds *int   `toml:"timeout_seconds"`
		DownloadDir    string `toml:"download_dir"`
		LogLevel       string `toml:"log_level"`
		LogFormat      string `toml:"log_format"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.URL = strings.TrimSpace(raw.URL)
	cfg.Username = strings.TrimSpace(raw.Username)
	cfg.Password = raw.Password
	cfg.Language = strings.TrimSpace(raw.Language)
	cfg.Batch = raw.Batch
	cfg.Verbose = raw.Verbose
	if raw.TimeoutSeconds != nil {
		if *raw.TimeoutSeconds < 0 {
			return Config{}, fmt.Errorf("parse config: timeout_seconds must not be negative")
		}
		cfg.Timeout = time.Duration(*raw.TimeoutSeconds) * time.Second
	}
	if dir := strings.TrimSpace(raw.DownloadDir); dir != "" {
		cfg.DownloadDir = mustExpand(dir)
	}
	if level := strings.ToLower(strings.TrimSpace(raw.LogLevel)); level != "" {
		if _, err := zapcore.ParseLevel(level); err != nil {
			return Config{}, fmt.Errorf("parse config: log_level: %w", err)
		}
		cfg.LogLevel = level
	}
	if format := strings.ToLower(strings.TrimSpace(raw.LogFormat)); format != "" {
		if format != "console" && format != "json" {
			return Config{}, fmt.Errorf("parse config: log_format %q is not console or json", raw.LogFormat)
		}
		cfg.LogFormat = format
	}

	return cfg, nil
}

func defaults() Config {
	return Config{
		Timeout:     defaultTimeout,
		DownloadDir: mustExpand(defaultDownloadDir),
		LogLevel:    defaultLogLevel,
		LogFormat:   defaultLogFormat,
	}
}

// Level returns the configured zap level, info when unset.
func (c Config) Level() zapcore.Level {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
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

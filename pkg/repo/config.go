package repo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Environment variables that override config.toml.
const (
	EnvAuthorName  = "LANES_AUTHOR_NAME"
	EnvAuthorEmail = "LANES_AUTHOR_EMAIL"
	EnvLogLevel    = "LANES_LOG_LEVEL"
)

const (
	defaultContextLines = 3
	defaultWorkspaceRef = "refs/heads/lanes/workspace"
)

// Config holds the repository-local settings stored in .lanes/config.toml.
type Config struct {
	User      UserConfig      `toml:"user"`
	Diff      DiffConfig      `toml:"diff"`
	Signing   SigningConfig   `toml:"signing"`
	Log       LogConfig       `toml:"log"`
	Workspace WorkspaceConfig `toml:"workspace"`
}

type UserConfig struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

type DiffConfig struct {
	// ContextLines is the number of unchanged lines around each hunk. Hunk
	// headers handed to commit must come from a diff with the same value.
	ContextLines int `toml:"context_lines"`
}

type SigningConfig struct {
	Enabled bool   `toml:"enabled"`
	Key     string `toml:"key"` // SSH private key path; empty picks ~/.ssh defaults
}

type LogConfig struct {
	File       string `toml:"file"` // relative paths are under .lanes/
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

type WorkspaceConfig struct {
	Ref string `toml:"ref"`
}

// DefaultConfig returns the settings written by Init.
func DefaultConfig() *Config {
	return &Config{
		Diff:      DiffConfig{ContextLines: defaultContextLines},
		Log:       LogConfig{Level: "info", MaxSizeMB: 1, MaxBackups: 2, MaxAgeDays: 30},
		Workspace: WorkspaceConfig{Ref: defaultWorkspaceRef},
	}
}

// Identity returns "Name <email>" for authored and committed commits.
func (c *Config) Identity() string {
	name := strings.TrimSpace(c.User.Name)
	if name == "" {
		name = "lanes"
	}
	email := strings.TrimSpace(c.User.Email)
	if email == "" {
		return name
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

func (r *Repo) configPath() string {
	return filepath.Join(r.LanesDir, "config.toml")
}

// ReadConfig reads .lanes/config.toml and applies environment overrides.
// A missing file yields DefaultConfig.
func (r *Repo) ReadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(r.configPath(), cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if cfg.Diff.ContextLines < 0 {
		cfg.Diff.ContextLines = 0
	}
	if strings.TrimSpace(cfg.Workspace.Ref) == "" {
		cfg.Workspace.Ref = defaultWorkspaceRef
	}
	if v := os.Getenv(EnvAuthorName); v != "" {
		cfg.User.Name = v
	}
	if v := os.Getenv(EnvAuthorEmail); v != "" {
		cfg.User.Email = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	return cfg, nil
}

// WriteConfig atomically writes .lanes/config.toml.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}

	tmp, err := os.CreateTemp(r.LanesDir, ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, r.configPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}

package repo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/odvcencio/lanes/pkg/object"
)

func TestReadConfig_Defaults(t *testing.T) {
	r := newTestRepo(t)

	cfg, err := r.ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if cfg.Diff.ContextLines != 3 {
		t.Errorf("context_lines = %d, want 3", cfg.Diff.ContextLines)
	}
	if cfg.Workspace.Ref != "refs/heads/lanes/workspace" {
		t.Errorf("workspace ref = %q", cfg.Workspace.Ref)
	}
	if cfg.Signing.Enabled {
		t.Error("signing enabled by default")
	}
	if cfg.Log.File != "" {
		t.Errorf("log file = %q, want none", cfg.Log.File)
	}
}

func TestConfig_RoundTripAndEnvOverrides(t *testing.T) {
	r := newTestRepo(t)

	cfg := DefaultConfig()
	cfg.User = UserConfig{Name: "Ada", Email: "ada@example.com"}
	cfg.Diff.ContextLines = 1
	if err := r.WriteConfig(cfg); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}

	got, err := r.ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if got.Identity() != "Ada <ada@example.com>" {
		t.Errorf("Identity = %q", got.Identity())
	}
	if got.Diff.ContextLines != 1 {
		t.Errorf("context_lines = %d, want 1", got.Diff.ContextLines)
	}

	t.Setenv(EnvAuthorName, "Grace")
	t.Setenv(EnvAuthorEmail, "grace@example.com")
	got, err = r.ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if got.Identity() != "Grace <grace@example.com>" {
		t.Errorf("Identity with env = %q", got.Identity())
	}
}

func TestConfig_IdentityFallback(t *testing.T) {
	if got := (&Config{}).Identity(); got != "lanes" {
		t.Errorf("empty Identity = %q, want lanes", got)
	}
	if got := (&Config{User: UserConfig{Email: "x@y"}}).Identity(); got != "lanes <x@y>" {
		t.Errorf("email-only Identity = %q", got)
	}
}

func TestReadConfig_RejectsMalformedFile(t *testing.T) {
	r := newTestRepo(t)
	if err := os.WriteFile(filepath.Join(r.LanesDir, "config.toml"), []byte("[diff\ncontext_lines = "), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := r.ReadConfig(); err == nil {
		t.Fatal("expected error for malformed config.toml")
	}
}

func TestNewLogger_WritesToConfiguredFile(t *testing.T) {
	dir := t.TempDir()
	logger, closer, err := NewLogger(dir, LogConfig{File: "lanes.log", Level: "debug"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Debug("tree merge conflicted", "paths", 2)
	if err := closer(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "lanes.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "tree merge conflicted") || !strings.Contains(string(data), "paths=2") {
		t.Errorf("log output = %q", data)
	}
}

func TestListRefs(t *testing.T) {
	r := newTestRepo(t)

	if err := r.UpdateRef("refs/heads/main", object.Hash(strings.Repeat("a", 64))); err != nil {
		t.Fatal(err)
	}
	if err := r.UpdateRef("refs/heads/lanes/workspace", object.Hash(strings.Repeat("b", 64))); err != nil {
		t.Fatal(err)
	}

	all, err := r.ListRefs("")
	if err != nil {
		t.Fatal(err)
	}
	if all["heads/main"] == "" || all["heads/lanes/workspace"] == "" {
		t.Fatalf("ListRefs = %v", all)
	}

	nested, err := r.ListRefs("heads/lanes")
	if err != nil {
		t.Fatal(err)
	}
	if len(nested) != 1 {
		t.Fatalf("nested len = %d, want 1", len(nested))
	}
	if _, ok := nested["heads/lanes/workspace"]; !ok {
		t.Fatalf("expected heads/lanes/workspace in prefix listing")
	}
}

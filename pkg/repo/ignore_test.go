package repo

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIgnore_MetadataDirsAlwaysIgnored(t *testing.T) {
	ic := NewIgnoreChecker(t.TempDir())

	for _, p := range []string{".lanes", ".lanes/HEAD", ".lanes/objects/ab/cd", ".git", ".git/config"} {
		if !ic.IsIgnored(p) {
			t.Errorf("expected %s to be ignored", p)
		}
	}
	for _, p := range []string{"main.go", "src/util.go", "lanes.txt"} {
		if ic.IsIgnored(p) {
			t.Errorf("expected %s to NOT be ignored", p)
		}
	}
}

func TestIgnore_Rules(t *testing.T) {
	tests := []struct {
		name    string
		rules   string
		ignored []string
		kept    []string
	}{
		{
			name:    "basename glob",
			rules:   "*.log\n",
			ignored: []string{"debug.log", "deep/dir/trace.log"},
			kept:    []string{"debug.txt", "log"},
		},
		{
			name:    "directory only",
			rules:   "build/\n",
			ignored: []string{"build/output.o", "build/sub/file.txt", "src/build/x"},
			kept:    []string{"build", "builder/x"},
		},
		{
			name:    "negation after glob",
			rules:   "*.log\n!important.log\n",
			ignored: []string{"debug.log"},
			kept:    []string{"important.log"},
		},
		{
			name:    "comments and blanks",
			rules:   "# a comment\n\n*.tmp\n",
			ignored: []string{"x.tmp"},
			kept:    []string{"# a comment"},
		},
		{
			name:    "anchored path",
			rules:   "docs/*.md\n",
			ignored: []string{"docs/readme.md"},
			kept:    []string{"readme.md", "docs/sub/readme.md"},
		},
		{
			name:    "globstar",
			rules:   "**/gen/*.go\n",
			ignored: []string{"gen/a.go", "pkg/x/gen/b.go"},
			kept:    []string{"pkg/gen.go"},
		},
		{
			name:    "character class",
			rules:   "file[0-9].txt\n",
			ignored: []string{"file1.txt"},
			kept:    []string{"filex.txt"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeIgnoreFile(t, dir, tt.rules)
			ic := NewIgnoreChecker(dir)
			for _, p := range tt.ignored {
				if !ic.IsIgnored(p) {
					t.Errorf("expected %s to be ignored", p)
				}
			}
			for _, p := range tt.kept {
				if ic.IsIgnored(p) {
					t.Errorf("expected %s to NOT be ignored", p)
				}
			}
		})
	}
}

func writeIgnoreFile(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, IgnoreFile), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", IgnoreFile, err)
	}
}

package repo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/odvcencio/lanes/pkg/object"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// fixClock pins commit timestamps so commit ids are reproducible.
func fixClock(t *testing.T) {
	t.Helper()
	prev := now
	now = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	t.Cleanup(func() { now = prev })
}

func writeWorktreeFile(t *testing.T, r *Repo, rel, content string) {
	t.Helper()
	abs := filepath.Join(r.RootDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", rel, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

// buildTestTree writes blobs for files and returns the tree id. Keys are
// paths, values content; every file gets mode 100644.
func buildTestTree(t *testing.T, r *Repo, files map[string]string) object.Hash {
	t.Helper()
	entries := make(map[string]TreeFileEntry, len(files))
	for p, content := range files {
		h, err := r.Store.WriteBlob(&object.Blob{Data: []byte(content)})
		if err != nil {
			t.Fatalf("WriteBlob(%s): %v", p, err)
		}
		entries[p] = TreeFileEntry{Path: p, Mode: object.TreeModeFile, Hash: h}
	}
	tree, err := r.BuildTree(entries)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	return tree
}

func commitTestTree(t *testing.T, r *Repo, tree object.Hash, message string, parents ...object.Hash) object.Hash {
	t.Helper()
	h, err := r.WriteCommit(r.NewCommitObj(tree, parents, message), nil)
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	return h
}

func commitFiles(t *testing.T, r *Repo, files map[string]string, message string, parents ...object.Hash) object.Hash {
	t.Helper()
	return commitTestTree(t, r, buildTestTree(t, r, files), message, parents...)
}

// commitWorktree commits files, checks them out and points main at the new
// commit, leaving a clean worktree.
func commitWorktree(t *testing.T, r *Repo, files map[string]string) object.Hash {
	t.Helper()
	parent, err := r.HeadCommit()
	if err != nil {
		t.Fatalf("HeadCommit: %v", err)
	}
	var parents []object.Hash
	if !parent.IsNull() {
		parents = append(parents, parent)
	}
	for p, content := range files {
		writeWorktreeFile(t, r, p, content)
	}
	h := commitFiles(t, r, files, "commit", parents...)
	if err := r.UpdateRef("refs/heads/main", h); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}
	return h
}

func readBlobString(t *testing.T, r *Repo, h object.Hash) string {
	t.Helper()
	data, err := r.ReadBlobData(h)
	if err != nil {
		t.Fatalf("ReadBlobData: %v", err)
	}
	return string(data)
}

func assertDir(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Errorf("expected directory %q to exist: %v", path, err)
		return
	}
	if !info.IsDir() {
		t.Errorf("%q exists but is not a directory", path)
	}
}

func assertFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Errorf("expected file %q to exist: %v", path, err)
		return
	}
	if info.IsDir() {
		t.Errorf("%q exists but is a directory, expected file", path)
	}
}

package repo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/odvcencio/lanes/pkg/object"
)

// Init creates .lanes/ structure (HEAD, objects/, refs/heads/, config.toml).
func TestInit_CreatesStructure(t *testing.T) {
	dir := t.TempDir()

	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init(%q): %v", dir, err)
	}
	if r.RootDir != dir {
		t.Errorf("RootDir = %q, want %q", r.RootDir, dir)
	}

	lanesDir := filepath.Join(dir, DirName)
	if r.LanesDir != lanesDir {
		t.Errorf("LanesDir = %q, want %q", r.LanesDir, lanesDir)
	}

	assertDir(t, lanesDir)
	assertFile(t, filepath.Join(lanesDir, "HEAD"))
	assertFile(t, filepath.Join(lanesDir, "config.toml"))
	assertDir(t, filepath.Join(lanesDir, "objects"))
	assertDir(t, filepath.Join(lanesDir, "refs", "heads"))
	assertDir(t, filepath.Join(lanesDir, "logs", "refs", "heads"))

	if r.Store == nil || r.Config == nil || r.Logger == nil {
		t.Error("Init left Store, Config or Logger nil")
	}
}

func TestInit_ExistingRepo_Error(t *testing.T) {
	dir := t.TempDir()

	_, err := Init(dir)
	if err != nil {
		t.Fatalf("first Init: %v", err)
	}

	_, err = Init(dir)
	if err == nil {
		t.Fatal("second Init should fail on existing repo, got nil error")
	}
}

func TestOpen_FromSubdirectory(t *testing.T) {
	dir := t.TempDir()

	_, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	sub := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	r, err := Open(sub)
	if err != nil {
		t.Fatalf("Open(%q): %v", sub, err)
	}

	if r.RootDir != dir {
		t.Errorf("RootDir = %q, want %q", r.RootDir, dir)
	}
	if r.LanesDir != filepath.Join(dir, DirName) {
		t.Errorf("LanesDir = %q, want %q", r.LanesDir, filepath.Join(dir, DirName))
	}
	if r.Store == nil {
		t.Error("Store is nil after Open")
	}
}

func TestOpen_NoRepo_Error(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(dir)
	if err == nil {
		t.Fatal("Open should fail in non-repo directory, got nil error")
	}
}

func TestInit_HeadDefault(t *testing.T) {
	dir := t.TempDir()

	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	ref, err := r.Head()
	if err != nil {
		t.Fatalf("Head(): %v", err)
	}
	if ref != "refs/heads/main" {
		t.Errorf("Head() = %q, want %q", ref, "refs/heads/main")
	}
}

func TestUpdateRef_ResolveRef_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	h := object.Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	if err := r.UpdateRef("refs/heads/main", h); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}

	got, err := r.ResolveRef("refs/heads/main")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if got != h {
		t.Errorf("ResolveRef = %q, want %q", got, h)
	}
}

func TestResolveRef_HEAD_FollowsBranch(t *testing.T) {
	dir := t.TempDir()

	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	h := object.Hash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	// HEAD points to refs/heads/main by default, so write hash to that ref.
	if err := r.UpdateRef("refs/heads/main", h); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}

	got, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("ResolveRef(HEAD): %v", err)
	}
	if got != h {
		t.Errorf("ResolveRef(HEAD) = %q, want %q", got, h)
	}
}

func TestResolveRef_ShortName(t *testing.T) {
	dir := t.TempDir()

	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	h := object.Hash("cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc")

	if err := r.UpdateRef("refs/heads/main", h); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}

	got, err := r.ResolveRef("main")
	if err != nil {
		t.Fatalf("ResolveRef(main): %v", err)
	}
	if got != h {
		t.Errorf("ResolveRef(main) = %q, want %q", got, h)
	}
}

func TestResolveRef_FullCommitID(t *testing.T) {
	r := newTestRepo(t)
	c := commitFiles(t, r, map[string]string{"a.txt": "a\n"}, "first")

	got, err := r.ResolveRef(string(c))
	if err != nil {
		t.Fatalf("ResolveRef(id): %v", err)
	}
	if got != c {
		t.Errorf("ResolveRef(id) = %s, want %s", got, c)
	}
	if _, err := r.ResolveRef("no-such-branch"); err == nil {
		t.Error("ResolveRef(no-such-branch) should fail")
	}
}

func TestHead_UnbornAndDetached(t *testing.T) {
	r := newTestRepo(t)

	h, err := r.HeadCommit()
	if err != nil {
		t.Fatalf("HeadCommit: %v", err)
	}
	if !h.IsNull() {
		t.Errorf("unborn HeadCommit = %q, want null", h)
	}
	tree, err := r.HeadTree()
	if err != nil {
		t.Fatalf("HeadTree: %v", err)
	}
	if tree != object.EmptyTreeHash {
		t.Errorf("unborn HeadTree = %s, want empty tree", tree)
	}
	if branch, err := r.HeadBranch(); err != nil || branch != "refs/heads/main" {
		t.Errorf("HeadBranch = %q, %v", branch, err)
	}

	c := commitFiles(t, r, map[string]string{"a.txt": "a\n"}, "first")
	if err := os.WriteFile(filepath.Join(r.LanesDir, "HEAD"), []byte(string(c)+"\n"), 0o644); err != nil {
		t.Fatalf("write HEAD: %v", err)
	}
	if _, err := r.HeadBranch(); !errors.Is(err, ErrDetachedHead) {
		t.Errorf("HeadBranch on detached HEAD: err = %v, want ErrDetachedHead", err)
	}
	got, err := r.HeadCommit()
	if err != nil || got != c {
		t.Errorf("detached HeadCommit = %s, %v; want %s", got, err, c)
	}
}

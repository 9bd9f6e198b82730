// Package repotest provides repository fixtures for tests of the packages
// built on pkg/repo.
package repotest

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/lanes/pkg/object"
	"github.com/odvcencio/lanes/pkg/repo"
)

// Scene is a freshly initialised repository in a temporary directory.
type Scene struct {
	T    testing.TB
	Repo *repo.Repo
}

// NewScene creates an empty repository and registers its cleanup.
func NewScene(t testing.TB) *Scene {
	t.Helper()
	r, err := repo.Init(t.TempDir())
	require.NoError(t, err, "init repository")
	t.Cleanup(func() { _ = r.Close() })
	return &Scene{T: t, Repo: r}
}

// Path returns the absolute worktree path of rel.
func (s *Scene) Path(rel string) string {
	return filepath.Join(s.Repo.RootDir, filepath.FromSlash(rel))
}

// WriteFile writes content to rel in the worktree, creating directories.
func (s *Scene) WriteFile(rel, content string) {
	s.T.Helper()
	s.writeFile(rel, content, 0o644)
}

// WriteExecutable writes content to rel with the executable bit set.
func (s *Scene) WriteExecutable(rel, content string) {
	s.T.Helper()
	s.writeFile(rel, content, 0o755)
}

func (s *Scene) writeFile(rel, content string, perm os.FileMode) {
	abs := s.Path(rel)
	require.NoError(s.T, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(s.T, os.WriteFile(abs, []byte(content), perm))
	require.NoError(s.T, os.Chmod(abs, perm))
}

// Symlink creates a symlink at rel pointing at target.
func (s *Scene) Symlink(rel, target string) {
	s.T.Helper()
	abs := s.Path(rel)
	require.NoError(s.T, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(s.T, os.Symlink(target, abs))
}

// Remove deletes rel from the worktree.
func (s *Scene) Remove(rel string) {
	s.T.Helper()
	require.NoError(s.T, os.RemoveAll(s.Path(rel)))
}

// ReadFile returns the worktree content of rel.
func (s *Scene) ReadFile(rel string) string {
	s.T.Helper()
	data, err := os.ReadFile(s.Path(rel))
	require.NoError(s.T, err)
	return string(data)
}

// Tree writes blobs for files (path to content, mode 100644) and returns
// the tree id.
func (s *Scene) Tree(files map[string]string) object.Hash {
	s.T.Helper()
	entries := make(map[string]repo.TreeFileEntry, len(files))
	for p, content := range files {
		h, err := s.Repo.Store.WriteBlob(&object.Blob{Data: []byte(content)})
		require.NoError(s.T, err)
		entries[p] = repo.TreeFileEntry{Path: p, Mode: object.TreeModeFile, Hash: h}
	}
	tree, err := s.Repo.BuildTree(entries)
	require.NoError(s.T, err)
	return tree
}

// CommitTree writes a commit of tree with the given parents.
func (s *Scene) CommitTree(tree object.Hash, message string, parents ...object.Hash) object.Hash {
	s.T.Helper()
	h, err := s.Repo.WriteCommit(s.Repo.NewCommitObj(tree, parents, message), nil)
	require.NoError(s.T, err)
	return h
}

// Commit writes a commit whose tree holds exactly files.
func (s *Scene) Commit(files map[string]string, message string, parents ...object.Hash) object.Hash {
	s.T.Helper()
	return s.CommitTree(s.Tree(files), message, parents...)
}

// Branch points refs/heads/name at h, creating or moving it.
func (s *Scene) Branch(name string, h object.Hash) {
	s.T.Helper()
	require.NoError(s.T, s.Repo.UpdateRef("refs/heads/"+name, h))
}

// CommitOnHead commits files on top of HEAD as if they had been edited and
// committed through the worktree: the files are written out, HEAD's branch
// moves to the new commit and the index is synced. The new tree is HEAD's
// tree with files overlaid.
func (s *Scene) CommitOnHead(files map[string]string, message string) object.Hash {
	s.T.Helper()
	parent, err := s.Repo.HeadCommit()
	require.NoError(s.T, err)
	headTree, err := s.Repo.CommitTree(parent)
	require.NoError(s.T, err)
	merged := s.Files(headTree)
	for p, content := range files {
		merged[p] = content
		s.WriteFile(p, content)
	}

	var parents []object.Hash
	if !parent.IsNull() {
		parents = append(parents, parent)
	}
	tree := s.Tree(merged)
	h := s.CommitTree(tree, message, parents...)

	branch, err := s.Repo.HeadBranch()
	require.NoError(s.T, err)
	require.NoError(s.T, s.Repo.UpdateRef(branch, h))
	require.NoError(s.T, s.Repo.SyncStaging(tree, sortedKeys(files)))
	return h
}

// Files reads every blob of tree into a path to content map.
func (s *Scene) Files(tree object.Hash) map[string]string {
	s.T.Helper()
	entries, err := s.Repo.FlattenTree(tree)
	require.NoError(s.T, err)
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		data, err := s.Repo.ReadBlobData(e.Hash)
		require.NoError(s.T, err)
		out[e.Path] = string(data)
	}
	return out
}

// CommitFiles is Files of the tree of commit h.
func (s *Scene) CommitFiles(h object.Hash) map[string]string {
	s.T.Helper()
	return s.Files(s.CommitTreeID(h))
}

// CommitTreeID returns the tree of commit h.
func (s *Scene) CommitTreeID(h object.Hash) object.Hash {
	s.T.Helper()
	tree, err := s.Repo.CommitTree(h)
	require.NoError(s.T, err)
	return tree
}

// ReadCommit loads commit h.
func (s *Scene) ReadCommit(h object.Hash) *object.CommitObj {
	s.T.Helper()
	c, err := s.Repo.Store.ReadCommit(h)
	require.NoError(s.T, err)
	return c
}

// TopLevelNames lists the entry names of tree's root in stored order.
func (s *Scene) TopLevelNames(tree object.Hash) []string {
	s.T.Helper()
	t, err := s.Repo.Store.ReadTree(tree)
	require.NoError(s.T, err)
	names := make([]string, 0, len(t.Entries))
	for _, e := range t.Entries {
		names = append(names, e.Name)
	}
	return names
}

// Ref returns the value of a ref, null when absent.
func (s *Scene) Ref(name string) object.Hash {
	s.T.Helper()
	h, err := s.Repo.RefValue(name)
	require.NoError(s.T, err)
	return h
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/lanes/pkg/object"
)

// ErrDirtyWorktree is returned by Checkout when uncommitted changes would be
// overwritten.
var ErrDirtyWorktree = errors.New("working tree has uncommitted changes")

// Checkout switches the worktree and HEAD to the named branch. The
// worktree must be clean. Only paths that differ between the current and
// target trees are touched.
func (r *Repo) Checkout(branch string) error {
	ref := branch
	if !strings.HasPrefix(ref, "refs/") {
		ref = "refs/heads/" + branch
	}
	target, err := r.ResolveRef(ref)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	changes, err := r.WorktreeChanges()
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	if len(changes) > 0 {
		return fmt.Errorf("checkout: %w (first: %s)", ErrDirtyWorktree, changes[0].Path)
	}

	fromTree, err := r.HeadTree()
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	toTree, err := r.CommitTree(target)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	touched, err := r.CheckoutTree(fromTree, toTree)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	if err := r.SetHead(ref); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	if err := r.SyncStaging(toTree, touched); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	r.Logger.Info("checked out", "ref", ref, "commit", target.Short(), "paths", len(touched))
	return nil
}

// CheckoutTree rewrites the worktree from the from tree to the to tree and
// returns the paths it touched, sorted. Files are removed before new ones
// are written so a file may replace a directory and vice versa.
// Submodule entries are left alone.
func (r *Repo) CheckoutTree(from, to object.Hash) ([]string, error) {
	fromMap, err := r.FlattenTreeMap(from)
	if err != nil {
		return nil, err
	}
	toMap, err := r.FlattenTreeMap(to)
	if err != nil {
		return nil, err
	}

	var touched []string
	for p, e := range fromMap {
		if next, ok := toMap[p]; ok && next.Hash == e.Hash && next.Mode == e.Mode {
			continue
		}
		touched = append(touched, p)
		if e.Kind() == object.KindCommit {
			continue
		}
		abs := filepath.Join(r.RootDir, filepath.FromSlash(p))
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove %q: %w", p, err)
		}
		r.removeEmptyParents(filepath.Dir(abs))
	}

	for p, e := range toMap {
		if prev, ok := fromMap[p]; ok && prev.Hash == e.Hash && prev.Mode == e.Mode {
			continue
		}
		if _, seen := fromMap[p]; !seen {
			touched = append(touched, p)
		}
		if e.Kind() == object.KindCommit {
			continue
		}
		if err := r.writeWorktreeEntry(p, e); err != nil {
			return nil, err
		}
	}
	sort.Strings(touched)
	return touched, nil
}

func (r *Repo) writeWorktreeEntry(p string, e TreeFileEntry) error {
	abs := filepath.Join(r.RootDir, filepath.FromSlash(p))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("mkdir %q: %w", filepath.Dir(p), err)
	}
	data, err := r.ReadBlobData(e.Hash)
	if err != nil {
		return fmt.Errorf("read %q: %w", p, err)
	}
	if e.Kind() == object.KindLink {
		if err := os.Symlink(string(data), abs); err != nil {
			return fmt.Errorf("symlink %q: %w", p, err)
		}
		return nil
	}
	perm := filePermFromMode(e.Mode)
	if err := os.WriteFile(abs, data, perm); err != nil {
		return fmt.Errorf("write %q: %w", p, err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(abs, perm); err != nil {
		return fmt.Errorf("chmod %q: %w", p, err)
	}
	return nil
}

// removeEmptyParents removes empty directories up to (but not including)
// the repository root.
func (r *Repo) removeEmptyParents(dir string) {
	for {
		if dir == r.RootDir || !strings.HasPrefix(dir, r.RootDir) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		os.Remove(dir)
		dir = filepath.Dir(dir)
	}
}

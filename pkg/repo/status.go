package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/odvcencio/lanes/pkg/diff"
	"github.com/odvcencio/lanes/pkg/object"
)

// ChangeState is one side of a worktree change: the object id and kind of
// the entry. ID may be null when the content exists only in the worktree
// and has not been hashed.
type ChangeState struct {
	ID   object.Hash
	Kind object.EntryKind
}

// WorktreeChange describes how a path in the worktree differs from the
// HEAD tree. Before is nil for additions, After is nil for deletions.
// PreviousPath is set when the change is a rename detected by identical
// content and mode.
type WorktreeChange struct {
	Path         string
	PreviousPath string
	Before       *ChangeState
	After        *ChangeState
}

// IsRename reports whether the change moved content from PreviousPath.
func (c WorktreeChange) IsRename() bool { return c.PreviousPath != "" }

// WorktreeChanges compares the worktree against the HEAD tree and returns
// every changed path in path order.
//
// Regular files, executables and symlinks are tracked; special files are
// reported only when they replace a tracked entry, with an After state of
// kind tree so callers can reject them. Files whose index stat fingerprint
// still matches reuse the indexed blob id instead of being rehashed.
func (r *Repo) WorktreeChanges() ([]WorktreeChange, error) {
	headTree, err := r.HeadTree()
	if err != nil {
		return nil, fmt.Errorf("worktree changes: %w", err)
	}
	head, err := r.FlattenTreeMap(headTree)
	if err != nil {
		return nil, fmt.Errorf("worktree changes: %w", err)
	}
	stg, err := r.ReadStaging()
	if err != nil {
		return nil, fmt.Errorf("worktree changes: %w", err)
	}

	work, err := r.scanWorktree(head, stg)
	if err != nil {
		return nil, fmt.Errorf("worktree changes: %w", err)
	}

	var changes []WorktreeChange
	added := make(map[string][]string)
	deleted := make(map[string][]string)
	for p, after := range work {
		before, tracked := head[p]
		if !tracked {
			added[renameMatchKey(after.ID, after.Kind)] = append(added[renameMatchKey(after.ID, after.Kind)], p)
			continue
		}
		if before.Hash == after.ID && before.Kind() == after.Kind {
			continue
		}
		a := after
		changes = append(changes, WorktreeChange{
			Path:   p,
			Before: &ChangeState{ID: before.Hash, Kind: before.Kind()},
			After:  &a,
		})
	}
	for p, before := range head {
		if _, ok := work[p]; ok {
			continue
		}
		key := renameMatchKey(before.Hash, before.Kind())
		deleted[key] = append(deleted[key], p)
	}

	newToOld, oldToNew := pairRenameCandidates(added, deleted)
	for _, paths := range added {
		for _, p := range paths {
			after := work[p]
			c := WorktreeChange{Path: p, After: &after}
			if old, ok := newToOld[p]; ok {
				be := head[old]
				c.PreviousPath = old
				c.Before = &ChangeState{ID: be.Hash, Kind: be.Kind()}
			}
			changes = append(changes, c)
		}
	}
	for _, paths := range deleted {
		for _, p := range paths {
			if _, renamed := oldToNew[p]; renamed {
				continue
			}
			be := head[p]
			changes = append(changes, WorktreeChange{
				Path:   p,
				Before: &ChangeState{ID: be.Hash, Kind: be.Kind()},
			})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	r.Logger.Debug("worktree scanned", "files", len(work), "changes", len(changes))
	return changes, nil
}

// scanWorktree walks the worktree and returns the state of every trackable
// path.
func (r *Repo) scanWorktree(head map[string]TreeFileEntry, stg *Staging) (map[string]ChangeState, error) {
	ic := NewIgnoreChecker(r.RootDir)
	work := make(map[string]ChangeState)

	err := filepath.WalkDir(r.RootDir, func(abs string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(r.RootDir, abs)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if ic.IsIgnored(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			// A checked-out submodule is a directory standing in for a
			// commit entry; it is never descended into.
			if he, ok := head[rel]; ok && he.Kind() == object.KindCommit {
				work[rel] = ChangeState{ID: he.Hash, Kind: object.KindCommit}
				return fs.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		mode, ok := modeFromFileInfo(info)
		if !ok {
			if _, tracked := head[rel]; tracked {
				work[rel] = ChangeState{Kind: object.KindTree}
			}
			return nil
		}
		if se := stg.Entries[rel]; stagingStatMatches(se, info, mode) {
			work[rel] = ChangeState{ID: se.BlobHash, Kind: object.KindFromMode(mode)}
			return nil
		}
		data, err := readEntryContent(abs, mode)
		if err != nil {
			return err
		}
		work[rel] = ChangeState{ID: object.HashBlob(data), Kind: object.KindFromMode(mode)}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk: %w", err)
	}
	return work, nil
}

// readEntryContent returns what gets stored as the blob of a worktree
// entry: file bytes, or the link target for a symlink.
func readEntryContent(abs, mode string) ([]byte, error) {
	if mode == object.TreeModeSymlink {
		target, err := os.Readlink(abs)
		if err != nil {
			return nil, err
		}
		return []byte(target), nil
	}
	return os.ReadFile(abs)
}

// WorktreeEntry reads the current worktree state of path. The bool is false
// when nothing exists there. Directories and special files report their mode
// (40000 or "") with no content.
func (r *Repo) WorktreeEntry(path string) (data []byte, mode string, exists bool, err error) {
	abs := filepath.Join(r.RootDir, filepath.FromSlash(path))
	info, err := os.Lstat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) || isNotDirErr(err) {
			return nil, "", false, nil
		}
		return nil, "", false, fmt.Errorf("stat %s: %w", path, err)
	}
	mode, ok := modeFromFileInfo(info)
	if !ok || mode == object.TreeModeDir {
		return nil, mode, true, nil
	}
	data, err = readEntryContent(abs, mode)
	if err != nil {
		return nil, "", false, fmt.Errorf("read %s: %w", path, err)
	}
	return data, mode, true, nil
}

func (r *Repo) readWorktreeFile(path string) (os.FileInfo, []byte, error) {
	abs := filepath.Join(r.RootDir, filepath.FromSlash(path))
	info, err := os.Lstat(abs)
	if err != nil {
		return nil, nil, err
	}
	mode, ok := modeFromFileInfo(info)
	if !ok || mode == object.TreeModeDir {
		return nil, nil, fmt.Errorf("%s is not a file", path)
	}
	data, err := readEntryContent(abs, mode)
	if err != nil {
		return nil, nil, err
	}
	return info, data, nil
}

func isNotDirErr(err error) bool {
	return errors.Is(err, syscall.ENOTDIR)
}

// UnifiedDiff returns the hunks between the HEAD tree version of path and
// its worktree content, using context lines of context. A path missing on
// either side diffs against empty content.
func (r *Repo) UnifiedDiff(path string, context int) ([]diff.Hunk, error) {
	headTree, err := r.HeadTree()
	if err != nil {
		return nil, fmt.Errorf("diff %s: %w", path, err)
	}
	var before []byte
	entry, found, err := r.TreeEntryAtPath(headTree, path)
	if err != nil {
		return nil, fmt.Errorf("diff %s: %w", path, err)
	}
	if found && !entry.IsDir() {
		if before, err = r.ReadBlobData(entry.Hash); err != nil {
			return nil, fmt.Errorf("diff %s: %w", path, err)
		}
	}
	after, _, _, err := r.WorktreeEntry(path)
	if err != nil {
		return nil, fmt.Errorf("diff %s: %w", path, err)
	}
	return diff.Unified(before, after, context), nil
}

// ContextLines returns the configured number of unified diff context lines.
func (r *Repo) ContextLines() int {
	if r.Config == nil || r.Config.Diff.ContextLines < 0 {
		return defaultContextLines
	}
	return r.Config.Diff.ContextLines
}

// LockWorktree takes the exclusive worktree guard. The returned func
// releases it and must be called on every path, typically with defer.
func (r *Repo) LockWorktree() (func(), error) {
	lockPath := filepath.Join(r.LanesDir, "worktree.lock")
	f, err := acquireRefLock(lockPath)
	if err != nil {
		return nil, fmt.Errorf("lock worktree: %w", err)
	}
	return func() {
		_ = f.Close()
		_ = os.Remove(lockPath)
	}, nil
}

// pairRenameCandidates pairs added and deleted paths that share a content
// key. Within a key, paths are paired in sorted order.
func pairRenameCandidates(newByKey, oldByKey map[string][]string) (map[string]string, map[string]string) {
	newToOld := make(map[string]string)
	oldToNew := make(map[string]string)

	for key, newPaths := range newByKey {
		oldPaths := oldByKey[key]
		if len(oldPaths) == 0 {
			continue
		}
		sort.Strings(newPaths)
		sort.Strings(oldPaths)
		n := min(len(newPaths), len(oldPaths))
		for i := 0; i < n; i++ {
			newToOld[newPaths[i]] = oldPaths[i]
			oldToNew[oldPaths[i]] = newPaths[i]
		}
	}
	return newToOld, oldToNew
}

func renameMatchKey(h object.Hash, kind object.EntryKind) string {
	return string(h) + "|" + kind.Mode()
}

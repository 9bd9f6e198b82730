package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/lanes/pkg/object"
)

// RefEdit is the intent to move one ref. Unless Force is set the edit only
// applies while the ref still holds Old; the null Old expects the ref to be
// absent.
type RefEdit struct {
	Name    string
	Old     object.Hash
	New     object.Hash
	Force   bool
	Message string
}

func (e RefEdit) String() string {
	if e.Force {
		return fmt.Sprintf("%s -> %s", e.Name, e.New.Short())
	}
	return fmt.Sprintf("%s %s -> %s", e.Name, e.Old.Short(), e.New.Short())
}

// ApplyRefEdits moves every ref in edits as one transaction: all refs are
// locked, every expected old value is verified, and only then are the new
// values renamed into place. A mismatch on any ref leaves all of them
// untouched and returns an error wrapping ErrRefCASMismatch.
func (r *Repo) ApplyRefEdits(edits []RefEdit) error {
	if len(edits) == 0 {
		return nil
	}

	// Lock in name order so two transactions over the same refs cannot
	// deadlock each other.
	sorted := make([]RefEdit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Name == sorted[i-1].Name {
			return fmt.Errorf("update refs: %q edited twice in one transaction", sorted[i].Name)
		}
	}

	type lockedRef struct {
		edit     RefEdit
		refPath  string
		lockPath string
		lock     *os.File
		old      object.Hash
		renamed  bool
	}
	locked := make([]*lockedRef, 0, len(sorted))
	defer func() {
		for _, l := range locked {
			if l.lock != nil {
				_ = l.lock.Close()
			}
			if !l.renamed {
				_ = os.Remove(l.lockPath)
			}
		}
	}()

	for _, e := range sorted {
		refPath := r.refPath(e.Name)
		if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
			return fmt.Errorf("update ref %q: mkdir: %w", e.Name, err)
		}
		lockPath := refPath + ".lock"
		f, err := acquireRefLock(lockPath)
		if err != nil {
			return fmt.Errorf("update ref %q: lock: %w", e.Name, err)
		}
		l := &lockedRef{edit: e, refPath: refPath, lockPath: lockPath, lock: f}
		locked = append(locked, l)

		l.old, err = readRefHash(refPath)
		if err != nil {
			return fmt.Errorf("update ref %q: read old hash: %w", e.Name, err)
		}
		if !e.Force && l.old != e.Old {
			return fmt.Errorf(
				"update ref %q: %w (expected %s, found %s)",
				e.Name,
				ErrRefCASMismatch,
				displayHash(e.Old),
				displayHash(l.old),
			)
		}
	}

	for _, l := range locked {
		if _, err := l.lock.WriteString(string(l.edit.New) + "\n"); err != nil {
			return fmt.Errorf("update ref %q: write: %w", l.edit.Name, err)
		}
		if err := l.lock.Sync(); err != nil {
			return fmt.Errorf("update ref %q: sync: %w", l.edit.Name, err)
		}
		err := l.lock.Close()
		l.lock = nil
		if err != nil {
			return fmt.Errorf("update ref %q: close: %w", l.edit.Name, err)
		}
	}

	for _, l := range locked {
		if err := os.Rename(l.lockPath, l.refPath); err != nil {
			return fmt.Errorf("update ref %q: rename: %w", l.edit.Name, err)
		}
		l.renamed = true
	}

	var reflogErr error
	for _, l := range locked {
		r.Logger.Info("ref updated", "ref", l.edit.Name, "old", l.old.Short(), "new", l.edit.New.Short())
		if err := r.appendReflog(l.edit.Name, l.old, l.edit.New, l.edit.Message); err != nil && reflogErr == nil {
			reflogErr = &RefUpdateReflogError{
				Ref:     l.edit.Name,
				OldHash: l.old,
				NewHash: l.edit.New,
				Err:     err,
			}
		}
	}
	return reflogErr
}

func displayHash(h object.Hash) string {
	if h.IsNull() {
		return "<none>"
	}
	return string(h)
}

// ListRefs lists references under .lanes/refs.
// Names are returned relative to refs root, e.g. "heads/main".
func (r *Repo) ListRefs(prefix string) (map[string]object.Hash, error) {
	root := filepath.Join(r.LanesDir, "refs")
	dir := root
	if strings.TrimSpace(prefix) != "" {
		dir = filepath.Join(root, filepath.FromSlash(prefix))
	}

	refs := make(map[string]object.Hash)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasSuffix(path, ".lock") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		refs[name] = object.Hash(strings.TrimSpace(string(data)))
		return nil
	})
	if os.IsNotExist(err) {
		return refs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return refs, nil
}

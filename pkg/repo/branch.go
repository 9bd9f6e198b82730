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

// ErrInvalidBranchName is returned for names that cannot be stored as a
// ref under refs/heads.
var ErrInvalidBranchName = errors.New("invalid branch name")

// CreateBranch points a new branch at target. The branch must not exist.
// Nested names such as "lanes/stack-a" are allowed.
func (r *Repo) CreateBranch(name string, target object.Hash) error {
	if err := ValidateBranchName(name); err != nil {
		return fmt.Errorf("create branch: %w", err)
	}
	edit := RefEdit{Name: "refs/heads/" + name, New: target, Message: "branch: created from " + target.Short()}
	if err := r.ApplyRefEdits([]RefEdit{edit}); err != nil {
		if errors.Is(err, ErrRefCASMismatch) {
			return fmt.Errorf("create branch: branch %q already exists", name)
		}
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	return nil
}

// DeleteBranch removes a branch. HEAD's branch cannot be deleted.
func (r *Repo) DeleteBranch(name string) error {
	if err := ValidateBranchName(name); err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	current, err := r.CurrentBranch()
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if current == name {
		return fmt.Errorf("delete branch: cannot delete current branch %q", name)
	}

	refPath := r.refPath("refs/heads/" + name)
	if _, err := os.Stat(refPath); os.IsNotExist(err) {
		return fmt.Errorf("delete branch: branch %q does not exist", name)
	}
	lock, err := acquireRefLock(refPath + ".lock")
	if err != nil {
		return fmt.Errorf("delete branch %q: lock: %w", name, err)
	}
	err = os.Remove(refPath)
	_ = lock.Close()
	_ = os.Remove(refPath + ".lock")
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("delete branch: branch %q does not exist", name)
		}
		return fmt.Errorf("delete branch %q: %w", name, err)
	}
	pruneEmptyDirs(refPath, r.refPath("refs/heads"))

	logPath := filepath.Join(r.LanesDir, "logs", "refs", "heads", filepath.FromSlash(name))
	if err := os.Remove(logPath); err != nil && !os.IsNotExist(err) {
		r.Logger.Warn("delete branch: reflog not removed", "branch", name, "err", err)
	}
	pruneEmptyDirs(logPath, filepath.Join(r.LanesDir, "logs", "refs", "heads"))
	return nil
}

// pruneEmptyDirs removes the empty parents of path below stop.
func pruneEmptyDirs(path, stop string) {
	for dir := filepath.Dir(path); strings.HasPrefix(dir, stop+string(os.PathSeparator)); dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			return
		}
	}
}

// ListBranches returns the branch names under refs/heads, nested names
// included, sorted.
func (r *Repo) ListBranches() ([]string, error) {
	refs, err := r.ListRefs("heads")
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, strings.TrimPrefix(name, "heads/"))
	}
	sort.Strings(names)
	return names, nil
}

// CurrentBranch returns the short name of HEAD's branch, or "" when HEAD
// is detached.
func (r *Repo) CurrentBranch() (string, error) {
	ref, err := r.HeadBranch()
	switch {
	case errors.Is(err, ErrDetachedHead):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("current branch: %w", err)
	}
	return strings.TrimPrefix(ref, "refs/heads/"), nil
}

// ValidateBranchName rejects names that would not round-trip through the
// ref directory: empty or dot-leading components, "..", whitespace and
// control characters, a leading "-", and the ".lock" suffix ref updates
// use.
func ValidateBranchName(name string) error {
	bad := func(why string) error {
		return fmt.Errorf("%w %q: %s", ErrInvalidBranchName, name, why)
	}
	switch {
	case name == "":
		return bad("empty")
	case strings.HasPrefix(name, "-"):
		return bad("starts with '-'")
	case strings.Contains(name, ".."):
		return bad("contains '..'")
	case strings.HasSuffix(name, ".lock"):
		return bad("ends with .lock")
	}
	for _, c := range name {
		if c <= ' ' || c == 0x7f || strings.ContainsRune(`~^:?*[\`, c) {
			return bad(fmt.Sprintf("contains %q", c))
		}
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || strings.HasPrefix(part, ".") {
			return bad("empty or hidden path component")
		}
	}
	return nil
}

package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/odvcencio/lanes/pkg/object"
)

var ErrRefCASMismatch = errors.New("ref compare-and-swap mismatch")
var ErrRefUpdatedButReflogAppendFailed = errors.New("ref updated but reflog append failed")

// ErrDetachedHead is returned by HeadBranch when HEAD holds a commit id
// instead of naming a branch.
var ErrDetachedHead = errors.New("HEAD is detached")

// RefUpdateReflogError indicates the ref file update succeeded, but appending
// the corresponding reflog entry failed.
type RefUpdateReflogError struct {
	Ref     string
	OldHash object.Hash
	NewHash object.Hash
	Err     error
}

func (e *RefUpdateReflogError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf(
		"update ref %q: %s (old=%s new=%s): %v",
		e.Ref,
		ErrRefUpdatedButReflogAppendFailed,
		e.OldHash,
		e.NewHash,
		e.Err,
	)
}

func (e *RefUpdateReflogError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *RefUpdateReflogError) Is(target error) bool {
	return target == ErrRefUpdatedButReflogAppendFailed
}

const (
	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second
)

// Init creates a new repository at path. It creates the .lanes/ directory
// structure (HEAD, objects/, refs/heads/, logs/) and a default config.toml.
// Returns an error if a .lanes/ directory already exists.
func Init(path string) (*Repo, error) {
	lanesDir := filepath.Join(path, DirName)

	if _, err := os.Stat(lanesDir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", lanesDir)
	}

	dirs := []string{
		filepath.Join(lanesDir, "objects"),
		filepath.Join(lanesDir, "refs", "heads"),
		filepath.Join(lanesDir, "logs", "refs", "heads"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	headPath := filepath.Join(lanesDir, "HEAD")
	if err := os.WriteFile(headPath, []byte("ref: refs/heads/main\n"), 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}

	r := &Repo{
		RootDir:  path,
		LanesDir: lanesDir,
		Store:    object.NewStore(lanesDir),
	}
	if err := r.WriteConfig(DefaultConfig()); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	if err := r.load(); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return r, nil
}

// Open searches upward from path for a .lanes/ directory and opens the
// repository. Returns an error if no .lanes/ directory is found.
func Open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		lanesDir := filepath.Join(cur, DirName)
		info, err := os.Stat(lanesDir)
		if err == nil && info.IsDir() {
			r := &Repo{
				RootDir:  cur,
				LanesDir: lanesDir,
				Store:    object.NewStore(lanesDir),
			}
			if err := r.load(); err != nil {
				return nil, fmt.Errorf("open: %w", err)
			}
			return r, nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open: not a lanes repository (or any parent up to /)")
		}
		cur = parent
	}
}

// load reads the config and sets up logging.
func (r *Repo) load() error {
	cfg, err := r.ReadConfig()
	if err != nil {
		return err
	}
	r.Config = cfg
	logger, closer, err := NewLogger(r.LanesDir, cfg.Log)
	if err != nil {
		return err
	}
	r.Logger, r.logCloser = logger, closer
	return nil
}

// Head reads .lanes/HEAD. If the content starts with "ref: ", it returns the
// ref path (e.g., "refs/heads/main"). Otherwise it returns the raw content
// as a detached hash string.
func (r *Repo) Head() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.LanesDir, "HEAD"))
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	content := strings.TrimRight(string(data), "\n")

	if strings.HasPrefix(content, "ref: ") {
		return strings.TrimPrefix(content, "ref: "), nil
	}
	return content, nil
}

// HeadBranch returns the ref HEAD points at, or ErrDetachedHead.
func (r *Repo) HeadBranch() (string, error) {
	head, err := r.Head()
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(head, "refs/") {
		return "", ErrDetachedHead
	}
	return head, nil
}

// SetHead points HEAD at a branch ref.
func (r *Repo) SetHead(ref string) error {
	if !strings.HasPrefix(ref, "refs/") {
		ref = "refs/heads/" + ref
	}
	if err := os.WriteFile(filepath.Join(r.LanesDir, "HEAD"), []byte("ref: "+ref+"\n"), 0o644); err != nil {
		return fmt.Errorf("set head: %w", err)
	}
	return nil
}

// HeadCommit resolves HEAD to a commit id. An unborn branch resolves to the
// null id without error.
func (r *Repo) HeadCommit() (object.Hash, error) {
	head, err := r.Head()
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(head, "refs/") {
		return object.Hash(head), nil
	}
	return readRefHash(r.refPath(head))
}

// HeadTree returns the tree of the HEAD commit, or the empty tree when HEAD
// is unborn.
func (r *Repo) HeadTree() (object.Hash, error) {
	h, err := r.HeadCommit()
	if err != nil {
		return "", err
	}
	return r.CommitTree(h)
}

// CommitTree returns the tree id of commit h. The null id maps to the empty
// tree.
func (r *Repo) CommitTree(h object.Hash) (object.Hash, error) {
	if h.IsNull() {
		return object.EmptyTreeHash, nil
	}
	c, err := r.Store.ReadCommit(h)
	if err != nil {
		return "", fmt.Errorf("read commit %s: %w", h, err)
	}
	return c.TreeHash, nil
}

// ResolveRef resolves a ref name to an object hash.
//
// Resolution order:
//  1. If name is "HEAD", read HEAD. If HEAD is symbolic, resolve the target ref.
//  2. If name starts with "refs/", read .lanes/<name>.
//  3. Otherwise, try "refs/heads/<name>".
//  4. Finally, a name that is a full commit id present in the store resolves
//     to itself.
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	if name == "HEAD" {
		head, err := r.Head()
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(head, "refs/") {
			return r.ResolveRef(head)
		}
		return object.Hash(head), nil
	}

	refName := name
	if !strings.HasPrefix(name, "refs/") {
		refName = "refs/heads/" + name
	}

	data, err := os.ReadFile(r.refPath(refName))
	if err != nil {
		if h := object.Hash(name); len(name) == 64 && r.Store.Has(h) {
			return h, nil
		}
		return "", fmt.Errorf("resolve ref %q: %w", name, err)
	}
	return object.Hash(strings.TrimRight(string(data), "\n")), nil
}

// RefValue returns the id a ref file holds, or the null id when the ref
// does not exist. Short branch names are accepted.
func (r *Repo) RefValue(name string) (object.Hash, error) {
	if !strings.HasPrefix(name, "refs/") {
		name = "refs/heads/" + name
	}
	h, err := readRefHash(r.refPath(name))
	if err != nil {
		return "", fmt.Errorf("read ref %q: %w", name, err)
	}
	return h, nil
}

func (r *Repo) refPath(name string) string {
	return filepath.Join(r.LanesDir, filepath.FromSlash(name))
}

// UpdateRef writes a hash to the named ref file under .lanes/. Parent
// directories are created as needed.
func (r *Repo) UpdateRef(name string, h object.Hash) error {
	return r.UpdateRefCAS(name, h)
}

// UpdateRefCAS writes a hash to the named ref file under .lanes/ using
// lockfile + rename atomic semantics. If expectedOld is provided, the
// update only succeeds when the current ref hash matches it; the null id
// expects the ref to be absent.
//
// Reflog append happens after the ref rename; if reflog append fails, the ref
// update remains committed and a RefUpdateReflogError is returned.
func (r *Repo) UpdateRefCAS(name string, h object.Hash, expectedOld ...object.Hash) error {
	if len(expectedOld) > 1 {
		return fmt.Errorf("update ref %q: expected at most one old hash", name)
	}
	edit := RefEdit{Name: name, New: h, Force: len(expectedOld) == 0, Message: "update"}
	if !edit.Force {
		edit.Old = expectedOld[0]
	}
	return r.ApplyRefEdits([]RefEdit{edit})
}

func acquireRefLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, err
	}
}

func readRefHash(refPath string) (object.Hash, error) {
	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return object.Hash(strings.TrimSpace(string(data))), nil
}

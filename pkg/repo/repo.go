package repo

import (
	"log/slog"
	"sync"

	"github.com/odvcencio/lanes/pkg/object"
)

// DirName is the name of the repository metadata directory at the worktree
// root.
const DirName = ".lanes"

// Repo represents an opened lanes repository. It is the explicit context
// every operation takes; there is no package-level repository state.
type Repo struct {
	RootDir  string        // working directory root
	LanesDir string        // .lanes/ directory
	Store    *object.Store // content-addressed object store
	Config   *Config       // settings from .lanes/config.toml
	Logger   *slog.Logger  // never nil

	logCloser func() error

	mergeTraversalStateOnce sync.Once
	mergeTraversalState     *mergeBaseTraversalState
}

func (r *Repo) getMergeTraversalState() *mergeBaseTraversalState {
	r.mergeTraversalStateOnce.Do(func() {
		r.mergeTraversalState = newMergeBaseTraversalState()
	})
	return r.mergeTraversalState
}

// Close releases the log file, if one is open.
func (r *Repo) Close() error {
	if r.logCloser == nil {
		return nil
	}
	err := r.logCloser()
	r.logCloser = nil
	return err
}

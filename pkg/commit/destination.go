// Package commit turns worktree change requests into commits on an
// arbitrary destination.
package commit

import (
	"errors"

	"github.com/odvcencio/lanes/pkg/object"
)

var (
	// ErrDetachedHead is returned when a commit that should move HEAD's
	// branch is requested while HEAD is detached.
	ErrDetachedHead = errors.New("cannot update a ref: HEAD is detached")

	// ErrAmendMergeCommit is returned when amending a commit with more than
	// one parent.
	ErrAmendMergeCommit = errors.New("amending a commit with more than one parent is not implemented")
)

// Destination says where a new commit goes. It is either NewCommit or
// AmendCommit.
type Destination interface {
	isDestination()
}

// NewCommit creates a commit on top of Parent. A null Parent makes a root
// commit on the empty tree.
type NewCommit struct {
	Parent object.Hash
}

// AmendCommit rewrites Commit in place, keeping its parents.
type AmendCommit struct {
	Commit object.Hash
}

func (NewCommit) isDestination()   {}
func (AmendCommit) isDestination() {}

// RefPolicy controls whether CreateCommit moves HEAD's branch.
type RefPolicy int

const (
	// KeepRefs never moves a ref.
	KeepRefs RefPolicy = iota
	// MoveHeadRef moves HEAD's branch to the new commit when the branch
	// still points at the commit being built on.
	MoveHeadRef
)

// Package rebase moves commits onto new parents.
package rebase

import (
	"fmt"

	"github.com/odvcencio/lanes/pkg/object"
)

// Outcome is the result of CherryPick: Commit, ConflictedCommit, Identity
// or FailedToMergeBases.
type Outcome interface {
	isOutcome()
	String() string
}

// Commit is a clean cherry-pick.
type Commit struct {
	ID object.Hash
}

// ConflictedCommit is a cherry-pick whose tree records an unresolved merge
// in the conflict layout.
type ConflictedCommit struct {
	ID object.Hash
}

// Identity means the pick was a no-op and ID is the original commit.
type Identity struct {
	ID object.Hash
}

// FailedToMergeBases reports that the original parents (Bases) or the new
// parents (Ontos) could not be merged with each other. The pairs name the
// two commits whose merge failed.
type FailedToMergeBases struct {
	BaseMergeFailed bool
	Bases           *[2]object.Hash
	OntoMergeFailed bool
	Ontos           *[2]object.Hash
}

func (Commit) isOutcome()             {}
func (ConflictedCommit) isOutcome()   {}
func (Identity) isOutcome()           {}
func (FailedToMergeBases) isOutcome() {}

func (o Commit) String() string           { return "commit " + o.ID.Short() }
func (o ConflictedCommit) String() string { return "conflicted commit " + o.ID.Short() }
func (o Identity) String() string         { return "unchanged " + o.ID.Short() }

func (o FailedToMergeBases) String() string {
	s := "failed to merge"
	if o.BaseMergeFailed && o.Bases != nil {
		s += fmt.Sprintf(" bases %s and %s", o.Bases[0].Short(), o.Bases[1].Short())
	}
	if o.OntoMergeFailed && o.Ontos != nil {
		if o.BaseMergeFailed {
			s += ","
		}
		s += fmt.Sprintf(" new parents %s and %s", o.Ontos[0].Short(), o.Ontos[1].Short())
	}
	return s
}

// CommitID returns the commit an outcome produced, or null for
// FailedToMergeBases.
func CommitID(o Outcome) object.Hash {
	switch o := o.(type) {
	case Commit:
		return o.ID
	case ConflictedCommit:
		return o.ID
	case Identity:
		return o.ID
	default:
		return ""
	}
}

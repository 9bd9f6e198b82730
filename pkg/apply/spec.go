// Package apply turns change requests against the worktree into trees.
package apply

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/lanes/pkg/diff"
)

// ErrNullObjectID is returned when a change that must refer to tracked
// content carries the null id. It indicates a bug in the change source.
var ErrNullObjectID = errors.New("null object id where tracked content was expected; this is a bug")

// DiffSpec requests that one path be taken from the worktree. With no
// HunkHeaders the whole file is taken; otherwise only the listed hunks of
// the path's current unified diff are.
type DiffSpec struct {
	PreviousPath string
	Path         string
	HunkHeaders  []diff.HunkHeader
}

func (s DiffSpec) String() string {
	var b strings.Builder
	if s.PreviousPath != "" {
		b.WriteString(s.PreviousPath)
		b.WriteString(" => ")
	}
	b.WriteString(s.Path)
	for _, h := range s.HunkHeaders {
		b.WriteByte(' ')
		b.WriteString(h.String())
	}
	return b.String()
}

// Touches reports whether the spec owns path: it names the path, or one of
// them is a directory containing the other.
func (s DiffSpec) Touches(path string) bool {
	for _, p := range []string{s.Path, s.PreviousPath} {
		if p == "" {
			continue
		}
		if p == path || strings.HasPrefix(p, path+"/") || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// RejectionReason explains why a DiffSpec was not applied.
type RejectionReason int

const (
	// NoEffectiveChanges means the worktree has no change for the path, or
	// the change was absorbed by the destination.
	NoEffectiveChanges RejectionReason = iota + 1
	HunkMismatch
	InvalidHunkHeader
	UnsupportedFileType
	CherryPickMergeConflict
	PathNotFoundInBaseTree
)

func (r RejectionReason) String() string {
	switch r {
	case NoEffectiveChanges:
		return "no effective changes"
	case HunkMismatch:
		return "hunk mismatch"
	case InvalidHunkHeader:
		return "invalid hunk header"
	case UnsupportedFileType:
		return "unsupported file type"
	case CherryPickMergeConflict:
		return "merge conflict"
	case PathNotFoundInBaseTree:
		return "path not found in base tree"
	default:
		return fmt.Sprintf("RejectionReason(%d)", int(r))
	}
}

// RejectedSpec pairs a spec with the reason it was not applied.
type RejectedSpec struct {
	Reason RejectionReason
	Spec   DiffSpec
}

func (r RejectedSpec) String() string {
	return fmt.Sprintf("%s: %s", r.Spec, r.Reason)
}

// Result is the outcome of applying one spec. Reason is zero when the spec
// was applied.
type Result struct {
	Spec   DiffSpec
	Reason RejectionReason
}

// Applied reports whether the spec made it into the tree.
func (r Result) Applied() bool { return r.Reason == 0 }

// Rejections returns the rejected results of results in order.
func Rejections(results []Result) []RejectedSpec {
	var out []RejectedSpec
	for _, res := range results {
		if !res.Applied() {
			out = append(out, RejectedSpec{Reason: res.Reason, Spec: res.Spec})
		}
	}
	return out
}

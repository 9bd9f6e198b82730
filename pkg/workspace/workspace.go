// Package workspace merges the tips of several stacks into one commit that
// the working copy can sit on.
package workspace

import (
	"fmt"
	"strings"

	"github.com/odvcencio/lanes/pkg/diff3"
	"github.com/odvcencio/lanes/pkg/object"
	"github.com/odvcencio/lanes/pkg/repo"
)

// Segment is one branch of a stack.
type Segment struct {
	RefName string
	// Head is the commit the segment ends at. When null the ref is read.
	Head object.Hash
}

// Stack is an ordered list of segments, base first.
type Stack struct {
	Name     string
	Segments []Segment
}

// tipSegment returns the newest segment, if any.
func (s Stack) tipSegment() (Segment, bool) {
	if len(s.Segments) == 0 {
		return Segment{}, false
	}
	return s.Segments[len(s.Segments)-1], true
}

// hasRef reports whether any segment of s is the named ref.
func (s Stack) hasRef(ref string) bool {
	for _, seg := range s.Segments {
		if seg.RefName != "" && normalizeRef(seg.RefName) == ref {
			return true
		}
	}
	return false
}

// IncludedStack is a stack whose tip became a parent of the workspace
// commit.
type IncludedStack struct {
	Tip  object.Hash
	Name string
}

// ConflictingStack is a stack left out because its tip did not merge
// cleanly.
type ConflictingStack struct {
	Tip     object.Hash
	RefName string
}

// Outcome describes a synthesized workspace commit.
type Outcome struct {
	// WorkspaceCommitID is null when no stack could be included.
	WorkspaceCommitID object.Hash
	// Stacks lists the included stacks in parent order.
	Stacks []IncludedStack
	// MissingStacks names stacks whose tip could not be resolved.
	MissingStacks     []string
	ConflictingStacks []ConflictingStack
	// RefEdit points the configured workspace ref at the new commit. It is
	// not applied.
	RefEdit *repo.RefEdit
}

// Synthesize folds the tips of stacks, in the given order, into a single
// merge commit.
//
// Each tip is merged into the running tree against the merge base of all
// parents accepted so far and the tip. A stack whose merge conflicts is
// skipped and reported, unless one of its segments is heroRef: the hero is
// always included and its side wins every conflicting path. Stacks whose
// tip repeats an earlier one are skipped silently.
func Synthesize(r *repo.Repo, stacks []Stack, heroRef string) (*Outcome, error) {
	if heroRef != "" {
		heroRef = normalizeRef(heroRef)
	}
	out := &Outcome{}
	var parents []object.Hash
	seen := make(map[object.Hash]bool)
	tree := object.EmptyTreeHash

	for _, st := range stacks {
		seg, tip, ok, err := resolveTip(r, st)
		if err != nil {
			return nil, fmt.Errorf("workspace: stack %q: %w", st.Name, err)
		}
		if !ok {
			r.Logger.Debug("workspace stack missing", "stack", st.Name)
			out.MissingStacks = append(out.MissingStacks, st.Name)
			continue
		}
		if seen[tip] {
			continue
		}

		tipTree, err := r.CommitTree(tip)
		if err != nil {
			return nil, fmt.Errorf("workspace: stack %q: %w", st.Name, err)
		}
		if len(parents) > 0 {
			hero := heroRef != "" && st.hasRef(heroRef)
			merged, err := mergeTip(r, parents, tree, tip, tipTree, hero)
			if err != nil {
				return nil, fmt.Errorf("workspace: stack %q: %w", st.Name, err)
			}
			if merged.HasConflicts() && !hero {
				r.Logger.Debug("workspace stack excluded", "stack", st.Name, "tip", tip.Short(), "paths", merged.Conflicts)
				out.ConflictingStacks = append(out.ConflictingStacks, ConflictingStack{Tip: tip, RefName: seg.RefName})
				continue
			}
			tipTree = merged.Tree
		}
		tree = tipTree
		parents = append(parents, tip)
		seen[tip] = true
		out.Stacks = append(out.Stacks, IncludedStack{Tip: tip, Name: st.Name})
	}

	if len(parents) == 0 {
		return out, nil
	}

	signer, err := r.Signer()
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	h, err := r.WriteCommit(r.NewCommitObj(tree, parents, Message(out.Stacks)), signer)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	out.WorkspaceCommitID = h

	ref := normalizeRef(r.Config.Workspace.Ref)
	old, err := r.RefValue(ref)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	out.RefEdit = &repo.RefEdit{Name: ref, Old: old, New: h, Message: "workspace: " + h.Short()}

	r.Logger.Info("workspace commit written", "commit", h.Short(), "parents", len(parents), "excluded", len(out.ConflictingStacks))
	return out, nil
}

func mergeTip(r *repo.Repo, parents []object.Hash, tree, tip, tipTree object.Hash, hero bool) (*repo.TreeMergeResult, error) {
	mb, err := r.FindMergeBaseOctopus(append(append([]object.Hash(nil), parents...), tip)...)
	if err != nil {
		return nil, err
	}
	baseTree, err := r.CommitTree(mb)
	if err != nil {
		return nil, err
	}
	opts := repo.MergeOptions{Favor: diff3.FavorNone}
	if hero {
		opts = repo.MergeOptions{Favor: diff3.FavorTheirs, WholeFile: true}
	}
	return r.MergeTrees(baseTree, tree, tipTree, opts)
}

// resolveTip returns the tip segment of st and the commit it points at.
// ok is false when the stack has no segments or its tip is unknown.
func resolveTip(r *repo.Repo, st Stack) (Segment, object.Hash, bool, error) {
	seg, ok := st.tipSegment()
	if !ok {
		return Segment{}, "", false, nil
	}
	tip := seg.Head
	if tip.IsNull() && seg.RefName != "" {
		h, err := r.RefValue(normalizeRef(seg.RefName))
		if err != nil {
			return Segment{}, "", false, err
		}
		tip = h
	}
	if tip.IsNull() || !r.Store.Has(tip) {
		return seg, "", false, nil
	}
	return seg, tip, true, nil
}

// Message renders the workspace commit message for the included stacks.
func Message(stacks []IncludedStack) string {
	var b strings.Builder
	b.WriteString("lanes workspace\n\n")
	b.WriteString("Stacks:\n")
	for _, st := range stacks {
		fmt.Fprintf(&b, " - %s\n   head: %s\n", st.Name, st.Tip)
	}
	return b.String()
}

func normalizeRef(name string) string {
	if strings.HasPrefix(name, "refs/") {
		return name
	}
	return "refs/heads/" + name
}

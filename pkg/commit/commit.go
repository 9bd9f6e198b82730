package commit

import (
	"errors"
	"fmt"

	"github.com/odvcencio/lanes/pkg/apply"
	"github.com/odvcencio/lanes/pkg/diff3"
	"github.com/odvcencio/lanes/pkg/object"
	"github.com/odvcencio/lanes/pkg/repo"
)

// TreeOutcome is the result of CreateTree. NewTree is null when nothing
// was applied or the applied changes were already in the destination.
type TreeOutcome struct {
	RejectedSpecs []apply.RejectedSpec
	NewTree       object.Hash
}

// Outcome is the result of CreateCommit. NewCommit is null when no commit
// was written; RefEdit is the ref move that was applied, if any.
type Outcome struct {
	RejectedSpecs []apply.RejectedSpec
	NewCommit     object.Hash
	RefEdit       *repo.RefEdit
}

// target is the resolved destination.
type target struct {
	tree    object.Hash
	parents []object.Hash
	amended *object.CommitObj
	commit  object.Hash // the commit HEAD's branch must hold for a ref move
}

func resolveDestination(r *repo.Repo, dest Destination) (*target, error) {
	switch d := dest.(type) {
	case NewCommit:
		tree, err := r.CommitTree(d.Parent)
		if err != nil {
			return nil, err
		}
		t := &target{tree: tree, commit: d.Parent}
		if !d.Parent.IsNull() {
			t.parents = []object.Hash{d.Parent}
		}
		return t, nil
	case AmendCommit:
		c, err := r.Store.ReadCommit(d.Commit)
		if err != nil {
			return nil, fmt.Errorf("read commit %s: %w", d.Commit, err)
		}
		if len(c.Parents) > 1 {
			return nil, fmt.Errorf("amend %s: %w", d.Commit.Short(), ErrAmendMergeCommit)
		}
		return &target{tree: c.TreeHash, parents: c.Parents, amended: c, commit: d.Commit}, nil
	default:
		return nil, fmt.Errorf("unknown destination %T", dest)
	}
}

// CreateTree applies specs from the worktree onto the destination's tree.
//
// Changes are always taken relative to HEAD's tree. When the destination's
// tree differs from it, the prospective tree is merged onto the
// destination (base HEAD's tree, ours the destination, theirs the
// prospective tree). Specs owning a conflicting path are rejected and the
// remaining specs are applied again until the merge is clean or no spec is
// left. Specs whose paths end up unchanged from the destination are
// rejected as having no effect.
func CreateTree(r *repo.Repo, dest Destination, specs []apply.DiffSpec) (*TreeOutcome, error) {
	t, err := resolveDestination(r, dest)
	if err != nil {
		return nil, fmt.Errorf("create tree: %w", err)
	}
	return createTree(r, t, specs)
}

func createTree(r *repo.Repo, t *target, specs []apply.DiffSpec) (*TreeOutcome, error) {
	base, err := r.HeadTree()
	if err != nil {
		return nil, fmt.Errorf("create tree: %w", err)
	}
	changes, err := r.WorktreeChanges()
	if err != nil {
		return nil, fmt.Errorf("create tree: %w", err)
	}

	out := &TreeOutcome{}
	active := append([]apply.DiffSpec(nil), specs...)
	var final object.Hash
	for iteration := 1; len(active) > 0; iteration++ {
		prospective, results, err := apply.Apply(r, base, active, changes)
		if err != nil {
			return nil, fmt.Errorf("create tree: %w", err)
		}
		out.RejectedSpecs = append(out.RejectedSpecs, apply.Rejections(results)...)
		active = applied(results)
		if len(active) == 0 {
			break
		}
		if prospective.IsNull() {
			prospective = base
		}
		if base == t.tree {
			final = prospective
			break
		}

		merged, err := r.MergeTrees(base, t.tree, prospective, repo.MergeOptions{Favor: diff3.FavorNone})
		if err != nil {
			return nil, fmt.Errorf("create tree: %w", err)
		}
		if !merged.HasConflicts() {
			final = merged.Tree
			break
		}

		var keep []apply.DiffSpec
		for _, spec := range active {
			if touchesAny(spec, merged.Conflicts) {
				out.RejectedSpecs = append(out.RejectedSpecs, apply.RejectedSpec{Reason: apply.CherryPickMergeConflict, Spec: spec})
				continue
			}
			keep = append(keep, spec)
		}
		if len(keep) == len(active) {
			// No spec owns the conflict, so none of them can land safely.
			for _, spec := range active {
				out.RejectedSpecs = append(out.RejectedSpecs, apply.RejectedSpec{Reason: apply.CherryPickMergeConflict, Spec: spec})
			}
			keep = nil
		}
		r.Logger.Debug("reconcile conflicted", "iteration", iteration, "conflicts", merged.Conflicts, "retrying", len(keep))
		active = keep
	}
	if final.IsNull() {
		return out, nil
	}

	noops, err := unchangedSpecs(r, t.tree, final, active)
	if err != nil {
		return nil, fmt.Errorf("create tree: %w", err)
	}
	for _, spec := range noops {
		out.RejectedSpecs = append(out.RejectedSpecs, apply.RejectedSpec{Reason: apply.NoEffectiveChanges, Spec: spec})
	}
	if final != t.tree && len(noops) < len(active) {
		out.NewTree = final
	}
	return out, nil
}

func applied(results []apply.Result) []apply.DiffSpec {
	var out []apply.DiffSpec
	for _, res := range results {
		if res.Applied() {
			out = append(out, res.Spec)
		}
	}
	return out
}

func touchesAny(spec apply.DiffSpec, paths []string) bool {
	for _, p := range paths {
		if spec.Touches(p) {
			return true
		}
	}
	return false
}

// unchangedSpecs returns the specs none of whose paths differ between
// before and after.
func unchangedSpecs(r *repo.Repo, before, after object.Hash, specs []apply.DiffSpec) ([]apply.DiffSpec, error) {
	var out []apply.DiffSpec
	for _, spec := range specs {
		changed := false
		for _, p := range []string{spec.Path, spec.PreviousPath} {
			if p == "" {
				continue
			}
			b, bok, err := r.TreeEntryAtPath(before, p)
			if err != nil {
				return nil, err
			}
			a, aok, err := r.TreeEntryAtPath(after, p)
			if err != nil {
				return nil, err
			}
			if bok != aok || b.Hash != a.Hash || b.Mode != a.Mode {
				changed = true
				break
			}
		}
		if !changed {
			out = append(out, spec)
		}
	}
	return out, nil
}

// CreateCommit applies specs as CreateTree does and writes a commit on the
// destination. A new commit gets the destination parent; an amended commit
// keeps its parents and authorship and takes message when it is non-empty.
// An amend that changes neither tree nor message writes nothing.
//
// With MoveHeadRef, HEAD's branch moves to the new commit only when it
// still points at the destination parent (or the amended commit), or is
// unborn and the commit is a root. The move is a compare-and-swap: if the
// branch changed concurrently it is left alone and the commit is still
// returned. A detached HEAD is an error before anything is written.
func CreateCommit(r *repo.Repo, dest Destination, specs []apply.DiffSpec, message string, policy RefPolicy) (*Outcome, error) {
	var branch string
	if policy == MoveHeadRef {
		b, err := r.HeadBranch()
		if errors.Is(err, repo.ErrDetachedHead) {
			return nil, fmt.Errorf("create commit: %w", ErrDetachedHead)
		}
		if err != nil {
			return nil, fmt.Errorf("create commit: %w", err)
		}
		branch = b
	}

	t, err := resolveDestination(r, dest)
	if err != nil {
		return nil, fmt.Errorf("create commit: %w", err)
	}
	treeOut, err := createTree(r, t, specs)
	if err != nil {
		return nil, fmt.Errorf("create commit: %w", err)
	}
	out := &Outcome{RejectedSpecs: treeOut.RejectedSpecs}

	tree := treeOut.NewTree
	var c *object.CommitObj
	switch {
	case t.amended != nil && tree.IsNull() && message == "":
		return out, nil
	case t.amended != nil:
		if tree.IsNull() {
			tree = t.tree
		}
		c = r.Recommit(t.amended, tree, t.parents)
		if message != "" {
			c.Message = message
		}
	case tree.IsNull():
		return out, nil
	default:
		c = r.NewCommitObj(tree, t.parents, message)
	}

	signer, err := r.Signer()
	if err != nil {
		return nil, fmt.Errorf("create commit: %w", err)
	}
	h, err := r.WriteCommit(c, signer)
	if err != nil {
		return nil, fmt.Errorf("create commit: %w", err)
	}
	out.NewCommit = h
	r.Logger.Info("commit created", "commit", h.Short(), "tree", tree.Short(), "rejected", len(out.RejectedSpecs))

	if policy != MoveHeadRef {
		return out, nil
	}
	edit, err := moveBranch(r, branch, t, h, c.Title())
	if err != nil {
		return nil, fmt.Errorf("create commit: %w", err)
	}
	if edit == nil {
		return out, nil
	}
	out.RefEdit = edit
	if err := r.SyncStaging(tree, committedPaths(specs, out.RejectedSpecs)); err != nil {
		return nil, fmt.Errorf("create commit: %w", err)
	}
	return out, nil
}

func moveBranch(r *repo.Repo, branch string, t *target, h object.Hash, title string) (*repo.RefEdit, error) {
	current, err := r.RefValue(branch)
	if err != nil {
		return nil, err
	}
	if current != t.commit {
		r.Logger.Debug("branch not moved", "ref", branch, "at", current.Short(), "expected", t.commit.Short())
		return nil, nil
	}
	verb := "commit"
	if t.amended != nil {
		verb = "commit (amend)"
	}
	edit := repo.RefEdit{Name: branch, Old: current, New: h, Message: verb + ": " + title}
	err = r.ApplyRefEdits([]repo.RefEdit{edit})
	switch {
	case errors.Is(err, repo.ErrRefCASMismatch):
		r.Logger.Info("branch moved concurrently; left alone", "ref", branch, "commit", h.Short())
		return nil, nil
	case errors.Is(err, repo.ErrRefUpdatedButReflogAppendFailed):
		r.Logger.Warn("reflog append failed", "ref", branch, "err", err)
	case err != nil:
		return nil, err
	}
	return &edit, nil
}

// committedPaths lists the paths of specs that were not rejected.
func committedPaths(specs []apply.DiffSpec, rejected []apply.RejectedSpec) []string {
	var paths []string
	for _, spec := range specs {
		skip := false
		for _, rej := range rejected {
			if rej.Spec.Path == spec.Path && rej.Spec.PreviousPath == spec.PreviousPath {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		paths = append(paths, spec.Path)
		if spec.PreviousPath != "" {
			paths = append(paths, spec.PreviousPath)
		}
	}
	return paths
}

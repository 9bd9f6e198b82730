package rebase

import (
	"fmt"
	"slices"

	"github.com/odvcencio/lanes/pkg/conflict"
	"github.com/odvcencio/lanes/pkg/diff3"
	"github.com/odvcencio/lanes/pkg/object"
	"github.com/odvcencio/lanes/pkg/repo"
)

// CherryPick recreates commit on top of newParents.
//
// The picked changes are those between the commit's tree and its base.
// Moving a single-parent commit onto a single new parent uses the merge
// base of the old and new parent, so changes on the old parent's side
// that the new parent lacks are carried along. Otherwise the base is the
// merge of the commit's parents' trees, or the empty tree for a root. A
// commit that is itself
// conflicted contributes its recorded base and theirs trees instead, so
// picking it back onto its original parents reproduces the clean result.
// The new parents are merged the same way into the tree the changes are
// applied onto.
//
// The result always has exactly newParents, in order. Authorship and
// message are kept. Conflicts are stored with the conflict layout, the
// visible tree resolving each conflicting hunk in favour of the new
// parents.
func CherryPick(r *repo.Repo, commit object.Hash, newParents []object.Hash) (Outcome, error) {
	c, err := r.Store.ReadCommit(commit)
	if err != nil {
		return nil, fmt.Errorf("cherry-pick %s: %w", commit.Short(), err)
	}
	if slices.Equal(c.Parents, newParents) {
		return Identity{ID: commit}, nil
	}

	base, theirs, basePair, err := pickedTrees(r, c, newParents)
	if err != nil {
		return nil, fmt.Errorf("cherry-pick %s: %w", commit.Short(), err)
	}
	failed := FailedToMergeBases{}
	if basePair != nil {
		failed.BaseMergeFailed, failed.Bases = true, basePair
	}
	onto, ontoPair, err := mergeParents(r, newParents)
	if err != nil {
		return nil, fmt.Errorf("cherry-pick %s: %w", commit.Short(), err)
	}
	if ontoPair != nil {
		failed.OntoMergeFailed, failed.Ontos = true, ontoPair
	}
	if failed.BaseMergeFailed || failed.OntoMergeFailed {
		r.Logger.Debug("cherry-pick bases unmergeable", "commit", commit.Short(), "outcome", failed.String())
		return failed, nil
	}

	merged, err := r.MergeTrees(base, onto, theirs, repo.MergeOptions{Favor: diff3.FavorOurs})
	if err != nil {
		return nil, fmt.Errorf("cherry-pick %s: %w", commit.Short(), err)
	}

	tree := merged.Tree
	if merged.HasConflicts() {
		files, err := conflict.FilesFor(r, base, onto, theirs, merged.Conflicts)
		if err != nil {
			return nil, fmt.Errorf("cherry-pick %s: %w", commit.Short(), err)
		}
		tree, err = conflict.Encode(r.Store, &conflict.Conflicted{
			Base:           base,
			Ours:           onto,
			Theirs:         theirs,
			AutoResolution: merged.Tree,
			Files:          files,
		})
		if err != nil {
			return nil, fmt.Errorf("cherry-pick %s: %w", commit.Short(), err)
		}
	}

	signer, err := r.Signer()
	if err != nil {
		return nil, fmt.Errorf("cherry-pick %s: %w", commit.Short(), err)
	}
	h, err := r.WriteCommit(r.Recommit(c, tree, newParents), signer)
	if err != nil {
		return nil, fmt.Errorf("cherry-pick %s: %w", commit.Short(), err)
	}

	if merged.HasConflicts() {
		r.Logger.Info("cherry-pick conflicted", "commit", commit.Short(), "result", h.Short(), "paths", merged.Conflicts)
		return ConflictedCommit{ID: h}, nil
	}
	r.Logger.Info("cherry-picked", "commit", commit.Short(), "result", h.Short())
	return Commit{ID: h}, nil
}

// pickedTrees returns the base and theirs trees whose difference is the
// change c introduces when it moves onto newParents. A non-nil pair means
// c's parents could not be merged.
func pickedTrees(r *repo.Repo, c *object.CommitObj, newParents []object.Hash) (base, theirs object.Hash, pair *[2]object.Hash, err error) {
	decoded, ok, err := conflict.Decode(r.Store, c.TreeHash)
	if err != nil {
		return "", "", nil, err
	}
	if ok {
		return decoded.Base, decoded.Theirs, nil, nil
	}
	if len(c.Parents) == 1 && len(newParents) == 1 {
		mb, err := r.FindMergeBase(c.Parents[0], newParents[0])
		if err != nil {
			return "", "", nil, err
		}
		// Unrelated histories merge against the empty tree.
		if base, err = r.CommitTree(mb); err != nil {
			return "", "", nil, err
		}
		return base, c.TreeHash, nil, nil
	}
	base, pair, err = mergeParents(r, c.Parents)
	if err != nil {
		return "", "", nil, err
	}
	return base, c.TreeHash, pair, nil
}

// mergeParents merges the trees of parents left to right, each step
// against the merge base of every parent merged so far and the next one
// (the empty tree for unrelated histories). The pair returned names the
// previous and next parent of the first step that conflicted; the tree is
// null in that case.
func mergeParents(r *repo.Repo, parents []object.Hash) (object.Hash, *[2]object.Hash, error) {
	if len(parents) == 0 {
		return object.EmptyTreeHash, nil, nil
	}
	acc, err := r.CommitTree(parents[0])
	if err != nil {
		return "", nil, err
	}
	for i := 1; i < len(parents); i++ {
		mb, err := r.FindMergeBaseOctopus(parents[:i+1]...)
		if err != nil {
			return "", nil, err
		}
		baseTree, err := r.CommitTree(mb)
		if err != nil {
			return "", nil, err
		}
		next, err := r.CommitTree(parents[i])
		if err != nil {
			return "", nil, err
		}
		merged, err := r.MergeTrees(baseTree, acc, next, repo.MergeOptions{Favor: diff3.FavorNone})
		if err != nil {
			return "", nil, err
		}
		if merged.HasConflicts() {
			return "", &[2]object.Hash{parents[i-1], parents[i]}, nil
		}
		acc = merged.Tree
	}
	return acc, nil, nil
}

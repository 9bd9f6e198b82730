package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odvcencio/lanes/pkg/object"
	"github.com/odvcencio/lanes/pkg/rebase"
	"github.com/odvcencio/lanes/pkg/repo"
)

func newCherryPickCmd() *cobra.Command {
	var (
		root bool
		move string
	)

	cmd := &cobra.Command{
		Use:   "cherry-pick <commit> [parent...]",
		Short: "Recreate a commit on new parents",
		Long: "Recreate a commit on new parents, HEAD by default.\n\n" +
			"Conflicts do not stop the pick: the new commit records them and\n" +
			"lanes conflicts shows what needs resolving.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if root && len(args) > 1 {
				return fmt.Errorf("--root takes no parents")
			}
			r, done, err := openLocked()
			if err != nil {
				return err
			}
			defer done()

			picked, err := resolveCommit(r, args[0])
			if err != nil {
				return err
			}
			var parents []object.Hash
			switch {
			case root:
			case len(args) > 1:
				for _, rev := range args[1:] {
					h, err := resolveCommit(r, rev)
					if err != nil {
						return err
					}
					parents = append(parents, h)
				}
			default:
				head, err := r.HeadCommit()
				if err != nil {
					return err
				}
				parents = nonNull([]object.Hash{head})
			}

			var mv *branchMove
			if move != "" {
				if mv, err = prepareMove(r, move); err != nil {
					return err
				}
			}

			outcome, err := rebase.CherryPick(r, picked, parents)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := printPickOutcome(out, picked, outcome); err != nil {
				return err
			}
			if mv != nil {
				return mv.apply(out, r, rebase.CommitID(outcome))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&root, "root", false, "pick onto no parents")
	cmd.Flags().StringVar(&move, "move", "", "point this branch at the result")
	return cmd
}

func printPickOutcome(w io.Writer, picked object.Hash, outcome rebase.Outcome) error {
	switch o := outcome.(type) {
	case rebase.Commit:
		fmt.Fprintf(w, "picked %s as %s\n", hashColor.Sprint(picked.Short()), hashColor.Sprint(o.ID.Short()))
	case rebase.ConflictedCommit:
		fmt.Fprintf(w, "picked %s as %s %s\n", hashColor.Sprint(picked.Short()), hashColor.Sprint(o.ID.Short()), conflictColor.Sprint("(conflicted)"))
		fmt.Fprintf(w, "run 'lanes conflicts %s' to see the conflicting paths\n", o.ID)
	case rebase.Identity:
		fmt.Fprintf(w, "%s already has these parents\n", hashColor.Sprint(o.ID.Short()))
	case rebase.FailedToMergeBases:
		return errors.New(o.String())
	}
	return nil
}

// branchMove moves a branch to a new commit. When the branch is checked
// out the worktree follows, so it must be clean beforehand.
type branchMove struct {
	ref     string
	old     object.Hash
	checked bool
}

func prepareMove(r *repo.Repo, branch string) (*branchMove, error) {
	ref := normalizeBranch(branch)
	old, err := r.RefValue(ref)
	if err != nil {
		return nil, err
	}
	mv := &branchMove{ref: ref, old: old}
	if head, err := r.HeadBranch(); err == nil && head == ref {
		changes, err := r.WorktreeChanges()
		if err != nil {
			return nil, err
		}
		if len(changes) > 0 {
			return nil, fmt.Errorf("cannot move checked out branch %s: %w", shortBranch(ref), repo.ErrDirtyWorktree)
		}
		mv.checked = true
	}
	return mv, nil
}

func (mv *branchMove) apply(w io.Writer, r *repo.Repo, to object.Hash) error {
	if to.IsNull() || to == mv.old {
		return nil
	}
	err := r.ApplyRefEdits([]repo.RefEdit{{Name: mv.ref, Old: mv.old, New: to, Message: "cherry-pick: " + to.Short()}})
	if err != nil && !errors.Is(err, repo.ErrRefUpdatedButReflogAppendFailed) {
		return err
	}
	if mv.checked {
		from, err := r.CommitTree(mv.old)
		if err != nil {
			return err
		}
		next, err := r.CommitTree(to)
		if err != nil {
			return err
		}
		touched, err := r.CheckoutTree(from, next)
		if err != nil {
			return err
		}
		if err := r.SyncStaging(next, touched); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "%s -> %s\n", shortBranch(mv.ref), hashColor.Sprint(to.Short()))
	return nil
}

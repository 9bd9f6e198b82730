package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/lanes/pkg/repo"
	"github.com/odvcencio/lanes/pkg/workspace"
)

func newWorkspaceCmd() *cobra.Command {
	var (
		hero     string
		checkout bool
	)

	cmd := &cobra.Command{
		Use:   "workspace <stack>...",
		Short: "Merge the tips of several stacks into the workspace commit",
		Long: "Merge the tips of several stacks into one commit and point the workspace ref at it.\n\n" +
			"Each stack is name=branch[,branch...] listing its branches base first, or a\n" +
			"single branch name. Stacks are merged in the order given; a stack that\n" +
			"conflicts is left out unless it is the --hero, whose side then wins.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stacks := make([]workspace.Stack, 0, len(args))
			for _, arg := range args {
				st, err := parseStackArg(arg)
				if err != nil {
					return err
				}
				stacks = append(stacks, st)
			}

			r, done, err := openLocked()
			if err != nil {
				return err
			}
			defer done()

			if checkout {
				changes, err := r.WorktreeChanges()
				if err != nil {
					return err
				}
				if len(changes) > 0 {
					return fmt.Errorf("workspace --checkout: %w (first: %s)", repo.ErrDirtyWorktree, changes[0].Path)
				}
			}

			outcome, err := workspace.Synthesize(r, stacks, hero)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range outcome.MissingStacks {
				fmt.Fprintf(out, "%s %s has no tip\n", warnColor.Sprint("missing:"), name)
			}
			for _, cs := range outcome.ConflictingStacks {
				fmt.Fprintf(out, "%s %s at %s conflicts, left out\n", conflictColor.Sprint("excluded:"), shortBranch(cs.RefName), hashColor.Sprint(cs.Tip.Short()))
			}
			if outcome.WorkspaceCommitID.IsNull() {
				fmt.Fprintln(out, "no stack to merge")
				return nil
			}
			for _, st := range outcome.Stacks {
				fmt.Fprintf(out, "  %s %s\n", hashColor.Sprint(st.Tip.Short()), st.Name)
			}

			edit := outcome.RefEdit
			if err := r.ApplyRefEdits([]repo.RefEdit{*edit}); err != nil && !errors.Is(err, repo.ErrRefUpdatedButReflogAppendFailed) {
				return err
			}
			fmt.Fprintf(out, "%s -> %s\n", shortBranch(edit.Name), hashColor.Sprint(outcome.WorkspaceCommitID.Short()))

			if checkout {
				if err := checkoutWorkspace(r, edit); err != nil {
					return err
				}
				fmt.Fprintf(out, "switched to %s\n", shortBranch(edit.Name))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&hero, "hero", "", "branch whose changes win conflicts")
	cmd.Flags().BoolVar(&checkout, "checkout", false, "check out the workspace ref afterwards")
	return cmd
}

// checkoutWorkspace moves a clean worktree onto the workspace commit. When
// HEAD already is the workspace ref the ref has moved underneath it, so
// only the worktree is rewritten.
func checkoutWorkspace(r *repo.Repo, edit *repo.RefEdit) error {
	head, err := r.HeadBranch()
	if err != nil || head != edit.Name {
		return r.Checkout(edit.Name)
	}
	from, err := r.CommitTree(edit.Old)
	if err != nil {
		return err
	}
	to, err := r.CommitTree(edit.New)
	if err != nil {
		return err
	}
	touched, err := r.CheckoutTree(from, to)
	if err != nil {
		return err
	}
	return r.SyncStaging(to, touched)
}

// parseStackArg parses "name=branch,branch" or a bare branch name.
func parseStackArg(arg string) (workspace.Stack, error) {
	name, refs, hasName := strings.Cut(arg, "=")
	if !hasName {
		refs = arg
		name = shortBranch(arg)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return workspace.Stack{}, fmt.Errorf("stack %q: empty name", arg)
	}
	st := workspace.Stack{Name: name}
	for _, ref := range strings.Split(refs, ",") {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			return workspace.Stack{}, fmt.Errorf("stack %q: empty branch", arg)
		}
		st.Segments = append(st.Segments, workspace.Segment{RefName: normalizeBranch(ref)})
	}
	return st, nil
}

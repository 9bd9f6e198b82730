package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/odvcencio/lanes/pkg/repo"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show worktree changes against HEAD",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, done, err := openLocked()
			if err != nil {
				return err
			}
			defer done()

			out := cmd.OutOrStdout()
			head, err := r.HeadCommit()
			if err != nil {
				return err
			}
			if head.IsNull() {
				fmt.Fprintf(out, "on %s (no commits yet)\n", headLabel(r))
			} else {
				fmt.Fprintf(out, "on %s at %s\n", headLabel(r), hashColor.Sprint(head.Short()))
			}

			stg, err := r.ReadStaging()
			if err != nil {
				return err
			}
			var conflicts []string
			for p, e := range stg.Entries {
				if e.Conflict {
					conflicts = append(conflicts, p)
				}
			}
			sort.Strings(conflicts)
			if len(conflicts) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "conflicts:")
				for _, p := range conflicts {
					fmt.Fprintf(out, "  %s %s\n", conflictColor.Sprint("!"), p)
				}
			}

			changes, err := r.WorktreeChanges()
			if err != nil {
				return err
			}
			if len(changes) == 0 {
				if len(conflicts) == 0 {
					fmt.Fprintln(out, "nothing to commit, worktree clean")
				}
				return nil
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "changes:")
			for _, c := range changes {
				fmt.Fprintf(out, "  %s\n", formatChange(c))
			}
			return nil
		},
	}
}

// formatChange renders one worktree change as "<marker> <path>".
func formatChange(c repo.WorktreeChange) string {
	switch {
	case c.IsRename():
		return modifiedColor.Sprint("R") + " " + c.PreviousPath + " -> " + c.Path
	case c.Before == nil:
		return addedColor.Sprint("+") + " " + c.Path
	case c.After == nil:
		return removedColor.Sprint("-") + " " + c.Path
	case c.Before.Kind != c.After.Kind:
		return modifiedColor.Sprint("T") + " " + c.Path
	default:
		return modifiedColor.Sprint("~") + " " + c.Path
	}
}

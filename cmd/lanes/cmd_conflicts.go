package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odvcencio/lanes/pkg/conflict"
)

func newConflictsCmd() *cobra.Command {
	var restore bool

	cmd := &cobra.Command{
		Use:   "conflicts [commit]",
		Short: "Show the recorded conflicts of a commit",
		Long: "Show the recorded conflicts of a commit, HEAD by default.\n\n" +
			"With --restore the conflicting paths are staged with their base, ours\n" +
			"and theirs versions so status lists them until they are committed.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, done, err := openLocked()
			if err != nil {
				return err
			}
			defer done()

			rev := "HEAD"
			if len(args) == 1 {
				rev = args[0]
			}
			h, err := resolveCommit(r, rev)
			if err != nil {
				return err
			}
			if h.IsNull() {
				return fmt.Errorf("%s has no commits", headLabel(r))
			}

			c, ok, err := conflict.DecodeCommit(r, h)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintf(out, "%s has no conflicts\n", hashColor.Sprint(h.Short()))
				return nil
			}
			printConflicted(out, c)

			if restore {
				paths, err := conflict.RestoreIndex(r, h)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "staged %d conflicting path(s)\n", len(paths))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&restore, "restore", false, "stage the conflicting paths in the index")
	return cmd
}

func printConflicted(w io.Writer, c *conflict.Conflicted) {
	fmt.Fprintf(w, "base   %s\n", hashColor.Sprint(c.Base.Short()))
	fmt.Fprintf(w, "ours   %s\n", hashColor.Sprint(c.Ours.Short()))
	fmt.Fprintf(w, "theirs %s\n", hashColor.Sprint(c.Theirs.Short()))
	fmt.Fprintln(w)

	inBase := setOf(c.Files.AncestorEntries)
	inOurs := setOf(c.Files.OurEntries)
	inTheirs := setOf(c.Files.TheirEntries)
	for _, p := range c.Files.Paths() {
		var how string
		switch {
		case !inOurs[p]:
			how = "deleted by ours"
		case !inTheirs[p]:
			how = "deleted by theirs"
		case !inBase[p]:
			how = "added by both"
		default:
			how = "modified by both"
		}
		fmt.Fprintf(w, "  %s %s (%s)\n", conflictColor.Sprint("!"), p, how)
	}
}

func setOf(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

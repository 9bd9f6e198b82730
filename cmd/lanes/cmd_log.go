package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/lanes/pkg/conflict"
	"github.com/odvcencio/lanes/pkg/object"
)

func newLogCmd() *cobra.Command {
	var (
		oneline bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "log [revision]",
		Short: "Show first-parent commit history",
		Args:  cobra.MaximumNArgs(1),
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
			start, err := resolveCommit(r, rev)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if start.IsNull() {
				fmt.Fprintln(out, "no commits yet")
				return nil
			}
			headHash, err := r.HeadCommit()
			if err != nil {
				return err
			}
			branchName := ""
			if b, err := r.HeadBranch(); err == nil {
				branchName = shortBranch(b)
			}

			entries, err := r.Log(start, limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				var marks []string
				if d := buildDecoration(e.Hash, headHash, branchName); d != "" {
					marks = append(marks, d)
				}
				if _, conflicted, err := conflict.Decode(r.Store, e.Commit.TreeHash); err != nil {
					return err
				} else if conflicted {
					marks = append(marks, conflictColor.Sprint("(conflicted)"))
				}
				if len(e.Commit.Parents) > 1 {
					marks = append(marks, fmt.Sprintf("(merge of %d)", len(e.Commit.Parents)))
				}
				suffix := ""
				if len(marks) > 0 {
					suffix = " " + strings.Join(marks, " ")
				}

				if oneline {
					fmt.Fprintf(out, "%s%s %s\n", hashColor.Sprint(e.Hash.Short()), suffix, e.Commit.Title())
					continue
				}
				fmt.Fprintf(out, "%s%s\n", hashColor.Sprint("commit "+string(e.Hash)), suffix)
				fmt.Fprintf(out, "Author: %s\n", e.Commit.Author)
				fmt.Fprintf(out, "Date:   %s\n", time.Unix(e.Commit.Timestamp, 0).Format("2006-01-02 15:04:05"))
				fmt.Fprintln(out)
				for _, line := range strings.Split(strings.TrimRight(e.Commit.Message, "\n"), "\n") {
					fmt.Fprintf(out, "    %s\n", line)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "compact one-line format")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of commits to show")
	return cmd
}

// buildDecoration returns "(HEAD -> main)" for the HEAD commit, "(HEAD)"
// when detached, and "" for every other commit.
func buildDecoration(commitHash, headHash object.Hash, branchName string) string {
	if commitHash != headHash {
		return ""
	}
	if branchName != "" {
		return "(HEAD -> " + branchName + ")"
	}
	return "(HEAD)"
}

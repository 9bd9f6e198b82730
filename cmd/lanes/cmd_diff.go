package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/lanes/pkg/diff"
	"github.com/odvcencio/lanes/pkg/object"
	"github.com/odvcencio/lanes/pkg/repo"
)

func newDiffCmd() *cobra.Command {
	var contextLines int

	cmd := &cobra.Command{
		Use:   "diff [path...]",
		Short: "Show worktree changes against HEAD as unified diffs",
		Long: "Show worktree changes against HEAD as unified diffs.\n\n" +
			"The hunk headers printed here are the ones commit --hunk accepts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, done, err := openLocked()
			if err != nil {
				return err
			}
			defer done()

			if !cmd.Flags().Changed("context") {
				contextLines = r.ContextLines()
			}
			changes, err := r.WorktreeChanges()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range changes {
				if !matchesAny(c, args) {
					continue
				}
				if err := printChangeDiff(out, r, c, contextLines); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&contextLines, "context", "U", 3, "lines of context around each hunk (default from config)")
	return cmd
}

func matchesAny(c repo.WorktreeChange, paths []string) bool {
	if len(paths) == 0 {
		return true
	}
	for _, p := range paths {
		p = strings.TrimSuffix(p, "/")
		for _, cp := range []string{c.Path, c.PreviousPath} {
			if cp != "" && (cp == p || strings.HasPrefix(cp, p+"/")) {
				return true
			}
		}
	}
	return false
}

func printChangeDiff(w io.Writer, r *repo.Repo, c repo.WorktreeChange, contextLines int) error {
	if c.IsRename() {
		fmt.Fprintln(w, headerColor.Sprintf("rename %s -> %s", c.PreviousPath, c.Path))
		return nil
	}
	if (c.Before != nil && c.Before.Kind == object.KindCommit) || (c.After != nil && c.After.Kind == object.KindCommit) {
		fmt.Fprintln(w, headerColor.Sprintf("submodule %s", c.Path))
		return nil
	}
	if c.After != nil && c.After.Kind == object.KindTree {
		fmt.Fprintln(w, headerColor.Sprintf("%s is no longer a regular file", c.Path))
		return nil
	}

	oldPath, newPath := c.Path, c.Path
	if c.Before == nil {
		oldPath = ""
	}
	if c.After == nil {
		newPath = ""
	}
	if binary, err := isBinaryChange(r, c); err != nil {
		return err
	} else if binary {
		fmt.Fprintln(w, headerColor.Sprintf("binary file %s differs", c.Path))
		return nil
	}

	hunks, err := r.UnifiedDiff(c.Path, contextLines)
	if err != nil {
		return err
	}
	writeColoredDiff(w, diff.Format(oldPath, newPath, hunks))
	return nil
}

func isBinaryChange(r *repo.Repo, c repo.WorktreeChange) (bool, error) {
	if c.Before != nil && !c.Before.ID.IsNull() && c.Before.Kind != object.KindTree {
		data, err := r.ReadBlobData(c.Before.ID)
		if err != nil {
			return false, err
		}
		if diff.IsBinary(data) {
			return true, nil
		}
	}
	if c.After != nil {
		data, _, exists, err := r.WorktreeEntry(c.Path)
		if err != nil {
			return false, err
		}
		if exists && diff.IsBinary(data) {
			return true, nil
		}
	}
	return false, nil
}

func writeColoredDiff(w io.Writer, text string) {
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "@@"):
			io.WriteString(w, headerColor.Sprint(line))
		case strings.HasPrefix(line, "+"):
			io.WriteString(w, addedColor.Sprint(line))
		case strings.HasPrefix(line, "-"):
			io.WriteString(w, removedColor.Sprint(line))
		default:
			io.WriteString(w, line)
		}
	}
}

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/lanes/pkg/apply"
	"github.com/odvcencio/lanes/pkg/commit"
	"github.com/odvcencio/lanes/pkg/diff"
	"github.com/odvcencio/lanes/pkg/repo"
)

func newCommitCmd() *cobra.Command {
	var (
		message string
		paths   []string
		hunks   []string
		amend   string
		parent  string
		noRef   bool
	)

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit selected worktree changes",
		Long: "Commit selected worktree changes onto HEAD, another parent, or by amending a commit.\n\n" +
			"Without --path or --hunk every changed path is committed whole. --hunk takes\n" +
			"path:-a,b+c,d with a header printed by lanes diff and may be repeated.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" && amend == "" {
				return fmt.Errorf("commit message is required (-m)")
			}
			if amend != "" && parent != "" {
				return fmt.Errorf("--amend and --parent cannot be combined")
			}

			r, done, err := openLocked()
			if err != nil {
				return err
			}
			defer done()

			changes, err := r.WorktreeChanges()
			if err != nil {
				return err
			}
			specs, err := buildSpecs(changes, paths, hunks)
			if err != nil {
				return err
			}

			var dest commit.Destination
			switch {
			case amend != "":
				h, err := resolveCommit(r, amend)
				if err != nil {
					return err
				}
				if h.IsNull() {
					return fmt.Errorf("nothing to amend: %s has no commits", headLabel(r))
				}
				dest = commit.AmendCommit{Commit: h}
			case parent != "":
				h, err := resolveCommit(r, parent)
				if err != nil {
					return err
				}
				dest = commit.NewCommit{Parent: h}
			default:
				h, err := r.HeadCommit()
				if err != nil {
					return err
				}
				dest = commit.NewCommit{Parent: h}
			}

			policy := commit.MoveHeadRef
			if noRef {
				policy = commit.KeepRefs
			}
			outcome, err := commit.CreateCommit(r, dest, specs, message, policy)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outcome.NewCommit.IsNull() {
				fmt.Fprintln(out, "nothing committed")
				printRejections(out, outcome.RejectedSpecs)
				return nil
			}
			label := "detached"
			if outcome.RefEdit != nil {
				label = shortBranch(outcome.RefEdit.Name)
			}
			c, err := r.Store.ReadCommit(outcome.NewCommit)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "[%s %s] %s\n", label, hashColor.Sprint(outcome.NewCommit.Short()), c.Title())
			printRejections(out, outcome.RejectedSpecs)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringArrayVar(&paths, "path", nil, "commit the whole change of this path (repeatable)")
	cmd.Flags().StringArrayVar(&hunks, "hunk", nil, "commit one hunk, as path:-a,b+c,d (repeatable)")
	cmd.Flags().StringVar(&amend, "amend", "", "amend this commit instead of creating one")
	cmd.Flags().Lookup("amend").NoOptDefVal = "HEAD"
	cmd.Flags().StringVar(&parent, "parent", "", "create the commit on this parent instead of HEAD")
	cmd.Flags().BoolVar(&noRef, "no-ref", false, "do not move HEAD's branch")

	return cmd
}

// buildSpecs turns --path and --hunk arguments into diff specs. Renamed
// paths pick up their previous path from changes. With neither flag every
// change is selected whole.
func buildSpecs(changes []repo.WorktreeChange, paths, hunks []string) ([]apply.DiffSpec, error) {
	previous := make(map[string]string, len(changes))
	for _, c := range changes {
		previous[c.Path] = c.PreviousPath
	}

	if len(paths) == 0 && len(hunks) == 0 {
		specs := make([]apply.DiffSpec, 0, len(changes))
		for _, c := range changes {
			specs = append(specs, apply.DiffSpec{PreviousPath: c.PreviousPath, Path: c.Path})
		}
		return specs, nil
	}

	byPath := make(map[string]*apply.DiffSpec)
	spec := func(p string) *apply.DiffSpec {
		s, ok := byPath[p]
		if !ok {
			s = &apply.DiffSpec{PreviousPath: previous[p], Path: p}
			byPath[p] = s
		}
		return s
	}
	whole := make(map[string]bool)
	for _, p := range paths {
		p = cleanPath(p)
		if p == "" {
			return nil, fmt.Errorf("--path: empty path")
		}
		spec(p)
		whole[p] = true
	}
	for _, arg := range hunks {
		p, h, err := parseHunkArg(arg)
		if err != nil {
			return nil, err
		}
		if whole[p] {
			return nil, fmt.Errorf("--hunk %s: path is also committed whole with --path", arg)
		}
		s := spec(p)
		s.HunkHeaders = append(s.HunkHeaders, h)
	}

	keys := make([]string, 0, len(byPath))
	for p := range byPath {
		keys = append(keys, p)
	}
	sort.Strings(keys)
	specs := make([]apply.DiffSpec, 0, len(keys))
	for _, p := range keys {
		specs = append(specs, *byPath[p])
	}
	return specs, nil
}

// parseHunkArg splits "path:-a,b+c,d". The header may also be given in
// the "@@ -a,b +c,d @@" form.
func parseHunkArg(arg string) (string, diff.HunkHeader, error) {
	i := strings.LastIndex(arg, ":")
	if i <= 0 {
		return "", diff.HunkHeader{}, fmt.Errorf("--hunk %q: want path:-a,b+c,d", arg)
	}
	p, header := cleanPath(arg[:i]), strings.TrimSpace(arg[i+1:])
	if !strings.HasPrefix(header, "@@") && !strings.Contains(header, " ") {
		header = strings.Replace(header, "+", " +", 1)
	}
	h, err := diff.ParseHunkHeader(header)
	if err != nil {
		return "", diff.HunkHeader{}, fmt.Errorf("--hunk %q: %w", arg, err)
	}
	return p, h, nil
}

func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimPrefix(p, "./")
	return strings.TrimSuffix(p, "/")
}

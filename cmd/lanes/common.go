package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/odvcencio/lanes/pkg/apply"
	"github.com/odvcencio/lanes/pkg/object"
	"github.com/odvcencio/lanes/pkg/repo"
)

var (
	addedColor    = color.New(color.FgGreen)
	removedColor  = color.New(color.FgRed)
	modifiedColor = color.New(color.FgYellow)
	headerColor   = color.New(color.FgCyan)
	hashColor     = color.New(color.FgYellow)
	warnColor     = color.New(color.FgYellow, color.Bold)
	conflictColor = color.New(color.FgRed, color.Bold)
)

// openLocked opens the repository and takes the worktree lock. The
// returned func releases the lock and closes the repository.
func openLocked() (*repo.Repo, func(), error) {
	r, err := repo.Open(repoDir)
	if err != nil {
		return nil, nil, err
	}
	unlock, err := r.LockWorktree()
	if err != nil {
		_ = r.Close()
		return nil, nil, err
	}
	return r, func() {
		unlock()
		_ = r.Close()
	}, nil
}

// resolveCommit resolves a branch name, ref or commit id. HEAD on an
// unborn branch resolves to the null id.
func resolveCommit(r *repo.Repo, rev string) (object.Hash, error) {
	if rev == "HEAD" {
		return r.HeadCommit()
	}
	h, err := r.ResolveRef(rev)
	if err != nil {
		return "", fmt.Errorf("unknown revision %q: %w", rev, err)
	}
	return h, nil
}

func shortBranch(ref string) string {
	return strings.TrimPrefix(ref, "refs/heads/")
}

// headLabel names what HEAD points at for commit summaries.
func headLabel(r *repo.Repo) string {
	branch, err := r.HeadBranch()
	if err != nil {
		return "detached HEAD"
	}
	return shortBranch(branch)
}

func printRejections(w io.Writer, rejected []apply.RejectedSpec) {
	if len(rejected) == 0 {
		return
	}
	fmt.Fprintln(w, warnColor.Sprint("not committed:"))
	for _, rej := range rejected {
		fmt.Fprintf(w, "  %s (%s)\n", rej.Spec, rej.Reason)
	}
}

// nonNull drops null ids.
func nonNull(hs []object.Hash) []object.Hash {
	var out []object.Hash
	for _, h := range hs {
		if !h.IsNull() {
			out = append(out, h)
		}
	}
	return out
}

func normalizeBranch(name string) string {
	if strings.HasPrefix(name, "refs/") {
		return name
	}
	return "refs/heads/" + name
}

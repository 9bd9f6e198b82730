package repo

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/odvcencio/lanes/pkg/object"
)

// now is swapped by tests that need stable commit ids.
var now = time.Now

// NewCommitObj returns an unsigned commit authored and committed by the
// configured identity at the current time.
func (r *Repo) NewCommitObj(tree object.Hash, parents []object.Hash, message string) *object.CommitObj {
	t := now()
	tz := t.Format("-0700")
	who := r.Config.Identity()
	return &object.CommitObj{
		TreeHash:           tree,
		Parents:            append([]object.Hash(nil), parents...),
		Author:             who,
		Timestamp:          t.Unix(),
		AuthorTimezone:     tz,
		Committer:          who,
		CommitterTimestamp: t.Unix(),
		CommitterTimezone:  tz,
		Message:            message,
	}
}

// Recommit returns a copy of c with new tree and parents. Authorship and
// message are kept; the committer is the configured identity at the
// current time and any old signature is dropped.
func (r *Repo) Recommit(c *object.CommitObj, tree object.Hash, parents []object.Hash) *object.CommitObj {
	out := *c
	t := now()
	out.TreeHash = tree
	out.Parents = append([]object.Hash(nil), parents...)
	out.Committer = r.Config.Identity()
	out.CommitterTimestamp = t.Unix()
	out.CommitterTimezone = t.Format("-0700")
	out.Signature = ""
	return &out
}

// WriteCommit signs c when signer is non-nil and stores it.
func (r *Repo) WriteCommit(c *object.CommitObj, signer CommitSigner) (object.Hash, error) {
	if signer != nil {
		signature, err := signer(object.CommitSigningPayload(c))
		if err != nil {
			return "", fmt.Errorf("commit: sign commit: %w", err)
		}
		c.Signature = signature
	}
	h, err := r.Store.WriteCommit(c)
	if err != nil {
		return "", fmt.Errorf("commit: write commit: %w", err)
	}
	r.Logger.Debug("commit written", "commit", h.Short(), "tree", c.TreeHash.Short(), "parents", len(c.Parents))
	return h, nil
}

// Log walks the commit history starting from the given hash, following
// first-parent links, returning up to limit commits in reverse-chronological
// order (newest first).
func (r *Repo) Log(start object.Hash, limit int) ([]LogEntry, error) {
	var entries []LogEntry
	current := start

	for !current.IsNull() && len(entries) < limit {
		c, err := r.Store.ReadCommit(current)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				break
			}
			return nil, fmt.Errorf("log: read commit %s: %w", current, err)
		}
		entries = append(entries, LogEntry{Hash: current, Commit: c})

		if len(c.Parents) == 0 {
			break
		}
		current = c.Parents[0]
	}

	return entries, nil
}

// LogEntry pairs a commit with its id.
type LogEntry struct {
	Hash   object.Hash
	Commit *object.CommitObj
}

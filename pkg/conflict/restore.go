package conflict

import (
	"fmt"

	"github.com/odvcencio/lanes/pkg/object"
	"github.com/odvcencio/lanes/pkg/repo"
)

// FilesFor records, for each conflicting path, which of the base, ours and
// theirs trees contain it.
func FilesFor(r *repo.Repo, base, ours, theirs object.Hash, paths []string) (Files, error) {
	var f Files
	for _, p := range paths {
		for _, side := range []struct {
			tree object.Hash
			list *[]string
		}{
			{base, &f.AncestorEntries},
			{ours, &f.OurEntries},
			{theirs, &f.TheirEntries},
		} {
			_, found, err := r.TreeEntryAtPath(side.tree, p)
			if err != nil {
				return Files{}, fmt.Errorf("conflict files: %s: %w", p, err)
			}
			if found {
				*side.list = append(*side.list, p)
			}
		}
	}
	f.AncestorEntries = sortedOrNil(f.AncestorEntries)
	f.OurEntries = sortedOrNil(f.OurEntries)
	f.TheirEntries = sortedOrNil(f.TheirEntries)
	return f, nil
}

// DecodeCommit decodes the tree of commit h.
func DecodeCommit(r *repo.Repo, h object.Hash) (*Conflicted, bool, error) {
	tree, err := r.CommitTree(h)
	if err != nil {
		return nil, false, err
	}
	return Decode(r.Store, tree)
}

// RestoreIndex stages the conflict of commit h: every conflicting path gets
// an index entry carrying its base, ours and theirs blob ids, with the
// auto-resolved blob as the current content. It returns the restored paths,
// or nil when h is not conflicted.
func RestoreIndex(r *repo.Repo, h object.Hash) ([]string, error) {
	c, ok, err := DecodeCommit(r, h)
	if err != nil {
		return nil, fmt.Errorf("restore conflict: %w", err)
	}
	if !ok {
		return nil, nil
	}

	type staged struct {
		path  string
		entry *repo.StagingEntry
	}
	var entries []staged
	for _, p := range c.Files.Paths() {
		se := &repo.StagingEntry{Path: p, Conflict: true}
		for _, side := range []struct {
			tree object.Hash
			blob *object.Hash
		}{
			{c.Base, &se.BaseBlobHash},
			{c.Ours, &se.OursBlobHash},
			{c.Theirs, &se.TheirsBlobHash},
			{c.AutoResolution, &se.BlobHash},
		} {
			e, found, err := r.TreeEntryAtPath(side.tree, p)
			if err != nil {
				return nil, fmt.Errorf("restore conflict: %s: %w", p, err)
			}
			if found && !e.IsDir() {
				*side.blob = e.Hash
				if side.blob == &se.BlobHash {
					se.Mode = e.Mode
				}
			}
		}
		entries = append(entries, staged{path: p, entry: se})
	}

	err = r.UpdateStaging(func(stg *repo.Staging) error {
		for _, s := range entries {
			stg.Entries[s.path] = s.entry
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("restore conflict: %w", err)
	}

	paths := make([]string, len(entries))
	for i, s := range entries {
		paths[i] = s.path
	}
	r.Logger.Info("conflict restored to index", "commit", h.Short(), "paths", len(paths))
	return paths, nil
}

package apply

import (
	"fmt"
	"strings"

	"github.com/odvcencio/lanes/pkg/diff"
	"github.com/odvcencio/lanes/pkg/object"
	"github.com/odvcencio/lanes/pkg/repo"
)

// Apply builds a tree from base with every spec taken from the worktree.
//
// changes is the worktree change list the specs were selected from (see
// repo.WorktreeChanges); a spec without a matching change is rejected. A
// path missing from the worktree is deleted. Whole-file specs store the
// file as found, honouring executable and symlink modes and removing
// PreviousPath for renames. Hunk specs must name hunks of the current
// unified diff of the path against base exactly; the selected hunks are
// spliced into the base content in order.
//
// The returned tree is null when the result equals base. Specs are
// reported in input order; rejected specs leave the tree untouched.
func Apply(r *repo.Repo, base object.Hash, specs []DiffSpec, changes []repo.WorktreeChange) (object.Hash, []Result, error) {
	if base.IsNull() {
		base = object.EmptyTreeHash
	}
	entries, err := r.FlattenTreeMap(base)
	if err != nil {
		return "", nil, fmt.Errorf("apply: %w", err)
	}
	ed := &treeEditor{entries: entries}

	results := make([]Result, 0, len(specs))
	for _, spec := range specs {
		reason, err := applySpec(r, base, ed, spec, changes)
		if err != nil {
			return "", nil, fmt.Errorf("apply %s: %w", spec.Path, err)
		}
		if reason != 0 {
			r.Logger.Debug("spec rejected", "spec", spec.String(), "reason", reason.String())
		}
		results = append(results, Result{Spec: spec, Reason: reason})
	}

	tree, err := r.BuildTree(ed.entries)
	if err != nil {
		return "", nil, fmt.Errorf("apply: %w", err)
	}
	if tree == base {
		return "", results, nil
	}
	return tree, results, nil
}

func findChange(changes []repo.WorktreeChange, spec DiffSpec) (repo.WorktreeChange, bool) {
	for _, c := range changes {
		if c.Path == spec.Path && c.PreviousPath == spec.PreviousPath {
			return c, true
		}
	}
	return repo.WorktreeChange{}, false
}

func applySpec(r *repo.Repo, base object.Hash, ed *treeEditor, spec DiffSpec, changes []repo.WorktreeChange) (RejectionReason, error) {
	change, ok := findChange(changes, spec)
	if !ok {
		return NoEffectiveChanges, nil
	}
	for _, h := range spec.HunkHeaders {
		if !h.Valid() {
			return InvalidHunkHeader, nil
		}
	}

	data, mode, exists, err := r.WorktreeEntry(spec.Path)
	if err != nil {
		return 0, err
	}
	if !exists {
		ed.remove(spec.PreviousPath)
		ed.remove(spec.Path)
		return 0, nil
	}

	if change.After != nil && change.After.Kind == object.KindCommit {
		if len(spec.HunkHeaders) > 0 {
			return UnsupportedFileType, nil
		}
		if change.After.ID.IsNull() {
			return 0, fmt.Errorf("submodule %s: %w", spec.Path, ErrNullObjectID)
		}
		ed.remove(spec.PreviousPath)
		ed.upsert(spec.Path, object.TreeModeCommit, change.After.ID)
		return 0, nil
	}
	if mode == "" || mode == object.TreeModeDir {
		return UnsupportedFileType, nil
	}

	if len(spec.HunkHeaders) == 0 {
		h, err := r.Store.WriteBlob(&object.Blob{Data: data})
		if err != nil {
			return 0, err
		}
		ed.remove(spec.PreviousPath)
		ed.upsert(spec.Path, mode, h)
		return 0, nil
	}

	if mode == object.TreeModeSymlink {
		return UnsupportedFileType, nil
	}
	var old []byte
	if change.Before != nil {
		if change.Before.ID.IsNull() {
			return 0, fmt.Errorf("%s: %w", spec.Path, ErrNullObjectID)
		}
		oldPath := spec.Path
		if spec.PreviousPath != "" {
			oldPath = spec.PreviousPath
		}
		e, found, err := r.TreeEntryAtPath(base, oldPath)
		if err != nil {
			return 0, err
		}
		if !found || e.IsDir() {
			return PathNotFoundInBaseTree, nil
		}
		if k := e.Kind(); k != object.KindBlob && k != object.KindBlobExecutable {
			return UnsupportedFileType, nil
		}
		if old, err = r.ReadBlobData(e.Hash); err != nil {
			return 0, err
		}
	}
	if diff.IsBinary(old) || diff.IsBinary(data) {
		return UnsupportedFileType, nil
	}

	hunks, ok := selectHunks(old, data, spec.HunkHeaders, r.ContextLines())
	if !ok {
		return HunkMismatch, nil
	}
	content, ok := splice(old, hunks)
	if !ok {
		return HunkMismatch, nil
	}
	h, err := r.Store.WriteBlob(&object.Blob{Data: content})
	if err != nil {
		return 0, err
	}
	ed.remove(spec.PreviousPath)
	ed.upsert(spec.Path, mode, h)
	return 0, nil
}

// treeEditor edits a flattened tree. A path is never both a file and a
// directory: writing a file drops whatever was under or above it.
type treeEditor struct {
	entries map[string]repo.TreeFileEntry
}

func (e *treeEditor) remove(path string) {
	if path == "" {
		return
	}
	delete(e.entries, path)
	prefix := path + "/"
	for p := range e.entries {
		if strings.HasPrefix(p, prefix) {
			delete(e.entries, p)
		}
	}
}

func (e *treeEditor) upsert(path, mode string, h object.Hash) {
	e.remove(path)
	for dir := path; ; {
		i := strings.LastIndexByte(dir, '/')
		if i < 0 {
			break
		}
		dir = dir[:i]
		delete(e.entries, dir)
	}
	e.entries[path] = repo.TreeFileEntry{Path: path, Mode: mode, Hash: h}
}

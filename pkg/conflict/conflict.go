// Package conflict stores unresolved merges as ordinary trees.
//
// A conflicted tree keeps the merge inputs under reserved top-level names
// next to the entries of the best-effort merge result:
//
//	.auto-resolution      tree  merged result, also spread over the top level
//	.conflict-base-0      tree  merge base
//	.conflict-side-0      tree  ours
//	.conflict-side-1      tree  theirs
//	.conflict-files       blob  TOML record of the conflicting paths per side
//	CONFLICT-README.txt   blob  fixed explanation for people browsing the tree
//
// The layout is a durable format: equal inputs always produce equal tree
// ids, and Encode(Decode(t)) reproduces t.
package conflict

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/odvcencio/lanes/pkg/object"
)

// Reserved top-level names of a conflicted tree.
const (
	BaseName           = ".conflict-base-0"
	OursName           = ".conflict-side-0"
	TheirsName         = ".conflict-side-1"
	AutoResolutionName = ".auto-resolution"
	FilesName          = ".conflict-files"
	ReadmeName         = "CONFLICT-README.txt"
)

// ReservedNames lists the reserved entries in tree order.
var ReservedNames = []string{AutoResolutionName, BaseName, FilesName, OursName, TheirsName, ReadmeName}

// Readme is the content of CONFLICT-README.txt.
const Readme = `You have checked out a conflicted lanes commit.

This commit records a merge that could not be resolved automatically.
The files at the top level are the automatic resolution; where both sides
changed the same lines, ours was kept.

The merge inputs are stored next to them:

  .conflict-base-0   the merge base
  .conflict-side-0   ours (the new parents)
  .conflict-side-1   theirs (the picked changes)
  .auto-resolution   the result shown at the top level

.conflict-files lists the paths that conflicted.

Cherry-pick this commit again once the conflict is resolved, or run
"lanes conflicts --restore" to stage the three versions of every
conflicting path.
`

// ErrReservedName is returned by Encode when the auto-resolution tree
// already uses a reserved top-level name.
var ErrReservedName = errors.New("auto-resolution uses a reserved conflict name")

// Files records which conflicting paths exist on each side of the merge.
// Lists are sorted; a path appears in every list of a side it exists on.
type Files struct {
	AncestorEntries []string `toml:"ancestorEntries,omitempty"`
	OurEntries      []string `toml:"ourEntries,omitempty"`
	TheirEntries    []string `toml:"theirEntries,omitempty"`
}

// Paths returns the sorted union of all recorded paths.
func (f Files) Paths() []string {
	seen := make(map[string]struct{})
	for _, list := range [][]string{f.AncestorEntries, f.OurEntries, f.TheirEntries} {
		for _, p := range list {
			seen[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (f Files) marshal() ([]byte, error) {
	norm := Files{
		AncestorEntries: sortedOrNil(f.AncestorEntries),
		OurEntries:      sortedOrNil(f.OurEntries),
		TheirEntries:    sortedOrNil(f.TheirEntries),
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(norm); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sortedOrNil(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

// Conflicted is the in-memory form of a conflicted tree.
type Conflicted struct {
	Base           object.Hash
	Ours           object.Hash
	Theirs         object.Hash
	AutoResolution object.Hash
	Files          Files
}

// Encode writes c as a conflicted tree and returns its id.
func Encode(s *object.Store, c *Conflicted) (object.Hash, error) {
	auto, err := s.ReadTree(c.AutoResolution)
	if err != nil {
		return "", fmt.Errorf("encode conflict: read auto-resolution: %w", err)
	}

	filesData, err := c.Files.marshal()
	if err != nil {
		return "", fmt.Errorf("encode conflict: marshal files: %w", err)
	}
	filesBlob, err := s.WriteBlob(&object.Blob{Data: filesData})
	if err != nil {
		return "", fmt.Errorf("encode conflict: %w", err)
	}
	readmeBlob, err := s.WriteBlob(&object.Blob{Data: []byte(Readme)})
	if err != nil {
		return "", fmt.Errorf("encode conflict: %w", err)
	}

	entries := []object.TreeEntry{
		{Name: AutoResolutionName, Mode: object.TreeModeDir, Hash: c.AutoResolution},
		{Name: BaseName, Mode: object.TreeModeDir, Hash: orEmpty(c.Base)},
		{Name: FilesName, Mode: object.TreeModeFile, Hash: filesBlob},
		{Name: OursName, Mode: object.TreeModeDir, Hash: orEmpty(c.Ours)},
		{Name: TheirsName, Mode: object.TreeModeDir, Hash: orEmpty(c.Theirs)},
		{Name: ReadmeName, Mode: object.TreeModeFile, Hash: readmeBlob},
	}
	for _, e := range auto.Entries {
		if isReserved(e.Name) {
			return "", fmt.Errorf("encode conflict: %w: %q", ErrReservedName, e.Name)
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	h, err := s.WriteTree(&object.TreeObj{Entries: entries})
	if err != nil {
		return "", fmt.Errorf("encode conflict: write tree: %w", err)
	}
	return h, nil
}

// Decode reads tree as a conflicted tree. The bool is false, with a nil
// error, when tree lacks any of the reserved names and is an ordinary tree.
func Decode(s *object.Store, tree object.Hash) (*Conflicted, bool, error) {
	t, err := s.ReadTree(tree)
	if err != nil {
		return nil, false, fmt.Errorf("decode conflict: read tree %s: %w", tree, err)
	}
	if !IsConflictedTree(t) {
		return nil, false, nil
	}

	c := &Conflicted{}
	for _, e := range t.Entries {
		switch e.Name {
		case BaseName:
			c.Base = e.Hash
		case OursName:
			c.Ours = e.Hash
		case TheirsName:
			c.Theirs = e.Hash
		case AutoResolutionName:
			c.AutoResolution = e.Hash
		case FilesName:
			b, err := s.ReadBlob(e.Hash)
			if err != nil {
				return nil, false, fmt.Errorf("decode conflict: read %s: %w", FilesName, err)
			}
			if _, err := toml.Decode(string(b.Data), &c.Files); err != nil {
				return nil, false, fmt.Errorf("decode conflict: parse %s: %w", FilesName, err)
			}
		}
	}
	return c, true, nil
}

// IsConflictedTree reports whether t carries every reserved name with the
// expected entry type.
func IsConflictedTree(t *object.TreeObj) bool {
	for _, name := range ReservedNames {
		e, ok := t.Entry(name)
		if !ok {
			return false
		}
		wantDir := name != FilesName && name != ReadmeName
		if e.IsDir() != wantDir {
			return false
		}
	}
	return true
}

func isReserved(name string) bool {
	for _, r := range ReservedNames {
		if name == r {
			return true
		}
	}
	return false
}

func orEmpty(h object.Hash) object.Hash {
	if h.IsNull() {
		return object.EmptyTreeHash
	}
	return h
}

package repo

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/lanes/pkg/diff"
	"github.com/odvcencio/lanes/pkg/diff3"
	"github.com/odvcencio/lanes/pkg/object"
)

// MergeOptions controls how MergeTrees settles conflicting paths.
type MergeOptions struct {
	// Favor picks the side that wins conflicts. FavorNone writes conflict
	// markers into text files and keeps ours for everything else.
	Favor diff3.Favor
	// WholeFile makes a favoured side win the entire path instead of only
	// the conflicting hunks.
	WholeFile bool
}

// TreeMergeResult is the outcome of a three-way tree merge.
type TreeMergeResult struct {
	Tree      object.Hash
	Conflicts []string // sorted; non-empty means the merge did not resolve cleanly
}

// HasConflicts reports whether any path conflicted.
func (m *TreeMergeResult) HasConflicts() bool { return len(m.Conflicts) > 0 }

// MergeTrees performs a three-way merge of the ours and theirs trees against
// base and writes the resulting tree.
//
// Per path: identical sides, or a side that did not change from base, merge
// trivially. Regular text files changed on both sides are merged line by
// line; executable bits merge independently of content. Everything else
// changed on both sides (delete vs modify, symlinks, submodules, binaries,
// type changes, a file on one side where the other has a directory) is a
// conflict, settled according to opts.
func (r *Repo) MergeTrees(base, ours, theirs object.Hash, opts MergeOptions) (*TreeMergeResult, error) {
	baseMap, err := r.FlattenTreeMap(base)
	if err != nil {
		return nil, fmt.Errorf("merge trees: base: %w", err)
	}
	oursMap, err := r.FlattenTreeMap(ours)
	if err != nil {
		return nil, fmt.Errorf("merge trees: ours: %w", err)
	}
	theirsMap, err := r.FlattenTreeMap(theirs)
	if err != nil {
		return nil, fmt.Errorf("merge trees: theirs: %w", err)
	}

	m := &treeMerge{repo: r, opts: opts, merged: make(map[string]TreeFileEntry)}
	for _, path := range collectAllPaths(baseMap, oursMap, theirsMap) {
		b, inBase := baseMap[path]
		o, inOurs := oursMap[path]
		t, inTheirs := theirsMap[path]
		if err := m.mergePath(path, side{b, inBase}, side{o, inOurs}, side{t, inTheirs}); err != nil {
			return nil, fmt.Errorf("merge trees: %s: %w", path, err)
		}
	}
	m.resolveFileDirClashes(oursMap, theirsMap)

	tree, err := r.BuildTree(m.merged)
	if err != nil {
		return nil, fmt.Errorf("merge trees: %w", err)
	}
	conflicts := make([]string, 0, len(m.conflicts))
	for p := range m.conflicts {
		conflicts = append(conflicts, p)
	}
	sort.Strings(conflicts)
	if len(conflicts) > 0 {
		r.Logger.Debug("tree merge conflicted", "base", base.Short(), "ours", ours.Short(), "theirs", theirs.Short(), "paths", conflicts)
	}
	return &TreeMergeResult{Tree: tree, Conflicts: conflicts}, nil
}

type side struct {
	TreeFileEntry
	present bool
}

func (s side) same(other side) bool {
	if s.present != other.present {
		return false
	}
	return !s.present || (s.Hash == other.Hash && s.Mode == other.Mode)
}

func (s side) isRegular() bool {
	if !s.present {
		return false
	}
	k := s.Kind()
	return k == object.KindBlob || k == object.KindBlobExecutable
}

type treeMerge struct {
	repo      *Repo
	opts      MergeOptions
	merged    map[string]TreeFileEntry
	conflicts map[string]struct{}
}

func (m *treeMerge) take(path string, s side) {
	if !s.present {
		delete(m.merged, path)
		return
	}
	e := s.TreeFileEntry
	e.Path = path
	m.merged[path] = e
}

func (m *treeMerge) conflict(path string) {
	if m.conflicts == nil {
		m.conflicts = make(map[string]struct{})
	}
	m.conflicts[path] = struct{}{}
}

func (m *treeMerge) favoured(ours, theirs side) side {
	if m.opts.Favor == diff3.FavorTheirs {
		return theirs
	}
	return ours
}

func (m *treeMerge) mergePath(path string, base, ours, theirs side) error {
	switch {
	case ours.same(theirs), theirs.same(base):
		m.take(path, ours)
		return nil
	case ours.same(base):
		m.take(path, theirs)
		return nil
	}

	if ours.isRegular() && theirs.isRegular() {
		return m.mergeContent(path, base, ours, theirs)
	}

	m.conflict(path)
	if m.opts.Favor != diff3.FavorNone {
		m.take(path, m.favoured(ours, theirs))
		return nil
	}
	// Delete vs modify of a text file keeps the surviving content inside
	// markers so the loss is visible.
	if present, ok := soleRegularSide(ours, theirs); ok && base.present {
		data, err := m.repo.ReadBlobData(present.Hash)
		if err != nil {
			return err
		}
		if !diff.IsBinary(data) {
			var content []byte
			if ours.present {
				content = renderFileConflict(data, nil)
			} else {
				content = renderFileConflict(nil, data)
			}
			return m.writeBlob(path, content, present.Mode)
		}
	}
	if ours.present {
		m.take(path, ours)
	} else {
		m.take(path, theirs)
	}
	return nil
}

func soleRegularSide(ours, theirs side) (side, bool) {
	switch {
	case ours.isRegular() && !theirs.present:
		return ours, true
	case theirs.isRegular() && !ours.present:
		return theirs, true
	}
	return side{}, false
}

func (m *treeMerge) mergeContent(path string, base, ours, theirs side) error {
	mode, modeOK := mergeModes(base, ours, theirs)
	if !modeOK {
		mode = m.favoured(ours, theirs).Mode
	}

	oursData, err := m.repo.ReadBlobData(ours.Hash)
	if err != nil {
		return err
	}
	theirsData, err := m.repo.ReadBlobData(theirs.Hash)
	if err != nil {
		return err
	}
	var baseData []byte
	if base.isRegular() {
		if baseData, err = m.repo.ReadBlobData(base.Hash); err != nil {
			return err
		}
	}

	if ours.Hash == theirs.Hash {
		if !modeOK {
			m.conflict(path)
		}
		return m.writeBlob(path, oursData, mode)
	}
	if diff.IsBinary(oursData) || diff.IsBinary(theirsData) || diff.IsBinary(baseData) {
		m.conflict(path)
		if m.opts.Favor == diff3.FavorNone {
			m.take(path, ours)
		} else {
			m.take(path, m.favoured(ours, theirs))
		}
		return nil
	}

	res := diff3.Merge(baseData, oursData, theirsData)
	if !res.HasConflicts && modeOK {
		return m.writeBlob(path, res.Merged, mode)
	}

	m.conflict(path)
	switch {
	case m.opts.Favor == diff3.FavorNone:
		return m.writeBlob(path, res.Merged, mode)
	case m.opts.WholeFile:
		m.take(path, m.favoured(ours, theirs))
		return nil
	default:
		return m.writeBlob(path, res.Resolve(m.opts.Favor), mode)
	}
}

// mergeModes merges the executable bit like content: a side that kept the
// base mode yields to the other.
func mergeModes(base, ours, theirs side) (string, bool) {
	switch {
	case ours.Mode == theirs.Mode:
		return ours.Mode, true
	case base.present && base.Mode == ours.Mode:
		return theirs.Mode, true
	case base.present && base.Mode == theirs.Mode:
		return ours.Mode, true
	}
	return ours.Mode, false
}

func (m *treeMerge) writeBlob(path string, content []byte, mode string) error {
	h, err := m.repo.Store.WriteBlob(&object.Blob{Data: content})
	if err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	m.merged[path] = TreeFileEntry{Path: path, Mode: mode, Hash: h}
	return nil
}

// resolveFileDirClashes handles a file on one side at a path the other side
// uses as a directory. The path conflicts; the favoured side's shape wins,
// and the directory wins when the favoured side has neither.
func (m *treeMerge) resolveFileDirClashes(oursMap, theirsMap map[string]TreeFileEntry) {
	favouredMap := oursMap
	if m.opts.Favor == diff3.FavorTheirs {
		favouredMap = theirsMap
	}
	paths := make([]string, 0, len(m.merged))
	for p := range m.merged {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if _, ok := m.merged[p]; !ok {
			continue
		}
		prefix := p + "/"
		i := sort.SearchStrings(paths, prefix)
		var nested []string
		for ; i < len(paths) && strings.HasPrefix(paths[i], prefix); i++ {
			if _, ok := m.merged[paths[i]]; ok {
				nested = append(nested, paths[i])
			}
		}
		if len(nested) == 0 {
			continue
		}
		m.conflict(p)
		if _, fileWins := favouredMap[p]; fileWins {
			for _, n := range nested {
				delete(m.merged, n)
			}
			continue
		}
		delete(m.merged, p)
	}
}

func renderFileConflict(ours, theirs []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("<<<<<<< ours\n")
	buf.Write(ours)
	if len(ours) > 0 && ours[len(ours)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteString("=======\n")
	buf.Write(theirs)
	if len(theirs) > 0 && theirs[len(theirs)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteString(">>>>>>> theirs\n")
	return buf.Bytes()
}

// collectAllPaths returns the sorted union of the paths in the three maps.
func collectAllPaths(maps ...map[string]TreeFileEntry) []string {
	seen := make(map[string]struct{})
	for _, m := range maps {
		for p := range m {
			seen[p] = struct{}{}
		}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

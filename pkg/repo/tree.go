package repo

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/odvcencio/lanes/pkg/object"
)

// TreeFileEntry represents a single non-directory entry in a flattened tree.
type TreeFileEntry struct {
	Path string
	Mode string
	Hash object.Hash
}

// Kind returns the entry kind derived from its mode.
func (e TreeFileEntry) Kind() object.EntryKind { return object.KindFromMode(e.Mode) }

// BuildTree converts flat path-keyed entries into a hierarchical tree,
// writing TreeObj objects to the store and returning the root hash.
//
// Paths use forward slashes (e.g. "pkg/util/util.go"). BuildTree groups them
// by directory, recursively creates subtrees, and returns the root tree
// hash. An empty map yields the empty tree.
func (r *Repo) BuildTree(entries map[string]TreeFileEntry) (object.Hash, error) {
	for p := range entries {
		if p == "" || strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/") {
			return "", fmt.Errorf("build tree: invalid path %q", p)
		}
	}
	return r.buildTreeDir(entries, "")
}

// buildTreeDir builds a TreeObj for the given directory prefix and writes it
// to the store. It returns the tree's hash.
func (r *Repo) buildTreeDir(all map[string]TreeFileEntry, prefix string) (object.Hash, error) {
	files := make(map[string]TreeFileEntry)
	subdirs := make(map[string]struct{})

	for p, entry := range all {
		var rel string
		if prefix == "" {
			rel = p
		} else {
			if !strings.HasPrefix(p, prefix+"/") {
				continue
			}
			rel = p[len(prefix)+1:]
		}

		slash := strings.IndexByte(rel, '/')
		if slash < 0 {
			files[rel] = entry
		} else {
			subdirs[rel[:slash]] = struct{}{}
		}
	}

	names := make([]string, 0, len(files)+len(subdirs))
	for name := range files {
		names = append(names, name)
	}
	for name := range subdirs {
		if _, isFile := files[name]; isFile {
			childPrefix := name
			if prefix != "" {
				childPrefix = prefix + "/" + name
			}
			return "", fmt.Errorf("build tree: %q is both a file and a directory", childPrefix)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]object.TreeEntry, 0, len(names))
	for _, name := range names {
		if entry, isFile := files[name]; isFile {
			mode := entry.Mode
			if mode == "" {
				mode = object.TreeModeFile
			}
			entries = append(entries, object.TreeEntry{Name: name, Mode: mode, Hash: entry.Hash})
			continue
		}
		childPrefix := name
		if prefix != "" {
			childPrefix = prefix + "/" + name
		}
		subHash, err := r.buildTreeDir(all, childPrefix)
		if err != nil {
			return "", err
		}
		entries = append(entries, object.TreeEntry{Name: name, Mode: object.TreeModeDir, Hash: subHash})
	}

	h, err := r.Store.WriteTree(&object.TreeObj{Entries: entries})
	if err != nil {
		return "", fmt.Errorf("write tree (prefix=%q): %w", prefix, err)
	}
	return h, nil
}

// FlattenTree walks a tree object recursively, returning all non-directory
// entries with their full paths in path order.
func (r *Repo) FlattenTree(h object.Hash) ([]TreeFileEntry, error) {
	return r.flattenTreeRec(h, "")
}

// FlattenTreeMap is FlattenTree keyed by path.
func (r *Repo) FlattenTreeMap(h object.Hash) (map[string]TreeFileEntry, error) {
	list, err := r.FlattenTree(h)
	if err != nil {
		return nil, err
	}
	m := make(map[string]TreeFileEntry, len(list))
	for _, e := range list {
		m[e.Path] = e
	}
	return m, nil
}

func (r *Repo) flattenTreeRec(h object.Hash, prefix string) ([]TreeFileEntry, error) {
	treeObj, err := r.Store.ReadTree(h)
	if err != nil {
		return nil, fmt.Errorf("flatten tree: read %s: %w", h, err)
	}

	var result []TreeFileEntry
	for _, entry := range treeObj.Entries {
		fullPath := entry.Name
		if prefix != "" {
			fullPath = path.Join(prefix, entry.Name)
		}

		if entry.IsDir() {
			sub, err := r.flattenTreeRec(entry.Hash, fullPath)
			if err != nil {
				return nil, err
			}
			result = append(result, sub...)
			continue
		}
		result = append(result, TreeFileEntry{Path: fullPath, Mode: entry.Mode, Hash: entry.Hash})
	}
	return result, nil
}

package repo

import (
	"fmt"
	"strings"

	"github.com/odvcencio/lanes/pkg/object"
)

// TreeEntryAtPath looks up relPath in the tree. Directories are returned
// too; callers that want files check IsDir.
func (r *Repo) TreeEntryAtPath(treeHash object.Hash, relPath string) (object.TreeEntry, bool, error) {
	parts := strings.Split(relPath, "/")
	current := treeHash

	for i, part := range parts {
		treeObj, err := r.Store.ReadTree(current)
		if err != nil {
			return object.TreeEntry{}, false, fmt.Errorf("read tree %s: %w", current, err)
		}
		entry, found := treeObj.Entry(part)
		if !found {
			return object.TreeEntry{}, false, nil
		}
		if i == len(parts)-1 {
			return entry, true, nil
		}
		if !entry.IsDir() {
			return object.TreeEntry{}, false, nil
		}
		current = entry.Hash
	}

	return object.TreeEntry{}, false, nil
}

// ReadBlobData returns the content of blob h. The null id reads as empty.
func (r *Repo) ReadBlobData(h object.Hash) ([]byte, error) {
	if h.IsNull() {
		return nil, nil
	}
	b, err := r.Store.ReadBlob(h)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", h, err)
	}
	return b.Data, nil
}

package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/odvcencio/lanes/pkg/object"
)

// StagingEntry records the indexed state of a single path: the blob last
// known to match the worktree, its mode, and the stat fingerprint that lets
// status skip rehashing unchanged files. Conflicted entries carry the three
// sides of an unresolved merge.
type StagingEntry struct {
	Path     string      `json:"path"`
	BlobHash object.Hash `json:"blob_hash"`
	Mode     string      `json:"mode,omitempty"`
	ModTime  int64       `json:"mod_time"`
	Size     int64       `json:"size"`

	Conflict       bool        `json:"conflict,omitempty"`
	BaseBlobHash   object.Hash `json:"base_blob_hash,omitempty"`
	OursBlobHash   object.Hash `json:"ours_blob_hash,omitempty"`
	TheirsBlobHash object.Hash `json:"theirs_blob_hash,omitempty"`
}

// Staging holds the full index of a repository.
type Staging struct {
	Entries map[string]*StagingEntry `json:"entries"`
}

// indexPath returns the filesystem path to the index file.
func (r *Repo) indexPath() string {
	return filepath.Join(r.LanesDir, "index")
}

// ReadStaging loads the index from .lanes/index. If the file does not
// exist, an empty Staging is returned (no error).
func (r *Repo) ReadStaging() (*Staging, error) {
	data, err := os.ReadFile(r.indexPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Staging{Entries: make(map[string]*StagingEntry)}, nil
		}
		return nil, fmt.Errorf("read staging: %w", err)
	}

	var stg Staging
	if err := json.Unmarshal(data, &stg); err != nil {
		return nil, fmt.Errorf("read staging: unmarshal: %w", err)
	}
	if stg.Entries == nil {
		stg.Entries = make(map[string]*StagingEntry)
	}
	return &stg, nil
}

// UpdateStaging rewrites the index under .lanes/index.lock. fn receives the
// current index and mutates it in place; when fn fails the index is left
// untouched. The lock is released on every return path.
func (r *Repo) UpdateStaging(fn func(*Staging) error) error {
	lockPath := r.indexPath() + ".lock"
	lock, err := acquireRefLock(lockPath)
	if err != nil {
		return fmt.Errorf("write staging: lock: %w", err)
	}
	renamed := false
	defer func() {
		_ = lock.Close()
		if !renamed {
			_ = os.Remove(lockPath)
		}
	}()

	stg, err := r.ReadStaging()
	if err != nil {
		return err
	}
	if err := fn(stg); err != nil {
		return err
	}
	data, err := json.MarshalIndent(stg, "", "  ")
	if err != nil {
		return fmt.Errorf("write staging: marshal: %w", err)
	}
	if _, err := lock.Write(data); err != nil {
		return fmt.Errorf("write staging: write: %w", err)
	}
	if err := lock.Close(); err != nil {
		return fmt.Errorf("write staging: close: %w", err)
	}
	if err := os.Rename(lockPath, r.indexPath()); err != nil {
		return fmt.Errorf("write staging: rename: %w", err)
	}
	renamed = true
	return nil
}

// SyncStaging points the index entries of paths at their state in tree.
// Paths absent from tree are dropped. Entries whose worktree file still
// hashes to the tree blob get a fresh stat fingerprint so status can skip
// them; any conflict state on those paths is cleared.
func (r *Repo) SyncStaging(tree object.Hash, paths []string) error {
	entries, err := r.FlattenTreeMap(tree)
	if err != nil {
		return fmt.Errorf("sync staging: %w", err)
	}
	return r.UpdateStaging(func(stg *Staging) error {
		for _, p := range paths {
			te, ok := entries[p]
			if !ok {
				delete(stg.Entries, p)
				continue
			}
			se := &StagingEntry{Path: p, BlobHash: te.Hash, Mode: te.Mode}
			if info, data, err := r.readWorktreeFile(p); err == nil && object.HashBlob(data) == te.Hash {
				se.ModTime = info.ModTime().UnixNano()
				se.Size = info.Size()
			}
			stg.Entries[p] = se
		}
		return nil
	})
}

// stagingStatMatches reports whether se's fingerprint still describes the
// file. Files modified within the last two seconds are never trusted, as
// a same-second write would go unnoticed.
func stagingStatMatches(se *StagingEntry, info os.FileInfo, mode string) bool {
	if se == nil || se.Conflict || se.ModTime == 0 {
		return false
	}
	if se.Mode != mode || se.Size != info.Size() || se.ModTime != info.ModTime().UnixNano() {
		return false
	}
	return time.Since(info.ModTime()) > 2*time.Second
}

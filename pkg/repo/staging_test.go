package repo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/odvcencio/lanes/pkg/object"
)

func TestUpdateStaging_ErrorLeavesIndexAndReleasesLock(t *testing.T) {
	r := newTestRepo(t)
	err := r.UpdateStaging(func(stg *Staging) error {
		stg.Entries["a"] = &StagingEntry{Path: "a", BlobHash: testTreeHash(1)}
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateStaging: %v", err)
	}

	boom := errors.New("boom")
	err = r.UpdateStaging(func(stg *Staging) error {
		delete(stg.Entries, "a")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("UpdateStaging error = %v, want boom", err)
	}
	if _, err := os.Stat(filepath.Join(r.LanesDir, "index.lock")); !os.IsNotExist(err) {
		t.Fatalf("index.lock left behind: %v", err)
	}

	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	if _, ok := stg.Entries["a"]; !ok {
		t.Fatal("failed update must not change the index")
	}
}

func TestReadStaging_Missing(t *testing.T) {
	r := newTestRepo(t)
	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	if stg.Entries == nil || len(stg.Entries) != 0 {
		t.Fatalf("missing index should read as empty, got %+v", stg.Entries)
	}
}

func TestSyncStaging(t *testing.T) {
	r := newTestRepo(t)
	commitWorktree(t, r, map[string]string{"a.txt": "a\n", "b.txt": "b\n"})
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(r.RootDir, "a.txt"), old, old); err != nil {
		t.Fatal(err)
	}
	writeWorktreeFile(t, r, "b.txt", "edited\n")

	err := r.UpdateStaging(func(stg *Staging) error {
		stg.Entries["gone.txt"] = &StagingEntry{Path: "gone.txt", BlobHash: testTreeHash(3)}
		stg.Entries["a.txt"] = &StagingEntry{Path: "a.txt", Conflict: true, OursBlobHash: testTreeHash(4)}
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateStaging: %v", err)
	}

	tree, err := r.HeadTree()
	if err != nil {
		t.Fatalf("HeadTree: %v", err)
	}
	if err := r.SyncStaging(tree, []string{"a.txt", "b.txt", "gone.txt"}); err != nil {
		t.Fatalf("SyncStaging: %v", err)
	}

	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	if _, ok := stg.Entries["gone.txt"]; ok {
		t.Error("gone.txt should be dropped from the index")
	}
	a := stg.Entries["a.txt"]
	if a == nil || a.Conflict || a.BlobHash != object.HashBlob([]byte("a\n")) || a.ModTime == 0 {
		t.Errorf("a.txt entry = %+v, want clean entry with fingerprint", a)
	}
	b := stg.Entries["b.txt"]
	if b == nil || b.BlobHash != object.HashBlob([]byte("b\n")) || b.ModTime != 0 {
		t.Errorf("b.txt entry = %+v, want tree blob without fingerprint", b)
	}
}

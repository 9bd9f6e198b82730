package repo

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/odvcencio/lanes/pkg/object"
)

func TestUpdateRef_WritesReflog(t *testing.T) {
	r := newTestRepo(t)

	h1 := object.Hash(strings.Repeat("a", 64))
	h2 := object.Hash(strings.Repeat("b", 64))
	if err := r.UpdateRef("refs/heads/main", h1); err != nil {
		t.Fatalf("UpdateRef(h1): %v", err)
	}
	if err := r.ApplyRefEdits([]RefEdit{{Name: "refs/heads/main", Old: h1, New: h2, Message: "commit: second"}}); err != nil {
		t.Fatalf("ApplyRefEdits(h2): %v", err)
	}

	entries, err := r.ReadReflog("main", 10)
	if err != nil {
		t.Fatalf("ReadReflog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 reflog entries, got %d", len(entries))
	}
	if entries[0].OldHash != h1 || entries[0].NewHash != h2 {
		t.Errorf("latest entry = %s -> %s, want %s -> %s", entries[0].OldHash, entries[0].NewHash, h1, h2)
	}
	if entries[0].Message != "commit: second" {
		t.Errorf("latest message = %q", entries[0].Message)
	}
	if !entries[1].OldHash.IsNull() || entries[1].NewHash != h1 {
		t.Errorf("first entry = %q -> %s, want null -> %s", entries[1].OldHash, entries[1].NewHash, h1)
	}
	if entries[0].Identity != "lanes" {
		t.Errorf("identity = %q, want lanes", entries[0].Identity)
	}

	assertFile(t, filepath.Join(r.LanesDir, "logs", "refs", "heads", "main"))

	viaHead, err := r.ReadReflog("HEAD", 1)
	if err != nil {
		t.Fatalf("ReadReflog(HEAD): %v", err)
	}
	if len(viaHead) != 1 || viaHead[0].NewHash != h2 {
		t.Errorf("ReadReflog(HEAD) = %+v", viaHead)
	}
}

func TestReadReflog_RespectsLimit(t *testing.T) {
	r := newTestRepo(t)

	for i := 0; i < 5; i++ {
		h := object.Hash(fmt.Sprintf("%064x", i+1))
		if err := r.UpdateRef("refs/heads/main", h); err != nil {
			t.Fatalf("UpdateRef(%d): %v", i, err)
		}
	}

	entries, err := r.ReadReflog("main", 2)
	if err != nil {
		t.Fatalf("ReadReflog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries length = %d, want 2", len(entries))
	}
}

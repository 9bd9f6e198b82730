package object

import (
	"bytes"
	"strings"
	"testing"
)

func TestMarshalUnmarshalBlob(t *testing.T) {
	b := &Blob{Data: []byte("line one\nline two\n")}
	got, err := UnmarshalBlob(MarshalBlob(b))
	if err != nil {
		t.Fatalf("UnmarshalBlob: %v", err)
	}
	if !bytes.Equal(got.Data, b.Data) {
		t.Errorf("Data = %q, want %q", got.Data, b.Data)
	}
}

func TestMarshalTreeSortsEntries(t *testing.T) {
	h := HashBlob([]byte("x"))
	a := &TreeObj{Entries: []TreeEntry{
		{Name: "zeta", Mode: TreeModeFile, Hash: h},
		{Name: ".conflict-files", Mode: TreeModeFile, Hash: h},
		{Name: "alpha", Mode: TreeModeDir, Hash: EmptyTreeHash},
	}}
	b := &TreeObj{Entries: []TreeEntry{a.Entries[2], a.Entries[0], a.Entries[1]}}
	if !bytes.Equal(MarshalTree(a), MarshalTree(b)) {
		t.Fatal("MarshalTree depends on input order")
	}
	lines := strings.Split(strings.TrimSpace(string(MarshalTree(a))), "\n")
	if !strings.HasSuffix(lines[0], " .conflict-files") {
		t.Errorf("first line = %q", lines[0])
	}
}

func TestUnmarshalTreeRejectsUnknownMode(t *testing.T) {
	_, err := UnmarshalTree([]byte("777 abc name\n"))
	if err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestUnmarshalTreeNameWithSpaces(t *testing.T) {
	h := HashBlob([]byte("x"))
	in := &TreeObj{Entries: []TreeEntry{{Name: "my notes.txt", Mode: TreeModeFile, Hash: h}}}
	out, err := UnmarshalTree(MarshalTree(in))
	if err != nil {
		t.Fatal(err)
	}
	if out.Entries[0].Name != "my notes.txt" || out.Entries[0].Hash != h {
		t.Errorf("entry = %+v", out.Entries[0])
	}
}

func TestMarshalUnmarshalCommitWithCommitterMetadata(t *testing.T) {
	c := &CommitObj{
		TreeHash:           EmptyTreeHash,
		Parents:            []Hash{HashBytes([]byte("p"))},
		Author:             "Ada <ada@example.com>",
		Timestamp:          1700000000,
		AuthorTimezone:     "+0100",
		Committer:          "Lanes <lanes@example.com>",
		CommitterTimestamp: 1700000100,
		CommitterTimezone:  "-0500",
		Message:            "msg\n",
	}
	got, err := UnmarshalCommit(MarshalCommit(c))
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if got.Committer != c.Committer || got.CommitterTimestamp != c.CommitterTimestamp || got.CommitterTimezone != c.CommitterTimezone {
		t.Errorf("committer = %q %d %q", got.Committer, got.CommitterTimestamp, got.CommitterTimezone)
	}
	if got.AuthorTimezone != "+0100" {
		t.Errorf("AuthorTimezone = %q", got.AuthorTimezone)
	}
	if !bytes.Equal(MarshalCommit(got), MarshalCommit(c)) {
		t.Error("commit does not round-trip byte for byte")
	}
}

func TestMarshalCommitOmitsEmptySignatureHeader(t *testing.T) {
	c := &CommitObj{TreeHash: EmptyTreeHash, Author: "a", Message: "m"}
	if strings.Contains(string(MarshalCommit(c)), "signature") {
		t.Error("unexpected signature header")
	}
}

func TestCommitSigningPayloadExcludesSignature(t *testing.T) {
	c := &CommitObj{TreeHash: EmptyTreeHash, Author: "a", Message: "m", Signature: "sig"}
	payload := CommitSigningPayload(c)
	if strings.Contains(string(payload), "sig") {
		t.Errorf("payload contains signature: %q", payload)
	}
	if c.Signature != "sig" {
		t.Error("CommitSigningPayload mutated its input")
	}
}

package repo

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/odvcencio/lanes/pkg/object"
)

func TestNewCommitObj_UsesConfiguredIdentity(t *testing.T) {
	fixClock(t)
	r := newTestRepo(t)
	r.Config.User = UserConfig{Name: "Ada", Email: "ada@example.com"}

	c := r.NewCommitObj(object.EmptyTreeHash, nil, "first")
	if c.Author != "Ada <ada@example.com>" || c.Committer != c.Author {
		t.Errorf("author/committer = %q/%q", c.Author, c.Committer)
	}
	if c.Timestamp != 1700000000 || c.AuthorTimezone != "+0000" {
		t.Errorf("timestamp = %d %s", c.Timestamp, c.AuthorTimezone)
	}
}

func TestRecommit_KeepsAuthorshipAndDropsSignature(t *testing.T) {
	fixClock(t)
	r := newTestRepo(t)

	orig := &object.CommitObj{
		TreeHash:  object.EmptyTreeHash,
		Author:    "Original <o@example.com>",
		Timestamp: 42,
		Signature: "sshsig-v1:old",
		Message:   "picked\n",
	}
	parent := commitFiles(t, r, map[string]string{"a": "a\n"}, "parent")
	tree := buildTestTree(t, r, map[string]string{"b": "b\n"})

	out := r.Recommit(orig, tree, []object.Hash{parent})
	if out.Author != orig.Author || out.Timestamp != 42 || out.Message != "picked\n" {
		t.Errorf("authorship changed: %+v", out)
	}
	if out.Signature != "" {
		t.Errorf("signature kept: %q", out.Signature)
	}
	if out.Committer != "lanes" || out.CommitterTimestamp != 1700000000 {
		t.Errorf("committer = %q at %d", out.Committer, out.CommitterTimestamp)
	}
	if out.TreeHash != tree || len(out.Parents) != 1 || out.Parents[0] != parent {
		t.Errorf("tree/parents = %s %v", out.TreeHash, out.Parents)
	}
	if orig.Signature != "sshsig-v1:old" {
		t.Error("Recommit mutated its input")
	}
}

func TestWriteCommit_SignsAndVerifies(t *testing.T) {
	r := newTestRepo(t)

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	sshSigner, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("NewSignerFromKey: %v", err)
	}

	c := r.NewCommitObj(object.EmptyTreeHash, nil, "signed")
	h, err := r.WriteCommit(c, sshCommitSigner(sshSigner))
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	stored, err := r.Store.ReadCommit(h)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if stored.Signature == "" {
		t.Fatal("stored commit has no signature")
	}
	if err := VerifyCommitSignature(object.CommitSigningPayload(stored), stored.Signature); err != nil {
		t.Fatalf("VerifyCommitSignature: %v", err)
	}

	stored.Message = "tampered"
	if err := VerifyCommitSignature(object.CommitSigningPayload(stored), stored.Signature); err == nil {
		t.Fatal("tampered payload verified")
	}
}

func TestSigner_DisabledReturnsNil(t *testing.T) {
	r := newTestRepo(t)
	signer, err := r.Signer()
	if err != nil || signer != nil {
		t.Fatalf("Signer() = %v, %v; want nil, nil", signer != nil, err)
	}
}

func TestLog_FirstParentNewestFirst(t *testing.T) {
	r := newTestRepo(t)
	c1 := commitFiles(t, r, map[string]string{"a": "1\n"}, "one")
	c2 := commitFiles(t, r, map[string]string{"a": "2\n"}, "two", c1)
	side := commitFiles(t, r, map[string]string{"b": "x\n"}, "side")
	c3 := commitFiles(t, r, map[string]string{"a": "3\n"}, "three", c2, side)

	entries, err := r.Log(c3, 10)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	var got []object.Hash
	for _, e := range entries {
		got = append(got, e.Hash)
	}
	want := []object.Hash{c3, c2, c1}
	if len(got) != len(want) {
		t.Fatalf("Log = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Log[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	limited, err := r.Log(c3, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("Log limit 1 = %d entries, %v", len(limited), err)
	}
}

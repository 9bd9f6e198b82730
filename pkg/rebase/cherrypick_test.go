package rebase

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/lanes/pkg/conflict"
	"github.com/odvcencio/lanes/pkg/object"
	"github.com/odvcencio/lanes/pkg/repo/repotest"
)

// forkScene builds base -> target and base -> pick.
func forkScene(t *testing.T, pickContent string) (s *repotest.Scene, base, target, pick object.Hash) {
	s = repotest.NewScene(t)
	base = s.Commit(map[string]string{"shared.txt": "base\n"}, "base")
	target = s.Commit(map[string]string{"shared.txt": "target\n", "target.txt": "t\n"}, "target", base)
	pick = s.Commit(map[string]string{"shared.txt": pickContent, "picked.txt": "p\n"}, "single-clean-commit", base)
	return s, base, target, pick
}

func TestCherryPick_IdentityOnOwnParents(t *testing.T) {
	s, base, _, pick := forkScene(t, "base\n")

	out, err := CherryPick(s.Repo, pick, []object.Hash{base})
	require.NoError(t, err)
	require.Equal(t, Identity{ID: pick}, out)

	again, err := CherryPick(s.Repo, pick, []object.Hash{base})
	require.NoError(t, err)
	require.Equal(t, out, again)
}

func TestCherryPick_IdentityForRootOntoNothing(t *testing.T) {
	s := repotest.NewScene(t)
	root := s.Commit(map[string]string{"a.txt": "a\n"}, "root")

	for _, parents := range [][]object.Hash{nil, {}} {
		out, err := CherryPick(s.Repo, root, parents)
		require.NoError(t, err)
		require.Equal(t, Identity{ID: root}, out)
	}
}

func TestCherryPick_SingleClean(t *testing.T) {
	s, _, target, pick := forkScene(t, "base\n")

	out, err := CherryPick(s.Repo, pick, []object.Hash{target})
	require.NoError(t, err)
	picked, ok := out.(Commit)
	require.True(t, ok, "outcome = %v", out)

	c := s.ReadCommit(picked.ID)
	require.Equal(t, []object.Hash{target}, c.Parents)
	require.Equal(t, "single-clean-commit", c.Message)
	require.Equal(t, s.ReadCommit(pick).Author, c.Author)
	require.Equal(t, map[string]string{
		"picked.txt": "p\n",
		"shared.txt": "target\n",
		"target.txt": "t\n",
	}, s.CommitFiles(picked.ID))
}

func TestCherryPick_Conflicting(t *testing.T) {
	s, base, target, pick := forkScene(t, "picked\n")

	out, err := CherryPick(s.Repo, pick, []object.Hash{target})
	require.NoError(t, err)
	cc, ok := out.(ConflictedCommit)
	require.True(t, ok, "outcome = %v", out)
	require.Equal(t, []object.Hash{target}, s.ReadCommit(cc.ID).Parents)

	tree := s.CommitTreeID(cc.ID)
	names := s.TopLevelNames(tree)
	require.Len(t, names, len(conflict.ReservedNames)+3)
	require.Subset(t, names, conflict.ReservedNames)
	require.Subset(t, names, []string{"picked.txt", "shared.txt", "target.txt"})

	// The visible tree resolves the conflict towards the new parent.
	files := s.Files(tree)
	require.Equal(t, "target\n", files["shared.txt"])
	require.Equal(t, "p\n", files["picked.txt"])

	decoded, ok, err := conflict.Decode(s.Repo.Store, tree)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, s.CommitTreeID(base), decoded.Base)
	require.Equal(t, s.CommitTreeID(target), decoded.Ours)
	require.Equal(t, s.CommitTreeID(pick), decoded.Theirs)
	require.Equal(t, []string{"shared.txt"}, decoded.Files.OurEntries)
	require.Equal(t, []string{"shared.txt"}, decoded.Files.TheirEntries)
}

func TestCherryPick_ConflictRoundTrip(t *testing.T) {
	s, base, target, pick := forkScene(t, "picked\n")

	out, err := CherryPick(s.Repo, pick, []object.Hash{target})
	require.NoError(t, err)
	cc, ok := out.(ConflictedCommit)
	require.True(t, ok, "outcome = %v", out)

	back, err := CherryPick(s.Repo, cc.ID, []object.Hash{base})
	require.NoError(t, err)
	clean, ok := back.(Commit)
	require.True(t, ok, "outcome = %v", back)
	require.Equal(t, s.CommitTreeID(pick), s.CommitTreeID(clean.ID))
	require.Equal(t, []object.Hash{base}, s.ReadCommit(clean.ID).Parents)
}

func TestCherryPick_ToRoot(t *testing.T) {
	s, _, _, pick := forkScene(t, "base\n")

	out, err := CherryPick(s.Repo, pick, nil)
	require.NoError(t, err)
	picked, ok := out.(Commit)
	require.True(t, ok, "outcome = %v", out)
	require.Empty(t, s.ReadCommit(picked.ID).Parents)
	require.Equal(t, map[string]string{"picked.txt": "p\n"}, s.CommitFiles(picked.ID))
}

// Moving x off p onto target merges against base, the merge base of p and
// target, so p's own change comes along.
func TestCherryPick_BaseIsMergeBaseOfOldAndNewParent(t *testing.T) {
	s := repotest.NewScene(t)
	base := s.Commit(map[string]string{"a.txt": "a\n"}, "base")
	target := s.Commit(map[string]string{"a.txt": "a\n", "t.txt": "t\n"}, "target", base)
	p := s.Commit(map[string]string{"a.txt": "a\n", "p.txt": "p\n"}, "p", base)
	x := s.Commit(map[string]string{"a.txt": "a\n", "p.txt": "p\n", "x.txt": "x\n"}, "x", p)

	out, err := CherryPick(s.Repo, x, []object.Hash{target})
	require.NoError(t, err)
	picked, ok := out.(Commit)
	require.True(t, ok, "outcome = %v", out)
	require.Equal(t, []object.Hash{target}, s.ReadCommit(picked.ID).Parents)
	require.Equal(t, map[string]string{
		"a.txt": "a\n",
		"p.txt": "p\n",
		"t.txt": "t\n",
		"x.txt": "x\n",
	}, s.CommitFiles(picked.ID))
}

func TestCherryPick_UnrelatedParentMergesAgainstEmptyTree(t *testing.T) {
	s := repotest.NewScene(t)
	base := s.Commit(map[string]string{"a.txt": "a\n"}, "base")
	x := s.Commit(map[string]string{"a.txt": "a\n", "x.txt": "x\n"}, "x", base)
	other := s.Commit(map[string]string{"u.txt": "u\n"}, "other")

	out, err := CherryPick(s.Repo, x, []object.Hash{other})
	require.NoError(t, err)
	picked, ok := out.(Commit)
	require.True(t, ok, "outcome = %v", out)
	require.Equal(t, map[string]string{
		"a.txt": "a\n",
		"u.txt": "u\n",
		"x.txt": "x\n",
	}, s.CommitFiles(picked.ID))
}

func TestCherryPick_MultipleParentsKeepOrder(t *testing.T) {
	s := repotest.NewScene(t)
	root := s.Commit(map[string]string{"a.txt": "a\n", "b.txt": "b\n"}, "root")
	left := s.Commit(map[string]string{"a.txt": "left\n", "b.txt": "b\n"}, "left", root)
	right := s.Commit(map[string]string{"a.txt": "a\n", "b.txt": "right\n"}, "right", root)
	pick := s.Commit(map[string]string{"a.txt": "a\n", "b.txt": "b\n", "c.txt": "c\n"}, "add c", root)

	for _, parents := range [][]object.Hash{{left, right}, {right, left}} {
		out, err := CherryPick(s.Repo, pick, parents)
		require.NoError(t, err)
		picked, ok := out.(Commit)
		require.True(t, ok, "outcome = %v", out)
		require.Equal(t, parents, s.ReadCommit(picked.ID).Parents)
		require.Equal(t, map[string]string{
			"a.txt": "left\n",
			"b.txt": "right\n",
			"c.txt": "c\n",
		}, s.CommitFiles(picked.ID))
	}
}

func TestCherryPick_MergeCommitOntoNewParents(t *testing.T) {
	s := repotest.NewScene(t)
	root := s.Commit(map[string]string{"a.txt": "a\n"}, "root")
	left := s.Commit(map[string]string{"a.txt": "a\n", "l.txt": "l\n"}, "left", root)
	right := s.Commit(map[string]string{"a.txt": "a\n", "r.txt": "r\n"}, "right", root)
	merge := s.Commit(map[string]string{"a.txt": "a\n", "l.txt": "l\n", "r.txt": "r\n", "m.txt": "m\n"}, "merge", left, right)
	onto := s.Commit(map[string]string{"a.txt": "a\n", "l.txt": "l\n", "r.txt": "r\n", "o.txt": "o\n"}, "onto", left)

	out, err := CherryPick(s.Repo, merge, []object.Hash{onto, right})
	require.NoError(t, err)
	picked, ok := out.(Commit)
	require.True(t, ok, "outcome = %v", out)
	require.Equal(t, []object.Hash{onto, right}, s.ReadCommit(picked.ID).Parents)
	require.Equal(t, map[string]string{
		"a.txt": "a\n",
		"l.txt": "l\n",
		"m.txt": "m\n",
		"o.txt": "o\n",
		"r.txt": "r\n",
	}, s.CommitFiles(picked.ID))
}

func TestCherryPick_FailedToMergeBases(t *testing.T) {
	s := repotest.NewScene(t)
	root := s.Commit(map[string]string{"a.txt": "a\n"}, "root")
	left := s.Commit(map[string]string{"a.txt": "left\n"}, "left", root)
	right := s.Commit(map[string]string{"a.txt": "right\n"}, "right", root)
	pick := s.Commit(map[string]string{"a.txt": "a\n", "c.txt": "c\n"}, "add c", root)

	out, err := CherryPick(s.Repo, pick, []object.Hash{left, right})
	require.NoError(t, err)
	require.Equal(t, FailedToMergeBases{
		OntoMergeFailed: true,
		Ontos:           &[2]object.Hash{left, right},
	}, out)
	require.True(t, CommitID(out).IsNull())

	merge := s.Commit(map[string]string{"a.txt": "merged\n"}, "merge", left, right)
	out, err = CherryPick(s.Repo, merge, []object.Hash{root})
	require.NoError(t, err)
	require.Equal(t, FailedToMergeBases{
		BaseMergeFailed: true,
		Bases:           &[2]object.Hash{left, right},
	}, out)

	out, err = CherryPick(s.Repo, merge, []object.Hash{right, left})
	require.NoError(t, err)
	failed, ok := out.(FailedToMergeBases)
	require.True(t, ok, "outcome = %v", out)
	require.True(t, failed.BaseMergeFailed)
	require.True(t, failed.OntoMergeFailed)
	require.Equal(t, &[2]object.Hash{right, left}, failed.Ontos)
	require.Contains(t, failed.String(), "new parents")
}

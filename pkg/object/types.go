package object

// Hash is a 64-character hex-encoded SHA-256 digest. The empty Hash is the
// null id: content that is known to exist but has not been hashed yet.
type Hash string

// IsNull reports whether h is the null id.
func (h Hash) IsNull() bool { return h == "" }

// Short returns the first 8 characters of h for display.
func (h Hash) Short() string {
	if len(h) > 8 {
		return string(h[:8])
	}
	return string(h)
}

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
)

const (
	// Tree mode constants compatible with Git's canonical mode strings.
	TreeModeDir        = "40000"
	TreeModeFile       = "100644"
	TreeModeExecutable = "100755"
	TreeModeSymlink    = "120000"
	TreeModeCommit     = "160000"
)

// EntryKind is the kind of thing a tree entry points at.
type EntryKind int

const (
	KindBlob EntryKind = iota
	KindBlobExecutable
	KindLink
	KindCommit
	KindTree
)

func (k EntryKind) String() string {
	switch k {
	case KindBlob:
		return "blob"
	case KindBlobExecutable:
		return "executable"
	case KindLink:
		return "symlink"
	case KindCommit:
		return "commit"
	case KindTree:
		return "tree"
	default:
		return "unknown"
	}
}

// Mode returns the tree mode string for k.
func (k EntryKind) Mode() string {
	switch k {
	case KindBlobExecutable:
		return TreeModeExecutable
	case KindLink:
		return TreeModeSymlink
	case KindCommit:
		return TreeModeCommit
	case KindTree:
		return TreeModeDir
	default:
		return TreeModeFile
	}
}

// KindFromMode maps a tree mode string to its EntryKind. Unknown modes are
// treated as regular blobs.
func KindFromMode(mode string) EntryKind {
	switch mode {
	case TreeModeExecutable:
		return KindBlobExecutable
	case TreeModeSymlink:
		return KindLink
	case TreeModeCommit:
		return KindCommit
	case TreeModeDir:
		return KindTree
	default:
		return KindBlob
	}
}

// Blob holds raw file data.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry in a tree object. For directories Hash points at a
// subtree, for submodules at a commit, otherwise at a blob.
type TreeEntry struct {
	Name string
	Mode string
	Hash Hash
}

// IsDir reports whether the entry is a subtree.
func (e TreeEntry) IsDir() bool { return e.Mode == TreeModeDir }

// Kind returns the entry kind derived from its mode.
func (e TreeEntry) Kind() EntryKind { return KindFromMode(e.Mode) }

// TreeObj holds a sorted list of tree entries.
type TreeObj struct {
	Entries []TreeEntry // sorted by Name
}

// Entry returns the entry with the given name.
func (t *TreeObj) Entry(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}

// CommitObj represents a commit pointing to a tree with metadata.
type CommitObj struct {
	TreeHash           Hash
	Parents            []Hash
	Author             string
	Timestamp          int64
	AuthorTimezone     string
	Committer          string
	CommitterTimestamp int64
	CommitterTimezone  string
	Signature          string
	Message            string
}

// Title returns the first line of the commit message.
func (c *CommitObj) Title() string {
	for i := 0; i < len(c.Message); i++ {
		if c.Message[i] == '\n' {
			return c.Message[:i]
		}
	}
	return c.Message
}

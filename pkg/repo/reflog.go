package repo

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/odvcencio/lanes/pkg/object"
)

// zeroHash stands in for an absent ref in reflog lines.
var zeroHash = object.Hash(strings.Repeat("0", 64))

// ReflogEntry is one recorded ref move.
type ReflogEntry struct {
	Ref       string
	OldHash   object.Hash // null when the ref was created
	NewHash   object.Hash
	Identity  string
	Timestamp int64
	Message   string
}

// Reflog lines follow git's layout:
//
//	<old> <new> <identity> <unix-time> <tz>\t<message>
func (r *Repo) appendReflog(ref string, oldHash, newHash object.Hash, message string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	if strings.TrimSpace(message) == "" {
		message = "update"
	}
	logPath := filepath.Join(r.LanesDir, "logs", filepath.FromSlash(ref))
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("reflog mkdir: %w", err)
	}

	identity := "lanes"
	if r.Config != nil {
		identity = r.Config.Identity()
	}
	t := now()
	line := fmt.Sprintf("%s %s %s %d %s\t%s\n",
		orZero(oldHash), orZero(newHash), identity, t.Unix(), t.Format("-0700"),
		strings.ReplaceAll(message, "\n", " "))

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reflog open: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("reflog write: %w", err)
	}
	return nil
}

func orZero(h object.Hash) object.Hash {
	if h.IsNull() {
		return zeroHash
	}
	return h
}

// ReadReflog returns up to limit entries for ref, newest first. A limit of
// zero or less returns everything. "HEAD" and "" read the log of the branch
// HEAD points at.
func (r *Repo) ReadReflog(ref string, limit int) ([]ReflogEntry, error) {
	refName := r.reflogRefName(ref)
	f, err := os.Open(filepath.Join(r.LanesDir, "logs", filepath.FromSlash(refName)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	defer f.Close()

	var entries []ReflogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if e, ok := parseReflogLine(refName, scanner.Text()); ok {
			entries = append(entries, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func parseReflogLine(ref, line string) (ReflogEntry, bool) {
	head, message, ok := strings.Cut(line, "\t")
	if !ok {
		return ReflogEntry{}, false
	}
	fields := strings.Fields(head)
	if len(fields) < 5 {
		return ReflogEntry{}, false
	}
	n := len(fields)
	ts, err := strconv.ParseInt(fields[n-2], 10, 64)
	if err != nil {
		return ReflogEntry{}, false
	}
	e := ReflogEntry{
		Ref:       ref,
		OldHash:   object.Hash(fields[0]),
		NewHash:   object.Hash(fields[1]),
		Identity:  strings.Join(fields[2:n-2], " "),
		Timestamp: ts,
		Message:   message,
	}
	if e.OldHash == zeroHash {
		e.OldHash = ""
	}
	if e.NewHash == zeroHash {
		e.NewHash = ""
	}
	return e, true
}

func (r *Repo) reflogRefName(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == "HEAD" {
		if head, err := r.Head(); err == nil && strings.HasPrefix(head, "refs/") {
			return head
		}
		return "HEAD"
	}
	if strings.HasPrefix(ref, "refs/") {
		return ref
	}
	return "refs/heads/" + ref
}

package diff

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/odvcencio/lanes/pkg/diff3"
)

// LineKind classifies a line within a unified diff hunk.
type LineKind int

const (
	Context LineKind = iota // Line is present in both revisions.
	Removed                 // Line exists only in the old revision.
	Added                   // Line exists only in the new revision.
)

// HunkHeader holds the 1-based coordinates of a hunk exactly as they appear
// in a unified diff "@@ -a,b +c,d @@" line. A side with zero lines uses the
// number of the line preceding the empty range as its start.
type HunkHeader struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
}

// String renders the header the way git does, always including counts.
func (h HunkHeader) String() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
}

// Valid reports whether the header describes a range a unified diff can
// produce. A zero start is only legal for an empty range at the top of the
// file.
func (h HunkHeader) Valid() bool {
	if h.OldStart < 0 || h.OldLines < 0 || h.NewStart < 0 || h.NewLines < 0 {
		return false
	}
	if h.OldStart == 0 && h.OldLines != 0 {
		return false
	}
	if h.NewStart == 0 && h.NewLines != 0 {
		return false
	}
	return true
}

// ParseHunkHeader parses "@@ -a,b +c,d @@" (trailing section text allowed)
// or the bare "-a,b +c,d" form. Omitted counts default to 1.
func ParseHunkHeader(s string) (HunkHeader, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "@@") {
		rest := strings.TrimPrefix(s, "@@")
		end := strings.Index(rest, "@@")
		if end < 0 {
			return HunkHeader{}, fmt.Errorf("parse hunk header %q: missing closing @@", s)
		}
		s = strings.TrimSpace(rest[:end])
	}
	fields := strings.Fields(s)
	if len(fields) != 2 || !strings.HasPrefix(fields[0], "-") || !strings.HasPrefix(fields[1], "+") {
		return HunkHeader{}, fmt.Errorf("parse hunk header %q: want \"-a,b +c,d\"", s)
	}
	var h HunkHeader
	var err error
	if h.OldStart, h.OldLines, err = parseRange(fields[0][1:]); err != nil {
		return HunkHeader{}, fmt.Errorf("parse hunk header %q: %w", s, err)
	}
	if h.NewStart, h.NewLines, err = parseRange(fields[1][1:]); err != nil {
		return HunkHeader{}, fmt.Errorf("parse hunk header %q: %w", s, err)
	}
	return h, nil
}

func parseRange(s string) (int, int, error) {
	startText, countText, hasCount := strings.Cut(s, ",")
	start, err := strconv.Atoi(startText)
	if err != nil {
		return 0, 0, fmt.Errorf("bad start %q", startText)
	}
	count := 1
	if hasCount {
		if count, err = strconv.Atoi(countText); err != nil {
			return 0, 0, fmt.Errorf("bad count %q", countText)
		}
	}
	return start, count, nil
}

// Line is one line of a hunk body. Text keeps its "\n" terminator; the last
// line of a file without a trailing newline has none.
type Line struct {
	Kind LineKind
	Text string
}

// Hunk is a contiguous group of changes with its surrounding context.
type Hunk struct {
	Header HunkHeader
	Lines  []Line
}

// OldContent returns the hunk body as it reads in the old revision.
func (h Hunk) OldContent() string {
	var b strings.Builder
	for _, l := range h.Lines {
		if l.Kind != Added {
			b.WriteString(l.Text)
		}
	}
	return b.String()
}

// NewContent returns the hunk body as it reads in the new revision.
func (h Hunk) NewContent() string {
	var b strings.Builder
	for _, l := range h.Lines {
		if l.Kind != Removed {
			b.WriteString(l.Text)
		}
	}
	return b.String()
}

// Unified computes the hunks of a unified diff between before and after with the
// given number of context lines. Changes separated by at most 2*context
// unchanged lines share a hunk, matching git's grouping.
func Unified(before, after []byte, context int) []Hunk {
	if context < 0 {
		context = 0
	}
	ops := diff3.MyersDiff(diff3.SplitLines(before), diff3.SplitLines(after))

	// oldAt[i] and newAt[i] are the 0-based line positions before ops[i].
	oldAt := make([]int, len(ops)+1)
	newAt := make([]int, len(ops)+1)
	for i, op := range ops {
		oldAt[i+1], newAt[i+1] = oldAt[i], newAt[i]
		if op.Type != diff3.Insert {
			oldAt[i+1]++
		}
		if op.Type != diff3.Delete {
			newAt[i+1]++
		}
	}

	var hunks []Hunk
	i, prevEnd := 0, 0
	for i < len(ops) {
		if ops[i].Type == diff3.Equal {
			i++
			continue
		}
		start := max(prevEnd, i-context)

		// Extend while the next change is within 2*context equal lines.
		end := i
		for end < len(ops) {
			for end < len(ops) && ops[end].Type != diff3.Equal {
				end++
			}
			gap := 0
			for end+gap < len(ops) && ops[end+gap].Type == diff3.Equal {
				gap++
			}
			if end+gap < len(ops) && gap <= 2*context {
				end += gap
				continue
			}
			end += min(gap, context)
			break
		}

		h := Hunk{}
		for _, op := range ops[start:end] {
			switch op.Type {
			case diff3.Equal:
				h.Lines = append(h.Lines, Line{Kind: Context, Text: op.Line})
				h.Header.OldLines++
				h.Header.NewLines++
			case diff3.Delete:
				h.Lines = append(h.Lines, Line{Kind: Removed, Text: op.Line})
				h.Header.OldLines++
			case diff3.Insert:
				h.Lines = append(h.Lines, Line{Kind: Added, Text: op.Line})
				h.Header.NewLines++
			}
		}
		h.Header.OldStart = rangeStart(oldAt[start], h.Header.OldLines)
		h.Header.NewStart = rangeStart(newAt[start], h.Header.NewLines)
		hunks = append(hunks, h)
		i, prevEnd = end, end
	}
	return hunks
}

func rangeStart(pos, lines int) int {
	if lines == 0 {
		return pos
	}
	return pos + 1
}

// IsBinary reports whether data looks like binary content: a NUL byte in
// the first 8000 bytes, the same heuristic git uses.
func IsBinary(data []byte) bool {
	n := min(len(data), 8000)
	for _, b := range data[:n] {
		if b == 0 {
			return true
		}
	}
	return false
}

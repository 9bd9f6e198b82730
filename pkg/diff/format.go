package diff

import (
	"fmt"
	"strings"
)

const noNewline = "\\ No newline at end of file\n"

// Format renders hunks as a unified diff. An empty path renders as
// /dev/null, which is how added and deleted files are shown.
//
// Output format:
//
//	--- a/path
//	+++ b/path
//	@@ -1,3 +1,4 @@
//	 context
//	-old line
//	+new line
func Format(oldPath, newPath string, hunks []Hunk) string {
	if len(hunks) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n", displayPath("a/", oldPath))
	fmt.Fprintf(&b, "+++ %s\n", displayPath("b/", newPath))
	for _, h := range hunks {
		FormatHunk(&b, h)
	}
	return b.String()
}

// FormatHunk writes a single hunk, header first.
func FormatHunk(b *strings.Builder, h Hunk) {
	b.WriteString(h.Header.String())
	b.WriteByte('\n')
	for _, l := range h.Lines {
		b.WriteByte(linePrefix(l.Kind))
		b.WriteString(l.Text)
		if !strings.HasSuffix(l.Text, "\n") {
			b.WriteByte('\n')
			b.WriteString(noNewline)
		}
	}
}

func linePrefix(k LineKind) byte {
	switch k {
	case Removed:
		return '-'
	case Added:
		return '+'
	default:
		return ' '
	}
}

func displayPath(prefix, path string) string {
	if path == "" {
		return "/dev/null"
	}
	return prefix + path
}

package apply

import (
	"bytes"

	"github.com/odvcencio/lanes/pkg/diff"
	"github.com/odvcencio/lanes/pkg/diff3"
)

// selectHunks looks up every requested header in the unified diff of before
// and after. Headers are tried against the diff at the configured context
// first and then at zero context, so callers may select the individual
// changes of a hunk that context lines merged. All headers must come from
// the same diff. The hunks are returned in request order.
func selectHunks(before, after []byte, headers []diff.HunkHeader, context int) ([]diff.Hunk, bool) {
	contexts := []int{context}
	if context != 0 {
		contexts = append(contexts, 0)
	}
	for _, ctx := range contexts {
		byHeader := make(map[diff.HunkHeader]diff.Hunk)
		for _, h := range diff.Unified(before, after, ctx) {
			byHeader[h.Header] = h
		}
		picked := make([]diff.Hunk, 0, len(headers))
		for _, want := range headers {
			h, ok := byHeader[want]
			if !ok {
				break
			}
			picked = append(picked, h)
		}
		if len(picked) == len(headers) {
			return picked, true
		}
	}
	return nil, false
}

// splice rebuilds old with each hunk's range replaced by its new side.
// Hunks must be in file order and must not overlap.
func splice(old []byte, hunks []diff.Hunk) ([]byte, bool) {
	lines := diff3.SplitLines(old)
	var b bytes.Buffer
	cursor := 0
	for _, h := range hunks {
		start := h.Header.OldStart - 1
		if h.Header.OldLines == 0 {
			// An empty old range starts after the line it names.
			start = h.Header.OldStart
		}
		end := start + h.Header.OldLines
		if start < cursor || end > len(lines) {
			return nil, false
		}
		for _, l := range lines[cursor:start] {
			b.WriteString(l)
		}
		b.WriteString(h.NewContent())
		cursor = end
	}
	for _, l := range lines[cursor:] {
		b.WriteString(l)
	}
	return b.Bytes(), true
}

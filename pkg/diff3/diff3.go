package diff3

import (
	"bytes"
	"strings"
)

// HunkType classifies a hunk in a three-way merge result.
type HunkType int

const (
	HunkClean    HunkType = iota // Hunk was merged cleanly.
	HunkConflict                 // Hunk has a conflict that requires manual resolution.
)

// Favor selects which side wins a conflicting hunk when a merge result is
// resolved automatically.
type Favor int

const (
	FavorNone   Favor = iota // keep conflict markers
	FavorOurs                // take the ours side of every conflict
	FavorTheirs              // take the theirs side of every conflict
)

// Hunk represents a contiguous section of the merge output.
type Hunk struct {
	Type                       HunkType
	Base, Ours, Theirs, Merged []byte
}

// Result holds the outcome of a three-way merge.
type Result struct {
	Merged        []byte // Full merged content (with conflict markers if conflicts exist).
	HasConflicts  bool   // True if any hunk is a conflict.
	ConflictCount int
	Hunks         []Hunk // Individual hunks in document order.
}

// Resolve rebuilds the merged content, settling every conflicting hunk in
// favour of one side. FavorNone returns Merged unchanged.
func (r Result) Resolve(f Favor) []byte {
	if f == FavorNone || !r.HasConflicts {
		return r.Merged
	}
	var buf bytes.Buffer
	for _, h := range r.Hunks {
		switch {
		case h.Type == HunkClean:
			buf.Write(h.Merged)
		case f == FavorOurs:
			buf.Write(h.Ours)
		default:
			buf.Write(h.Theirs)
		}
	}
	return buf.Bytes()
}

// DiffLine is a single line in the output of LineDiff.
type DiffLine struct {
	Type    DiffType
	Content string
}

// LineDiff computes a line-level diff between byte slices a and b. Content
// carries the line without its terminator.
func LineDiff(a, b []byte) []DiffLine {
	ops := MyersDiff(SplitLines(a), SplitLines(b))

	result := make([]DiffLine, len(ops))
	for i, op := range ops {
		result[i] = DiffLine{Type: op.Type, Content: strings.TrimSuffix(op.Line, "\n")}
	}
	return result
}

// Merge performs a three-way merge of base, ours, and theirs.
//
// Algorithm:
//  1. Split base, ours, theirs into lines (terminators kept, so a missing
//     final newline is a real difference).
//  2. Compute diff(base, ours) and diff(base, theirs).
//  3. Convert each diff into a sequence of "chunks": contiguous runs of
//     unchanged or changed regions relative to the base.
//  4. Walk through base lines, consulting both chunk sequences to decide
//     how each base region is handled.
//  5. When both sides change the same base region differently, emit a conflict.
func Merge(base, ours, theirs []byte) Result {
	baseLines := SplitLines(base)
	oursChunks := buildChunks(baseLines, SplitLines(ours))
	theirsChunks := buildChunks(baseLines, SplitLines(theirs))

	return mergeChunks(baseLines, oursChunks, theirsChunks)
}

// SplitLines splits data into lines, each keeping its trailing "\n". The
// last line has no terminator when data does not end in a newline.
func SplitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	s := string(data)
	lines := make([]string, 0, strings.Count(s, "\n")+1)
	for len(s) > 0 {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			lines = append(lines, s)
			break
		}
		lines = append(lines, s[:i+1])
		s = s[i+1:]
	}
	return lines
}

// chunk represents a contiguous region relative to the base.
type chunk struct {
	baseStart, baseEnd int      // range [baseStart, baseEnd) in base
	lines              []string // replacement lines for this region
	changed            bool     // true if this region differs from base
}

// buildChunks converts a two-way diff (base → side) into a list of chunks.
// Each chunk covers a contiguous range of base lines and carries the
// corresponding replacement lines from the side.
func buildChunks(base, side []string) []chunk {
	ops := MyersDiff(base, side)

	var chunks []chunk
	baseIdx := 0

	i := 0
	for i < len(ops) {
		op := ops[i]

		if op.Type == Equal {
			chunks = append(chunks, chunk{
				baseStart: baseIdx,
				baseEnd:   baseIdx + 1,
				lines:     []string{op.Line},
			})
			baseIdx++
			i++
			continue
		}

		// Accumulate a contiguous changed region (deletes and/or inserts).
		chunkStart := baseIdx
		var sideLines []string

		for i < len(ops) && ops[i].Type != Equal {
			if ops[i].Type == Delete {
				baseIdx++
			} else {
				sideLines = append(sideLines, ops[i].Line)
			}
			i++
		}

		chunks = append(chunks, chunk{
			baseStart: chunkStart,
			baseEnd:   baseIdx,
			lines:     sideLines,
			changed:   true,
		})
	}

	return chunks
}

// mergeChunks walks two chunk sequences (ours and theirs) in parallel,
// aligned by base-line positions, to produce the merge result.
func mergeChunks(baseLines []string, oursChunks, theirsChunks []chunk) Result {
	var res Result
	var merged bytes.Buffer

	emitClean := func(base, ours, theirs, out []string) {
		writeLines(&merged, out)
		res.Hunks = append(res.Hunks, Hunk{
			Type:   HunkClean,
			Base:   joinLines(base),
			Ours:   joinLines(ours),
			Theirs: joinLines(theirs),
			Merged: joinLines(out),
		})
	}
	emitConflict := func(base, ours, theirs []string) {
		res.HasConflicts = true
		res.ConflictCount++
		writeConflict(&merged, ours, theirs)
		res.Hunks = append(res.Hunks, Hunk{
			Type:   HunkConflict,
			Base:   joinLines(base),
			Ours:   joinLines(ours),
			Theirs: joinLines(theirs),
		})
	}

	oi, ti := 0, 0
	for oi < len(oursChunks) || ti < len(theirsChunks) {
		var oc, tc *chunk
		if oi < len(oursChunks) {
			oc = &oursChunks[oi]
		}
		if ti < len(theirsChunks) {
			tc = &theirsChunks[ti]
		}

		if oc == nil {
			emitClean(baseLines[tc.baseStart:tc.baseEnd], nil, tc.lines, tc.lines)
			ti++
			continue
		}
		if tc == nil {
			emitClean(baseLines[oc.baseStart:oc.baseEnd], oc.lines, nil, oc.lines)
			oi++
			continue
		}

		if oc.baseStart == tc.baseStart && oc.baseEnd == tc.baseEnd {
			base := baseLines[oc.baseStart:oc.baseEnd]
			switch {
			case !oc.changed && !tc.changed:
				emitClean(base, nil, nil, oc.lines)
			case oc.changed && !tc.changed:
				emitClean(base, oc.lines, nil, oc.lines)
			case !oc.changed && tc.changed:
				emitClean(base, nil, tc.lines, tc.lines)
			case linesEqual(oc.lines, tc.lines):
				emitClean(base, oc.lines, tc.lines, oc.lines)
			default:
				emitConflict(base, oc.lines, tc.lines)
			}
			oi++
			ti++
			continue
		}

		// Chunks are misaligned: one side has a change that spans several
		// base-aligned chunks on the other side. Collect every chunk that
		// overlaps the widening region from both sides.
		regionStart := min(oc.baseStart, tc.baseStart)
		regionEnd := max(oc.baseEnd, tc.baseEnd)

		var oursRegion, theirsRegion []chunk
		for grew := true; grew; {
			grew = false
			for oi < len(oursChunks) && oursChunks[oi].baseStart < regionEnd {
				oursRegion = append(oursRegion, oursChunks[oi])
				if oursChunks[oi].baseEnd > regionEnd {
					regionEnd = oursChunks[oi].baseEnd
				}
				oi++
				grew = true
			}
			for ti < len(theirsChunks) && theirsChunks[ti].baseStart < regionEnd {
				theirsRegion = append(theirsRegion, theirsChunks[ti])
				if theirsChunks[ti].baseEnd > regionEnd {
					regionEnd = theirsChunks[ti].baseEnd
				}
				ti++
				grew = true
			}
		}

		oursOut := assembleRegion(oursRegion)
		theirsOut := assembleRegion(theirsRegion)
		baseRegion := baseLines[regionStart:regionEnd]

		switch oursChanged, theirsChanged := anyChanged(oursRegion), anyChanged(theirsRegion); {
		case !oursChanged && !theirsChanged:
			emitClean(baseRegion, nil, nil, baseRegion)
		case oursChanged && !theirsChanged:
			emitClean(baseRegion, oursOut, nil, oursOut)
		case !oursChanged && theirsChanged:
			emitClean(baseRegion, nil, theirsOut, theirsOut)
		case linesEqual(oursOut, theirsOut):
			emitClean(baseRegion, oursOut, theirsOut, oursOut)
		default:
			emitConflict(baseRegion, oursOut, theirsOut)
		}
	}

	res.Merged = merged.Bytes()
	return res
}

func writeLines(buf *bytes.Buffer, lines []string) {
	for _, l := range lines {
		buf.WriteString(l)
	}
}

func writeConflict(buf *bytes.Buffer, oursLines, theirsLines []string) {
	buf.WriteString("<<<<<<< ours\n")
	writeTerminated(buf, oursLines)
	buf.WriteString("=======\n")
	writeTerminated(buf, theirsLines)
	buf.WriteString(">>>>>>> theirs\n")
}

// writeTerminated writes lines and guarantees the output ends in a newline
// so conflict markers always start a line.
func writeTerminated(buf *bytes.Buffer, lines []string) {
	writeLines(buf, lines)
	if n := len(lines); n > 0 && !strings.HasSuffix(lines[n-1], "\n") {
		buf.WriteByte('\n')
	}
}

func joinLines(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	return []byte(strings.Join(lines, ""))
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func assembleRegion(chunks []chunk) []string {
	var lines []string
	for _, c := range chunks {
		lines = append(lines, c.lines...)
	}
	return lines
}

func anyChanged(chunks []chunk) bool {
	for _, c := range chunks {
		if c.changed {
			return true
		}
	}
	return false
}

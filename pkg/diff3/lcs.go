package diff3

import "slices"

// DiffType classifies a line in an edit script.
type DiffType int

const (
	Equal  DiffType = iota // in both a and b
	Insert                 // only in b
	Delete                 // only in a
)

// DiffOp is one step of an edit script produced by MyersDiff.
type DiffOp struct {
	Type DiffType
	Line string
}

// MyersDiff computes a shortest edit script turning a into b, comparing
// whole lines. It runs in O((N+M)*D) time for D edits.
func MyersDiff(a, b []string) []DiffOp {
	switch {
	case len(a) == 0 && len(b) == 0:
		return nil
	case len(a) == 0:
		return uniform(Insert, b)
	case len(b) == 0:
		return uniform(Delete, a)
	}
	ia, ib := internLines(a, b)
	return walkBack(forwardTrace(ia, ib), a, b)
}

func uniform(t DiffType, lines []string) []DiffOp {
	ops := make([]DiffOp, len(lines))
	for i, l := range lines {
		ops[i] = DiffOp{Type: t, Line: l}
	}
	return ops
}

// internLines maps every distinct line to a small integer so the search
// compares ints instead of strings.
func internLines(a, b []string) ([]int, []int) {
	ids := make(map[string]int, len(a))
	conv := func(lines []string) []int {
		out := make([]int, len(lines))
		for i, l := range lines {
			id, ok := ids[l]
			if !ok {
				id = len(ids)
				ids[l] = id
			}
			out[i] = id
		}
		return out
	}
	return conv(a), conv(b)
}

// forwardTrace runs the greedy forward search. Entry d of the result holds
// the furthest x reached on diagonals -d..d after d edits, indexed by k+d.
// The last entry is the distance at which the end was reached.
func forwardTrace(a, b []int) [][]int {
	n, m := len(a), len(b)
	limit := n + m
	off := limit + 1
	v := make([]int, 2*limit+3)

	var trace [][]int
	for d := 0; d <= limit; d++ {
		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[off+k-1] < v[off+k+1]) {
				x = v[off+k+1]
			} else {
				x = v[off+k-1] + 1
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			v[off+k] = x
			if x >= n && y >= m {
				return append(trace, slices.Clone(v[off-d:off+d+1]))
			}
		}
		trace = append(trace, slices.Clone(v[off-d:off+d+1]))
	}
	return trace
}

// walkBack rebuilds the edit script from the end of both inputs, choosing
// at each distance the move the forward search took.
func walkBack(trace [][]int, a, b []string) []DiffOp {
	x, y := len(a), len(b)
	ops := make([]DiffOp, 0, x+y)

	for d := len(trace) - 1; d > 0; d-- {
		prev := trace[d-1]
		at := func(k int) int { return prev[k+d-1] }

		k := x - y
		prevK := k - 1
		if k == -d || (k != d && at(k-1) < at(k+1)) {
			prevK = k + 1
		}
		prevX := at(prevK)
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			x--
			y--
			ops = append(ops, DiffOp{Type: Equal, Line: a[x]})
		}
		if prevK == k-1 {
			x--
			ops = append(ops, DiffOp{Type: Delete, Line: a[x]})
		} else {
			y--
			ops = append(ops, DiffOp{Type: Insert, Line: b[y]})
		}
	}
	for x > 0 && y > 0 {
		x--
		y--
		ops = append(ops, DiffOp{Type: Equal, Line: a[x]})
	}

	slices.Reverse(ops)
	return ops
}

package repo

import (
	"container/heap"
	"fmt"
	"sync"

	"github.com/odvcencio/lanes/pkg/object"
)

const maxMergeBaseSteps = 1_000_000

// mergeBaseStepsLimit lets tests tighten the traversal bound.
var mergeBaseStepsLimit = maxMergeBaseSteps

// FindMergeBase returns the best common ancestor of a and b: the one with
// the highest generation number, ties broken by the smaller id. The null id
// is returned when the histories are unrelated.
//
// Commits are painted from both tips in generation order, so every commit
// is visited after all of its descendants and the first commit reached from
// both sides at the highest generation is the answer.
func (r *Repo) FindMergeBase(a, b object.Hash) (object.Hash, error) {
	if a.IsNull() || b.IsNull() {
		return "", nil
	}
	if a == b {
		return a, nil
	}

	state := r.getMergeTraversalState()
	if base, ok := state.loadMergeBase(a, b); ok {
		return base, nil
	}
	base, err := r.paintMergeBase(state, a, b)
	if err != nil {
		return "", err
	}
	state.storeMergeBase(a, b, base)
	return base, nil
}

// FindMergeBaseOctopus folds FindMergeBase over hashes left to right. It
// returns the null id when any pair is unrelated or hashes is empty.
func (r *Repo) FindMergeBaseOctopus(hashes ...object.Hash) (object.Hash, error) {
	if len(hashes) == 0 {
		return "", nil
	}
	base := hashes[0]
	for _, h := range hashes[1:] {
		next, err := r.FindMergeBase(base, h)
		if err != nil {
			return "", err
		}
		if next.IsNull() {
			return "", nil
		}
		base = next
	}
	return base, nil
}

type paint uint8

const (
	paintA paint = 1 << iota
	paintB
	paintBoth = paintA | paintB
)

func (r *Repo) paintMergeBase(state *mergeBaseTraversalState, a, b object.Hash) (object.Hash, error) {
	genA, err := state.generation(r, a)
	if err != nil {
		return "", err
	}
	genB, err := state.generation(r, b)
	if err != nil {
		return "", err
	}

	painted := map[object.Hash]paint{a: paintA, b: paintB}
	queue := mergeBaseMaxHeap{{hash: a, generation: genA}, {hash: b, generation: genB}}
	heap.Init(&queue)

	var best object.Hash
	var bestGeneration uint64
	limit := mergeBaseStepsLimit
	if limit <= 0 || limit > maxMergeBaseSteps {
		limit = maxMergeBaseSteps
	}

	for steps := 0; queue.Len() > 0; steps++ {
		if steps >= limit {
			return "", fmt.Errorf("find merge base: traversal exceeded maximum steps (%d)", limit)
		}
		item := heap.Pop(&queue).(mergeBaseQueueItem)
		if !best.IsNull() && item.generation < bestGeneration {
			break
		}
		p := painted[item.hash]
		if p == paintBoth {
			best, bestGeneration = chooseBetterMergeBase(best, bestGeneration, item.hash, item.generation)
			continue
		}

		commit, err := state.readCommit(r, item.hash)
		if err != nil {
			return "", err
		}
		for _, parent := range commit.Parents {
			if parent.IsNull() {
				continue
			}
			old := painted[parent]
			if old|p == old {
				continue
			}
			painted[parent] = old | p
			g, err := state.generation(r, parent)
			if err != nil {
				return "", err
			}
			heap.Push(&queue, mergeBaseQueueItem{hash: parent, generation: g})
		}
	}
	return best, nil
}

func chooseBetterMergeBase(best object.Hash, bestGeneration uint64, candidate object.Hash, candidateGeneration uint64) (object.Hash, uint64) {
	switch {
	case best.IsNull(), candidateGeneration > bestGeneration:
		return candidate, candidateGeneration
	case candidateGeneration == bestGeneration && candidate < best:
		return candidate, candidateGeneration
	default:
		return best, bestGeneration
	}
}

type mergeBaseQueueItem struct {
	hash       object.Hash
	generation uint64
}

// mergeBaseMaxHeap pops the highest generation first.
type mergeBaseMaxHeap []mergeBaseQueueItem

func (h mergeBaseMaxHeap) Len() int { return len(h) }

func (h mergeBaseMaxHeap) Less(i, j int) bool {
	if h[i].generation == h[j].generation {
		return h[i].hash < h[j].hash
	}
	return h[i].generation > h[j].generation
}

func (h mergeBaseMaxHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeBaseMaxHeap) Push(x any) { *h = append(*h, x.(mergeBaseQueueItem)) }

func (h *mergeBaseMaxHeap) Pop() any {
	old := *h
	item := old[len(old)-1]
	*h = old[:len(old)-1]
	return item
}

// mergeBaseTraversalState caches commits, generation numbers and answered
// pairs for the lifetime of a Repo.
type mergeBaseTraversalState struct {
	mu          sync.Mutex
	commits     map[object.Hash]*object.CommitObj
	generations map[object.Hash]uint64
	mergeBases  map[[2]object.Hash]object.Hash
}

func newMergeBaseTraversalState() *mergeBaseTraversalState {
	return &mergeBaseTraversalState{
		commits:     make(map[object.Hash]*object.CommitObj),
		generations: make(map[object.Hash]uint64),
		mergeBases:  make(map[[2]object.Hash]object.Hash),
	}
}

func mergeBaseKey(a, b object.Hash) [2]object.Hash {
	if b < a {
		a, b = b, a
	}
	return [2]object.Hash{a, b}
}

func (s *mergeBaseTraversalState) loadMergeBase(a, b object.Hash) (object.Hash, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	base, ok := s.mergeBases[mergeBaseKey(a, b)]
	return base, ok
}

func (s *mergeBaseTraversalState) storeMergeBase(a, b, base object.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mergeBases[mergeBaseKey(a, b)] = base
}

func (s *mergeBaseTraversalState) readCommit(r *Repo, h object.Hash) (*object.CommitObj, error) {
	s.mu.Lock()
	cached, ok := s.commits[h]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}
	commit, err := r.Store.ReadCommit(h)
	if err != nil {
		return nil, fmt.Errorf("find merge base: read commit %s: %w", h, err)
	}
	s.mu.Lock()
	s.commits[h] = commit
	s.mu.Unlock()
	return commit, nil
}

// generation returns 1 + the highest parent generation; root commits are 1.
// Parents are resolved with an explicit stack so long histories do not grow
// the goroutine stack. Content addressing rules out cycles.
func (s *mergeBaseTraversalState) generation(r *Repo, h object.Hash) (uint64, error) {
	if h.IsNull() {
		return 0, nil
	}
	stack := []object.Hash{h}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		s.mu.Lock()
		_, done := s.generations[cur]
		s.mu.Unlock()
		if done {
			stack = stack[:len(stack)-1]
			continue
		}

		commit, err := s.readCommit(r, cur)
		if err != nil {
			return 0, err
		}
		var maxParent uint64
		pending := false
		s.mu.Lock()
		for _, p := range commit.Parents {
			if p.IsNull() {
				continue
			}
			pg, ok := s.generations[p]
			if !ok {
				stack = append(stack, p)
				pending = true
				continue
			}
			maxParent = max(maxParent, pg)
		}
		if !pending {
			s.generations[cur] = maxParent + 1
			stack = stack[:len(stack)-1]
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[h], nil
}

package reorder

import (
	"container/heap"

	"github.com/RoaringBitmap/roaring/v2"
)

// Gorder computes a windowed Gorder-style placement: starting from the node
// of highest degree, it repeatedly appends the unplaced node with the most
// link overlap against the last window placed nodes. A candidate c scores
// one point for every window node that links to c and one for every window
// node c links to; ties resolve toward the lower id.
func Gorder(adj [][]uint32, window int) []uint32 {
	n := len(adj)
	if window < 1 {
		window = 1
	}

	in := reverse(adj)

	scores := make([]int, n)
	placed := roaring.New()

	// Lazy max-heap: entries are (score, id) snapshots, stale ones are
	// skipped on pop. Seeding every node guarantees isolated nodes are
	// eventually drawn too.
	pq := &scoreHeap{}
	for id := 0; id < n; id++ {
		heap.Push(pq, scoreEntry{score: 0, id: uint32(id)})
	}

	bump := func(id uint32, delta int) {
		if placed.Contains(id) {
			return
		}
		scores[id] += delta
		heap.Push(pq, scoreEntry{score: scores[id], id: id})
	}

	order := make([]uint32, 0, n)
	ring := make([]uint32, 0, window)

	place := func(u uint32) {
		placed.Add(u)
		order = append(order, u)

		if len(ring) == window {
			old := ring[0]
			ring = ring[1:]
			for _, v := range adj[old] {
				bump(v, -1)
			}
			for _, v := range in[old] {
				bump(v, -1)
			}
		}
		ring = append(ring, u)

		for _, v := range adj[u] {
			bump(v, 1)
		}
		for _, v := range in[u] {
			bump(v, 1)
		}
	}

	// Seed with the highest-degree node, ties toward the lower id.
	if n > 0 {
		seed := uint32(0)
		best := -1
		for id := 0; id < n; id++ {
			deg := len(adj[id]) + len(in[id])
			if deg > best {
				best = deg
				seed = uint32(id)
			}
		}
		place(seed)
	}

	for len(order) < n {
		e := heap.Pop(pq).(scoreEntry)
		if placed.Contains(e.id) || scores[e.id] != e.score {
			continue
		}
		place(e.id)
	}

	return permFromOrder(order)
}

type scoreEntry struct {
	score int
	id    uint32
}

type scoreHeap struct {
	entries []scoreEntry
}

func (h *scoreHeap) Len() int { return len(h.entries) }

func (h *scoreHeap) Less(i, j int) bool {
	if h.entries[i].score != h.entries[j].score {
		return h.entries[i].score > h.entries[j].score
	}
	return h.entries[i].id < h.entries[j].id
}

func (h *scoreHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
}

func (h *scoreHeap) Push(x any) {
	h.entries = append(h.entries, x.(scoreEntry))
}

func (h *scoreHeap) Pop() any {
	old := h.entries
	n := len(old)
	e := old[n-1]
	h.entries = old[:n-1]
	return e
}

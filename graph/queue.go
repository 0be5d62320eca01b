package graph

import "container/heap"

// candidate pairs a node with its distance to the current query.
type candidate struct {
	dist float32
	node uint32
}

// candidateHeap is a binary heap of candidates. With max=false the nearest
// candidate is on top (frontier ordering); with max=true the farthest is on
// top (result-beam ordering).
type candidateHeap struct {
	items []candidate
	max   bool
}

func (h *candidateHeap) Len() int { return len(h.items) }

func (h *candidateHeap) Less(i, j int) bool {
	if h.max {
		return h.items[i].dist > h.items[j].dist
	}
	return h.items[i].dist < h.items[j].dist
}

func (h *candidateHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
}

func (h *candidateHeap) Push(x any) {
	h.items = append(h.items, x.(candidate))
}

func (h *candidateHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

func (h *candidateHeap) push(c candidate) {
	heap.Push(h, c)
}

func (h *candidateHeap) pop() candidate {
	return heap.Pop(h).(candidate)
}

// top returns the root without removing it.
func (h *candidateHeap) top() candidate {
	return h.items[0]
}

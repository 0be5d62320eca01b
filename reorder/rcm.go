package reorder

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
)

// RCM computes a reverse Cuthill-McKee permutation over the undirected
// interpretation of the adjacency. Weakly connected components are
// processed in descending size order; within a component the BFS starts at
// a node of minimum degree and expands each level's unvisited neighbors in
// ascending degree order. The concatenated BFS order is reversed to give
// the final placement.
func RCM(adj [][]uint32) []uint32 {
	n := len(adj)
	und := undirected(adj)

	components := componentsBySize(und)

	order := make([]uint32, 0, n)
	visited := roaring.New()

	for _, comp := range components {
		start := comp[0]
		for _, node := range comp {
			if len(und[node]) < len(und[start]) || (len(und[node]) == len(und[start]) && node < start) {
				start = node
			}
		}

		queue := []uint32{start}
		visited.Add(start)
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			order = append(order, u)

			var next []uint32
			for _, v := range und[u] {
				if !visited.Contains(v) {
					visited.Add(v)
					next = append(next, v)
				}
			}
			sortByDegree(next, func(v uint32) int { return len(und[v]) })
			queue = append(queue, next...)
		}
	}

	// Reverse Cuthill-McKee: the BFS order is emitted back to front.
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return permFromOrder(order)
}

// componentsBySize returns the connected components of the undirected
// graph, largest first; equal-sized components order by their smallest
// member id.
func componentsBySize(und [][]uint32) [][]uint32 {
	n := len(und)
	remaining := roaring.New()
	remaining.AddRange(0, uint64(n))

	var components [][]uint32
	for !remaining.IsEmpty() {
		seed := remaining.Minimum()
		remaining.Remove(seed)

		comp := []uint32{seed}
		queue := []uint32{seed}
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			for _, v := range und[u] {
				if remaining.Contains(v) {
					remaining.Remove(v)
					comp = append(comp, v)
					queue = append(queue, v)
				}
			}
		}
		components = append(components, comp)
	}

	sort.SliceStable(components, func(i, j int) bool {
		if len(components[i]) != len(components[j]) {
			return len(components[i]) > len(components[j])
		}
		return components[i][0] < components[j][0]
	})
	return components
}

// Package reorder computes node-id permutations that improve the cache
// locality of a proximity graph's arena layout. Two generators are
// provided: reverse Cuthill-McKee bandwidth reduction and a windowed
// Gorder-style greedy ordering. Both take the out-degree adjacency of the
// graph (self-loops already removed) and return a permutation P with
// P[old] = new, ready for the graph engine's Relabel.
package reorder

import (
	"slices"
	"sort"
)

// undirected builds deduplicated undirected neighbor lists from the
// out-degree table.
func undirected(adj [][]uint32) [][]uint32 {
	und := make([][]uint32, len(adj))
	for u, links := range adj {
		for _, v := range links {
			if int(v) == u {
				continue
			}
			und[u] = append(und[u], v)
			und[v] = append(und[v], uint32(u))
		}
	}
	for u := range und {
		slices.Sort(und[u])
		und[u] = slices.Compact(und[u])
	}
	return und
}

// reverse builds the in-degree table of the out-degree table.
func reverse(adj [][]uint32) [][]uint32 {
	in := make([][]uint32, len(adj))
	for u, links := range adj {
		for _, v := range links {
			in[v] = append(in[v], uint32(u))
		}
	}
	return in
}

// permFromOrder converts a placement order (order[pos] = node) into a
// permutation (perm[node] = pos).
func permFromOrder(order []uint32) []uint32 {
	perm := make([]uint32, len(order))
	for pos, node := range order {
		perm[node] = uint32(pos)
	}
	return perm
}

// sortByDegree sorts nodes ascending by degree, ties toward the lower id.
func sortByDegree(nodes []uint32, degree func(uint32) int) {
	sort.Slice(nodes, func(i, j int) bool {
		di, dj := degree(nodes[i]), degree(nodes[j])
		if di != dj {
			return di < dj
		}
		return nodes[i] < nodes[j]
	})
}

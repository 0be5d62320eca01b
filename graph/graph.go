// Package graph implements a single-layer navigable proximity graph over a
// flat, contiguous node arena. Every node record holds its data region
// (raw vector or PQ code), a fixed number of out-links, and a caller label;
// unused link slots carry the node's own id as a self-loop. Construction
// follows the beam-search + RNG-style pruning scheme: each insertion finds
// an entry point by striding over the allocated range, beam-searches for
// candidates, prunes them for directional coverage, and back-links with
// re-pruning of saturated neighbors.
package graph

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidEF indicates a search beam width smaller than k.
type ErrInvalidEF struct {
	EF int
	K  int
}

func (e *ErrInvalidEF) Error() string {
	return fmt.Sprintf("search beam width %d must be at least k=%d", e.EF, e.K)
}

// ErrInvalidPermutation indicates a relabel permutation that is not a
// bijection over the allocated nodes.
type ErrInvalidPermutation struct {
	Reason string
}

func (e *ErrInvalidPermutation) Error() string {
	return "invalid permutation: " + e.Reason
}

// Result is one search hit.
type Result struct {
	Distance float32
	Label    uint64
}

const labelSize = 8

// Index is a flat navigable graph over a pre-allocated node arena.
//
// Construction is single-writer: Add must not be called concurrently.
// Searches are read-only and may run concurrently with each other (each one
// draws its own visited scratch from a pool), but not with Add or Relabel.
type Index struct {
	space Space

	m          int // out-degree of every node
	dataSize   int
	recordSize int
	maxNodes   int
	curNodes   int

	// memory is the contiguous node arena: maxNodes records of
	// [data][m links][label], addressable by id in O(1).
	memory []byte

	// queryScratch stages the stored form of an inserted vector; it is part
	// of the snapshot format.
	queryScratch []byte

	visitedCap int
	visited    sync.Pool
}

// New creates an empty index over the given space with capacity maxNodes
// and out-degree maxEdges.
func New(space Space, maxNodes, maxEdges int) (*Index, error) {
	if maxNodes <= 0 || maxNodes > math.MaxUint32 {
		return nil, fmt.Errorf("graph: invalid capacity %d", maxNodes)
	}
	if maxEdges <= 0 {
		return nil, fmt.Errorf("graph: invalid out-degree %d", maxEdges)
	}

	dataSize := space.DataSize()
	recordSize := dataSize + maxEdges*4 + labelSize

	ix := &Index{
		space:        space,
		m:            maxEdges,
		dataSize:     dataSize,
		recordSize:   recordSize,
		maxNodes:     maxNodes,
		memory:       make([]byte, maxNodes*recordSize),
		queryScratch: make([]byte, dataSize),
		visitedCap:   maxNodes + 1,
	}
	ix.visited.New = func() any { return newVisitedSet(ix.visitedCap) }
	return ix, nil
}

// Len returns the number of allocated nodes.
func (ix *Index) Len() int { return ix.curNodes }

// Cap returns the maximum node count.
func (ix *Index) Cap() int { return ix.maxNodes }

// MaxEdges returns the fixed out-degree.
func (ix *Index) MaxEdges() int { return ix.m }

// Dimension returns the vector dimensionality.
func (ix *Index) Dimension() int { return ix.space.Dimension() }

// DataSize returns the byte size of one stored data region.
func (ix *Index) DataSize() int { return ix.dataSize }

// RecordSize returns the byte size of one node record.
func (ix *Index) RecordSize() int { return ix.recordSize }

// Space returns the distance space the index was built over.
func (ix *Index) Space() Space { return ix.space }

func (ix *Index) nodeData(id uint32) []byte {
	off := int(id) * ix.recordSize
	return ix.memory[off : off+ix.dataSize]
}

func (ix *Index) linkRegion(id uint32) []byte {
	off := int(id)*ix.recordSize + ix.dataSize
	return ix.memory[off : off+ix.m*4]
}

func (ix *Index) link(id uint32, slot int) uint32 {
	return binary.LittleEndian.Uint32(ix.linkRegion(id)[slot*4:])
}

func (ix *Index) setLink(id uint32, slot int, target uint32) {
	binary.LittleEndian.PutUint32(ix.linkRegion(id)[slot*4:], target)
}

// Label returns the caller label of a node.
func (ix *Index) Label(id uint32) uint64 {
	off := int(id)*ix.recordSize + ix.dataSize + ix.m*4
	return binary.LittleEndian.Uint64(ix.memory[off:])
}

func (ix *Index) setLabel(id uint32, label uint64) {
	off := int(id)*ix.recordSize + ix.dataSize + ix.m*4
	binary.LittleEndian.PutUint64(ix.memory[off:], label)
}

// Add inserts a vector with its label. It returns false without mutating
// the index when the arena is full. efConstruction is the construction beam
// width, numInits the entry-selection sample count.
func (ix *Index) Add(vec []float32, label uint64, efConstruction, numInits int) (bool, error) {
	if len(vec) != ix.space.Dimension() {
		return false, &ErrDimensionMismatch{Expected: ix.space.Dimension(), Actual: len(vec)}
	}
	if ix.curNodes >= ix.maxNodes {
		return false, nil
	}

	eval := ix.space.Prepare(vec)

	// Entry selection runs before allocation: the new node would otherwise
	// win with distance zero and strand itself without links.
	var entry uint32
	if ix.curNodes > 0 {
		entry = ix.initializeSearch(eval, numInits)
	}

	id := ix.allocate(vec, label)
	if id == 0 {
		// First node has nothing to link against.
		return true, nil
	}

	neighbors := ix.beamSearch(eval, entry, efConstruction)
	selected := ix.selectNeighbors(neighbors, ix.m)
	ix.connect(id, selected)
	return true, nil
}

// allocate writes the record for the next node id: stored data form, label,
// and a link region full of self-loops.
func (ix *Index) allocate(vec []float32, label uint64) uint32 {
	id := uint32(ix.curNodes)

	ix.space.Transform(ix.queryScratch, vec)
	copy(ix.nodeData(id), ix.queryScratch)
	ix.setLabel(id, label)
	for slot := 0; slot < ix.m; slot++ {
		ix.setLink(id, slot, id)
	}

	ix.curNodes++
	return id
}

// initializeSearch picks the entry node by striding through the allocated
// range with step curNodes/numInits (minimum 1) and keeping the node
// nearest to the query.
func (ix *Index) initializeSearch(eval QueryDist, numInits int) uint32 {
	if numInits < 1 {
		numInits = 1
	}
	step := ix.curNodes / numInits
	if step < 1 {
		step = 1
	}

	minDist := float32(math.MaxFloat32)
	var entry uint32
	for node := 0; node < ix.curNodes; node += step {
		d := eval(ix.nodeData(uint32(node)))
		if d < minDist {
			minDist = d
			entry = uint32(node)
		}
	}
	return entry
}

// beamSearch is a best-first traversal keeping the beamWidth nearest nodes
// found so far. It returns the result beam, unordered.
func (ix *Index) beamSearch(eval QueryDist, entry uint32, beamWidth int) []candidate {
	if beamWidth < 1 {
		beamWidth = 1
	}

	vs := ix.visited.Get().(*visitedSet)
	defer func() {
		vs.reset()
		ix.visited.Put(vs)
	}()

	entryDist := eval(ix.nodeData(entry))

	frontier := &candidateHeap{items: make([]candidate, 0, beamWidth)}
	results := &candidateHeap{items: make([]candidate, 0, beamWidth+1), max: true}

	frontier.push(candidate{dist: entryDist, node: entry})
	results.push(candidate{dist: entryDist, node: entry})
	vs.visit(entry)
	worst := entryDist

	for frontier.Len() > 0 {
		cur := frontier.top()
		if cur.dist > worst {
			break
		}
		frontier.pop()

		for slot := 0; slot < ix.m; slot++ {
			next := ix.link(cur.node, slot)
			if next == cur.node || vs.visited(next) {
				continue
			}
			vs.visit(next)

			d := eval(ix.nodeData(next))
			if results.Len() < beamWidth || d < worst {
				frontier.push(candidate{dist: d, node: next})
				results.push(candidate{dist: d, node: next})
				if results.Len() > beamWidth {
					results.pop()
				}
				worst = results.top().dist
			}
		}
	}

	return results.items
}

// selectNeighbors prunes candidates down to at most m using the
// relative-neighborhood heuristic: scanning in ascending distance order, a
// candidate survives only if it is closer to the query than to every
// already-accepted neighbor. Rejected candidates backfill remaining slots
// in the same order, so a candidate set larger than m always yields
// exactly m neighbors.
func (ix *Index) selectNeighbors(candidates []candidate, m int) []candidate {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].node < candidates[j].node
	})

	if len(candidates) <= m {
		return candidates
	}

	accepted := make([]candidate, 0, m)
	rejected := make([]candidate, 0, len(candidates))

	for _, c := range candidates {
		if len(accepted) >= m {
			break
		}
		keep := true
		for _, a := range accepted {
			if ix.space.Symmetric(ix.nodeData(a.node), ix.nodeData(c.node)) < c.dist {
				keep = false
				break
			}
		}
		if keep {
			accepted = append(accepted, c)
		} else {
			rejected = append(rejected, c)
		}
	}

	for _, c := range rejected {
		if len(accepted) >= m {
			break
		}
		accepted = append(accepted, c)
	}
	return accepted
}

// connect writes the selected neighbors into the new node's link region and
// back-links each neighbor, re-pruning neighbors whose link regions are
// already saturated.
func (ix *Index) connect(id uint32, selected []candidate) {
	if len(selected) > ix.m {
		panic(fmt.Sprintf("graph: neighbor selection returned %d > %d links", len(selected), ix.m))
	}

	for i, sel := range selected {
		ix.setLink(id, i, sel.node)
		ix.backLink(sel.node, id)
	}
}

// backLink makes neighbor point at id. A free self-loop slot is consumed if
// one exists; otherwise the neighbor's links plus the new node are re-pruned
// as one candidate set so the heuristic decides who stays.
func (ix *Index) backLink(neighbor, id uint32) {
	for slot := 0; slot < ix.m; slot++ {
		if ix.link(neighbor, slot) == neighbor {
			ix.setLink(neighbor, slot, id)
			return
		}
	}

	neighborData := ix.nodeData(neighbor)
	candidates := make([]candidate, 0, ix.m+1)
	candidates = append(candidates, candidate{
		dist: ix.space.Symmetric(neighborData, ix.nodeData(id)),
		node: id,
	})
	for slot := 0; slot < ix.m; slot++ {
		target := ix.link(neighbor, slot)
		if target == neighbor {
			continue
		}
		candidates = append(candidates, candidate{
			dist: ix.space.Symmetric(neighborData, ix.nodeData(target)),
			node: target,
		})
	}

	selected := ix.selectNeighbors(candidates, ix.m)

	slot := 0
	for _, sel := range selected {
		ix.setLink(neighbor, slot, sel.node)
		slot++
	}
	for ; slot < ix.m; slot++ {
		ix.setLink(neighbor, slot, neighbor)
	}
}

// Search returns the k nodes nearest to q, sorted by ascending distance.
// efSearch is the search beam width and must be at least k.
func (ix *Index) Search(q []float32, k, efSearch, numInits int) ([]Result, error) {
	if len(q) != ix.space.Dimension() {
		return nil, &ErrDimensionMismatch{Expected: ix.space.Dimension(), Actual: len(q)}
	}
	if k < 1 {
		return nil, fmt.Errorf("graph: k must be positive, got %d", k)
	}
	if efSearch < k {
		return nil, &ErrInvalidEF{EF: efSearch, K: k}
	}
	if ix.curNodes == 0 {
		return nil, nil
	}

	eval := ix.space.Prepare(q)
	entry := ix.initializeSearch(eval, numInits)
	beam := ix.beamSearch(eval, entry, efSearch)

	slices.SortFunc(beam, func(a, b candidate) int {
		if a.dist != b.dist {
			if a.dist < b.dist {
				return -1
			}
			return 1
		}
		return int(a.node) - int(b.node)
	})
	if len(beam) > k {
		beam = beam[:k]
	}

	results := make([]Result, len(beam))
	for i, c := range beam {
		results[i] = Result{Distance: c.dist, Label: ix.Label(c.node)}
	}
	return results, nil
}

// BruteSearch scans every allocated node and returns the exact top k under
// the space's query distance. It exists as a recall baseline for tests and
// benchmarks, not as a serving path.
func (ix *Index) BruteSearch(q []float32, k int) ([]Result, error) {
	if len(q) != ix.space.Dimension() {
		return nil, &ErrDimensionMismatch{Expected: ix.space.Dimension(), Actual: len(q)}
	}
	if k < 1 {
		return nil, fmt.Errorf("graph: k must be positive, got %d", k)
	}

	eval := ix.space.Prepare(q)
	top := &candidateHeap{items: make([]candidate, 0, k+1), max: true}
	for node := 0; node < ix.curNodes; node++ {
		d := eval(ix.nodeData(uint32(node)))
		if top.Len() < k {
			top.push(candidate{dist: d, node: uint32(node)})
		} else if d < top.top().dist {
			top.push(candidate{dist: d, node: uint32(node)})
			top.pop()
		}
	}

	results := make([]Result, top.Len())
	for i := len(results) - 1; i >= 0; i-- {
		c := top.pop()
		results[i] = Result{Distance: c.dist, Label: ix.Label(c.node)}
	}
	return results, nil
}

// OutNeighbors appends node's out-links, excluding self-loops, to dst and
// returns it. Used by the relabelers to build the adjacency.
func (ix *Index) OutNeighbors(node uint32, dst []uint32) []uint32 {
	for slot := 0; slot < ix.m; slot++ {
		target := ix.link(node, slot)
		if target != node {
			dst = append(dst, target)
		}
	}
	return dst
}

// Adjacency returns the out-degree table of the allocated nodes with
// self-loops removed.
func (ix *Index) Adjacency() [][]uint32 {
	adj := make([][]uint32, ix.curNodes)
	for node := 0; node < ix.curNodes; node++ {
		adj[node] = ix.OutNeighbors(uint32(node), nil)
	}
	return adj
}

// Relabel permutes node ids in place: perm maps old id to new id and must
// be a bijection over [0, Len()). Link contents and record locations are
// updated consistently, so the graph is unchanged up to renaming.
// Applying the identity permutation is a no-op.
func (ix *Index) Relabel(perm []uint32) error {
	if len(perm) != ix.curNodes {
		return &ErrInvalidPermutation{Reason: fmt.Sprintf("length %d, want %d", len(perm), ix.curNodes)}
	}
	seen := make([]bool, ix.curNodes)
	for _, p := range perm {
		if int(p) >= ix.curNodes {
			return &ErrInvalidPermutation{Reason: fmt.Sprintf("target %d out of range", p)}
		}
		if seen[p] {
			return &ErrInvalidPermutation{Reason: fmt.Sprintf("target %d duplicated", p)}
		}
		seen[p] = true
	}

	// Rewire link contents first, self-loops included: a self-loop at old
	// id n becomes a self-loop at perm[n] once the record moves.
	for node := 0; node < ix.curNodes; node++ {
		for slot := 0; slot < ix.m; slot++ {
			ix.setLink(uint32(node), slot, perm[ix.link(uint32(node), slot)])
		}
	}

	// Permute record storage by cycle-following; each record is written to
	// its final position exactly once.
	moved := make([]bool, ix.curNodes)
	carry := make([]byte, ix.recordSize)
	swap := make([]byte, ix.recordSize)

	for start := 0; start < ix.curNodes; start++ {
		if moved[start] || int(perm[start]) == start {
			moved[start] = true
			continue
		}

		copy(carry, ix.record(uint32(start)))
		moved[start] = true
		pos := perm[start]
		for int(pos) != start {
			copy(swap, ix.record(pos))
			copy(ix.record(pos), carry)
			carry, swap = swap, carry
			moved[pos] = true
			pos = perm[pos]
		}
		copy(ix.record(uint32(start)), carry)
	}
	return nil
}

func (ix *Index) record(id uint32) []byte {
	off := int(id) * ix.recordSize
	return ix.memory[off : off+ix.recordSize]
}

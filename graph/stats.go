package graph

// Stats summarizes the memory and link structure of an index.
type Stats struct {
	Nodes      int // allocated nodes
	Capacity   int // maximum nodes
	Dimension  int
	MaxEdges   int
	ArenaBytes int // size of the node arena
	Edges      int // live out-links across all nodes
	SelfLoops  int // unused link slots
}

// Stats walks the link regions of all allocated nodes.
func (ix *Index) Stats() Stats {
	s := Stats{
		Nodes:      ix.curNodes,
		Capacity:   ix.maxNodes,
		Dimension:  ix.space.Dimension(),
		MaxEdges:   ix.m,
		ArenaBytes: len(ix.memory),
	}
	for node := 0; node < ix.curNodes; node++ {
		for slot := 0; slot < ix.m; slot++ {
			if ix.link(uint32(node), slot) == uint32(node) {
				s.SelfLoops++
			} else {
				s.Edges++
			}
		}
	}
	return s
}

package balltree

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Stats summarizes a built tree's shape, used to sanity-check the balance
// guarantee from spec.md §3 ("balanced well enough to yield O(log N)
// expected radius queries; exact balance is not required") without
// asserting it exactly.
type Stats struct {
	Leaves       int
	Depth        int
	MeanLeafSize float64
	P50LeafSize  float64
	P95LeafSize  float64
}

// CollectStats walks t and computes leaf-size and depth statistics.
func CollectStats(t *Tree) Stats {
	var sizes []float64
	maxDepth := 0
	walkStats(t.Root, 0, &sizes, &maxDepth)

	sorted := append([]float64(nil), sizes...)
	sort.Float64s(sorted)

	s := Stats{Leaves: len(sizes), Depth: maxDepth}
	if len(sorted) > 0 {
		s.MeanLeafSize = stat.Mean(sorted, nil)
		s.P50LeafSize = stat.Quantile(0.5, stat.Empirical, sorted, nil)
		s.P95LeafSize = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	}
	return s
}

func walkStats(n *Node, depth int, sizes *[]float64, maxDepth *int) {
	if n == nil {
		return
	}
	if depth > *maxDepth {
		*maxDepth = depth
	}
	if n.IsLeaf {
		*sizes = append(*sizes, float64(len(n.SegmentIDs)))
		return
	}
	walkStats(n.Left, depth+1, sizes, maxDepth)
	walkStats(n.Right, depth+1, sizes, maxDepth)
}

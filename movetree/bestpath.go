package movetree

// WinPercent is the node's historical win rate in [0, 100]. A node with no
// recorded matches reports 0 so the value never goes NaN.
func (n *MoveNode) WinPercent() float64 {
	total := n.Wins + n.Losses
	if total == 0 {
		return 0
	}
	return 100 * float64(n.Wins) / float64(total)
}

// LosePercent is the complement of WinPercent, 0 when no matches recorded.
func (n *MoveNode) LosePercent() float64 {
	total := n.Wins + n.Losses
	if total == 0 {
		return 0
	}
	return 100 * float64(n.Losses) / float64(total)
}

// BestPath is the result of StatisticallyBest: the root-to-leaf node list
// (root excluded) with the highest mean per-node win percent.
type BestPath struct {
	Path              []*MoveNode
	AverageWinPercent float64
}

// StatisticallyBest enumerates every root-to-leaf path under root and
// returns the one with the strictly greatest mean win percent over its
// nodes. Ties keep the first path found in traversal order; child order is
// stable, so the tie-break is deterministic.
//
// A root with no children yields an empty path and a 0 average. Callers
// must read that as "no statistical basis, fall back to another move
// policy", not as an error.
func StatisticallyBest(root *MoveNode) BestPath {
	best := BestPath{}
	found := false

	EnumeratePaths(root, func(path []*MoveNode) {
		if len(path) == 0 {
			return
		}
		sum := 0.0
		for _, n := range path {
			sum += n.WinPercent()
		}
		avg := sum / float64(len(path))
		if !found || avg > best.AverageWinPercent {
			best = BestPath{Path: path, AverageWinPercent: avg}
			found = true
		}
	})

	return best
}

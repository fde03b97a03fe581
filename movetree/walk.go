package movetree

// WalkPath follows path from n, scanning each level's children for the next
// hash and invoking visit on every node reached. It stops after maxDepth
// steps when maxDepth >= 0. The walk is a linear scan per level, which is
// fine at this branching factor.
//
// It returns true iff the full path (or the full maxDepth prefix of it) was
// matched. On the first missing step it returns false without attempting
// further steps.
func WalkPath(n *MoveNode, path []PerspectiveHash, visit func(*MoveNode), maxDepth int) bool {
	cur := n
	for depth, want := range path {
		if maxDepth >= 0 && depth >= maxDepth {
			return true
		}
		next := cur.FindChild(want)
		if next == nil {
			return false
		}
		if visit != nil {
			visit(next)
		}
		cur = next
	}
	return true
}

// EnumeratePaths performs a depth-first traversal of the subtree under n,
// invoking visit once per leaf with the ordered node list from (excluding)
// n down to that leaf. Each callback receives an independent copy, safe to
// retain after the callback returns. The traversal is stateless and can be
// repeated.
func EnumeratePaths(n *MoveNode, visit func([]*MoveNode)) {
	if n == nil || visit == nil {
		return
	}
	var trail []*MoveNode
	var dfs func(cur *MoveNode)
	dfs = func(cur *MoveNode) {
		if len(cur.children) == 0 {
			out := make([]*MoveNode, len(trail))
			copy(out, trail)
			visit(out)
			return
		}
		for _, c := range cur.children {
			trail = append(trail, c)
			dfs(c)
			trail = trail[:len(trail)-1]
		}
	}
	if len(n.children) == 0 {
		return
	}
	dfs(n)
}

// Merge deep-folds every root-to-leaf experience in src into dst: counters
// are summed where dst has a child with a matching hash, and unmatched
// subtrees are inserted as fresh copies. dst is mutated in place; src is
// never touched and never aliased into dst.
//
// Merge is deliberately not idempotent: merging the same source twice
// represents the same match outcome observed twice, and counters double.
//
// The fold runs on an explicit frontier stack rather than recursion so its
// complexity bound does not depend on call-stack depth.
func Merge(dst, src *MoveNode) {
	if dst == nil || src == nil {
		return
	}

	type frame struct {
		dstParent *MoveNode
		srcChild  *MoveNode
	}
	stack := make([]frame, 0, len(src.children))
	for _, c := range src.children {
		stack = append(stack, frame{dstParent: dst, srcChild: c})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		matched := f.dstParent.FindChild(f.srcChild.Hash)
		if matched != nil {
			matched.Wins += f.srcChild.Wins
			matched.Losses += f.srcChild.Losses
		} else {
			matched = NewNode(f.srcChild.Hash, f.srcChild.MoveIndex)
			matched.Wins = f.srcChild.Wins
			matched.Losses = f.srcChild.Losses
			if err := f.dstParent.AddChild(matched); err != nil {
				// FindChild just missed, so the only way AddChild can fail
				// is a capacity or uniqueness breach: an upstream bug.
				panic(err)
			}
		}
		for _, gc := range f.srcChild.children {
			stack = append(stack, frame{dstParent: matched, srcChild: gc})
		}
	}
}

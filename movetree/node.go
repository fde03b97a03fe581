package movetree

import "fmt"

// SentinelMove marks the synthetic root node, which no real move produced.
const SentinelMove = ^uint32(0)

// MaxChildren is the serialization capacity of a node's child list.
const MaxChildren = 255

// MoveNode is one position in the move tree: the hash of the position
// reached, the move index that produced it, and win/loss counters summed
// over every match that passed through it. A node exclusively owns its
// children; trees are never shared between owners.
type MoveNode struct {
	Hash      PerspectiveHash
	MoveIndex uint32
	Wins      uint32
	Losses    uint32

	children []*MoveNode
}

// NewRoot returns a synthetic root for the given position.
func NewRoot(hash PerspectiveHash) *MoveNode {
	return &MoveNode{Hash: hash, MoveIndex: SentinelMove}
}

// NewNode returns a node for the position reached by playing moveIndex.
func NewNode(hash PerspectiveHash, moveIndex uint32) *MoveNode {
	return &MoveNode{Hash: hash, MoveIndex: moveIndex}
}

// Children returns the ordered child list. The slice is owned by the node;
// callers must not mutate it.
func (n *MoveNode) Children() []*MoveNode { return n.children }

// FindChild returns the first child whose hash equals hash, or nil.
// Children are pairwise distinct by hash, so first match is the only match.
func (n *MoveNode) FindChild(hash PerspectiveHash) *MoveNode {
	for _, c := range n.children {
		if c.Hash.Equal(hash) {
			return c
		}
	}
	return nil
}

// AddChild appends c to the child list. It fails fast when the list is at
// serialization capacity or when a child with the same hash already exists:
// duplicate children would make path walks ambiguous.
func (n *MoveNode) AddChild(c *MoveNode) error {
	if len(n.children) >= MaxChildren {
		return fmt.Errorf("%w: %d", ErrTooManyChildren, len(n.children)+1)
	}
	if n.FindChild(c.Hash) != nil {
		return fmt.Errorf("%w: duplicate child %s", ErrInvalidHash, c.Hash)
	}
	n.children = append(n.children, c)
	return nil
}

// Clone returns a fully independent deep copy of the subtree rooted at n.
// Like Merge, it runs on an explicit stack so its cost does not depend on
// call-stack depth.
func (n *MoveNode) Clone() *MoveNode {
	if n == nil {
		return nil
	}
	out := &MoveNode{Hash: n.Hash, MoveIndex: n.MoveIndex, Wins: n.Wins, Losses: n.Losses}

	type frame struct {
		src *MoveNode
		dst *MoveNode
	}
	stack := []frame{{src: n, dst: out}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range f.src.children {
			cc := &MoveNode{Hash: c.Hash, MoveIndex: c.MoveIndex, Wins: c.Wins, Losses: c.Losses}
			f.dst.children = append(f.dst.children, cc)
			stack = append(stack, frame{src: c, dst: cc})
		}
	}
	return out
}

// CountNodes returns the number of nodes in the subtree, including n.
func (n *MoveNode) CountNodes() int {
	if n == nil {
		return 0
	}
	count := 0
	stack := []*MoveNode{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++
		stack = append(stack, cur.children...)
	}
	return count
}

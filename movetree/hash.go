// Package movetree implements the move-statistics tree the bot learns from.
//
// Every board position the learning player reaches is recorded as a node
// keyed by a perspective hash: an encoding of the board relative to the
// player's own piece, distinguishing "my" cells from "their" cells instead of
// absolute piece identity. Nodes carry win/loss counters that accumulate
// across matches, and the tree as a whole answers "which move has worked
// best from here".
//
// A tree instance is single-writer, single-reader: Merge must not run
// concurrently with any walk on the same tree. Callers that need a
// concurrent snapshot take a deep copy via Clone.
package movetree

import (
	"errors"
	"fmt"

	"github.com/oxolearn/oxo/game"
)

// BoardSlots is the fixed length of a perspective hash.
const BoardSlots = 9

var (
	ErrInvalidHash     = errors.New("movetree: invalid hash")
	ErrIndexOutOfRange = errors.New("movetree: slot index out of range")
	ErrTooManyChildren = errors.New("movetree: node exceeds child capacity")
)

// Slot is the state of one board cell relative to the hash viewpoint.
type Slot byte

const (
	SlotEmpty  Slot = '.'
	SlotMine   Slot = 'M'
	SlotTheirs Slot = 'T'
)

func validSlot(s Slot) bool {
	return s == SlotEmpty || s == SlotMine || s == SlotTheirs
}

// PerspectiveHash encodes a board position relative to a viewpoint piece.
// It is a value type: copies are independent and equality is structural.
// Two hashes with identical slot layouts but different viewpoints are not
// equal; the tree records experience from one fixed viewpoint.
type PerspectiveHash struct {
	slots     [BoardSlots]Slot
	viewpoint game.Piece
	opponent  game.Piece
}

// NewHash returns an all-empty hash for the given viewpoint piece.
// The opponent tag is derived from the viewpoint.
func NewHash(viewpoint game.Piece) (PerspectiveHash, error) {
	if viewpoint != game.PieceX && viewpoint != game.PieceO {
		return PerspectiveHash{}, fmt.Errorf("%w: viewpoint %v", ErrInvalidHash, viewpoint)
	}
	h := PerspectiveHash{viewpoint: viewpoint, opponent: viewpoint.Other()}
	for i := range h.slots {
		h.slots[i] = SlotEmpty
	}
	return h, nil
}

// ParseHash builds a hash from its canonical text form, validating length
// and symbols.
func ParseHash(viewpoint game.Piece, text string) (PerspectiveHash, error) {
	h, err := NewHash(viewpoint)
	if err != nil {
		return PerspectiveHash{}, err
	}
	if len(text) != BoardSlots {
		return PerspectiveHash{}, fmt.Errorf("%w: length %d", ErrInvalidHash, len(text))
	}
	for i := 0; i < BoardSlots; i++ {
		s := Slot(text[i])
		if !validSlot(s) {
			return PerspectiveHash{}, fmt.Errorf("%w: symbol %q at slot %d", ErrInvalidHash, text[i], i)
		}
		h.slots[i] = s
	}
	return h, nil
}

// HashBoard snapshots a board from the given viewpoint.
func HashBoard(b *game.Board, viewpoint game.Piece) (PerspectiveHash, error) {
	h, err := NewHash(viewpoint)
	if err != nil {
		return PerspectiveHash{}, err
	}
	for i, c := range b.Cells {
		switch c {
		case viewpoint:
			h.slots[i] = SlotMine
		case game.PieceNone:
			h.slots[i] = SlotEmpty
		default:
			h.slots[i] = SlotTheirs
		}
	}
	return h, nil
}

// Viewpoint returns the piece the hash is relative to.
func (h PerspectiveHash) Viewpoint() game.Piece { return h.viewpoint }

// Opponent returns the piece opposing the viewpoint.
func (h PerspectiveHash) Opponent() game.Piece { return h.opponent }

// Set writes a slot state. A non-empty target slot is rejected unless
// overwrite is set.
func (h *PerspectiveHash) Set(s Slot, index int, overwrite bool) error {
	if index < 0 || index >= BoardSlots {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	if !validSlot(s) {
		return fmt.Errorf("%w: symbol %q", ErrInvalidHash, byte(s))
	}
	if h.slots[index] != SlotEmpty && !overwrite {
		return fmt.Errorf("%w: slot %d occupied", ErrInvalidHash, index)
	}
	h.slots[index] = s
	return nil
}

// Get returns the state of one slot.
func (h PerspectiveHash) Get(index int) (Slot, error) {
	if index < 0 || index >= BoardSlots {
		return 0, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return h.slots[index], nil
}

// IsMine reports whether the slot holds the viewpoint's piece.
func (h PerspectiveHash) IsMine(index int) (bool, error) {
	s, err := h.Get(index)
	return s == SlotMine, err
}

// IsEmpty reports whether the slot is unoccupied.
func (h PerspectiveHash) IsEmpty(index int) (bool, error) {
	s, err := h.Get(index)
	return s == SlotEmpty, err
}

// EmptyCount returns the number of empty slots.
func (h PerspectiveHash) EmptyCount() int {
	n := 0
	for _, s := range h.slots {
		if s == SlotEmpty {
			n++
		}
	}
	return n
}

// Equal is the merge key: slot sequences and viewpoint must both match.
func (h PerspectiveHash) Equal(other PerspectiveHash) bool {
	return h.viewpoint == other.viewpoint && h.slots == other.slots
}

// String is the canonical text form, round-trippable via ParseHash.
func (h PerspectiveHash) String() string {
	var buf [BoardSlots]byte
	for i, s := range h.slots {
		buf[i] = byte(s)
	}
	return string(buf[:])
}

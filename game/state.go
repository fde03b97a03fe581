// Package game defines the tic-tac-toe state machine.
//
// The types here are the minimal state needed for rules evaluation and for
// move-tree bookkeeping. The state is designed to be cheaply clonable so the
// selfplay loop and the play server can branch without sharing mutable data.
package game

// BoardSize is the number of cells on the board.
const BoardSize = 9

// Piece identifies the owner of a cell.
type Piece int8

const (
	PieceNone Piece = iota
	PieceX
	PieceO
)

// Other returns the opposing piece. PieceNone has no opponent.
func (p Piece) Other() Piece {
	switch p {
	case PieceX:
		return PieceO
	case PieceO:
		return PieceX
	default:
		return PieceNone
	}
}

func (p Piece) String() string {
	switch p {
	case PieceX:
		return "X"
	case PieceO:
		return "O"
	default:
		return "."
	}
}

// Board is the complete match state. Next selects whose turn it is.
// Cells are indexed row-major: 0..2 is the top row, 6..8 the bottom row.
type Board struct {
	Cells [BoardSize]Piece
	Next  Piece
	Turn  int32
}

// NewBoard returns an empty board with X to move.
func NewBoard() *Board {
	return &Board{Next: PieceX}
}

// Clone performs a deep copy of the board.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}
	out := *b
	return &out
}

// EmptyCount returns the number of unoccupied cells.
func (b *Board) EmptyCount() int {
	n := 0
	for _, c := range b.Cells {
		if c == PieceNone {
			n++
		}
	}
	return n
}

// String renders the board as a 9-character row-major string, '.' for empty.
func (b *Board) String() string {
	var buf [BoardSize]byte
	for i, c := range b.Cells {
		buf[i] = c.String()[0]
	}
	return string(buf[:])
}

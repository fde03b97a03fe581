package game

import (
	"errors"
	"fmt"
)

var (
	ErrCellOccupied = errors.New("game: cell already occupied")
	ErrCellIndex    = errors.New("game: cell index out of range")
	ErrMatchOver    = errors.New("game: match already decided")
)

// winLines holds every three-in-a-row on the board: rows, columns, diagonals.
var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// LegalMoves returns the indices of all empty cells, in board order.
// An empty result means the board is full.
func LegalMoves(b *Board) []int {
	moves := make([]int, 0, BoardSize)
	for i, c := range b.Cells {
		if c == PieceNone {
			moves = append(moves, i)
		}
	}
	return moves
}

// Apply places the next player's piece at cell and advances the turn.
// The board is mutated in place; callers that need the previous state
// should Clone first.
func Apply(b *Board, cell int) error {
	if cell < 0 || cell >= BoardSize {
		return fmt.Errorf("%w: %d", ErrCellIndex, cell)
	}
	if b.Cells[cell] != PieceNone {
		return fmt.Errorf("%w: cell %d", ErrCellOccupied, cell)
	}
	if _, over := Winner(b); over {
		return ErrMatchOver
	}
	b.Cells[cell] = b.Next
	b.Next = b.Next.Other()
	b.Turn++
	return nil
}

// Winner reports the match result. The second return is true once the match
// is over; a winner of PieceNone then means a tie.
func Winner(b *Board) (Piece, bool) {
	for _, line := range winLines {
		p := b.Cells[line[0]]
		if p != PieceNone && b.Cells[line[1]] == p && b.Cells[line[2]] == p {
			return p, true
		}
	}
	for _, c := range b.Cells {
		if c == PieceNone {
			return PieceNone, false
		}
	}
	return PieceNone, true
}

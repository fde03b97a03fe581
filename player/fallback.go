package player

import (
	"lukechampine.com/frand"

	"github.com/oxolearn/oxo/game"
)

// Intn is the integer source used by RandomMove. Swappable for
// deterministic tests; defaults to a cryptographically seeded generator.
type Intn func(n int) int

// RandomMove is the fallback policy: a uniform choice over legal moves.
// The boolean is false only when the board is full. Pass nil to use the
// default randomness source.
func RandomMove(b *game.Board, intn Intn) (int, bool) {
	moves := game.LegalMoves(b)
	if len(moves) == 0 {
		return 0, false
	}
	if intn == nil {
		intn = frand.Intn
	}
	return moves[intn(len(moves))], true
}

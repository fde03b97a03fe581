// Package selfplay plays training matches: the learner follows tree
// statistics where they exist and a uniform-random fallback elsewhere; the
// opponent always plays uniform-random. Workers never mutate the global
// tree; they read a snapshot and hand the finished MatchResult back to the
// tree owner.
package selfplay

import (
	"fmt"
	"time"

	"github.com/oxolearn/oxo/game"
	"github.com/oxolearn/oxo/movetree"
	"github.com/oxolearn/oxo/player"
	"github.com/oxolearn/oxo/store"
)

// MatchSummary describes one finished training match.
type MatchSummary struct {
	MatchID     string
	Learner     game.Piece
	Winner      game.Piece // PieceNone means a tie
	Steps       int
	Recommended int
	Fallbacks   int
}

// Outcome converts the winner into the learner's perspective.
func (s MatchSummary) Outcome() player.Outcome {
	switch s.Winner {
	case s.Learner:
		return player.OutcomeWon
	case game.PieceNone:
		return player.OutcomeTied
	default:
		return player.OutcomeLost
	}
}

// Options configures a single match.
type Options struct {
	WorkerID int
	Learner  game.Piece

	// Tree is a read-only snapshot of the global tree for the learner's
	// viewpoint. It must not be mutated while the match runs.
	Tree *movetree.MoveNode

	Selector player.Config

	// Intn overrides the randomness source for deterministic tests.
	Intn player.Intn
}

// PlayMatch runs one full match and returns the ingestion record, the
// archive rows (one per turn, outcome filled in), and a summary.
func PlayMatch(opts Options) (player.MatchResult, []store.MatchTurnRow, MatchSummary, error) {
	if opts.Learner != game.PieceX && opts.Learner != game.PieceO {
		return player.MatchResult{}, nil, MatchSummary{}, fmt.Errorf("selfplay: learner piece %v", opts.Learner)
	}

	matchID := fmt.Sprintf("selfplay_%d_%d", time.Now().UnixNano(), opts.WorkerID)
	board := game.NewBoard()

	var events []player.MatchEvent
	var rows []store.MatchTurnRow
	var localPath []movetree.PerspectiveHash
	recommended, fallbacks := 0, 0

	for {
		if _, over := game.Winner(board); over {
			break
		}

		mover := board.Next
		var cell int
		var fromStats bool
		var avg float64

		if mover == opts.Learner && opts.Tree != nil {
			if rec, ok := player.Recommend(opts.Tree, localPath, opts.Selector); ok {
				cell = int(rec.MoveIndex)
				fromStats = true
				avg = rec.AverageWinPercent
			}
		}
		if !fromStats {
			c, ok := player.RandomMove(board, opts.Intn)
			if !ok {
				break
			}
			cell = c
		}
		if mover == opts.Learner {
			if fromStats {
				recommended++
			} else {
				fallbacks++
			}
		}

		if err := game.Apply(board, cell); err != nil {
			// A recommendation pointing at an illegal cell means the tree
			// and the rules disagree: refuse to learn from the match.
			return player.MatchResult{}, nil, MatchSummary{}, fmt.Errorf("apply cell %d: %w", cell, err)
		}

		hash, err := movetree.HashBoard(board, opts.Learner)
		if err != nil {
			return player.MatchResult{}, nil, MatchSummary{}, err
		}
		events = append(events, player.MatchEvent{Position: hash, MoveIndex: uint32(cell)})
		localPath = append(localPath, hash)

		rows = append(rows, store.MatchTurnRow{
			MatchID:       matchID,
			Turn:          board.Turn,
			Board:         board.String(),
			Mover:         mover.String(),
			Learner:       opts.Learner.String(),
			MoveIndex:     int32(cell),
			Recommended:   fromStats && mover == opts.Learner,
			AvgWinPercent: float32(avg),
			Source:        "selfplay",
		})
	}

	winner, _ := game.Winner(board)
	summary := MatchSummary{
		MatchID:     matchID,
		Learner:     opts.Learner,
		Winner:      winner,
		Steps:       len(events),
		Recommended: recommended,
		Fallbacks:   fallbacks,
	}

	var outcome int32
	switch summary.Outcome() {
	case player.OutcomeWon:
		outcome = 1
	case player.OutcomeLost:
		outcome = -1
	}
	for i := range rows {
		rows[i].Outcome = outcome
	}

	return player.MatchResult{Events: events, Outcome: summary.Outcome()}, rows, summary, nil
}

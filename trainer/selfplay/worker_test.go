package selfplay

import (
	"testing"

	"github.com/oxolearn/oxo/game"
	"github.com/oxolearn/oxo/player"
)

func TestPlayMatch_CompletesWithConsistentRecord(t *testing.T) {
	tree, err := player.NewGlobalTree(game.PieceX)
	if err != nil {
		t.Fatalf("new tree: %v", err)
	}

	result, rows, summary, err := PlayMatch(Options{
		Learner: game.PieceX,
		Tree:    tree,
		Intn:    func(n int) int { return 0 }, // always first legal move
	})
	if err != nil {
		t.Fatalf("play: %v", err)
	}

	if len(result.Events) != len(rows) {
		t.Fatalf("events=%d rows=%d", len(result.Events), len(rows))
	}
	if summary.Steps != len(result.Events) {
		t.Fatalf("steps=%d events=%d", summary.Steps, len(result.Events))
	}
	// Deterministic first-legal play: X collects 0, 2, 4 and closes the
	// 2-4-6 line on move seven.
	if summary.Winner != game.PieceX {
		t.Fatalf("winner=%v want X", summary.Winner)
	}
	if result.Outcome != player.OutcomeWon {
		t.Fatalf("outcome=%v want won", result.Outcome)
	}
	if summary.Steps != 7 {
		t.Fatalf("steps=%d want 7", summary.Steps)
	}
	for i, row := range rows {
		if row.Outcome != 1 {
			t.Fatalf("row %d outcome=%d want 1", i, row.Outcome)
		}
		if row.MatchID != summary.MatchID {
			t.Fatalf("row %d match id %q", i, row.MatchID)
		}
	}

	// An empty tree never recommends: every learner move was a fallback.
	if summary.Recommended != 0 {
		t.Fatalf("recommended=%d want 0", summary.Recommended)
	}
	if summary.Fallbacks != 4 {
		t.Fatalf("fallbacks=%d want 4", summary.Fallbacks)
	}
}

func TestPlayMatch_ResultFoldsIntoTree(t *testing.T) {
	tree, err := player.NewGlobalTree(game.PieceO)
	if err != nil {
		t.Fatalf("new tree: %v", err)
	}

	result, _, summary, err := PlayMatch(Options{
		Learner: game.PieceO,
		Tree:    tree,
		Intn:    func(n int) int { return n / 2 },
	})
	if err != nil {
		t.Fatalf("play: %v", err)
	}

	if err := player.Apply(tree, result); err != nil {
		t.Fatalf("apply: %v", err)
	}
	// One match = one single-branch path below the root.
	if got, want := tree.CountNodes(), summary.Steps+1; got != want {
		t.Fatalf("tree nodes=%d want %d", got, want)
	}
}

func TestPlayMatch_RejectsBadLearnerPiece(t *testing.T) {
	if _, _, _, err := PlayMatch(Options{Learner: game.PieceNone}); err == nil {
		t.Fatal("expected error for PieceNone learner")
	}
}

package game

import (
	"strings"
	"testing"
)

// dumpBoard is a test helper to visualize board state.
func dumpBoard(b *Board) string {
	var sb strings.Builder
	s := b.String()
	for row := 0; row < 3; row++ {
		sb.WriteString(s[row*3 : row*3+3])
		sb.WriteByte('\n')
	}
	return sb.String()
}

func mustApply(t *testing.T, b *Board, cells ...int) {
	t.Helper()
	for _, c := range cells {
		if err := Apply(b, c); err != nil {
			t.Fatalf("apply %d: %v\n%s", c, err, dumpBoard(b))
		}
	}
}

func TestApply_AlternatesPlayers(t *testing.T) {
	b := NewBoard()
	mustApply(t, b, 4, 0, 8)

	if got, want := b.String(), "O...X...X"; got != want {
		t.Fatalf("board=%q want=%q", got, want)
	}
	if b.Next != PieceO {
		t.Fatalf("next=%v want O", b.Next)
	}
	if b.Turn != 3 {
		t.Fatalf("turn=%d want 3", b.Turn)
	}
}

func TestApply_Errors(t *testing.T) {
	b := NewBoard()
	mustApply(t, b, 4)

	if err := Apply(b, 4); err == nil {
		t.Fatal("expected occupied-cell error")
	}
	if err := Apply(b, 9); err == nil {
		t.Fatal("expected index error")
	}
	if err := Apply(b, -1); err == nil {
		t.Fatal("expected index error")
	}
}

func TestWinner_Lines(t *testing.T) {
	cases := []struct {
		name  string
		moves []int
		want  Piece
	}{
		{"top row X", []int{0, 3, 1, 4, 2}, PieceX},
		{"left column X", []int{0, 1, 3, 2, 6}, PieceX},
		{"diagonal X", []int{0, 1, 4, 2, 8}, PieceX},
		{"anti-diagonal O", []int{0, 2, 1, 4, 8, 6}, PieceO},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBoard()
			mustApply(t, b, tc.moves...)
			winner, over := Winner(b)
			if !over || winner != tc.want {
				t.Fatalf("winner=%v over=%v want %v\n%s", winner, over, tc.want, dumpBoard(b))
			}
		})
	}
}

func TestWinner_Tie(t *testing.T) {
	// X O X / X O O / O X X
	b := NewBoard()
	mustApply(t, b, 0, 1, 2, 4, 3, 5, 7, 6, 8)

	winner, over := Winner(b)
	if !over || winner != PieceNone {
		t.Fatalf("winner=%v over=%v want tie\n%s", winner, over, dumpBoard(b))
	}
	if len(LegalMoves(b)) != 0 {
		t.Fatalf("legal moves on full board: %v", LegalMoves(b))
	}
}

func TestApply_AfterWinFails(t *testing.T) {
	b := NewBoard()
	mustApply(t, b, 0, 3, 1, 4, 2) // X wins top row

	if err := Apply(b, 5); err == nil {
		t.Fatal("expected match-over error")
	}
}

func TestLegalMoves_TracksEmptyCells(t *testing.T) {
	b := NewBoard()
	if got := len(LegalMoves(b)); got != BoardSize {
		t.Fatalf("fresh board legal moves=%d want %d", got, BoardSize)
	}
	mustApply(t, b, 4, 0)
	moves := LegalMoves(b)
	if len(moves) != 7 {
		t.Fatalf("legal moves=%d want 7", len(moves))
	}
	for _, m := range moves {
		if m == 4 || m == 0 {
			t.Fatalf("occupied cell %d listed as legal", m)
		}
	}
	if b.EmptyCount() != 7 {
		t.Fatalf("empty count=%d want 7", b.EmptyCount())
	}
}

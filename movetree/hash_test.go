package movetree

import (
	"errors"
	"testing"

	"github.com/oxolearn/oxo/game"
)

func mustParse(t *testing.T, viewpoint game.Piece, text string) PerspectiveHash {
	t.Helper()
	h, err := ParseHash(viewpoint, text)
	if err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	return h
}

func TestNewHash_Validation(t *testing.T) {
	h, err := NewHash(game.PieceX)
	if err != nil {
		t.Fatalf("new hash: %v", err)
	}
	if h.String() != "........." {
		t.Fatalf("fresh hash=%q", h.String())
	}
	if h.Viewpoint() != game.PieceX || h.Opponent() != game.PieceO {
		t.Fatalf("tags=%v/%v", h.Viewpoint(), h.Opponent())
	}

	if _, err := NewHash(game.PieceNone); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("viewpoint None: err=%v", err)
	}
}

func TestParseHash_Validation(t *testing.T) {
	cases := []struct {
		name string
		text string
		ok   bool
	}{
		{"valid", "M.T.M...T", true},
		{"all empty", ".........", true},
		{"too short", "M.T", false},
		{"too long", "M.T.M...TT", false},
		{"bad symbol", "M.X.M...T", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := ParseHash(game.PieceX, tc.text)
			if tc.ok {
				if err != nil {
					t.Fatalf("parse: %v", err)
				}
				if h.String() != tc.text {
					t.Fatalf("round trip %q -> %q", tc.text, h.String())
				}
				return
			}
			if !errors.Is(err, ErrInvalidHash) {
				t.Fatalf("err=%v want ErrInvalidHash", err)
			}
		})
	}
}

func TestSet_OverwriteRules(t *testing.T) {
	h := mustParse(t, game.PieceX, "M........")

	if err := h.Set(SlotTheirs, 0, false); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("occupied slot without overwrite: err=%v", err)
	}
	if err := h.Set(SlotTheirs, 0, true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := h.Get(0)
	if err != nil || got != SlotTheirs {
		t.Fatalf("get after overwrite: %v %v", got, err)
	}

	if err := h.Set(SlotMine, BoardSlots, false); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("index out of range: err=%v", err)
	}
	if _, err := h.Get(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("get -1: err=%v", err)
	}
}

func TestHash_Equality(t *testing.T) {
	a := mustParse(t, game.PieceX, "M.T......")
	b := mustParse(t, game.PieceX, "M.T......")
	c := mustParse(t, game.PieceO, "M.T......")
	d := mustParse(t, game.PieceX, "M.T.....M")

	if !a.Equal(b) {
		t.Fatal("identical hashes not equal")
	}
	// Same geometry, different viewpoint: intentionally unequal.
	if a.Equal(c) {
		t.Fatal("viewpoint ignored in equality")
	}
	if a.Equal(d) {
		t.Fatal("differing slots compared equal")
	}
}

func TestHashBoard(t *testing.T) {
	b := game.NewBoard()
	for _, cell := range []int{4, 0, 8} { // X center, O corner, X corner
		if err := game.Apply(b, cell); err != nil {
			t.Fatalf("apply %d: %v", cell, err)
		}
	}

	fromX, err := HashBoard(b, game.PieceX)
	if err != nil {
		t.Fatalf("hash X: %v", err)
	}
	if fromX.String() != "T...M...M" {
		t.Fatalf("X view=%q", fromX.String())
	}

	fromO, err := HashBoard(b, game.PieceO)
	if err != nil {
		t.Fatalf("hash O: %v", err)
	}
	if fromO.String() != "M...T...T" {
		t.Fatalf("O view=%q", fromO.String())
	}

	if mine, _ := fromX.IsMine(4); !mine {
		t.Fatal("center not mine from X view")
	}
	if empty, _ := fromX.IsEmpty(1); !empty {
		t.Fatal("slot 1 not empty")
	}
	if fromX.EmptyCount() != 6 {
		t.Fatalf("empty count=%d want 6", fromX.EmptyCount())
	}
}

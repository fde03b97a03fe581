package movetree

import (
	"math"
	"testing"
)

func TestWinPercent_ComplementProperty(t *testing.T) {
	cases := []struct {
		wins, losses uint32
	}{
		{1, 0}, {0, 1}, {6, 6}, {9, 3}, {1000000, 1}, {7, 13},
	}
	for _, tc := range cases {
		n := &MoveNode{Wins: tc.wins, Losses: tc.losses}
		sum := n.WinPercent() + n.LosePercent()
		if math.Abs(sum-100) > 1e-9 {
			t.Fatalf("wins=%d losses=%d: win%%+lose%%=%v", tc.wins, tc.losses, sum)
		}
	}
}

func TestWinPercent_ZeroOverZero(t *testing.T) {
	n := &MoveNode{}
	if n.WinPercent() != 0 || n.LosePercent() != 0 {
		t.Fatalf("0/0 percents: %v/%v", n.WinPercent(), n.LosePercent())
	}
	if math.IsNaN(n.WinPercent()) {
		t.Fatal("NaN leaked from empty counters")
	}
}

// The reference scenario: two branches, B->C at 75% beats A->D at 37.5%.
func TestStatisticallyBest_PicksHighestAverage(t *testing.T) {
	d := buildNode(t, "MT.M.....", 3, 3, 9)  // 25%
	a := buildNode(t, "M........", 0, 6, 6, d) // 50%
	c := buildNode(t, "MM.......", 1, 9, 3)  // 75%
	b := buildNode(t, ".M.......", 1, 9, 3, c) // 75%
	root := testRoot(t, a, b)

	best := StatisticallyBest(root)
	if len(best.Path) != 2 {
		t.Fatalf("path len=%d want 2", len(best.Path))
	}
	if best.Path[0] != b || best.Path[1] != c {
		t.Fatalf("path=%v want [B C]", best.Path)
	}
	if math.Abs(best.AverageWinPercent-75.0) > 1e-9 {
		t.Fatalf("average=%v want 75.0", best.AverageWinPercent)
	}
}

func TestStatisticallyBest_EmptyTree(t *testing.T) {
	root := testRoot(t)
	best := StatisticallyBest(root)
	if len(best.Path) != 0 {
		t.Fatalf("path=%v want empty", best.Path)
	}
	if best.AverageWinPercent != 0 {
		t.Fatalf("average=%v want 0", best.AverageWinPercent)
	}
}

func TestStatisticallyBest_TieKeepsFirstFound(t *testing.T) {
	first := buildNode(t, "M........", 0, 1, 1)  // 50%
	second := buildNode(t, ".M.......", 1, 2, 2) // also 50%
	root := testRoot(t, first, second)

	best := StatisticallyBest(root)
	if len(best.Path) != 1 || best.Path[0] != first {
		t.Fatalf("tie-break picked %+v, want first traversal hit", best.Path)
	}
}

func TestStatisticallyBest_UnvisitedNodesCountAsZero(t *testing.T) {
	fresh := buildNode(t, "M........", 0, 0, 0)
	proven := buildNode(t, ".M.......", 1, 1, 9) // 10%
	root := testRoot(t, fresh, proven)

	best := StatisticallyBest(root)
	if len(best.Path) != 1 || best.Path[0] != proven {
		t.Fatalf("best=%v, a 10%% line must beat an unvisited 0%% line", best.Path)
	}
	if math.IsNaN(best.AverageWinPercent) {
		t.Fatal("NaN average")
	}
}

func TestStatisticallyBest_AveragesAlongPath(t *testing.T) {
	// One branch: 100% then 0% -> mean 50. Other branch: flat 60%.
	deepLoss := buildNode(t, "MT.......", 1, 0, 5)
	strongStart := buildNode(t, "M........", 0, 5, 0, deepLoss)
	steady := buildNode(t, ".M.......", 1, 6, 4)
	root := testRoot(t, strongStart, steady)

	best := StatisticallyBest(root)
	if len(best.Path) != 1 || best.Path[0] != steady {
		t.Fatalf("best=%v want the steady 60%% line", best.Path)
	}
	if math.Abs(best.AverageWinPercent-60.0) > 1e-9 {
		t.Fatalf("average=%v want 60.0", best.AverageWinPercent)
	}
}

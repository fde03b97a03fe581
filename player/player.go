// Package player bridges match play to the move tree: it folds finished
// matches into a global tree and recommends moves from the accumulated
// statistics. The random fallback policy lives here too, but the selector
// itself never picks randomly; it signals "no recommendation" and lets the
// caller decide.
package player

import (
	"fmt"

	"lukechampine.com/frand"

	"github.com/oxolearn/oxo/game"
	"github.com/oxolearn/oxo/movetree"
)

// Outcome is a finished match's result from the learner's perspective.
type Outcome int8

const (
	OutcomeTied Outcome = iota
	OutcomeWon
	OutcomeLost
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWon:
		return "won"
	case OutcomeLost:
		return "lost"
	default:
		return "tied"
	}
}

// MatchEvent is one move of a match: the position reached, hashed from the
// learner's viewpoint, and the board cell that was played.
type MatchEvent struct {
	Position  movetree.PerspectiveHash
	MoveIndex uint32
}

// MatchResult is the full record handed over by the game controller: every
// move in play order (the last event is the final position) plus the
// outcome.
type MatchResult struct {
	Events  []MatchEvent
	Outcome Outcome
}

// NewGlobalTree returns an empty global tree rooted at the canonical
// empty-board hash for the given viewpoint.
func NewGlobalTree(viewpoint game.Piece) (*movetree.MoveNode, error) {
	h, err := movetree.NewHash(viewpoint)
	if err != nil {
		return nil, err
	}
	return movetree.NewRoot(h), nil
}

// BuildLocalPath turns a match's event sequence into a single-branch tree
// under the canonical empty root. Counters start at zero.
func BuildLocalPath(viewpoint game.Piece, events []MatchEvent) (*movetree.MoveNode, error) {
	root, err := NewGlobalTree(viewpoint)
	if err != nil {
		return nil, err
	}
	cur := root
	for i, ev := range events {
		if ev.Position.Viewpoint() != viewpoint {
			return nil, fmt.Errorf("%w: event %d viewpoint %v, tree viewpoint %v",
				movetree.ErrInvalidHash, i, ev.Position.Viewpoint(), viewpoint)
		}
		n := movetree.NewNode(ev.Position, ev.MoveIndex)
		if err := cur.AddChild(n); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		cur = n
	}
	return root, nil
}

// Apply folds one finished match into the global tree: it builds the local
// path, bumps wins or losses on every node along it (ties leave counters
// untouched), and merges the result into global.
//
// The local path must be exactly as long as the number of occupied cells
// in the final position. A mismatch means the game controller dropped or
// duplicated a move record, which is a bug we refuse to learn from.
func Apply(global *movetree.MoveNode, res MatchResult) error {
	if len(res.Events) == 0 {
		return nil
	}

	viewpoint := global.Hash.Viewpoint()
	local, err := BuildLocalPath(viewpoint, res.Events)
	if err != nil {
		return err
	}

	final := res.Events[len(res.Events)-1].Position
	if want := movetree.BoardSlots - final.EmptyCount(); len(res.Events) != want {
		panic(fmt.Sprintf("player: local path has %d events, final position implies %d moves",
			len(res.Events), want))
	}

	for cur := local; len(cur.Children()) > 0; {
		cur = cur.Children()[0]
		switch res.Outcome {
		case OutcomeWon:
			cur.Wins++
		case OutcomeLost:
			cur.Losses++
		}
	}

	movetree.Merge(global, local)
	return nil
}

// Config tunes the selector's exploration behavior. When the best line's
// average win percent sits below ExploreThreshold, the selector declines
// to recommend with probability ExploreChance, pushing the caller onto its
// fallback policy. Zero values disable exploration entirely.
type Config struct {
	ExploreThreshold float64
	ExploreChance    float64

	// Rand overrides the probability source, for deterministic tests.
	Rand func() float64
}

// DefaultConfig mirrors the historical tuning: lines averaging under 25%
// are abandoned a quarter of the time.
func DefaultConfig() Config {
	return Config{ExploreThreshold: 25, ExploreChance: 0.25}
}

// Recommendation is a statistically grounded move suggestion.
type Recommendation struct {
	MoveIndex         uint32
	AverageWinPercent float64
}

// Recommend walks the global tree along the current match's hash sequence
// and returns the first move of the statistically best line under the
// reached subtree. The boolean is false when there is no basis for a
// recommendation: the local path leaves known territory, the subtree has
// no statistics, or the exploration knob declined a weak line. Callers
// resolve a false return with their own fallback policy.
func Recommend(global *movetree.MoveNode, localPath []movetree.PerspectiveHash, cfg Config) (Recommendation, bool) {
	var at *movetree.MoveNode = global
	ok := movetree.WalkPath(global, localPath, func(n *movetree.MoveNode) { at = n }, -1)
	if !ok {
		return Recommendation{}, false
	}

	best := movetree.StatisticallyBest(at)
	if len(best.Path) == 0 {
		return Recommendation{}, false
	}

	if cfg.ExploreChance > 0 && best.AverageWinPercent < cfg.ExploreThreshold {
		roll := cfg.Rand
		if roll == nil {
			roll = frand.Float64
		}
		if roll() < cfg.ExploreChance {
			return Recommendation{}, false
		}
	}

	return Recommendation{
		MoveIndex:         best.Path[0].MoveIndex,
		AverageWinPercent: best.AverageWinPercent,
	}, true
}

// rebuildtree reconstructs the global move trees from the parquet match
// archive. The archive is the durable record of every match ever played;
// if a tree file is lost or the codec moves on, replaying the archive
// recovers the same statistics.
package main

import (
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/oxolearn/oxo/game"
	"github.com/oxolearn/oxo/movetree"
	"github.com/oxolearn/oxo/player"
	"github.com/oxolearn/oxo/store"
)

func main() {
	inDir := flag.String("archive-dir", "data/matches", "Directory containing match parquet shards")
	outDir := flag.String("out-dir", "data", "Directory to write the rebuilt trees into")
	flag.Parse()

	absIn, _ := filepath.Abs(*inDir)
	inputs := make([]string, 0, 1024)
	_ = filepath.WalkDir(absIn, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == "tmp" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), ".parquet") {
			inputs = append(inputs, path)
		}
		return nil
	})
	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "no parquet inputs found")
		os.Exit(1)
	}

	// Matches can in principle straddle shard boundaries, so collect every
	// row before grouping.
	byMatch := make(map[string][]store.MatchTurnRow)
	for _, inPath := range inputs {
		if err := readShard(inPath, byMatch); err != nil {
			fmt.Fprintf(os.Stderr, "read %s: %v\n", inPath, err)
			os.Exit(1)
		}
	}
	fmt.Printf("read %d matches from %d shards\n", len(byMatch), len(inputs))

	treeX, err := player.NewGlobalTree(game.PieceX)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	treeO, err := player.NewGlobalTree(game.PieceO)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	folded := 0
	for matchID, rows := range byMatch {
		learner, result, err := matchResult(rows)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skip %s: %v\n", matchID, err)
			continue
		}
		tree := treeX
		if learner == game.PieceO {
			tree = treeO
		}
		if err := player.Apply(tree, result); err != nil {
			fmt.Fprintf(os.Stderr, "skip %s: %v\n", matchID, err)
			continue
		}
		folded++
	}

	trees, err := store.NewTreeStore(*outDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := trees.Save("global_x", treeX); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := trees.Save("global_o", treeO); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("folded %d matches: global_x %d nodes, global_o %d nodes\n",
		folded, treeX.CountNodes(), treeO.CountNodes())
}

func readShard(inPath string, byMatch map[string][]store.MatchTurnRow) error {
	f, err := os.Open(inPath)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := parquet.NewGenericReader[store.MatchTurnRow](f)
	defer reader.Close()

	buf := make([]store.MatchTurnRow, 256)
	for {
		n, err := reader.Read(buf)
		for i := 0; i < n; i++ {
			row := buf[i]
			byMatch[row.MatchID] = append(byMatch[row.MatchID], row)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// matchResult rebuilds the ingestion record for one match from its turn
// rows: the learner-viewpoint hash of every board in play order plus the
// final outcome.
func matchResult(rows []store.MatchTurnRow) (game.Piece, player.MatchResult, error) {
	if len(rows) == 0 {
		return game.PieceNone, player.MatchResult{}, fmt.Errorf("no rows")
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Turn < rows[j].Turn })

	var learner game.Piece
	switch rows[0].Learner {
	case "X":
		learner = game.PieceX
	case "O":
		learner = game.PieceO
	default:
		return game.PieceNone, player.MatchResult{}, fmt.Errorf("learner %q", rows[0].Learner)
	}

	events := make([]player.MatchEvent, 0, len(rows))
	for _, row := range rows {
		hash, err := hashFromBoardText(row.Board, learner)
		if err != nil {
			return game.PieceNone, player.MatchResult{}, fmt.Errorf("turn %d: %w", row.Turn, err)
		}
		events = append(events, player.MatchEvent{Position: hash, MoveIndex: uint32(row.MoveIndex)})
	}

	outcome := player.OutcomeTied
	switch rows[0].Outcome {
	case 1:
		outcome = player.OutcomeWon
	case -1:
		outcome = player.OutcomeLost
	}
	return learner, player.MatchResult{Events: events, Outcome: outcome}, nil
}

// hashFromBoardText converts the absolute row-major board text stored in
// the archive into a viewpoint-relative hash.
func hashFromBoardText(board string, viewpoint game.Piece) (movetree.PerspectiveHash, error) {
	mine := viewpoint.String()[0]
	theirs := viewpoint.Other().String()[0]

	buf := make([]byte, len(board))
	for i := 0; i < len(board); i++ {
		switch board[i] {
		case mine:
			buf[i] = byte(movetree.SlotMine)
		case theirs:
			buf[i] = byte(movetree.SlotTheirs)
		case '.':
			buf[i] = byte(movetree.SlotEmpty)
		default:
			return movetree.PerspectiveHash{}, fmt.Errorf("board symbol %q", board[i])
		}
	}
	return movetree.ParseHash(viewpoint, string(buf))
}

// The trainer runs selfplay matches in parallel and folds every result
// into the persistent global trees, one per viewpoint piece.
//
// The trees are single-writer structures, so a single owner goroutine is
// the only place they are mutated. Workers play against read-only deep-copy
// snapshots republished after every merge, send finished matches to the
// owner, and never touch the live trees.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/oxolearn/oxo/game"
	"github.com/oxolearn/oxo/logging"
	"github.com/oxolearn/oxo/movetree"
	"github.com/oxolearn/oxo/player"
	"github.com/oxolearn/oxo/store"
	"github.com/oxolearn/oxo/trainer/selfplay"
)

var totalMoves atomic.Int64
var totalMatches atomic.Int64

const (
	treeNameX = "global_x"
	treeNameO = "global_o"
)

type matchDone struct {
	Result  player.MatchResult
	Summary selfplay.MatchSummary
	Rows    []store.MatchTurnRow
}

type archiveWriteRequest struct {
	rows []store.MatchTurnRow
}

// MatchUpdate feeds the TUI.
type MatchUpdate struct {
	WorkerID int
	Summary  selfplay.MatchSummary
}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	workers := fs.Int("workers", 4, "Concurrent selfplay workers")
	maxMatches := fs.Int64("max-matches", 0, "Stop after this many matches (0 = run until interrupted)")
	dataDir := fs.String("data-dir", "data", "Directory for the persisted move trees")
	archiveDir := fs.String("archive-dir", "data/matches", "Directory for parquet match archives")
	journalPath := fs.String("journal", "data/matches/merged.log", "Append-only journal of merged match IDs")
	matchesPerFlush := fs.Int("matches-per-flush", 200, "Matches buffered per parquet batch")
	saveEvery := fs.Int("save-every", 100, "Persist the trees after this many merges")
	exploreThreshold := fs.Float64("explore-threshold", 25, "Win-percent average below which weak lines may be abandoned")
	exploreChance := fs.Float64("explore-chance", 0.25, "Probability of abandoning a weak line")
	useTUI := fs.Bool("tui", false, "Render live stats with a terminal UI")

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "flag parse: %v\n", err)
		os.Exit(2)
	}

	logger := slog.New(logging.NewPrettyJSONHandler(os.Stderr, nil))
	if *useTUI {
		// Keep log output away from the TUI.
		f, err := os.OpenFile("trainer.log", os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
		if err == nil {
			defer f.Close()
			logger = slog.New(logging.NewPrettyJSONHandler(f, nil))
		}
	}
	slog.SetDefault(logger)

	trees, err := store.NewTreeStore(*dataDir)
	if err != nil {
		slog.Error("tree store", "err", err)
		os.Exit(1)
	}

	globalX, err := loadOrCreate(trees, treeNameX, game.PieceX)
	if err != nil {
		slog.Error("load tree", "name", treeNameX, "err", err)
		os.Exit(1)
	}
	globalO, err := loadOrCreate(trees, treeNameO, game.PieceO)
	if err != nil {
		slog.Error("load tree", "name", treeNameO, "err", err)
		os.Exit(1)
	}
	slog.Info("trees loaded",
		"x_nodes", globalX.CountNodes(),
		"o_nodes", globalO.CountNodes())

	journal, err := store.OpenMatchJournal(*journalPath)
	if err != nil {
		slog.Error("open journal", "err", err)
		os.Exit(1)
	}
	defer journal.Close()
	slog.Info("journal opened", "merged_matches", journal.Count())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutdown requested")
		cancel()
	}()

	// Snapshots the workers select moves from. Replaced wholesale after
	// every merge; never mutated in place.
	var snapX, snapO atomic.Pointer[movetree.MoveNode]
	snapX.Store(globalX.Clone())
	snapO.Store(globalO.Clone())

	selector := player.Config{
		ExploreThreshold: *exploreThreshold,
		ExploreChance:    *exploreChance,
	}

	results := make(chan matchDone, *workers)
	writeReqs := make(chan archiveWriteRequest, (*workers)*4)
	updates := make(chan MatchUpdate, *workers)

	writerDone := make(chan struct{})
	go func() {
		archiveWriterLoop(*archiveDir, *matchesPerFlush, writeReqs)
		close(writerDone)
	}()

	// Tree owner: the sole writer of both global trees.
	ownerDone := make(chan struct{})
	go func() {
		defer close(ownerDone)
		sinceSave := 0
		for done := range results {
			var global *movetree.MoveNode
			var snap *atomic.Pointer[movetree.MoveNode]
			var name string
			if done.Summary.Learner == game.PieceX {
				global, snap, name = globalX, &snapX, treeNameX
			} else {
				global, snap, name = globalO, &snapO, treeNameO
			}

			if journal.Has(done.Summary.MatchID) {
				// Already merged in a previous run; counters must not double.
				continue
			}
			if err := player.Apply(global, done.Result); err != nil {
				slog.Error("apply match", "match", done.Summary.MatchID, "err", err)
				continue
			}
			if err := journal.Add(done.Summary.MatchID); err != nil {
				slog.Error("journal add", "match", done.Summary.MatchID, "err", err)
			}
			snap.Store(global.Clone())

			writeReqs <- archiveWriteRequest{rows: done.Rows}

			sinceSave++
			if sinceSave >= *saveEvery {
				sinceSave = 0
				if err := trees.Save(name, global); err != nil {
					slog.Error("save tree", "name", name, "err", err)
				} else {
					slog.Info("tree saved", "name", name, "nodes", global.CountNodes())
				}
			}
		}

		// Final persist on shutdown.
		if err := trees.Save(treeNameX, globalX); err != nil {
			slog.Error("final save", "name", treeNameX, "err", err)
		}
		if err := trees.Save(treeNameO, globalO); err != nil {
			slog.Error("final save", "name", treeNameO, "err", err)
		}
	}()

	var workerWG sync.WaitGroup
	for i := 0; i < *workers; i++ {
		workerWG.Add(1)
		go func(workerID int) {
			defer workerWG.Done()
			for matchNum := 0; ; matchNum++ {
				select {
				case <-ctx.Done():
					return
				default:
				}

				// Alternate sides so both trees keep learning.
				learner := game.PieceX
				tree := snapX.Load()
				if (workerID+matchNum)%2 == 1 {
					learner = game.PieceO
					tree = snapO.Load()
				}

				result, rows, summary, err := selfplay.PlayMatch(selfplay.Options{
					WorkerID: workerID,
					Learner:  learner,
					Tree:     tree,
					Selector: selector,
				})
				if err != nil {
					slog.Error("match failed", "worker", workerID, "err", err)
					continue
				}
				totalMoves.Add(int64(summary.Steps))
				total := totalMatches.Add(1)

				results <- matchDone{Result: result, Summary: summary, Rows: rows}
				select {
				case updates <- MatchUpdate{WorkerID: workerID, Summary: summary}:
				default:
				}

				if *maxMatches > 0 && total >= *maxMatches {
					cancel()
					return
				}
			}
		}(i)
	}

	if *useTUI {
		p := tea.NewProgram(initialModel(updates), tea.WithAltScreen())
		go func() {
			if _, err := p.Run(); err != nil {
				slog.Error("tui", "err", err)
			}
			cancel()
		}()
		<-ctx.Done()
		p.Quit()
	} else {
		runPlainStatus(ctx, updates)
	}

	workerWG.Wait()
	close(results)
	<-ownerDone
	close(writeReqs)
	<-writerDone
	slog.Info("shutdown complete", "matches", totalMatches.Load(), "moves", totalMoves.Load())
}

func loadOrCreate(trees *store.TreeStore, name string, viewpoint game.Piece) (*movetree.MoveNode, error) {
	if trees.Exists(name) {
		return trees.Load(name)
	}
	return player.NewGlobalTree(viewpoint)
}

// runPlainStatus logs periodic throughput when the TUI is off.
func runPlainStatus(ctx context.Context, updates <-chan MatchUpdate) {
	startTime := time.Now()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updates:
			slog.Info("match finished",
				"worker", update.WorkerID,
				"learner", update.Summary.Learner.String(),
				"outcome", update.Summary.Outcome().String(),
				"steps", update.Summary.Steps,
				"recommended", update.Summary.Recommended)
		case <-ticker.C:
			duration := time.Since(startTime)
			matches := totalMatches.Load()
			moves := totalMoves.Load()
			slog.Info("throughput",
				"matches_per_sec", float64(matches)/duration.Seconds(),
				"moves_per_sec", float64(moves)/duration.Seconds())
		}
	}
}

// archiveWriterLoop streams rows into a parquet batch writer and rotates
// the batch every matchesPerFlush matches, plus a final rotation on
// shutdown. Batches live under tmp/ until finalized, so the viewer never
// sees a partial file.
func archiveWriterLoop(outDir string, matchesPerFlush int, in <-chan archiveWriteRequest) {
	if matchesPerFlush <= 0 {
		matchesPerFlush = 200
	}

	var batch *store.MatchBatchWriter

	rotate := func(final bool) {
		if batch == nil {
			return
		}
		outPath, rows, matches, err := batch.Finalize()
		batch = nil
		if err != nil {
			slog.Error("parquet flush", "final", final, "err", err)
		} else if rows > 0 {
			slog.Info("parquet flush", "final", final, "path", outPath, "matches", matches, "rows", rows)
		}
	}

	for req := range in {
		if len(req.rows) == 0 {
			continue
		}
		if batch == nil {
			b, err := store.NewMatchBatchWriter(outDir)
			if err != nil {
				slog.Error("open parquet batch", "err", err)
				continue
			}
			batch = b
		}
		if err := batch.WriteRows(req.rows); err != nil {
			slog.Error("parquet write", "err", err)
			rotate(false)
			continue
		}
		batch.NoteMatchWritten()
		if batch.BufferedMatches() >= matchesPerFlush {
			rotate(false)
		}
	}
	rotate(true)
}

package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// MatchTurnRow is one (match, turn) record in the long-term archive.
//
// It is written by the trainer and read back by the viewer; the schema is
// deliberately flat and model-agnostic so win-rate analysis can be done in
// SQL. Board is the absolute row-major board text after the move was
// applied. Outcome is the final match result from the learner's
// perspective: 1 won, -1 lost, 0 tied; it is repeated on every row of the
// match so per-turn queries never need a join.
type MatchTurnRow struct {
	MatchID string `parquet:"match_id,dict"`
	Turn    int32  `parquet:"turn"`
	Board   string `parquet:"board,dict"`
	Mover   string `parquet:"mover,dict"`
	Learner string `parquet:"learner,dict"`

	MoveIndex int32 `parquet:"move_index"`

	// Recommended is true when the move came from tree statistics rather
	// than the random fallback policy.
	Recommended   bool    `parquet:"recommended"`
	AvgWinPercent float32 `parquet:"avg_win_percent"`

	Outcome int32  `parquet:"outcome"`
	Source  string `parquet:"source,dict"`
}

// WriteMatchArchive writes rows to outPath atomically via a temp file.
func WriteMatchArchive(outPath string, rows []MatchTurnRow) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", "match_turn_v1"),
	); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

// WriteMatchBatch writes a timestamped batch file under outDir and returns
// its final path.
func WriteMatchBatch(outDir string, rows []MatchTurnRow) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	name := fmt.Sprintf("matches_%d.parquet", time.Now().UnixNano())
	outPath := filepath.Join(outDir, name)
	if err := WriteMatchArchive(outPath, rows); err != nil {
		return "", err
	}
	return outPath, nil
}

package store

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows(matchID string, outcome int32) []MatchTurnRow {
	return []MatchTurnRow{
		{MatchID: matchID, Turn: 1, Board: "X........", Mover: "X", Learner: "X", MoveIndex: 0, Recommended: false, Outcome: outcome, Source: "selfplay"},
		{MatchID: matchID, Turn: 2, Board: "X...O....", Mover: "O", Learner: "X", MoveIndex: 4, Recommended: false, Outcome: outcome, Source: "selfplay"},
		{MatchID: matchID, Turn: 3, Board: "XX..O....", Mover: "X", Learner: "X", MoveIndex: 1, Recommended: true, AvgWinPercent: 62.5, Outcome: outcome, Source: "selfplay"},
	}
}

func readArchive(t *testing.T, path string) []MatchTurnRow {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	reader := parquet.NewGenericReader[MatchTurnRow](f)
	defer reader.Close()

	var out []MatchTurnRow
	buf := make([]MatchTurnRow, 8)
	for {
		n, err := reader.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
	}
}

func TestBatchWriter_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	b, err := NewMatchBatchWriter(dir)
	require.NoError(t, err)

	want := sampleRows("selfplay_100_0", 1)
	require.NoError(t, b.WriteRows(want))
	b.NoteMatchWritten()

	// Nothing visible under the output dir until Finalize.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.True(t, e.IsDir(), "unexpected file before finalize: %s", e.Name())
	}

	outPath, rows, matches, err := b.Finalize()
	require.NoError(t, err)
	assert.Equal(t, 3, rows)
	assert.Equal(t, 1, matches)
	require.NotEmpty(t, outPath)

	got := readArchive(t, outPath)
	assert.Equal(t, want, got)

	// The tmp file must be gone.
	tmpEntries, err := os.ReadDir(filepath.Join(dir, "tmp"))
	require.NoError(t, err)
	assert.Empty(t, tmpEntries)
}

func TestBatchWriter_EmptyFinalizeWritesNothing(t *testing.T) {
	dir := t.TempDir()

	b, err := NewMatchBatchWriter(dir)
	require.NoError(t, err)

	outPath, rows, matches, err := b.Finalize()
	require.NoError(t, err)
	assert.Empty(t, outPath)
	assert.Zero(t, rows)
	assert.Zero(t, matches)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.True(t, e.IsDir(), "unexpected file: %s", e.Name())
	}
}

func TestWriteMatchBatch_SingleShot(t *testing.T) {
	dir := t.TempDir()

	want := sampleRows("selfplay_200_1", -1)
	outPath, err := WriteMatchBatch(dir, want)
	require.NoError(t, err)

	got := readArchive(t, outPath)
	assert.Equal(t, want, got)

	// No leftover temp file next to the output.
	_, err = os.Stat(outPath + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

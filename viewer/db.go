package main

import (
	"context"
	"database/sql"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
)

// DBCache maintains a cached DuckDB connection that refreshes periodically
// so newly flushed archive shards become visible without a restart.
type DBCache struct {
	roots       []string
	refreshRate time.Duration

	mu          sync.RWMutex
	db          *sql.DB
	lastRefresh time.Time

	// Cached matches index for fast pagination.
	matchesIndex []MatchSummary
}

func NewDBCache(roots []string, refreshRate time.Duration) *DBCache {
	return &DBCache{
		roots:       roots,
		refreshRate: refreshRate,
	}
}

// Get returns the cached DB connection, refreshing if needed.
func (c *DBCache) Get() (*sql.DB, error) {
	c.mu.RLock()
	if c.db != nil && time.Since(c.lastRefresh) < c.refreshRate {
		db := c.db
		c.mu.RUnlock()
		return db, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring the write lock.
	if c.db != nil && time.Since(c.lastRefresh) < c.refreshRate {
		return c.db, nil
	}
	return c.refreshLocked()
}

func (c *DBCache) refreshLocked() (*sql.DB, error) {
	start := time.Now()

	newDB, err := openDuckDBWithGlobs(c.roots)
	if err != nil {
		return nil, err
	}
	if c.db != nil {
		_ = c.db.Close()
	}

	c.db = newDB
	c.lastRefresh = time.Now()
	// Invalidate the matches index so it is rebuilt on next access.
	c.matchesIndex = nil

	log.Printf("DBCache refreshed in %v", time.Since(start))
	return c.db, nil
}

// GetMatchesIndex returns the cached matches index, rebuilding it after a
// connection refresh.
func (c *DBCache) GetMatchesIndex(ctx context.Context) ([]MatchSummary, error) {
	c.mu.RLock()
	if c.matchesIndex != nil && c.db != nil {
		idx := c.matchesIndex
		c.mu.RUnlock()
		return idx, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.matchesIndex != nil && c.db != nil {
		return c.matchesIndex, nil
	}
	if c.db == nil {
		if _, err := c.refreshLocked(); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	matches, err := queryAllMatches(ctx, c.db)
	if err != nil {
		return nil, err
	}
	c.matchesIndex = matches
	log.Printf("Matches index rebuilt: %d matches in %v", len(matches), time.Since(start))
	return c.matchesIndex, nil
}

func (c *DBCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		err := c.db.Close()
		c.db = nil
		return err
	}
	return nil
}

// openDuckDBWithGlobs creates an in-memory DuckDB connection with a turns
// view over every parquet shard under the roots. Glob patterns keep startup
// cheap regardless of shard count.
func openDuckDBWithGlobs(roots []string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, err
	}
	_, _ = db.Exec("PRAGMA threads=4")

	globs := make([]string, 0, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		glob := filepath.Join(root, "**", "*.parquet")
		globs = append(globs, "'"+escapeSQLString(glob)+"'")
	}

	if len(globs) == 0 {
		// Empty view so handlers still work against no data.
		_, err := db.Exec(`CREATE OR REPLACE VIEW turns AS
			SELECT * FROM (
				SELECT
					NULL::VARCHAR AS match_id,
					NULL::INTEGER AS turn,
					NULL::VARCHAR AS board,
					NULL::VARCHAR AS mover,
					NULL::VARCHAR AS learner,
					NULL::INTEGER AS move_index,
					NULL::BOOLEAN AS recommended,
					NULL::REAL AS avg_win_percent,
					NULL::INTEGER AS outcome,
					NULL::VARCHAR AS source,
					NULL::VARCHAR AS filename
			) WHERE 1=0`)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	// Exclude in-flight tmp shards; union_by_name tolerates schema drift
	// across archive versions.
	sqlText := `CREATE OR REPLACE VIEW turns AS
		SELECT * FROM read_parquet([` + strings.Join(globs, ",") + `], filename=true, union_by_name=true)
		WHERE NOT contains(filename, '/tmp/')`
	if _, err := db.Exec(sqlText); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// queryAllMatches loads every match summary in one pass; the result backs
// the paginated /api/matches handler.
func queryAllMatches(ctx context.Context, db *sql.DB) ([]MatchSummary, error) {
	query := `SELECT
		match_id,
		CASE
			WHEN starts_with(match_id, 'selfplay_') THEN try_cast(regexp_extract(match_id, '^selfplay_([0-9]+)_', 1) AS BIGINT)
			ELSE NULL
		END AS started_ns,
		COUNT(*)::INTEGER AS turn_count,
		MIN(learner)::VARCHAR AS learner,
		MIN(outcome)::INTEGER AS outcome,
		SUM(CASE WHEN recommended THEN 1 ELSE 0 END)::INTEGER AS recommended_moves,
		MIN(source)::VARCHAR AS source
	FROM turns
	GROUP BY match_id`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]MatchSummary, 0, 10000)
	for rows.Next() {
		var m MatchSummary
		if err := rows.Scan(&m.MatchID, &m.StartedNs, &m.TurnCount, &m.Learner, &m.Outcome, &m.Recommended, &m.Source); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest first; unknown start times sink to the end.
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedNs == nil && out[j].StartedNs == nil {
			return out[i].MatchID > out[j].MatchID
		}
		if out[i].StartedNs == nil {
			return false
		}
		if out[j].StartedNs == nil {
			return true
		}
		return *out[i].StartedNs > *out[j].StartedNs
	})
	return out, nil
}

// queryTurns returns every turn of one match in play order.
func queryTurns(ctx context.Context, db *sql.DB, matchID string) ([]TurnRow, error) {
	query := `SELECT match_id, turn, board, mover, learner, move_index, recommended, avg_win_percent, outcome, source
		FROM turns
		WHERE match_id = ?
		ORDER BY turn ASC`

	rows, err := db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]TurnRow, 0, 16)
	for rows.Next() {
		var t TurnRow
		if err := rows.Scan(&t.MatchID, &t.Turn, &t.Board, &t.Mover, &t.Learner, &t.MoveIndex, &t.Recommended, &t.AvgWinPercent, &t.Outcome, &t.Source); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, sql.ErrNoRows
	}
	return out, nil
}

// queryStats buckets selfplay matches by start time and aggregates
// learner-perspective results per bucket.
func queryStats(ctx context.Context, db *sql.DB, fromNs, toNs, bucketNs int64) ([]StatsPoint, error) {
	query := `WITH matches AS (
		SELECT
			match_id,
			try_cast(regexp_extract(match_id, '^selfplay_([0-9]+)_', 1) AS BIGINT) AS started_ns,
			COUNT(*)::BIGINT AS turn_count,
			MIN(outcome)::INTEGER AS outcome,
			SUM(CASE WHEN recommended THEN 1 ELSE 0 END)::BIGINT AS recommended_moves
		FROM turns
		WHERE starts_with(match_id, 'selfplay_')
		GROUP BY match_id
	)
	SELECT
		(? + (((started_ns - ?) // ?) * ?))::BIGINT AS t_ns,
		COUNT(*)::BIGINT AS matches,
		SUM(turn_count)::BIGINT AS total_turns,
		SUM(CASE WHEN outcome = 1 THEN 1 ELSE 0 END)::BIGINT AS wins,
		SUM(CASE WHEN outcome = -1 THEN 1 ELSE 0 END)::BIGINT AS losses,
		SUM(CASE WHEN outcome = 0 THEN 1 ELSE 0 END)::BIGINT AS ties,
		SUM(recommended_moves)::BIGINT AS recommended_moves
	FROM matches
	WHERE started_ns IS NOT NULL AND started_ns >= ? AND started_ns < ?
	GROUP BY t_ns
	ORDER BY t_ns ASC`

	rows, err := db.QueryContext(ctx, query, fromNs, fromNs, bucketNs, bucketNs, fromNs, toNs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]StatsPoint, 0, 64)
	for rows.Next() {
		var p StatsPoint
		if err := rows.Scan(&p.TNs, &p.Matches, &p.TotalTurns, &p.Wins, &p.Losses, &p.Ties, &p.RecommendedMoves); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

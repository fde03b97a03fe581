package main

// MatchSummary is one row of the matches index.
type MatchSummary struct {
	MatchID string `json:"match_id"`
	// StartedNs is parsed from match_id for selfplay matches with format
	// selfplay_<unix_nano>_<worker>. Nil for IDs that do not match.
	StartedNs   *int64 `json:"started_ns"`
	TurnCount   int32  `json:"turn_count"`
	Learner     string `json:"learner"`
	Outcome     int32  `json:"outcome"`
	Recommended int32  `json:"recommended_moves"`
	Source      string `json:"source"`
}

type MatchesResponse struct {
	Total   int64          `json:"total"`
	Matches []MatchSummary `json:"matches"`
}

// TurnRow is one turn of one match, as stored in the archive.
type TurnRow struct {
	MatchID       string  `json:"match_id"`
	Turn          int32   `json:"turn"`
	Board         string  `json:"board"`
	Mover         string  `json:"mover"`
	Learner       string  `json:"learner"`
	MoveIndex     int32   `json:"move_index"`
	Recommended   bool    `json:"recommended"`
	AvgWinPercent float32 `json:"avg_win_percent"`
	Outcome       int32   `json:"outcome"`
	Source        string  `json:"source"`
}

type StatsPoint struct {
	TNs int64 `json:"t_ns"`

	Matches    int64 `json:"matches"`
	TotalTurns int64 `json:"total_turns"`
	Wins       int64 `json:"wins"`
	Losses     int64 `json:"losses"`
	Ties       int64 `json:"ties"`

	RecommendedMoves int64 `json:"recommended_moves"`
}

type StatsResponse struct {
	FromNs   int64        `json:"from_ns"`
	ToNs     int64        `json:"to_ns"`
	BucketNs int64        `json:"bucket_ns"`
	Points   []StatsPoint `json:"points"`
}

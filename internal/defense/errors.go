package defense

import (
	"fmt"
)

// GapReason names the way a season's records fail to fold cleanly
type GapReason string

const (
	ReasonDuplicate       GapReason = "duplicate"
	ReasonMissingOpponent GapReason = "missing_opponent"
	ReasonSeasonMismatch  GapReason = "season_mismatch"
	ReasonInvalidWeek     GapReason = "invalid_week"
	ReasonOutOfOrder      GapReason = "out_of_order"
	ReasonInvalidOutcome  GapReason = "invalid_outcome"
)

// DataGapError reports a duplicate or missing per-team-week record.
// Folding past it would double-count or silently drop a game.
type DataGapError struct {
	Season int
	Week   int
	TeamID string
	Reason GapReason
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("data gap: season=%d week=%d team=%s: %s", e.Season, e.Week, e.TeamID, e.Reason)
}

// RankIntegrityError reports a week whose ranks for one metric are not an
// exact permutation of 1..N. The week must not be written.
type RankIntegrityError struct {
	Season int
	Week   int
	Metric Metric
	Ranks  []int
}

func (e *RankIntegrityError) Error() string {
	return fmt.Sprintf("rank integrity violated: season=%d week=%d metric=%s ranks=%v", e.Season, e.Week, e.Metric, e.Ranks)
}

package models

import (
	"database/sql"
	"time"
)

// Outcome is a single game's result from one team's point of view
type Outcome string

const (
	OutcomeWin  Outcome = "W"
	OutcomeLoss Outcome = "L"
	OutcomeTie  Outcome = "T"
)

// Valid reports whether o is one of the known outcomes
func (o Outcome) Valid() bool {
	return o == OutcomeWin || o == OutcomeLoss || o == OutcomeTie
}

// DefenseGameRecord is one team's defensive line for one game
type DefenseGameRecord struct {
	TeamID            string  `db:"team_id"`
	TeamAbbr          string  `db:"team_abbr"`
	Season            int     `db:"season"`
	Week              int     `db:"week"`
	OpponentID        string  `db:"opponent_id"`
	PassYardsAllowed  int     `db:"pass_yards_allowed"`
	RushYardsAllowed  int     `db:"rush_yards_allowed"`
	TotalYardsAllowed int     `db:"total_yards_allowed"`
	PointsAllowed     int     `db:"points_allowed"`
	Outcome           Outcome `db:"outcome"`
}

// CumulativeDefense is a team's season-to-date defensive state
type CumulativeDefense struct {
	TeamID            string
	Abbreviation      string
	GamesPlayed       int
	LastWeekPlayed    int
	PassYardsAllowed  int
	RushYardsAllowed  int
	TotalYardsAllowed int
	PointsAllowed     int
	Wins              int
	Losses            int
	Ties              int
}

// Add folds one game into the running totals
func (c *CumulativeDefense) Add(r DefenseGameRecord) {
	c.GamesPlayed++
	c.LastWeekPlayed = r.Week
	c.PassYardsAllowed += r.PassYardsAllowed
	c.RushYardsAllowed += r.RushYardsAllowed
	c.TotalYardsAllowed += r.TotalYardsAllowed
	c.PointsAllowed += r.PointsAllowed

	switch r.Outcome {
	case OutcomeWin:
		c.Wins++
	case OutcomeLoss:
		c.Losses++
	case OutcomeTie:
		c.Ties++
	}
}

// DefenseSnapshot is a team's cumulative defense built only from games with
// week <= Week of Season, plus its league-wide ranks for that week.
type DefenseSnapshot struct {
	ID                string    `db:"id"`
	TeamID            string    `db:"team_id"`
	Season            int       `db:"season"`
	Week              int       `db:"week"`
	PassYardsAllowed  int       `db:"pass_yards_allowed"`
	RushYardsAllowed  int       `db:"rush_yards_allowed"`
	TotalYardsAllowed int       `db:"total_yards_allowed"`
	PointsAllowed     int       `db:"points_allowed"`
	Wins              int       `db:"wins"`
	Losses            int       `db:"losses"`
	Ties              int       `db:"ties"`
	PassDefRank       int       `db:"pass_def_rank"`
	RushDefRank       int       `db:"rush_def_rank"`
	TotalDefRank      int       `db:"total_def_rank"`
	SyncRunID         string    `db:"sync_run_id"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// GamesPlayed returns the number of decided or tied games in the record
func (s *DefenseSnapshot) GamesPlayed() int {
	return s.Wins + s.Losses + s.Ties
}

// WinPct returns (wins + ties/2) / games, null when no games are recorded
func (s *DefenseSnapshot) WinPct() sql.NullFloat64 {
	games := s.GamesPlayed()
	if games == 0 {
		return sql.NullFloat64{}
	}
	pct := (float64(s.Wins) + 0.5*float64(s.Ties)) / float64(games)
	return sql.NullFloat64{Float64: pct, Valid: true}
}

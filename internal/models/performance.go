package models

import (
	"database/sql"
	"time"
)

// ContextSource records which snapshot an opponent context was copied from
type ContextSource string

const (
	// ContextPriorWeek is the opponent's snapshot from the latest week before the game
	ContextPriorWeek ContextSource = "prior_week"
	// ContextPriorSeason is the opponent's final snapshot of the previous season
	ContextPriorSeason ContextSource = "prior_season"
	// ContextUnavailable means no snapshot could be used
	ContextUnavailable ContextSource = "unavailable"
)

// OpponentContext is the frozen copy of an opponent's defense at game time.
// Null fields mean "unknown" and must never be coerced to a default rank.
type OpponentContext struct {
	PassDefRank  sql.NullInt32   `db:"opp_pass_def_rank"`
	TotalDefRank sql.NullInt32   `db:"opp_total_def_rank"`
	WinPct       sql.NullFloat64 `db:"opp_win_pct"`
	SourceSeason sql.NullInt32   `db:"opp_context_season"`
	SourceWeek   sql.NullInt32   `db:"opp_context_week"`
	Source       ContextSource   `db:"context_source"`
}

// Available reports whether every field needed for difficulty scoring is known
func (c OpponentContext) Available() bool {
	return c.PassDefRank.Valid && c.TotalDefRank.Valid && c.WinPct.Valid
}

// ContextFromSnapshot copies the rank and record fields of snap
func ContextFromSnapshot(snap *DefenseSnapshot, source ContextSource) OpponentContext {
	return OpponentContext{
		PassDefRank:  sql.NullInt32{Int32: int32(snap.PassDefRank), Valid: true},
		TotalDefRank: sql.NullInt32{Int32: int32(snap.TotalDefRank), Valid: true},
		WinPct:       snap.WinPct(),
		SourceSeason: sql.NullInt32{Int32: int32(snap.Season), Valid: true},
		SourceWeek:   sql.NullInt32{Int32: int32(snap.Week), Valid: true},
		Source:       source,
	}
}

// UnavailableContext is the null context stored when no snapshot applies
func UnavailableContext() OpponentContext {
	return OpponentContext{Source: ContextUnavailable}
}

// Quarterback is a passer identity
type Quarterback struct {
	ID          string         `db:"id"`
	GSISID      string         `db:"gsis_id"`
	Name        string         `db:"name"`
	HeadshotURL sql.NullString `db:"headshot_url"`
	TeamID      sql.NullString `db:"team_id"`
	IsNotable   bool           `db:"is_notable"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

// QBPerformance is one quarterback's game with the opponent context frozen at write time
type QBPerformance struct {
	ID         string `db:"id"`
	QBID       string `db:"qb_id"`
	Season     int    `db:"season"`
	Week       int    `db:"week"`
	OpponentID string `db:"opponent_id"`

	PassAttempts  int `db:"pass_attempts"`
	Completions   int `db:"completions"`
	PassYards     int `db:"pass_yards"`
	PassTDs       int `db:"pass_tds"`
	Interceptions int `db:"interceptions"`
	RushYards     int `db:"rush_yards"`
	RushTDs       int `db:"rush_tds"`
	Sacks         int `db:"sacks"`
	Fumbles       int `db:"fumbles"`

	Opponent           OpponentContext
	ContextUnavailable bool `db:"context_unavailable"`

	SyncRunID string    `db:"sync_run_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// SetContext stores ctx on the performance and keeps the unavailable flag in sync
func (p *QBPerformance) SetContext(ctx OpponentContext) {
	p.Opponent = ctx
	p.ContextUnavailable = ctx.Source == ContextUnavailable || !ctx.Available()
}

// QBGameLine is one quarterback's raw stat line for one game from the feed
type QBGameLine struct {
	PlayerID      string
	Name          string
	HeadshotURL   string
	TeamAbbr      string
	OpponentAbbr  string
	Season        int
	Week          int
	Completions   int
	Attempts      int
	PassYards     int
	PassTDs       int
	Interceptions int
	Sacks         int
	RushYards     int
	RushTDs       int
	Fumbles       int
}

// ToQuarterback converts the identity portion of the line
func (l *QBGameLine) ToQuarterback() *Quarterback {
	qb := &Quarterback{
		GSISID: l.PlayerID,
		Name:   l.Name,
	}
	if l.HeadshotURL != "" {
		qb.HeadshotURL = sql.NullString{String: l.HeadshotURL, Valid: true}
	}
	if l.TeamAbbr != "" {
		qb.TeamID = sql.NullString{String: l.TeamAbbr, Valid: true}
	}
	return qb
}

// ToPerformance converts the stat portion of the line. Opponent context starts unavailable.
func (l *QBGameLine) ToPerformance(qbID string) *QBPerformance {
	perf := &QBPerformance{
		QBID:          qbID,
		Season:        l.Season,
		Week:          l.Week,
		OpponentID:    l.OpponentAbbr,
		PassAttempts:  l.Attempts,
		Completions:   l.Completions,
		PassYards:     l.PassYards,
		PassTDs:       l.PassTDs,
		Interceptions: l.Interceptions,
		RushYards:     l.RushYards,
		RushTDs:       l.RushTDs,
		Sacks:         l.Sacks,
		Fumbles:       l.Fumbles,
	}
	perf.SetContext(UnavailableContext())
	return perf
}

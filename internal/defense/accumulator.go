// Package defense folds per-game defensive records into season-to-date
// totals and ranks every team against the league one week at a time.
//
// Week W's state is built only from games with week <= W. A team on a bye
// keeps its last totals and is still ranked that week.
package defense

import (
	"sort"

	"nflqb/pipeline/internal/models"
)

// Accumulator folds weekly defense records into running totals for one season
type Accumulator struct {
	season   int
	lastWeek int
	totals   map[string]*models.CumulativeDefense
}

// NewAccumulator creates an empty accumulator for season
func NewAccumulator(season int) *Accumulator {
	return &Accumulator{
		season: season,
		totals: make(map[string]*models.CumulativeDefense),
	}
}

// Season returns the season being accumulated
func (a *Accumulator) Season() int {
	return a.season
}

// Week returns the last week folded, 0 before any fold
func (a *Accumulator) Week() int {
	return a.lastWeek
}

// Fold adds one week of records. Weeks must strictly increase. The records
// are validated as a whole before any are applied, so a failed fold leaves
// the accumulator unchanged.
func (a *Accumulator) Fold(week int, records []models.DefenseGameRecord) error {
	if week < 1 {
		return &DataGapError{Season: a.season, Week: week, Reason: ReasonInvalidWeek}
	}
	if week <= a.lastWeek {
		return &DataGapError{Season: a.season, Week: week, Reason: ReasonOutOfOrder}
	}

	byTeam := make(map[string]models.DefenseGameRecord, len(records))
	for _, r := range records {
		if r.Season != a.season {
			return &DataGapError{Season: a.season, Week: week, TeamID: r.TeamID, Reason: ReasonSeasonMismatch}
		}
		if r.Week != week {
			return &DataGapError{Season: a.season, Week: week, TeamID: r.TeamID, Reason: ReasonInvalidWeek}
		}
		if !r.Outcome.Valid() {
			return &DataGapError{Season: a.season, Week: week, TeamID: r.TeamID, Reason: ReasonInvalidOutcome}
		}
		if _, dup := byTeam[r.TeamID]; dup {
			return &DataGapError{Season: a.season, Week: week, TeamID: r.TeamID, Reason: ReasonDuplicate}
		}
		byTeam[r.TeamID] = r
	}

	// Both sides of a game must be present, otherwise one defense is missing a game.
	for _, r := range records {
		if r.OpponentID == "" {
			continue
		}
		opp, ok := byTeam[r.OpponentID]
		if !ok || opp.OpponentID != r.TeamID {
			return &DataGapError{Season: a.season, Week: week, TeamID: r.TeamID, Reason: ReasonMissingOpponent}
		}
	}

	for _, r := range records {
		c, ok := a.totals[r.TeamID]
		if !ok {
			abbr := r.TeamAbbr
			if abbr == "" {
				abbr = r.TeamID
			}
			c = &models.CumulativeDefense{TeamID: r.TeamID, Abbreviation: abbr}
			a.totals[r.TeamID] = c
		}
		c.Add(r)
	}

	a.lastWeek = week
	return nil
}

// State returns a copy of every team's cumulative totals, ordered by team id.
// Teams that have not played yet are absent.
func (a *Accumulator) State() []models.CumulativeDefense {
	state := make([]models.CumulativeDefense, 0, len(a.totals))
	for _, c := range a.totals {
		state = append(state, *c)
	}
	sort.Slice(state, func(i, j int) bool {
		return state[i].TeamID < state[j].TeamID
	})
	return state
}

// WeekState is the league's cumulative state after a week has been folded
type WeekState struct {
	Season int
	Week   int
	Teams  []models.CumulativeDefense
}

// AccumulateSeason folds every record of a season in week order and returns
// the league state after each week that has at least one game.
func AccumulateSeason(season int, records []models.DefenseGameRecord) ([]WeekState, error) {
	byWeek := make(map[int][]models.DefenseGameRecord)
	for _, r := range records {
		if r.Week < 1 {
			return nil, &DataGapError{Season: season, Week: r.Week, TeamID: r.TeamID, Reason: ReasonInvalidWeek}
		}
		byWeek[r.Week] = append(byWeek[r.Week], r)
	}

	weeks := make([]int, 0, len(byWeek))
	for w := range byWeek {
		weeks = append(weeks, w)
	}
	sort.Ints(weeks)

	acc := NewAccumulator(season)
	states := make([]WeekState, 0, len(weeks))
	for _, w := range weeks {
		if err := acc.Fold(w, byWeek[w]); err != nil {
			return nil, err
		}
		states = append(states, WeekState{Season: season, Week: w, Teams: acc.State()})
	}

	return states, nil
}

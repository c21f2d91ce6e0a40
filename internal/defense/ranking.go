package defense

import (
	"sort"

	"nflqb/pipeline/internal/models"
)

// Metric is one of the three ranked defensive categories
type Metric string

const (
	MetricPass  Metric = "pass"
	MetricRush  Metric = "rush"
	MetricTotal Metric = "total"
)

// Metrics lists the ranked categories in a fixed order
var Metrics = []Metric{MetricPass, MetricRush, MetricTotal}

func (m Metric) value(c *models.CumulativeDefense) int {
	switch m {
	case MetricPass:
		return c.PassYardsAllowed
	case MetricRush:
		return c.RushYardsAllowed
	default:
		return c.TotalYardsAllowed
	}
}

func (m Metric) rank(s *models.DefenseSnapshot) int {
	switch m {
	case MetricPass:
		return s.PassDefRank
	case MetricRush:
		return s.RushDefRank
	default:
		return s.TotalDefRank
	}
}

func (m Metric) setRank(s *models.DefenseSnapshot, rank int) {
	switch m {
	case MetricPass:
		s.PassDefRank = rank
	case MetricRush:
		s.RushDefRank = rank
	default:
		s.TotalDefRank = rank
	}
}

// RankWeek ranks every team in state on all three metrics and returns one
// snapshot per team, ordered by team id. Fewer yards allowed ranks better;
// ties go to fewer points allowed, then abbreviation, then team id.
func RankWeek(state WeekState) ([]models.DefenseSnapshot, error) {
	teams := state.Teams
	snaps := make([]models.DefenseSnapshot, len(teams))
	for i := range teams {
		c := &teams[i]
		snaps[i] = models.DefenseSnapshot{
			TeamID:            c.TeamID,
			Season:            state.Season,
			Week:              state.Week,
			PassYardsAllowed:  c.PassYardsAllowed,
			RushYardsAllowed:  c.RushYardsAllowed,
			TotalYardsAllowed: c.TotalYardsAllowed,
			PointsAllowed:     c.PointsAllowed,
			Wins:              c.Wins,
			Losses:            c.Losses,
			Ties:              c.Ties,
		}
	}

	for _, m := range Metrics {
		for pos, idx := range rankOrder(teams, m) {
			m.setRank(&snaps[idx], pos+1)
		}
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].TeamID < snaps[j].TeamID
	})

	if err := CheckRankIntegrity(snaps); err != nil {
		return nil, err
	}
	return snaps, nil
}

// rankOrder returns team indexes from best to worst defense on m
func rankOrder(teams []models.CumulativeDefense, m Metric) []int {
	order := make([]int, len(teams))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := &teams[order[i]], &teams[order[j]]
		if va, vb := m.value(a), m.value(b); va != vb {
			return va < vb
		}
		if a.PointsAllowed != b.PointsAllowed {
			return a.PointsAllowed < b.PointsAllowed
		}
		if abbrA, abbrB := abbreviation(a), abbreviation(b); abbrA != abbrB {
			return abbrA < abbrB
		}
		return a.TeamID < b.TeamID
	})

	return order
}

func abbreviation(c *models.CumulativeDefense) string {
	if c.Abbreviation != "" {
		return c.Abbreviation
	}
	return c.TeamID
}

// CheckRankIntegrity verifies that, within one (season, week), each metric's
// ranks are exactly the set {1..N}.
func CheckRankIntegrity(snaps []models.DefenseSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	season, week := snaps[0].Season, snaps[0].Week
	n := len(snaps)

	for _, m := range Metrics {
		seen := make([]bool, n+1)
		ranks := make([]int, n)
		valid := true
		for i := range snaps {
			s := &snaps[i]
			r := m.rank(s)
			ranks[i] = r
			if s.Season != season || s.Week != week || r < 1 || r > n || seen[r] {
				valid = false
				continue
			}
			seen[r] = true
		}
		if !valid {
			return &RankIntegrityError{Season: season, Week: week, Metric: m, Ranks: ranks}
		}
	}

	return nil
}

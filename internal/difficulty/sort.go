package difficulty

import (
	"fmt"
	"sort"

	"nflqb/pipeline/internal/models"
)

// SortKey selects the ordering applied by Sort
type SortKey string

const (
	SortChronological SortKey = "chronological"
	SortPassDefRank   SortKey = "pass_def_rank"
	SortTotalDefRank  SortKey = "total_def_rank"
	SortWinPct        SortKey = "win_pct"
	SortDifficulty    SortKey = "difficulty"
)

// Direction is ascending or descending
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// DefaultDirection surfaces the hardest opponents first: rank 1 first for
// ranks, highest first for win percentage and difficulty. Chronological
// defaults to oldest first.
func (k SortKey) DefaultDirection() Direction {
	switch k {
	case SortWinPct, SortDifficulty:
		return Descending
	default:
		return Ascending
	}
}

// ParseSortKey validates a sort key; empty means chronological
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(s); k {
	case "":
		return SortChronological, nil
	case SortChronological, SortPassDefRank, SortTotalDefRank, SortWinPct, SortDifficulty:
		return k, nil
	default:
		return "", fmt.Errorf("unknown sort key %q", s)
	}
}

// ParseDirection validates a direction; empty means the key's default
func ParseDirection(s string, key SortKey) (Direction, error) {
	switch d := Direction(s); d {
	case "":
		return key.DefaultDirection(), nil
	case Ascending, Descending:
		return d, nil
	default:
		return "", fmt.Errorf("unknown sort direction %q", s)
	}
}

// Sort orders perfs in place. The sort is stable; performances with an
// unknown value for the key always sort last, whatever the direction.
// An empty dir means the key's default direction.
func Sort(perfs []models.QBPerformance, key SortKey, dir Direction) {
	if dir == "" {
		dir = key.DefaultDirection()
	}
	if key == SortChronological {
		sort.SliceStable(perfs, func(i, j int) bool {
			a, b := perfs[i], perfs[j]
			if a.Season != b.Season {
				return (a.Season < b.Season) == (dir == Ascending)
			}
			if a.Week != b.Week {
				return (a.Week < b.Week) == (dir == Ascending)
			}
			return false
		})
		return
	}

	value := valueFunc(key)
	sort.SliceStable(perfs, func(i, j int) bool {
		vi, okI := value(perfs[i].Opponent)
		vj, okJ := value(perfs[j].Opponent)
		switch {
		case !okI || !okJ:
			return okI && !okJ
		case vi == vj:
			return false
		case dir == Descending:
			return vi > vj
		default:
			return vi < vj
		}
	})
}

func valueFunc(key SortKey) func(models.OpponentContext) (float64, bool) {
	switch key {
	case SortPassDefRank:
		return func(c models.OpponentContext) (float64, bool) {
			return float64(c.PassDefRank.Int32), c.PassDefRank.Valid
		}
	case SortTotalDefRank:
		return func(c models.OpponentContext) (float64, bool) {
			return float64(c.TotalDefRank.Int32), c.TotalDefRank.Valid
		}
	case SortWinPct:
		return func(c models.OpponentContext) (float64, bool) {
			return c.WinPct.Float64, c.WinPct.Valid
		}
	default:
		return Score
	}
}

package difficulty

import (
	"nflqb/pipeline/internal/models"
)

// Tier is a difficulty band
type Tier string

const (
	TierElite        Tier = "elite"
	TierAboveAverage Tier = "above_average"
	TierAverage      Tier = "average"
	TierBelowAverage Tier = "below_average"
	TierWeak         Tier = "weak"
	TierUnknown      Tier = "unknown"
)

// Tiers lists the bands from hardest to easiest, then unknown
var Tiers = []Tier{TierElite, TierAboveAverage, TierAverage, TierBelowAverage, TierWeak, TierUnknown}

// TierFor buckets a difficulty score
func TierFor(score float64) Tier {
	switch {
	case score >= 0.8:
		return TierElite
	case score >= 0.6:
		return TierAboveAverage
	case score >= 0.4:
		return TierAverage
	case score >= 0.2:
		return TierBelowAverage
	default:
		return TierWeak
	}
}

// TierOf buckets a performance's opponent context, unknown when unscored
func TierOf(ctx models.OpponentContext) Tier {
	score, ok := Score(ctx)
	if !ok {
		return TierUnknown
	}
	return TierFor(score)
}

// ParseTier validates a tier name
func ParseTier(s string) (Tier, bool) {
	for _, t := range Tiers {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// GroupByTier buckets performances, preserving input order inside each tier
func GroupByTier(perfs []models.QBPerformance) map[Tier][]models.QBPerformance {
	groups := make(map[Tier][]models.QBPerformance)
	for _, p := range perfs {
		t := TierOf(p.Opponent)
		groups[t] = append(groups[t], p)
	}
	return groups
}

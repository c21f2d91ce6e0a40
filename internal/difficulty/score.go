// Package difficulty turns a performance's frozen opponent context into a
// single opponent-difficulty score and orders or buckets performances by it.
package difficulty

import (
	"database/sql"

	"nflqb/pipeline/internal/models"
)

// Fixed weights; changing them changes every published score.
const (
	PassDefWeight  = 0.4
	TotalDefWeight = 0.3
	WinPctWeight   = 0.3

	// LeagueSize is the rank denominator: rank 1 scores 1.0, rank 32 scores 1/32.
	LeagueSize = 32
)

// RankScore normalizes a defense rank so the best defense scores highest
func RankScore(rank int) float64 {
	return float64(LeagueSize+1-rank) / LeagueSize
}

// Combine computes the weighted difficulty of a known opponent context
func Combine(passDefRank, totalDefRank int, winPct float64) float64 {
	return PassDefWeight*RankScore(passDefRank) +
		TotalDefWeight*RankScore(totalDefRank) +
		WinPctWeight*winPct
}

// Score returns the difficulty for ctx. ok is false when any input is
// unknown; callers must treat that as unknown rather than average.
func Score(ctx models.OpponentContext) (score float64, ok bool) {
	if !ctx.Available() {
		return 0, false
	}
	return Combine(int(ctx.PassDefRank.Int32), int(ctx.TotalDefRank.Int32), ctx.WinPct.Float64), true
}

// NullScore is Score as a nullable value for persistence and JSON
func NullScore(ctx models.OpponentContext) sql.NullFloat64 {
	score, ok := Score(ctx)
	return sql.NullFloat64{Float64: score, Valid: ok}
}

package models

// TeamBoxScore holds one team's offensive totals for a single game.
// Yards gained by a team are the yards allowed by its opponent.
type TeamBoxScore struct {
	TeamAbbr     string
	PassingYards int
	RushingYards int
	TotalYards   int
}

// GameSummary bundles the per-game detail fetched after the scoreboard
type GameSummary struct {
	Game      Game
	BoxScores []TeamBoxScore
	QBLines   []QBGameLine
}

// BoxScoreFor returns the box score for abbr, if present
func (s *GameSummary) BoxScoreFor(abbr string) (TeamBoxScore, bool) {
	for _, bs := range s.BoxScores {
		if bs.TeamAbbr == abbr {
			return bs, true
		}
	}
	return TeamBoxScore{}, false
}

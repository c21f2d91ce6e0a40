package models

// Game is one completed regular-season game as delivered by the feed
type Game struct {
	EventID   string
	Season    int
	Week      int
	HomeTeam  TeamInput
	AwayTeam  TeamInput
	HomeScore int
	AwayScore int
	Completed bool
}

// Opponent returns the abbreviation of the team playing against abbr
func (g *Game) Opponent(abbr string) string {
	if abbr == g.HomeTeam.Abbreviation {
		return g.AwayTeam.Abbreviation
	}
	return g.HomeTeam.Abbreviation
}

// PointsAgainst returns the points scored against abbr
func (g *Game) PointsAgainst(abbr string) int {
	if abbr == g.HomeTeam.Abbreviation {
		return g.AwayScore
	}
	return g.HomeScore
}

// OutcomeFor returns the result of the game from abbr's point of view
func (g *Game) OutcomeFor(abbr string) Outcome {
	own, against := g.HomeScore, g.AwayScore
	if abbr != g.HomeTeam.Abbreviation {
		own, against = against, own
	}
	switch {
	case own > against:
		return OutcomeWin
	case own < against:
		return OutcomeLoss
	default:
		return OutcomeTie
	}
}

// Involves reports whether abbr played in the game
func (g *Game) Involves(abbr string) bool {
	return abbr == g.HomeTeam.Abbreviation || abbr == g.AwayTeam.Abbreviation
}

package pipeline

import "nflqb/pipeline/internal/models"

// DefaultNotableMinAttempts is the season pass attempts that make a quarterback notable
const DefaultNotableMinAttempts = 50

// SeasonAttempts sums pass attempts per player across lines
func SeasonAttempts(lines []models.QBGameLine) map[string]int {
	attempts := make(map[string]int)
	for _, l := range lines {
		attempts[l.PlayerID] += l.Attempts
	}
	return attempts
}

// latestLines returns each player's line from their latest week, which
// carries their current team and headshot
func latestLines(lines []models.QBGameLine) map[string]models.QBGameLine {
	latest := make(map[string]models.QBGameLine)
	for _, l := range lines {
		if cur, ok := latest[l.PlayerID]; !ok || l.Week >= cur.Week {
			latest[l.PlayerID] = l
		}
	}
	return latest
}

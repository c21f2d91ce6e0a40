// Package ingest turns the ESPN scoreboard and game summaries into the
// per-team defense records and per-QB stat lines the pipeline consumes.
package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"nflqb/pipeline/internal/client"
	"nflqb/pipeline/internal/models"

	"github.com/rs/zerolog/log"
)

// Team boxscore statistic names
const (
	statNetPassingYards = "netPassingYards"
	statRushingYards    = "rushingYards"
	statTotalYards      = "totalYards"
)

// Player stat group names
const (
	groupPassing = "passing"
	groupRushing = "rushing"
)

// ParseScoreboard returns the completed games on a week's scoreboard
func ParseScoreboard(season, week int, sb *client.ScoreboardResponse) ([]models.Game, error) {
	var games []models.Game
	for _, event := range sb.Events {
		if len(event.Competitions) == 0 {
			continue
		}
		comp := event.Competitions[0]
		if !comp.Status.Type.Completed {
			continue
		}
		if len(comp.Competitors) != 2 {
			return nil, fmt.Errorf("event %s: expected 2 competitors, got %d", event.ID, len(comp.Competitors))
		}

		game := models.Game{
			EventID:   event.ID,
			Season:    season,
			Week:      week,
			Completed: true,
		}
		for _, c := range comp.Competitors {
			score, err := parseStat(c.Score)
			if err != nil {
				return nil, fmt.Errorf("event %s: invalid score for %s: %w", event.ID, c.Team.Abbreviation, err)
			}
			if c.Team.Abbreviation == "" {
				return nil, fmt.Errorf("event %s: competitor missing abbreviation", event.ID)
			}
			switch c.HomeAway {
			case "home":
				game.HomeTeam = c.Team
				game.HomeScore = score
			case "away":
				game.AwayTeam = c.Team
				game.AwayScore = score
			default:
				return nil, fmt.Errorf("event %s: unknown homeAway %q", event.ID, c.HomeAway)
			}
		}
		if game.HomeTeam.Abbreviation == "" || game.AwayTeam.Abbreviation == "" {
			return nil, fmt.Errorf("event %s: missing home or away competitor", event.ID)
		}

		games = append(games, game)
	}
	return games, nil
}

// ParseSummary extracts team offensive totals and quarterback lines from a game summary
func ParseSummary(game models.Game, resp *client.SummaryResponse) (*models.GameSummary, error) {
	summary := &models.GameSummary{Game: game}

	for _, t := range resp.Boxscore.Teams {
		bs, err := parseTeamBoxScore(t)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", game.EventID, err)
		}
		if !game.Involves(bs.TeamAbbr) {
			return nil, fmt.Errorf("event %s: boxscore team %s did not play", game.EventID, bs.TeamAbbr)
		}
		summary.BoxScores = append(summary.BoxScores, bs)
	}

	for _, p := range resp.Boxscore.Players {
		lines, err := parseQBLines(game, p)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", game.EventID, err)
		}
		summary.QBLines = append(summary.QBLines, lines...)
	}

	return summary, nil
}

// DefenseRecords produces one record per team. A team's yards allowed are
// its opponent's offensive totals; points allowed and the outcome come from the score.
func DefenseRecords(summary *models.GameSummary) ([]models.DefenseGameRecord, error) {
	game := summary.Game
	records := make([]models.DefenseGameRecord, 0, 2)

	for _, team := range []models.TeamInput{game.HomeTeam, game.AwayTeam} {
		opp := game.Opponent(team.Abbreviation)
		offense, ok := summary.BoxScoreFor(opp)
		if !ok {
			return nil, fmt.Errorf("event %s: missing boxscore for %s", game.EventID, opp)
		}

		records = append(records, models.DefenseGameRecord{
			TeamID:            team.Abbreviation,
			TeamAbbr:          team.Abbreviation,
			Season:            game.Season,
			Week:              game.Week,
			OpponentID:        opp,
			PassYardsAllowed:  offense.PassingYards,
			RushYardsAllowed:  offense.RushingYards,
			TotalYardsAllowed: offense.TotalYards,
			PointsAllowed:     game.PointsAgainst(team.Abbreviation),
			Outcome:           game.OutcomeFor(team.Abbreviation),
		})
	}

	return records, nil
}

func parseTeamBoxScore(t client.BoxscoreTeam) (models.TeamBoxScore, error) {
	bs := models.TeamBoxScore{TeamAbbr: t.Team.Abbreviation}
	found := map[string]bool{}

	for _, stat := range t.Statistics {
		var dst *int
		switch stat.Name {
		case statNetPassingYards:
			dst = &bs.PassingYards
		case statRushingYards:
			dst = &bs.RushingYards
		case statTotalYards:
			dst = &bs.TotalYards
		default:
			continue
		}
		v, err := parseStat(stat.DisplayValue)
		if err != nil {
			return bs, fmt.Errorf("team %s stat %s: %w", t.Team.Abbreviation, stat.Name, err)
		}
		*dst = v
		found[stat.Name] = true
	}

	for _, name := range []string{statNetPassingYards, statRushingYards, statTotalYards} {
		if !found[name] {
			return bs, fmt.Errorf("team %s: boxscore missing %s", t.Team.Abbreviation, name)
		}
	}
	return bs, nil
}

// parseQBLines builds lines for every player with a pass attempt, adding
// their rushing from the same team's rushing table.
func parseQBLines(game models.Game, p client.BoxscorePlayer) ([]models.QBGameLine, error) {
	team := p.Team.Abbreviation
	var lines []models.QBGameLine
	index := map[string]int{}

	for _, group := range p.Statistics {
		if group.Name != groupPassing {
			continue
		}
		cols := passingColumns(group.Labels)
		for _, a := range group.Athletes {
			if a.Athlete.ID == "" {
				continue
			}
			line, err := parsePassingLine(a.Stats, cols)
			if err != nil {
				return nil, fmt.Errorf("passing line for %s: %w", a.Athlete.DisplayName, err)
			}
			if line.Attempts == 0 {
				continue
			}
			line.PlayerID = a.Athlete.ID
			line.Name = a.Athlete.DisplayName
			line.HeadshotURL = a.Athlete.Headshot.Href
			line.TeamAbbr = team
			line.OpponentAbbr = game.Opponent(team)
			line.Season = game.Season
			line.Week = game.Week

			index[line.PlayerID] = len(lines)
			lines = append(lines, line)
		}
	}

	for _, group := range p.Statistics {
		if group.Name != groupRushing {
			continue
		}
		yds := labelIndex(group.Labels, "YDS", 1)
		td := labelIndex(group.Labels, "TD", 3)
		for _, a := range group.Athletes {
			i, ok := index[a.Athlete.ID]
			if !ok {
				continue
			}
			var err error
			if lines[i].RushYards, err = statAt(a.Stats, yds); err != nil {
				return nil, fmt.Errorf("rushing yards for %s: %w", a.Athlete.DisplayName, err)
			}
			if lines[i].RushTDs, err = statAt(a.Stats, td); err != nil {
				return nil, fmt.Errorf("rushing touchdowns for %s: %w", a.Athlete.DisplayName, err)
			}
		}
	}

	if len(lines) > 0 {
		log.Debug().
			Str("event", game.EventID).
			Str("team", team).
			Int("quarterbacks", len(lines)).
			Msg("Parsed quarterback lines")
	}
	return lines, nil
}

type passingCols struct {
	compAtt, yds, td, interceptions, sacks int
}

func passingColumns(labels []string) passingCols {
	return passingCols{
		compAtt:       labelIndex(labels, "C/ATT", 0),
		yds:           labelIndex(labels, "YDS", 1),
		td:            labelIndex(labels, "TD", 3),
		interceptions: labelIndex(labels, "INT", 4),
		sacks:         labelIndex(labels, "SACKS", 5),
	}
}

func parsePassingLine(stats []string, cols passingCols) (models.QBGameLine, error) {
	var line models.QBGameLine
	var err error

	if cols.compAtt < len(stats) {
		if line.Completions, line.Attempts, err = parsePair(stats[cols.compAtt], "/"); err != nil {
			return line, err
		}
	}
	if line.PassYards, err = statAt(stats, cols.yds); err != nil {
		return line, err
	}
	if line.PassTDs, err = statAt(stats, cols.td); err != nil {
		return line, err
	}
	if line.Interceptions, err = statAt(stats, cols.interceptions); err != nil {
		return line, err
	}
	if cols.sacks < len(stats) {
		if line.Sacks, _, err = parsePair(stats[cols.sacks], "-"); err != nil {
			return line, err
		}
	}
	return line, nil
}

// labelIndex finds a column by label, falling back to its usual position
func labelIndex(labels []string, label string, fallback int) int {
	for i, l := range labels {
		if strings.EqualFold(l, label) {
			return i
		}
	}
	return fallback
}

func statAt(stats []string, i int) (int, error) {
	if i < 0 || i >= len(stats) {
		return 0, nil
	}
	return parseStat(stats[i])
}

// parsePair splits values like "21/33" or "2-14"
func parsePair(s, sep string) (int, int, error) {
	first, second, ok := strings.Cut(strings.TrimSpace(s), sep)
	if !ok {
		v, err := parseStat(first)
		return v, 0, err
	}
	a, err := parseStat(first)
	if err != nil {
		return 0, 0, err
	}
	b, err := parseStat(second)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// parseStat reads an integer display value; "--" and "" mean zero
func parseStat(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "--" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid stat value %q", s)
	}
	return v, nil
}

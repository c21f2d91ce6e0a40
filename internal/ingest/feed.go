package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"nflqb/pipeline/internal/client"
	"nflqb/pipeline/internal/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Source is the upstream statistics feed
type Source interface {
	FetchScoreboard(ctx context.Context, season, week int) (*client.ScoreboardResponse, error)
	FetchSummary(ctx context.Context, eventID string) (*client.SummaryResponse, error)
}

// SeasonData is everything the feed delivered for one season
type SeasonData struct {
	Season  int
	Teams   []models.Team
	Records []models.DefenseGameRecord
	QBLines []models.QBGameLine
	Games   int
}

// Feed fetches a season week by week
type Feed struct {
	source      Source
	firstWeek   int
	lastWeek    int
	concurrency int
}

// NewFeed creates a feed over weeks firstWeek..lastWeek. Up to concurrency
// game summaries are fetched at once within a week.
func NewFeed(source Source, firstWeek, lastWeek, concurrency int) *Feed {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Feed{
		source:      source,
		firstWeek:   firstWeek,
		lastWeek:    lastWeek,
		concurrency: concurrency,
	}
}

// FetchSeason fetches every completed game of the season. Any fetch or parse
// failure aborts the season so a game is never silently missing from the fold.
func (f *Feed) FetchSeason(ctx context.Context, season int) (*SeasonData, error) {
	start := time.Now()
	data := &SeasonData{Season: season}
	teams := map[string]*models.Team{}

	for week := f.firstWeek; week <= f.lastWeek; week++ {
		summaries, err := f.fetchWeek(ctx, season, week)
		if err != nil {
			return nil, err
		}

		for _, s := range summaries {
			records, err := DefenseRecords(s)
			if err != nil {
				return nil, fmt.Errorf("season %d week %d: %w", season, week, err)
			}
			data.Records = append(data.Records, records...)
			data.QBLines = append(data.QBLines, s.QBLines...)
			data.Games++

			for _, t := range []models.TeamInput{s.Game.HomeTeam, s.Game.AwayTeam} {
				if _, ok := teams[t.Abbreviation]; !ok {
					teams[t.Abbreviation] = t.ToTeam()
				}
			}
		}
	}

	for _, t := range teams {
		data.Teams = append(data.Teams, *t)
	}
	sort.Slice(data.Teams, func(i, j int) bool { return data.Teams[i].ID < data.Teams[j].ID })

	log.Info().
		Int("season", season).
		Int("games", data.Games).
		Int("teams", len(data.Teams)).
		Int("qb_lines", len(data.QBLines)).
		Dur("duration", time.Since(start)).
		Msg("Season feed fetched")

	return data, nil
}

// fetchWeek returns summaries for the week's completed games in scoreboard order
func (f *Feed) fetchWeek(ctx context.Context, season, week int) ([]*models.GameSummary, error) {
	sb, err := f.source.FetchScoreboard(ctx, season, week)
	if err != nil {
		return nil, fmt.Errorf("season %d week %d: %w", season, week, err)
	}

	games, err := ParseScoreboard(season, week, sb)
	if err != nil {
		return nil, fmt.Errorf("season %d week %d: %w", season, week, err)
	}
	if len(games) == 0 {
		log.Debug().Int("season", season).Int("week", week).Msg("No completed games")
		return nil, nil
	}

	summaries := make([]*models.GameSummary, len(games))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for i, game := range games {
		i, game := i, game
		g.Go(func() error {
			resp, err := f.source.FetchSummary(gctx, game.EventID)
			if err != nil {
				return fmt.Errorf("season %d week %d event %s: %w", season, week, game.EventID, err)
			}
			summary, err := ParseSummary(game, resp)
			if err != nil {
				return fmt.Errorf("season %d week %d: %w", season, week, err)
			}
			summaries[i] = summary
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info().
		Int("season", season).
		Int("week", week).
		Int("games", len(games)).
		Msg("Week fetched")

	return summaries, nil
}

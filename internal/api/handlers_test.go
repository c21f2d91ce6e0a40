package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nflqb/pipeline/internal/models"
	"nflqb/pipeline/internal/repository"
)

type fakeReader struct {
	snaps      []*models.DefenseSnapshot
	qbs        map[string]*models.Quarterback
	perfs      []*models.QBPerformance
	healthErr  error
	leagueHits int
	lastFilter repository.PerformanceFilter
}

func (f *fakeReader) LeagueWeek(ctx context.Context, season, week int) ([]*models.DefenseSnapshot, error) {
	f.leagueHits++
	var out []*models.DefenseSnapshot
	for _, s := range f.snaps {
		if s.Season == season && s.Week == week {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeReader) TeamWeek(ctx context.Context, teamID string, season, week int) (*models.DefenseSnapshot, error) {
	for _, s := range f.snaps {
		if s.TeamID == teamID && s.Season == season && s.Week == week {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeReader) Weeks(ctx context.Context, season int) ([]int, error) {
	seen := map[int]bool{}
	var weeks []int
	for _, s := range f.snaps {
		if s.Season == season && !seen[s.Week] {
			seen[s.Week] = true
			weeks = append(weeks, s.Week)
		}
	}
	return weeks, nil
}

func (f *fakeReader) Quarterback(ctx context.Context, id string) (*models.Quarterback, error) {
	return f.qbs[id], nil
}

func (f *fakeReader) Performances(ctx context.Context, filter repository.PerformanceFilter) ([]*models.QBPerformance, error) {
	f.lastFilter = filter
	var out []*models.QBPerformance
	for _, p := range f.perfs {
		if filter.QBID != "" && p.QBID != filter.QBID {
			continue
		}
		if filter.Season != 0 && p.Season != filter.Season {
			continue
		}
		if filter.OpponentID != "" && p.OpponentID != filter.OpponentID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeReader) Health(ctx context.Context) error { return f.healthErr }

type fakeCache struct {
	data map[string][]byte
	sets int
}

func (c *fakeCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *fakeCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	c.sets++
	return nil
}

func snap(team string, week, totalRank int, wins, losses int) *models.DefenseSnapshot {
	return &models.DefenseSnapshot{
		TeamID:       team,
		Season:       2024,
		Week:         week,
		Wins:         wins,
		Losses:       losses,
		PassDefRank:  totalRank,
		RushDefRank:  totalRank,
		TotalDefRank: totalRank,
	}
}

func perf(id, qb string, week int, opp string, ctx models.OpponentContext) *models.QBPerformance {
	p := &models.QBPerformance{ID: id, QBID: qb, Season: 2024, Week: week, OpponentID: opp, PassAttempts: 30}
	p.SetContext(ctx)
	return p
}

func known(pass, total int, win float64) models.OpponentContext {
	return models.OpponentContext{
		PassDefRank:  sql.NullInt32{Int32: int32(pass), Valid: true},
		TotalDefRank: sql.NullInt32{Int32: int32(total), Valid: true},
		WinPct:       sql.NullFloat64{Float64: win, Valid: true},
		SourceSeason: sql.NullInt32{Int32: 2024, Valid: true},
		SourceWeek:   sql.NullInt32{Int32: 1, Valid: true},
		Source:       models.ContextPriorWeek,
	}
}

func newFixture() *fakeReader {
	return &fakeReader{
		snaps: []*models.DefenseSnapshot{
			snap("KC", 1, 1, 1, 0),
			snap("BAL", 1, 2, 0, 1),
		},
		qbs: map[string]*models.Quarterback{
			"qb-1": {ID: "qb-1", GSISID: "100", Name: "Test Passer", IsNotable: true},
		},
		perfs: []*models.QBPerformance{
			perf("p1", "qb-1", 1, "KC", known(1, 1, 1.0)),
			perf("p2", "qb-1", 2, "BAL", models.UnavailableContext()),
			perf("p3", "qb-1", 3, "NYJ", known(32, 32, 0.0)),
		},
	}
}

func serve(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestGetLeagueWeek_CachesRenderedView(t *testing.T) {
	reader := newFixture()
	c := &fakeCache{data: map[string][]byte{}}
	router := NewRouter(NewHandler(reader, c, time.Minute), false)

	rec, body := serve(t, router, "/api/v1/defense/2024/1")
	require.Equal(t, http.StatusOK, rec.Code)
	teams := body["teams"].([]any)
	require.Len(t, teams, 2)
	assert.Equal(t, "KC", teams[0].(map[string]any)["team_id"])
	assert.Equal(t, 1.0, teams[0].(map[string]any)["win_pct"])
	assert.Equal(t, 1, c.sets)
	assert.Contains(t, c.data, "nflqb:defense:2024:1")

	rec, body = serve(t, router, "/api/v1/defense/2024/1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["teams"], 2)
	assert.Equal(t, 1, reader.leagueHits, "second request served from cache")
}

func TestGetLeagueWeek_Errors(t *testing.T) {
	router := NewRouter(NewHandler(newFixture(), nil, 0), false)

	rec, body := serve(t, router, "/api/v1/defense/2024/9")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, body["error"])

	rec, _ = serve(t, router, "/api/v1/defense/2024/zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = serve(t, router, "/api/v1/defense/2024/0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTeamWeek(t *testing.T) {
	router := NewRouter(NewHandler(newFixture(), nil, 0), false)

	rec, body := serve(t, router, "/api/v1/defense/2024/1/BAL")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BAL", body["team_id"])
	assert.Equal(t, 2.0, body["total_def_rank"])

	rec, _ = serve(t, router, "/api/v1/defense/2024/1/NYJ")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSeasonWeeks(t *testing.T) {
	router := NewRouter(NewHandler(newFixture(), nil, 0), false)

	rec, body := serve(t, router, "/api/v1/seasons/2024/weeks")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{1.0}, body["weeks"])

	rec, body = serve(t, router, "/api/v1/seasons/2019/weeks")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["weeks"])
}

func TestGetQuarterbackPerformances_SortsByDifficultyWithUnknownLast(t *testing.T) {
	reader := newFixture()
	router := NewRouter(NewHandler(reader, nil, 0), false)

	rec, body := serve(t, router, "/api/v1/quarterbacks/qb-1/performances?sort=difficulty&season=2024")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "difficulty", body["sort"])
	assert.Equal(t, "desc", body["dir"])
	assert.Equal(t, 2024, reader.lastFilter.Season)

	perfs := body["performances"].([]any)
	require.Len(t, perfs, 3)
	ids := make([]string, 0, 3)
	for _, p := range perfs {
		ids = append(ids, p.(map[string]any)["id"].(string))
	}
	assert.Equal(t, []string{"p1", "p3", "p2"}, ids)

	hardest := perfs[0].(map[string]any)
	assert.InDelta(t, 1.0, hardest["difficulty"], 1e-9)
	assert.Equal(t, "elite", hardest["tier"])

	unknown := perfs[2].(map[string]any)
	assert.Contains(t, unknown, "difficulty")
	assert.Nil(t, unknown["difficulty"])
	assert.Nil(t, unknown["opp_pass_def_rank"])
	assert.Equal(t, "unknown", unknown["tier"])
	assert.Equal(t, true, unknown["context_unavailable"])
	assert.Equal(t, "unavailable", unknown["context_source"])
}

func TestGetQuarterbackPerformances_Chronological(t *testing.T) {
	router := NewRouter(NewHandler(newFixture(), nil, 0), false)

	rec, body := serve(t, router, "/api/v1/quarterbacks/qb-1/performances")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "chronological", body["sort"])
	assert.Equal(t, "asc", body["dir"])
	perfs := body["performances"].([]any)
	assert.Equal(t, "p1", perfs[0].(map[string]any)["id"])
	assert.Equal(t, "p3", perfs[2].(map[string]any)["id"])
}

func TestGetQuarterbackPerformances_Errors(t *testing.T) {
	router := NewRouter(NewHandler(newFixture(), nil, 0), false)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"unknown sort", "/api/v1/quarterbacks/qb-1/performances?sort=yards", http.StatusBadRequest},
		{"unknown dir", "/api/v1/quarterbacks/qb-1/performances?dir=up", http.StatusBadRequest},
		{"bad season", "/api/v1/quarterbacks/qb-1/performances?season=last", http.StatusBadRequest},
		{"missing qb", "/api/v1/quarterbacks/qb-9/performances", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := serve(t, router, tt.path)
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestListPerformances_TierFilterAndGrouping(t *testing.T) {
	router := NewRouter(NewHandler(newFixture(), nil, 0), false)

	rec, body := serve(t, router, "/api/v1/performances?season=2024&tier=elite")
	require.Equal(t, http.StatusOK, rec.Code)
	perfs := body["performances"].([]any)
	require.Len(t, perfs, 1)
	assert.Equal(t, "p1", perfs[0].(map[string]any)["id"])

	rec, body = serve(t, router, "/api/v1/performances?season=2024&group=tier")
	require.Equal(t, http.StatusOK, rec.Code)
	groups := body["groups"].(map[string]any)
	assert.Len(t, groups["elite"], 1)
	assert.Len(t, groups["weak"], 1)
	assert.Len(t, groups["unknown"], 1)

	rec, body = serve(t, router, "/api/v1/performances?season=2024&opponent=BAL")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["performances"], 1)
}

func TestListPerformances_Errors(t *testing.T) {
	router := NewRouter(NewHandler(newFixture(), nil, 0), false)

	rec, _ := serve(t, router, "/api/v1/performances")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = serve(t, router, "/api/v1/performances?season=2024&tier=legendary")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	reader := newFixture()
	router := NewRouter(NewHandler(reader, nil, 0), false)

	rec, body := serve(t, router, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	reader.healthErr = errors.New("connection refused")
	rec, body = serve(t, router, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestMetricsRouteOnlyWhenEnabled(t *testing.T) {
	off := NewRouter(NewHandler(newFixture(), nil, 0), false)
	rec := httptest.NewRecorder()
	off.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	on := NewRouter(NewHandler(newFixture(), nil, 0), true)
	rec = httptest.NewRecorder()
	on.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

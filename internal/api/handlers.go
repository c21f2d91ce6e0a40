package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"nflqb/pipeline/internal/cache"
	"nflqb/pipeline/internal/difficulty"
	"nflqb/pipeline/internal/models"
	"nflqb/pipeline/internal/repository"
)

// Reader is the read side of the store the API serves from
type Reader interface {
	LeagueWeek(ctx context.Context, season, week int) ([]*models.DefenseSnapshot, error)
	TeamWeek(ctx context.Context, teamID string, season, week int) (*models.DefenseSnapshot, error)
	Weeks(ctx context.Context, season int) ([]int, error)
	Quarterback(ctx context.Context, id string) (*models.Quarterback, error)
	Performances(ctx context.Context, filter repository.PerformanceFilter) ([]*models.QBPerformance, error)
	Health(ctx context.Context) error
}

// Cache holds rendered league views. A nil Cache disables caching.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Handler serves the defense and performance read endpoints
type Handler struct {
	reader Reader
	cache  Cache
	ttl    time.Duration
}

// NewHandler creates a new Handler
func NewHandler(reader Reader, c Cache, ttl time.Duration) *Handler {
	return &Handler{reader: reader, cache: c, ttl: ttl}
}

// Health reports database reachability
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.reader.Health(r.Context()); err != nil {
		h.jsonResponse(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"error":     err.Error(),
			"timestamp": time.Now().UTC(),
		})
		return
	}
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// GetLeagueWeek returns every team's snapshot for a week ordered by total defense rank
func (h *Handler) GetLeagueWeek(w http.ResponseWriter, r *http.Request) {
	season, week, ok := h.seasonWeek(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	key := cache.LeagueWeekKey(season, week)

	if h.cache != nil {
		var cached leagueWeekResponse
		hit, err := h.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("League view cache read failed")
		} else if hit {
			h.jsonResponse(w, http.StatusOK, cached)
			return
		}
	}

	snaps, err := h.reader.LeagueWeek(ctx, season, week)
	if err != nil {
		log.Error().Err(err).Int("season", season).Int("week", week).Msg("Failed to load league week")
		h.errorResponse(w, http.StatusInternalServerError, "failed to load defense rankings")
		return
	}
	if len(snaps) == 0 {
		h.errorResponse(w, http.StatusNotFound, "no rankings for that week")
		return
	}

	resp := leagueWeekResponse{Season: season, Week: week, Teams: make([]snapshotResponse, 0, len(snaps))}
	for _, s := range snaps {
		resp.Teams = append(resp.Teams, newSnapshotResponse(s))
	}

	if h.cache != nil {
		if err := h.cache.SetJSON(ctx, key, resp, h.ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("League view cache write failed")
		}
	}
	h.jsonResponse(w, http.StatusOK, resp)
}

// GetTeamWeek returns one team's snapshot
func (h *Handler) GetTeamWeek(w http.ResponseWriter, r *http.Request) {
	season, week, ok := h.seasonWeek(w, r)
	if !ok {
		return
	}
	teamID := chi.URLParam(r, "teamID")

	snap, err := h.reader.TeamWeek(r.Context(), teamID, season, week)
	if err != nil {
		log.Error().Err(err).Str("team", teamID).Msg("Failed to load team snapshot")
		h.errorResponse(w, http.StatusInternalServerError, "failed to load snapshot")
		return
	}
	if snap == nil {
		h.errorResponse(w, http.StatusNotFound, "snapshot not found")
		return
	}
	h.jsonResponse(w, http.StatusOK, newSnapshotResponse(snap))
}

// GetSeasonWeeks lists the weeks that have snapshots
func (h *Handler) GetSeasonWeeks(w http.ResponseWriter, r *http.Request) {
	season, err := strconv.Atoi(chi.URLParam(r, "season"))
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, "invalid season")
		return
	}
	weeks, err := h.reader.Weeks(r.Context(), season)
	if err != nil {
		log.Error().Err(err).Int("season", season).Msg("Failed to list weeks")
		h.errorResponse(w, http.StatusInternalServerError, "failed to list weeks")
		return
	}
	if weeks == nil {
		weeks = []int{}
	}
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"season": season,
		"weeks":  weeks,
	})
}

// GetQuarterbackPerformances returns a quarterback's games with opponent context,
// ordered by ?sort= and ?dir=
func (h *Handler) GetQuarterbackPerformances(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	qbID := chi.URLParam(r, "qbID")

	key, err := difficulty.ParseSortKey(r.URL.Query().Get("sort"))
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	dir, err := difficulty.ParseDirection(r.URL.Query().Get("dir"), key)
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	season, ok := h.optionalInt(w, r, "season")
	if !ok {
		return
	}

	qb, err := h.reader.Quarterback(ctx, qbID)
	if err != nil {
		log.Error().Err(err).Str("qb_id", qbID).Msg("Failed to load quarterback")
		h.errorResponse(w, http.StatusInternalServerError, "failed to load quarterback")
		return
	}
	if qb == nil {
		h.errorResponse(w, http.StatusNotFound, "quarterback not found")
		return
	}

	perfs, err := h.loadPerformances(ctx, repository.PerformanceFilter{QBID: qbID, Season: season})
	if err != nil {
		h.errorResponse(w, http.StatusInternalServerError, "failed to load performances")
		return
	}
	difficulty.Sort(perfs, key, dir)

	h.jsonResponse(w, http.StatusOK, qbPerformancesResponse{
		Quarterback:  newQuarterbackResponse(qb),
		Sort:         string(key),
		Dir:          string(dir),
		Performances: newPerformanceResponses(perfs),
	})
}

// ListPerformances filters performances by season, opponent and tier.
// ?group=tier buckets the result by tier instead of returning a flat list.
func (h *Handler) ListPerformances(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	season, ok := h.optionalInt(w, r, "season")
	if !ok {
		return
	}
	if season == 0 {
		h.errorResponse(w, http.StatusBadRequest, "season is required")
		return
	}

	var tier difficulty.Tier
	if raw := q.Get("tier"); raw != "" {
		t, valid := difficulty.ParseTier(raw)
		if !valid {
			h.errorResponse(w, http.StatusBadRequest, "unknown tier")
			return
		}
		tier = t
	}

	perfs, err := h.loadPerformances(r.Context(), repository.PerformanceFilter{
		Season:     season,
		OpponentID: q.Get("opponent"),
	})
	if err != nil {
		h.errorResponse(w, http.StatusInternalServerError, "failed to load performances")
		return
	}

	groups := difficulty.GroupByTier(perfs)

	if q.Get("group") == "tier" {
		out := make(map[string][]performanceResponse, len(groups))
		for t, ps := range groups {
			if tier != "" && t != tier {
				continue
			}
			out[string(t)] = newPerformanceResponses(ps)
		}
		h.jsonResponse(w, http.StatusOK, map[string]interface{}{
			"season": season,
			"groups": out,
		})
		return
	}

	if tier != "" {
		perfs = groups[tier]
	}
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"season":       season,
		"performances": newPerformanceResponses(perfs),
	})
}

func (h *Handler) loadPerformances(ctx context.Context, filter repository.PerformanceFilter) ([]models.QBPerformance, error) {
	rows, err := h.reader.Performances(ctx, filter)
	if err != nil {
		log.Error().Err(err).
			Str("qb_id", filter.QBID).
			Int("season", filter.Season).
			Str("opponent", filter.OpponentID).
			Msg("Failed to load performances")
		return nil, err
	}
	perfs := make([]models.QBPerformance, 0, len(rows))
	for _, p := range rows {
		perfs = append(perfs, *p)
	}
	return perfs, nil
}

func (h *Handler) seasonWeek(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	season, err := strconv.Atoi(chi.URLParam(r, "season"))
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, "invalid season")
		return 0, 0, false
	}
	week, err := strconv.Atoi(chi.URLParam(r, "week"))
	if err != nil || week < 1 {
		h.errorResponse(w, http.StatusBadRequest, "invalid week")
		return 0, 0, false
	}
	return season, week, true
}

func (h *Handler) optionalInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return v, true
}

func (h *Handler) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) errorResponse(w http.ResponseWriter, status int, message string) {
	h.jsonResponse(w, status, map[string]string{"error": message})
}

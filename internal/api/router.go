package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"nflqb/pipeline/internal/models"
	"nflqb/pipeline/internal/repository"
)

// NewRouter mounts the read API. /metrics is only exposed when withMetrics is set.
func NewRouter(h *Handler, withMetrics bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", h.Health)
	if withMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/seasons/{season}/weeks", h.GetSeasonWeeks)
		r.Get("/defense/{season}/{week}", h.GetLeagueWeek)
		r.Get("/defense/{season}/{week}/{teamID}", h.GetTeamWeek)
		r.Get("/quarterbacks/{qbID}/performances", h.GetQuarterbackPerformances)
		r.Get("/performances", h.ListPerformances)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// DBReader serves Reader from the repositories
type DBReader struct {
	db *repository.Database
}

// NewDBReader wraps db
func NewDBReader(db *repository.Database) *DBReader {
	return &DBReader{db: db}
}

func (d *DBReader) LeagueWeek(ctx context.Context, season, week int) ([]*models.DefenseSnapshot, error) {
	return d.db.Snapshots.ListByWeek(ctx, season, week)
}

func (d *DBReader) TeamWeek(ctx context.Context, teamID string, season, week int) (*models.DefenseSnapshot, error) {
	return d.db.Snapshots.GetByTeamWeek(ctx, teamID, season, week)
}

func (d *DBReader) Weeks(ctx context.Context, season int) ([]int, error) {
	return d.db.Snapshots.Weeks(ctx, season)
}

func (d *DBReader) Quarterback(ctx context.Context, id string) (*models.Quarterback, error) {
	return d.db.Quarterbacks.GetByID(ctx, id)
}

func (d *DBReader) Performances(ctx context.Context, filter repository.PerformanceFilter) ([]*models.QBPerformance, error) {
	return d.db.Performances.List(ctx, filter)
}

func (d *DBReader) Health(ctx context.Context) error {
	return d.db.Health(ctx)
}

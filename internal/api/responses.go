package api

import (
	"database/sql"

	"nflqb/pipeline/internal/difficulty"
	"nflqb/pipeline/internal/models"
)

type snapshotResponse struct {
	TeamID            string   `json:"team_id"`
	Season            int      `json:"season"`
	Week              int      `json:"week"`
	PassYardsAllowed  int      `json:"pass_yards_allowed"`
	RushYardsAllowed  int      `json:"rush_yards_allowed"`
	TotalYardsAllowed int      `json:"total_yards_allowed"`
	PointsAllowed     int      `json:"points_allowed"`
	Wins              int      `json:"wins"`
	Losses            int      `json:"losses"`
	Ties              int      `json:"ties"`
	WinPct            *float64 `json:"win_pct"`
	PassDefRank       int      `json:"pass_def_rank"`
	RushDefRank       int      `json:"rush_def_rank"`
	TotalDefRank      int      `json:"total_def_rank"`
}

type leagueWeekResponse struct {
	Season int                `json:"season"`
	Week   int                `json:"week"`
	Teams  []snapshotResponse `json:"teams"`
}

type quarterbackResponse struct {
	ID          string  `json:"id"`
	GSISID      string  `json:"gsis_id"`
	Name        string  `json:"name"`
	HeadshotURL *string `json:"headshot_url"`
	TeamID      *string `json:"team_id"`
	IsNotable   bool    `json:"is_notable"`
}

// performanceResponse carries unknown opponent context as JSON null
type performanceResponse struct {
	ID                 string   `json:"id"`
	QBID               string   `json:"qb_id"`
	Season             int      `json:"season"`
	Week               int      `json:"week"`
	OpponentID         string   `json:"opponent_id"`
	PassAttempts       int      `json:"pass_attempts"`
	Completions        int      `json:"completions"`
	PassYards          int      `json:"pass_yards"`
	PassTDs            int      `json:"pass_tds"`
	Interceptions      int      `json:"interceptions"`
	RushYards          int      `json:"rush_yards"`
	RushTDs            int      `json:"rush_tds"`
	Sacks              int      `json:"sacks"`
	Fumbles            int      `json:"fumbles"`
	OppPassDefRank     *int     `json:"opp_pass_def_rank"`
	OppTotalDefRank    *int     `json:"opp_total_def_rank"`
	OppWinPct          *float64 `json:"opp_win_pct"`
	ContextSeason      *int     `json:"opp_context_season"`
	ContextWeek        *int     `json:"opp_context_week"`
	ContextSource      string   `json:"context_source"`
	ContextUnavailable bool     `json:"context_unavailable"`
	Difficulty         *float64 `json:"difficulty"`
	Tier               string   `json:"tier"`
}

type qbPerformancesResponse struct {
	Quarterback  quarterbackResponse   `json:"quarterback"`
	Sort         string                `json:"sort"`
	Dir          string                `json:"dir"`
	Performances []performanceResponse `json:"performances"`
}

func newSnapshotResponse(s *models.DefenseSnapshot) snapshotResponse {
	return snapshotResponse{
		TeamID:            s.TeamID,
		Season:            s.Season,
		Week:              s.Week,
		PassYardsAllowed:  s.PassYardsAllowed,
		RushYardsAllowed:  s.RushYardsAllowed,
		TotalYardsAllowed: s.TotalYardsAllowed,
		PointsAllowed:     s.PointsAllowed,
		Wins:              s.Wins,
		Losses:            s.Losses,
		Ties:              s.Ties,
		WinPct:            nullFloat(s.WinPct()),
		PassDefRank:       s.PassDefRank,
		RushDefRank:       s.RushDefRank,
		TotalDefRank:      s.TotalDefRank,
	}
}

func newQuarterbackResponse(qb *models.Quarterback) quarterbackResponse {
	return quarterbackResponse{
		ID:          qb.ID,
		GSISID:      qb.GSISID,
		Name:        qb.Name,
		HeadshotURL: nullString(qb.HeadshotURL),
		TeamID:      nullString(qb.TeamID),
		IsNotable:   qb.IsNotable,
	}
}

func newPerformanceResponses(perfs []models.QBPerformance) []performanceResponse {
	out := make([]performanceResponse, 0, len(perfs))
	for i := range perfs {
		out = append(out, newPerformanceResponse(&perfs[i]))
	}
	return out
}

func newPerformanceResponse(p *models.QBPerformance) performanceResponse {
	ctx := p.Opponent
	return performanceResponse{
		ID:                 p.ID,
		QBID:               p.QBID,
		Season:             p.Season,
		Week:               p.Week,
		OpponentID:         p.OpponentID,
		PassAttempts:       p.PassAttempts,
		Completions:        p.Completions,
		PassYards:          p.PassYards,
		PassTDs:            p.PassTDs,
		Interceptions:      p.Interceptions,
		RushYards:          p.RushYards,
		RushTDs:            p.RushTDs,
		Sacks:              p.Sacks,
		Fumbles:            p.Fumbles,
		OppPassDefRank:     nullInt(ctx.PassDefRank),
		OppTotalDefRank:    nullInt(ctx.TotalDefRank),
		OppWinPct:          nullFloat(ctx.WinPct),
		ContextSeason:      nullInt(ctx.SourceSeason),
		ContextWeek:        nullInt(ctx.SourceWeek),
		ContextSource:      string(ctx.Source),
		ContextUnavailable: p.ContextUnavailable,
		Difficulty:         nullFloat(difficulty.NullScore(ctx)),
		Tier:               string(difficulty.TierOf(ctx)),
	}
}

func nullInt(v sql.NullInt32) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int32)
	return &i
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

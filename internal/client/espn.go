package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"nflqb/pipeline/internal/metrics"
	"nflqb/pipeline/internal/models"

	"github.com/rs/zerolog/log"
)

// RegularSeason is ESPN's seasontype for regular-season games
const RegularSeason = 2

// Client is the ESPN site API client
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter chan struct{} // Rate limiting semaphore
	maxRetries  int
	retryDelay  time.Duration
}

// NewClient creates a new ESPN API client allowing at most maxConcurrent
// requests in flight
func NewClient(baseURL string, timeout time.Duration, maxConcurrent int) *Client {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	rateLimiter := make(chan struct{}, maxConcurrent)
	for i := 0; i < maxConcurrent; i++ {
		rateLimiter <- struct{}{}
	}

	return &Client{
		baseURL:     baseURL,
		rateLimiter: rateLimiter,
		maxRetries:  3,
		retryDelay:  1 * time.Second,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// get performs a GET request with retry logic and rate limiting.
// endpoint labels the call in metrics.
func (c *Client) get(ctx context.Context, endpoint, path string, params map[string]string) ([]byte, error) {
	start := time.Now()
	body, err := c.doGet(ctx, path, params)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordAPICall(endpoint, status, time.Since(start).Seconds())
	return body, err
}

func (c *Client) doGet(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, path)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 1s, 2s, 4s
			backoff := c.retryDelay * time.Duration(1<<uint(attempt-1))
			log.Info().
				Str("url", url).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying API request after backoff")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, retry, err := c.attempt(ctx, url, params, attempt)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry {
			return nil, err
		}
	}

	return nil, lastErr
}

// attempt makes a single request. retry reports whether a failure is transient.
func (c *Client) attempt(ctx context.Context, url string, params map[string]string, attempt int) (body []byte, retry bool, err error) {
	// Rate limiting: acquire semaphore
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case <-c.rateLimiter:
	}
	defer func() { c.rateLimiter <- struct{}{} }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0")

	if len(params) > 0 {
		q := req.URL.Query()
		for key, value := range params {
			q.Add(key, value)
		}
		req.URL.RawQuery = q.Encode()
	}

	log.Debug().
		Str("url", url).
		Int("attempt", attempt+1).
		Msg("Making API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		log.Debug().
			Str("url", url).
			Int("size", len(body)).
			Msg("API request successful")
		return body, false, nil

	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		log.Warn().
			Str("url", url).
			Int("status", resp.StatusCode).
			Int("attempt", attempt+1).
			Msg("Received retryable error, will retry")
		return nil, true, fmt.Errorf("API returned retryable status %d: %s", resp.StatusCode, string(body))

	default:
		return nil, false, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}
}

// FetchScoreboard fetches the regular-season scoreboard for one week
func (c *Client) FetchScoreboard(ctx context.Context, season, week int) (*ScoreboardResponse, error) {
	params := map[string]string{
		"seasontype": strconv.Itoa(RegularSeason),
		"week":       strconv.Itoa(week),
		"dates":      strconv.Itoa(season),
	}

	body, err := c.get(ctx, "scoreboard", "scoreboard", params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch scoreboard: %w", err)
	}

	var sb ScoreboardResponse
	if err := json.Unmarshal(body, &sb); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scoreboard: %w", err)
	}

	return &sb, nil
}

// FetchSummary fetches the boxscore summary for one game
func (c *Client) FetchSummary(ctx context.Context, eventID string) (*SummaryResponse, error) {
	body, err := c.get(ctx, "summary", "summary", map[string]string{"event": eventID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch summary: %w", err)
	}

	var summary SummaryResponse
	if err := json.Unmarshal(body, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}

	return &summary, nil
}

// ScoreboardResponse is the subset of the scoreboard payload the pipeline reads
type ScoreboardResponse struct {
	Events []Event `json:"events"`
}

// Event is one scheduled game
type Event struct {
	ID           string        `json:"id"`
	Competitions []Competition `json:"competitions"`
}

// Competition holds the two competitors and the game status
type Competition struct {
	Competitors []Competitor `json:"competitors"`
	Status      struct {
		Type struct {
			Completed bool `json:"completed"`
		} `json:"type"`
	} `json:"status"`
}

// Competitor is one side of a game
type Competitor struct {
	HomeAway string           `json:"homeAway"`
	Score    string           `json:"score"`
	Team     models.TeamInput `json:"team"`
}

// SummaryResponse is the subset of the game summary payload the pipeline reads
type SummaryResponse struct {
	Boxscore Boxscore `json:"boxscore"`
}

// Boxscore holds team totals and per-player stat groups
type Boxscore struct {
	Teams   []BoxscoreTeam   `json:"teams"`
	Players []BoxscorePlayer `json:"players"`
}

// BoxscoreTeam is one team's offensive totals
type BoxscoreTeam struct {
	Team       models.TeamInput `json:"team"`
	Statistics []TeamStatistic  `json:"statistics"`
}

// TeamStatistic is a named team total
type TeamStatistic struct {
	Name         string `json:"name"`
	DisplayValue string `json:"displayValue"`
}

// BoxscorePlayer groups one team's player stat tables
type BoxscorePlayer struct {
	Team       models.TeamInput  `json:"team"`
	Statistics []PlayerStatGroup `json:"statistics"`
}

// PlayerStatGroup is a stat table such as passing or rushing
type PlayerStatGroup struct {
	Name     string         `json:"name"`
	Labels   []string       `json:"labels"`
	Athletes []AthleteStats `json:"athletes"`
}

// AthleteStats is one row of a stat table
type AthleteStats struct {
	Athlete Athlete  `json:"athlete"`
	Stats   []string `json:"stats"`
}

// Athlete identifies a player
type Athlete struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Headshot    struct {
		Href string `json:"href"`
	} `json:"headshot"`
}

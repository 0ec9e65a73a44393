package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/fortuna/argus/internal/metrics"
	"github.com/fortuna/argus/internal/payload"
)

const (
	defaultBaseURL    = "https://interst.at"
	defaultMaxRetries = 2
	defaultTimeout    = 60 * time.Second

	// Client-side admission control: the provider has no documented quota,
	// but the live loop alone can fan out hundreds of requests per minute.
	defaultRequestsPerSecond = 10
)

// Client talks to the provider API. Timeouts are retried a bounded number of
// times with exponential backoff; an HTTP 500 is the provider's way of saying
// "temporarily no data" and surfaces as a nil document, not an error.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	metrics    *metrics.Recorder
}

// New creates a provider client with a custom base URL.
func New(baseURL string, recorder *metrics.Recorder) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultRequestsPerSecond),
		maxRetries: defaultMaxRetries,
		metrics:    recorder,
	}
}

// NewClient creates a provider client with default settings.
func NewClient(recorder *metrics.Recorder) *Client {
	return New(defaultBaseURL, recorder)
}

// FetchGame fetches one game with its full stats block.
func (c *Client) FetchGame(ctx context.Context, sportCode string, gameID int) (payload.Document, error) {
	url := fmt.Sprintf("%s/game/%s/%d", c.baseURL, sportCode, gameID)
	return c.get(ctx, "fetch_game", url)
}

// FetchGamesInRange fetches every game of a sport between two dates
// (inclusive, "2006-01-02" format).
func (c *Client) FetchGamesInRange(ctx context.Context, sportCode, startDate, endDate string) (payload.Document, error) {
	url := fmt.Sprintf("%s/game/%s/%s,%s", c.baseURL, sportCode, startDate, endDate)
	return c.get(ctx, "fetch_games_in_range", url)
}

// FetchGamesInSeasonRange fetches every game of a sport across a span of
// season years.
func (c *Client) FetchGamesInSeasonRange(ctx context.Context, sportCode string, firstSeason, lastSeason int) (payload.Document, error) {
	url := fmt.Sprintf("%s/game/%s/%d-%d", c.baseURL, sportCode, firstSeason, lastSeason)
	return c.get(ctx, "fetch_games_in_season_range", url)
}

// FetchSports fetches the provider's sport catalog.
func (c *Client) FetchSports(ctx context.Context) (payload.Document, error) {
	url := fmt.Sprintf("%s/meta/allsports", c.baseURL)
	return c.get(ctx, "fetch_sports", url)
}

// FetchTeams fetches the team catalog for a sport.
func (c *Client) FetchTeams(ctx context.Context, sportCode string) (payload.Document, error) {
	url := fmt.Sprintf("%s/meta/%s/teams", c.baseURL, sportCode)
	return c.get(ctx, "fetch_teams", url)
}

// FetchPlayers fetches the player catalog for a sport and season.
func (c *Client) FetchPlayers(ctx context.Context, sportCode string, season int) (payload.Document, error) {
	url := fmt.Sprintf("%s/meta/%s/players,%d", c.baseURL, sportCode, season)
	return c.get(ctx, "fetch_players", url)
}

func (c *Client) get(ctx context.Context, endpoint, url string) (payload.Document, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		c.metrics.ObserveClientRequest(endpoint, time.Since(start))
	}()

	backoffCfg := backoff.NewExponentialBackOff()
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		doc, retryable, err := c.doRequest(ctx, url)
		if err == nil {
			return doc, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err

		if attempt < c.maxRetries {
			sleep := backoffCfg.NextBackOff()
			log.Printf("⚠️  Provider request %s failed (attempt %d/%d): %v, retrying in %v", url, attempt, c.maxRetries, err, sleep)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(sleep):
			}
		}
	}

	return nil, fmt.Errorf("fetching %s after %d attempts: %w", url, c.maxRetries, lastErr)
}

// doRequest performs a single HTTP GET. The retryable flag is true only for
// transport-level failures (timeouts, connection resets); a server error is
// final and a decode failure means the payload is unusable either way.
func (c *Client) doRequest(ctx context.Context, url string) (payload.Document, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		log.Printf("⚠️  Provider returned %d for %s", resp.StatusCode, url)
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("provider returned %d for %s", resp.StatusCode, url)
	}

	var doc payload.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, false, fmt.Errorf("decoding response from %s: %w", url, err)
	}
	return doc, false, nil
}

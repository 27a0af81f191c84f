// Package tmdb is a client for the TMDB v3 movie API.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/hubenschmidt/go-movienight/core"
	"github.com/hubenschmidt/go-movienight/logging"
	"github.com/hubenschmidt/go-movienight/monitor"
)

const (
	DefaultBaseURL      = "https://api.themoviedb.org/3"
	DefaultImageBaseURL = "https://image.tmdb.org/t/p/w500"
	maxErrorBody        = 64 * 1024
	breakerName         = "tmdb-api"
)

type Config struct {
	BaseURL      string           `koanf:"base_url"`
	APIKey       string           `koanf:"api_key"`
	ImageBaseURL string           `koanf:"image_base_url"`
	Language     string           `koanf:"language"`
	Retry        core.RetryPolicy `koanf:"retry"`
	Breaker      BreakerConfig    `koanf:"breaker"`
}

// BreakerConfig tunes the circuit breaker in front of the API.
type BreakerConfig struct {
	MaxRequests  uint32        `koanf:"max_requests"`
	Interval     time.Duration `koanf:"interval"`
	Timeout      time.Duration `koanf:"timeout"`
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio" validate:"gte=0,lte=1"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		ImageBaseURL: DefaultImageBaseURL,
		Language:     "en-US",
		Retry:        core.DefaultRetryPolicy(),
		Breaker: BreakerConfig{
			MaxRequests:  3,
			Interval:     time.Minute,
			Timeout:      30 * time.Second,
			MinRequests:  10,
			FailureRatio: 0.6,
		},
	}
}

// Client issues TMDB requests. Each request is retried per the configured
// policy; a circuit breaker sits beneath the retries so a dead upstream
// stops being hammered across facets.
type Client struct {
	baseURL      string
	apiKey       string
	imageBaseURL string
	language     string
	retry        core.RetryPolicy
	http         *http.Client
	cb           *gobreaker.CircuitBreaker[[]byte]
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("tmdb api key is required")
	}
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.ImageBaseURL == "" {
		cfg.ImageBaseURL = def.ImageBaseURL
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = def.Retry
	}
	if cfg.Breaker.MaxRequests == 0 {
		cfg.Breaker = def.Breaker
	}

	c := &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		imageBaseURL: strings.TrimSuffix(cfg.ImageBaseURL, "/"),
		language:     cfg.Language,
		http:         &http.Client{},
	}

	c.retry = cfg.Retry
	c.retry.Retryable = core.IsRetryable
	c.retry.OnRetry = func(attempt int, err error, wait time.Duration) {
		monitor.UpstreamRetries.Inc()
		logging.Warn().Err(err).Str("component", "tmdb").Int("attempt", attempt).
			Dur("wait", wait).Msg("upstream request failed, retrying")
	}

	c.cb = newBreaker(cfg.Breaker)
	return c, nil
}

func newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker[[]byte] {
	monitor.BreakerState.WithLabelValues(breakerName).Set(0)

	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		// client errors mean the upstream answered; only outages count
		IsSuccessful: func(err error) bool {
			return err == nil || !core.IsRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("component", "tmdb").Str("from", from.String()).
				Str("to", to.String()).Msg("circuit breaker state change")
			monitor.BreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Ping checks credentials and connectivity against /configuration.
func (c *Client) Ping(ctx context.Context) error {
	return core.Do(ctx, c.retry, func(ctx context.Context) error {
		_, err := c.get(ctx, "/configuration", nil)
		return err
	})
}

// Fetch returns one page of a list endpoint. A 2xx response without
// results is an empty page, not an error.
func (c *Client) Fetch(ctx context.Context, q Query, page int) ([]Movie, error) {
	path, params, err := q.endpoint()
	if err != nil {
		return nil, err
	}
	params.Set("page", strconv.Itoa(page))

	return core.Retry(ctx, c.retry, func(ctx context.Context) ([]Movie, error) {
		body, err := c.get(ctx, path, params)
		if err != nil {
			return nil, err
		}
		var resp pageResponse
		if err := decode(body, &resp); err != nil {
			return nil, err
		}
		if resp.Results == nil {
			return []Movie{}, nil
		}
		return resp.Results, nil
	})
}

// Genres lists the movie genres TMDB knows about.
func (c *Client) Genres(ctx context.Context) ([]Genre, error) {
	return core.Retry(ctx, c.retry, func(ctx context.Context) ([]Genre, error) {
		body, err := c.get(ctx, "/genre/movie/list", nil)
		if err != nil {
			return nil, err
		}
		var resp genreResponse
		if err := decode(body, &resp); err != nil {
			return nil, err
		}
		return resp.Genres, nil
	})
}

// Details fetches a single movie.
func (c *Client) Details(ctx context.Context, id int64) (*MovieDetails, error) {
	path := "/movie/" + strconv.FormatInt(id, 10)
	return core.Retry(ctx, c.retry, func(ctx context.Context) (*MovieDetails, error) {
		body, err := c.get(ctx, path, nil)
		if err != nil {
			return nil, err
		}
		var d MovieDetails
		if err := decode(body, &d); err != nil {
			return nil, err
		}
		return &d, nil
	})
}

// ImageURL turns a TMDB image path into an absolute URL.
func (c *Client) ImageURL(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.imageBaseURL + path
}

func decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode tmdb response: %w", core.ErrPermanent, err)
	}
	return nil
}

// get performs one attempt through the circuit breaker.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.do(ctx, path, params)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w: %w", core.ErrUpstream, core.ErrPermanent, err)
	}
	return body, err
}

func (c *Client) do(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	if c.language != "" {
		params.Set("language", c.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", core.ErrPermanent, err)
	}
	// v4 read tokens are JWTs and go in the header; v3 keys go in the query
	if strings.HasPrefix(c.apiKey, "eyJ") {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	} else {
		params.Set("api_key", c.apiKey)
	}
	req.URL.RawQuery = params.Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tmdb %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &core.StatusError{Service: "TMDB", StatusCode: resp.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tmdb %s: read body: %w", path, err)
	}
	return body, nil
}

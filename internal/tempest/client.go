package tempest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/exp/slog"

	"tempestsync/internal/model"
)

// DefaultBaseURL is the Tempest REST endpoint for device observations.
const DefaultBaseURL = "https://swd.weatherflow.com/swd/rest"

// The provider only returns 1-minute resolution for ranges up to one day;
// longer ranges come back downsampled. Each request therefore covers at most
// one day, and one request's rows form one page.
const chunkSeconds = 24 * 60 * 60

var (
	// ErrAuth means the API token was rejected. Never retried; a bad token
	// will fail identically for every device, so callers abort the run.
	ErrAuth = errors.New("tempest: authentication rejected")

	// ErrBadRequest means the provider rejected the request itself.
	// Never retried.
	ErrBadRequest = errors.New("tempest: malformed request")

	errRateLimited = errors.New("tempest: rate limited")
	errServer      = errors.New("tempest: server error")
	errCircuitOpen = errors.New("tempest: circuit breaker open")
)

// Config bundles endpoint, credential and resilience settings.
type Config struct {
	BaseURL string
	Token   string

	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client fetches device observations from the Tempest cloud API, hiding
// the day-sized request chunking and transient-failure retry from callers.
type Client struct {
	cfg     Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *slog.Logger
}

// NewClient creates a Client. Zero config values get usable defaults.
func NewClient(cfg Config, log *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tempest",
		MaxRequests: 3,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		breaker: cb,
		log:     log,
	}
}

// FetchRange retrieves all observations for a device with timestamps in
// [start, end), walking the range forward in day-sized requests and passing
// each non-empty page to handle in ascending time order. An empty page is a
// provider-side gap and is skipped. A handle error aborts the fetch
// immediately and is returned as-is; pages already handled stay handled,
// which is safe because merging is idempotent.
func (c *Client) FetchRange(ctx context.Context, deviceID int64, start, end int64, handle func([]model.Observation) error) error {
	for chunkStart := start; chunkStart < end; chunkStart += chunkSeconds {
		chunkEnd := chunkStart + chunkSeconds
		if chunkEnd > end {
			chunkEnd = end
		}

		page, err := c.fetchChunk(ctx, deviceID, chunkStart, chunkEnd)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			c.log.Debug("no observations in range",
				"device", deviceID, "start", chunkStart, "end", chunkEnd)
			continue
		}

		if err := handle(page); err != nil {
			return err
		}
	}

	return nil
}

// fetchChunk requests one day-or-less range, retrying transient failures
// with exponential backoff. Auth and malformed-request failures propagate
// immediately.
func (c *Client) fetchChunk(ctx context.Context, deviceID int64, start, end int64) ([]model.Observation, error) {
	var attempt int
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		page, err := c.fetchOnce(ctx, deviceID, start, end)
		if err == nil {
			return page, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		if errors.Is(err, ErrAuth) || errors.Is(err, ErrBadRequest) {
			return nil, err
		}
		if attempt >= c.cfg.MaxRetries {
			return nil, fmt.Errorf("fetch for device %d failed after %d attempts: %w", deviceID, attempt+1, err)
		}

		delay := c.cfg.InitialBackoff << attempt
		if delay > c.cfg.MaxBackoff {
			delay = c.cfg.MaxBackoff
		}
		c.log.Debug("retrying fetch",
			"device", deviceID, "attempt", attempt+1, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}

func (c *Client) fetchOnce(ctx context.Context, deviceID int64, start, end int64) ([]model.Observation, error) {
	values := url.Values{}
	values.Set("time_start", strconv.FormatInt(start, 10))
	values.Set("time_end", strconv.FormatInt(end, 10))
	values.Set("format", "csv")
	values.Set("token", c.cfg.Token)

	u := fmt.Sprintf("%s/observations/device/%d?%s", c.cfg.BaseURL, deviceID, values.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, ErrAuth
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, errRateLimited
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: status %d", errServer, resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("%w: status %d", ErrBadRequest, resp.StatusCode)
		}

		page, dropped, err := parseCSV(deviceID, resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		if dropped > 0 {
			c.log.Warn("dropped observations with unusable timestamps",
				"device", deviceID, "count", dropped)
		}
		return page, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]model.Observation), nil
}

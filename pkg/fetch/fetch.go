// Package fetch provides the retrying HTTP transport shared by every
// harvester. External repositories are slow, intermittently erroring, and
// sometimes serve HTML error pages with a 200 status; a failed fetch is
// reported as ErrUnavailable so the caller can skip the source and keep
// the batch alive.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrUnavailable is returned when every attempt against an endpoint
// failed, or when the body could not be used as structured data. Callers
// must treat it as "no data from this call", never as fatal.
var ErrUnavailable = errors.New("fetch: source unavailable")

const defaultUserAgent = "ScholarHub-Harvester/1.0 (metadata aggregation; mailto:admin@scholarhub.ac.za)"

// Config configures a Client.
type Config struct {
	// Timeout is the per-request timeout.
	Timeout time.Duration
	// Retries is the number of additional attempts after the first.
	Retries int
	// Backoff is the base delay; attempt n waits Backoff*n.
	Backoff time.Duration
	// RateLimit is the sustained requests per second (0 = unlimited).
	RateLimit float64
	// UserAgent overrides the default identification header.
	UserAgent string
}

// Client is a rate-limited, retrying HTTP fetcher. Safe for concurrent use.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	retries   int
	backoff   time.Duration
	userAgent string
	log       zerolog.Logger
}

// NewClient builds a Client, applying defaults for zero fields.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retries == 0 {
		cfg.Retries = 2
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = 800 * time.Millisecond
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		limiter:   limiter,
		retries:   cfg.Retries,
		backoff:   cfg.Backoff,
		userAgent: cfg.UserAgent,
		log:       log.With().Str("component", "fetch").Logger(),
	}
}

// FetchText performs a GET and returns the response body. Non-2xx status
// and network failures are retried with linearly increasing backoff. A
// body that looks like an HTML error page is logged but still returned;
// callers validate independently.
func (c *Client) FetchText(ctx context.Context, url string) (string, error) {
	return c.fetch(ctx, url, "text/xml, application/xml, text/plain, */*")
}

// FetchJSON performs a GET with a JSON Accept header and decodes the body
// into v. An empty body, an HTML-shaped body, or a decode failure all
// yield ErrUnavailable.
func (c *Client) FetchJSON(ctx context.Context, url string, v interface{}) error {
	body, err := c.fetch(ctx, url, "application/json")
	if err != nil {
		return err
	}
	trimmed := strings.TrimSpace(body)
	if trimmed == "" || LooksLikeHTML(trimmed) {
		return fmt.Errorf("%w: %s returned no JSON", ErrUnavailable, url)
	}
	if err := json.Unmarshal([]byte(trimmed), v); err != nil {
		c.log.Warn().Str("url", url).Err(err).Msg("response is not valid JSON")
		return fmt.Errorf("%w: decode %s: %v", ErrUnavailable, url, err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, url, accept string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * c.backoff
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		body, err := c.once(ctx, url, accept)
		if err == nil {
			if LooksLikeHTML(body) {
				c.log.Warn().Str("url", url).Msg("response body looks like an HTML error page")
			}
			return body, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		lastErr = err
		c.log.Debug().Str("url", url).Int("attempt", attempt+1).Err(err).Msg("fetch attempt failed")
	}
	return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, url, lastErr)
}

func (c *Client) once(ctx context.Context, url, accept string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// LooksLikeHTML reports whether a body is an HTML page rather than
// structured data. Heuristic only: some gateways serve error pages with a
// 200 status.
func LooksLikeHTML(body string) bool {
	head := strings.ToLower(strings.TrimSpace(body))
	if len(head) > 256 {
		head = head[:256]
	}
	return strings.HasPrefix(head, "<!doctype html") ||
		strings.HasPrefix(head, "<html") ||
		strings.Contains(head, "<head>") && !strings.Contains(head, "<?xml")
}

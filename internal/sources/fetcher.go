package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/threadrank/internal/retry"
)

// maxBodyBytes bounds a single response. The largest HN threads are a few MB.
const maxBodyBytes = 32 << 20

// Cache stores raw response bodies between runs.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

type skipCacheKey struct{}

// WithoutCache marks ctx so that Fetcher.Get ignores cached bodies. Fresh
// bodies are still written back, replacing the stale entries.
func WithoutCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipCacheKey{}, true)
}

func skipCache(ctx context.Context) bool {
	skip, _ := ctx.Value(skipCacheKey{}).(bool)
	return skip
}

// HTTPStatusError is returned for non-200 responses.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Retryable reports whether another attempt may succeed.
func (e *HTTPStatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	Name              string // used in logs and cache keys
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Retry             retry.RetryConfig
	Cache             Cache        // optional
	HTTPClient        *http.Client // optional, overrides Timeout
}

// Fetcher performs rate-limited, retried and optionally cached GET requests
// against one upstream.
type Fetcher struct {
	name        string
	userAgent   string
	httpClient  *http.Client
	RateLimiter *rate.Limiter
	retry       retry.RetryConfig
	cache       Cache
}

// NewFetcher creates a Fetcher. A zero RequestsPerSecond disables rate limiting.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Fetcher{
		name:        cfg.Name,
		userAgent:   cfg.UserAgent,
		httpClient:  client,
		RateLimiter: rate.NewLimiter(limit, burst),
		retry:       cfg.Retry,
		cache:       cfg.Cache,
	}
}

// Get returns the body of url. Cached bodies are served without touching the
// network unless ctx comes from WithoutCache; fresh bodies are written back
// to the cache.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	logger := zerolog.Ctx(ctx).With().Str("source", f.name).Str("url", url).Logger()

	key := f.cacheKey(url)
	if f.cache != nil && !skipCache(ctx) {
		body, ok, err := f.cache.Get(ctx, key)
		if err != nil {
			logger.Warn().Err(err).Msg("Cache read failed, fetching from upstream")
		} else if ok {
			logger.Debug().Int("bytes", len(body)).Msg("Served from cache")
			return body, nil
		}
	}

	var body []byte
	result := retry.Do(ctx, f.retry, func(ctx context.Context) error {
		var err error
		body, err = f.do(ctx, url)
		return err
	}, logger)
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("fetch %s after %d attempt(s): %w", f.name, result.Attempts, err)
	}

	logger.Debug().Int("bytes", len(body)).Int("attempts", result.Attempts).Msg("Fetched")

	if f.cache != nil {
		if err := f.cache.Set(ctx, key, body); err != nil {
			logger.Warn().Err(err).Msg("Cache write failed")
		}
	}
	return body, nil
}

func (f *Fetcher) do(ctx context.Context, url string) ([]byte, error) {
	if err := f.RateLimiter.Wait(ctx); err != nil {
		return nil, retry.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, retry.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := &HTTPStatusError{URL: url, StatusCode: resp.StatusCode, Body: string(snippet)}
		if statusErr.Retryable() {
			return nil, statusErr
		}
		return nil, retry.Permanent(statusErr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

func (f *Fetcher) cacheKey(url string) string {
	return "fetch:" + f.name + ":" + url
}

// Package oracle provides HTTP price-feed adapters and their cached wrappers.
//
// Each adapter owns its retry policy and its upstream rate limit. Caching
// lives in the wrappers so the adapters stay stateless.
package oracle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tutu-network/credits/internal/domain"
	"github.com/tutu-network/credits/internal/infra/observability"
)

// maxBodyBytes caps upstream response bodies.
const maxBodyBytes = 1 << 20

// ClientConfig controls one upstream HTTP client.
type ClientConfig struct {
	Timeout           time.Duration // per attempt (default 10s)
	RequestsPerSecond float64       // 0 disables limiting
	Burst             int           // default 1
	MaxRetries        int           // additional attempts after the first
	RetryBackoff      time.Duration // doubled on each retry (default 250ms)
}

// DefaultClientConfig returns production defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:           10 * time.Second,
		RequestsPerSecond: 5,
		Burst:             1,
		MaxRetries:        2,
		RetryBackoff:      250 * time.Millisecond,
	}
}

// client performs rate-limited GETs with bounded retries.
type client struct {
	name    string
	http    *http.Client
	limiter *rate.Limiter
	cfg     ClientConfig
	logger  *zap.Logger
	metrics *observability.Metrics
}

func newClient(name string, cfg ClientConfig, logger *zap.Logger, m *observability.Metrics) *client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 250 * time.Millisecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &client{
		name:    name,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, cfg.Burst),
		cfg:     cfg,
		logger:  logger.Named("oracle." + name),
		metrics: m,
	}
}

// statusError is a non-2xx upstream response.
type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("upstream returned HTTP %d", e.code) }

// retryable reports whether another attempt could succeed.
func retryable(err error) bool {
	if se, ok := err.(*statusError); ok {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return true
}

// get fetches url and returns the body. Failures after all retries are
// wrapped as OracleUnavailable.
func (c *client) get(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.OracleLatency.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
		}
	}()

	var lastErr error
	backoff := c.cfg.RetryBackoff
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying upstream request",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, c.unavailable(ctx.Err())
			}
			backoff *= 2
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.unavailable(err)
		}

		body, err := c.do(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(err) {
			break
		}
	}
	return nil, c.unavailable(lastErr)
}

func (c *client) do(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &statusError{code: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

func (c *client) unavailable(err error) error {
	if c.metrics != nil {
		c.metrics.OracleFailures.WithLabelValues(c.name).Inc()
	}
	c.logger.Error("upstream request failed", zap.Error(err))
	return domain.ErrOracleUnavailable(c.name, err)
}

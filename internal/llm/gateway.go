package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultRetryMaxAttempts = 3
	defaultRetryBaseDelay   = 500 * time.Millisecond
	defaultRetryMaxDelay    = 8 * time.Second
)

// RetryConfig bounds the gateway's retry behavior.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Gateway wraps a Completer with bounded exponential-backoff retry on
// transport failures, rate limits, and retryable HTTP statuses. It satisfies
// Completer itself, so callers never see the difference.
type Gateway struct {
	completer Completer
	cfg       RetryConfig
	sleeper   func(time.Duration)
	logger    zerolog.Logger
}

// GatewayOption customizes a Gateway.
type GatewayOption func(*Gateway)

// WithSleeper overrides how retry waits are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) GatewayOption {
	return func(g *Gateway) {
		g.sleeper = sleeper
	}
}

// WithLogger attaches a logger for retry diagnostics.
func WithLogger(logger zerolog.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// NewGateway wraps completer with the given retry bounds. Zero-valued config
// fields fall back to package defaults.
func NewGateway(completer Completer, cfg RetryConfig, opts ...GatewayOption) *Gateway {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultRetryMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultRetryBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultRetryMaxDelay
	}
	g := &Gateway{completer: completer, cfg: cfg, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Complete issues the request, retrying retryable failures. A Retry-After
// hint from a rate limit overrides the computed backoff delay. Context
// cancellation stops in-flight waits immediately.
func (g *Gateway) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		resp, err := g.completer.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt == g.cfg.MaxAttempts {
			break
		}
		if !Retryable(err) || ctx.Err() != nil {
			return nil, err
		}

		delay := g.backoffDelay(attempt, err)
		g.logger.Debug().
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("retrying model call")
		if err := g.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("model call failed after %d attempts: %w", g.cfg.MaxAttempts, lastErr)
}

// backoffDelay doubles the base delay per attempt: 1 -> base, 2 -> base*2, ...
func (g *Gateway) backoffDelay(attempt int, err error) time.Duration {
	var rateLimit *RateLimitError
	if errors.As(err, &rateLimit) && rateLimit.RetryAfter > 0 {
		return g.capDelay(rateLimit.RetryAfter)
	}
	delay := g.cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		if delay > g.cfg.MaxDelay/2 {
			delay = g.cfg.MaxDelay
			break
		}
		delay *= 2
	}
	return g.capDelay(delay)
}

func (g *Gateway) capDelay(delay time.Duration) time.Duration {
	if delay > g.cfg.MaxDelay {
		return g.cfg.MaxDelay
	}
	return delay
}

func (g *Gateway) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if g.sleeper != nil {
		g.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Provider returns the wrapped client's provider name
func (g *Gateway) Provider() Provider {
	return g.completer.Provider()
}

// Model returns the wrapped client's model name
func (g *Gateway) Model() string {
	return g.completer.Model()
}

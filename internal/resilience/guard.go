package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/PierreDenaes/deploy-sub002/internal/config"
)

// ErrOpen reports that the breaker is open and the call was skipped without
// touching the network.
var ErrOpen = errors.New("circuit breaker open")

// Guard bounds calls to one remote dependency. It is a fail-fast wrapper,
// not a retry policy.
type Guard struct {
	breaker *Breaker
	limiter *rate.Limiter
	timeout time.Duration
	logger  zerolog.Logger
}

// NewGuard builds a guard from configuration. A non-positive rate limit
// disables rate limiting.
func NewGuard(cfg config.Resilience, logger zerolog.Logger) *Guard {
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 7 * time.Second
	}
	limit := rate.Limit(cfg.RateLimit)
	burst := cfg.RateBurst
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
		burst = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &Guard{
		breaker: NewBreaker(cfg.BreakerThreshold, cfg.BreakerWindow),
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
		logger:  logger,
	}
}

// Do runs fn under the guard. An open breaker returns ErrOpen immediately.
// A timed-out or failed call trips the breaker; a cancellation from the
// caller's own context does not count against it.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if !g.breaker.Allow() {
		g.logger.Debug().Msg("circuit open, skipping product database call")
		return ErrOpen
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("failed to pass rate limiter: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := fn(callCtx); err != nil {
		if ctx.Err() == nil {
			g.breaker.Failure()
		}
		return err
	}

	g.breaker.Success()
	return nil
}

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PierreDenaes/deploy-sub002/internal/config"
)

func TestGuard_SkipsWhenOpen(t *testing.T) {
	g := NewGuard(config.Resilience{BreakerThreshold: 1, BreakerWindow: 10 * time.Second}, zerolog.Nop())

	calls := 0
	fail := func(ctx context.Context) error {
		calls++
		return errors.New("connection refused")
	}

	err := g.Do(context.Background(), fail)
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	// The breaker is open now, so fn must not run at all.
	err = g.Do(context.Background(), fail)
	assert.ErrorIs(t, err, ErrOpen)
	assert.Equal(t, 1, calls)
}

func TestGuard_TimeoutTripsBreaker(t *testing.T) {
	cfg := config.Resilience{
		CallTimeout:      20 * time.Millisecond,
		BreakerThreshold: 1,
		BreakerWindow:    10 * time.Second,
	}
	g := NewGuard(cfg, zerolog.Nop())

	err := g.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	err = g.Do(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrOpen)
}

func TestGuard_SuccessKeepsBreakerClosed(t *testing.T) {
	g := NewGuard(config.Resilience{}, zerolog.Nop())

	for i := 0; i < 3; i++ {
		err := g.Do(context.Background(), func(ctx context.Context) error { return nil })
		require.NoError(t, err)
	}
}

func TestGuard_CallerCancelDoesNotTrip(t *testing.T) {
	g := NewGuard(config.Resilience{BreakerThreshold: 1, BreakerWindow: 10 * time.Second}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	err := g.Do(ctx, func(callCtx context.Context) error {
		cancel()
		<-callCtx.Done()
		return callCtx.Err()
	})
	require.Error(t, err)

	calls := 0
	err = g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestGuard_RecoversAfterWindow(t *testing.T) {
	g := NewGuard(config.Resilience{BreakerThreshold: 1, BreakerWindow: 10 * time.Second}, zerolog.Nop())
	now := time.Now()
	g.breaker.now = func() time.Time { return now }

	err := g.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("503 from upstream")
	})
	require.Error(t, err)
	assert.ErrorIs(t, g.Do(context.Background(), func(ctx context.Context) error { return nil }), ErrOpen)

	now = now.Add(11 * time.Second)
	err = g.Do(context.Background(), func(ctx context.Context) error { return nil })
	require.NoError(t, err)

	// The probe's success closed the breaker again.
	err = g.Do(context.Background(), func(ctx context.Context) error { return nil })
	require.NoError(t, err)
}

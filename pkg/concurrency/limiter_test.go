package concurrency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterAcquireReleaseTracksMetrics(t *testing.T) {
	limiter := NewLimiter(2)
	ctx := context.Background()

	require.NoError(t, limiter.Acquire(ctx))
	assert.EqualValues(t, 1, limiter.CurrentActive())
	limiter.Release()

	metrics := limiter.GetMetrics()
	assert.EqualValues(t, 1, metrics.TotalAcquired)
	assert.EqualValues(t, 1, metrics.TotalReleased)
	assert.EqualValues(t, 0, limiter.CurrentActive())
	assert.Equal(t, 2, limiter.Capacity())
}

func TestLimiterAcquireHonorsContextCancellation(t *testing.T) {
	limiter := NewLimiter(1)
	require.NoError(t, limiter.Acquire(context.Background()))
	defer limiter.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := limiter.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 1, limiter.CurrentActive())
}

func TestLimiterAcquireRejectsDoneContextEvenWithFreeSlot(t *testing.T) {
	limiter := NewLimiter(4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, limiter.Acquire(ctx), context.Canceled)
	assert.EqualValues(t, 0, limiter.CurrentActive())
}

func TestLimiterNeverExceedsCapacity(t *testing.T) {
	const capacity = 10
	limiter := NewLimiter(capacity)

	var inFlight, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = limiter.GoSync(context.Background(), func() error {
				n := atomic.AddInt64(&inFlight, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt64(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(capacity))
	assert.LessOrEqual(t, limiter.GetMetrics().PeakConcurrent, int64(capacity))
	assert.EqualValues(t, 0, limiter.CurrentActive())
}

func TestGoSyncReleasesOnErrorAndPanic(t *testing.T) {
	limiter := NewLimiter(1)

	err := limiter.GoSync(context.Background(), func() error { return errors.New("boom") })
	require.Error(t, err)
	assert.EqualValues(t, 0, limiter.CurrentActive())

	assert.Panics(t, func() {
		_ = limiter.GoSync(context.Background(), func() error { panic("bad") })
	})
	assert.EqualValues(t, 0, limiter.CurrentActive())
}

func TestGoSyncCancelledWorkDoesNotTripBreaker(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Hour)
	limiter := NewLimiterWithCircuitBreaker(1, cb)

	ctx, cancel := context.WithCancel(context.Background())
	err := limiter.GoSync(ctx, func() error {
		cancel()
		return ctx.Err()
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestLimiterCircuitBreakerOpensAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Hour)
	limiter := NewLimiterWithCircuitBreaker(1, cb)

	ctx := context.Background()
	_ = limiter.GoSync(ctx, func() error { return errors.New("boom") })

	assert.Equal(t, StateOpen, cb.GetState())
	assert.ErrorIs(t, limiter.Acquire(ctx), ErrCircuitOpen)
	assert.Equal(t, "open", limiter.GetCircuitBreakerState())
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)
	now := time.Now()
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	cb.RecordFailure()
	require.True(t, cb.IsOpen())

	now = now.Add(2 * time.Minute)
	require.False(t, cb.IsOpen())
	assert.Equal(t, StateHalfOpen, cb.GetState())

	for i := 0; i < halfOpenProbes; i++ {
		cb.RecordSuccess()
	}
	assert.Equal(t, StateClosed, cb.GetState())
	assert.EqualValues(t, 0, cb.GetConsecutiveFailures())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	now := time.Now()
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	now = now.Add(2 * time.Minute)
	require.False(t, cb.IsOpen())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.GetState())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, "closed", cb.GetState().String())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10, cfg.MaxConcurrent)

	limiter := NewLimiterFromConfig(cfg)
	assert.Equal(t, 10, limiter.Capacity())
	assert.Contains(t, cfg.String(), "MaxConcurrent: 10")
}

func TestLimiterWithoutBreakerKeepsAdmitting(t *testing.T) {
	limiter := NewLimiterFromConfig(Config{MaxConcurrent: 1, FailureThreshold: 0, ResetTimeout: time.Hour})
	assert.Equal(t, "disabled", limiter.GetCircuitBreakerState())

	ctx := context.Background()
	for i := 0; i < 2*DefaultFailureThreshold; i++ {
		err := limiter.GoSync(ctx, func() error { return errors.New("game not running") })
		require.EqualError(t, err, "game not running")
	}

	require.NoError(t, limiter.Acquire(ctx))
	limiter.Release()
	assert.EqualValues(t, 0, limiter.CurrentActive())
}

// Package runner drives periodic refreshes of a snapshot tree.
// A Runner owns at most one background loop; failed cycles are logged and the
// loop keeps going until it is stopped.
package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wehubfusion/nucleares/pkg/metrics"
)

// DefaultInterval is used when Start is given a non-positive interval.
const DefaultInterval = time.Second

// TriggerAuto labels refresh metrics recorded by the runner.
const TriggerAuto = "auto"

// Refresher is implemented by anything that can refresh itself in place.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Runner repeatedly refreshes a Refresher, sleeping between cycles.
//
// Stop must not be called from code running inside a refresh, such as a field
// listener, because it waits for the current cycle to finish.
type Runner struct {
	refresher Refresher
	logger    atomic.Pointer[zap.Logger]
	tracer    trace.Tracer
	metrics   *metrics.Metrics

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	interval time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithMetrics records cycle counters and durations into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithTracer overrides the tracer used for cycle spans.
func WithTracer(tr trace.Tracer) Option {
	return func(r *Runner) {
		if tr != nil {
			r.tracer = tr
		}
	}
}

// NewRunner creates a stopped Runner for refresher.
// A nil logger disables logging.
func NewRunner(refresher Refresher, logger *zap.Logger, opts ...Option) (*Runner, error) {
	if refresher == nil {
		return nil, errors.New("refresher cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Runner{
		refresher: refresher,
		tracer:    otel.Tracer("nucleares/runner"),
		metrics:   metrics.New(nil),
	}
	r.logger.Store(logger)
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Start launches the background loop. The first refresh runs immediately, later
// ones every interval after the previous cycle completed. It reports false and
// does nothing when the loop is already running.
func (r *Runner) Start(interval time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return false
	}
	if r.done != nil {
		// A previous loop may still be winding down after Stop.
		<-r.done
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	r.interval = interval

	go r.loop(ctx, interval, done)
	return true
}

// Stop cancels the loop and waits for it to exit. It is a no-op when stopped.
// A refresh in flight is cancelled and not reported as a failure.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// SetLogger replaces the logger, including for a loop that is already running.
func (r *Runner) SetLogger(logger *zap.Logger) {
	if logger != nil {
		r.logger.Store(logger)
	}
}

// Running reports whether the loop is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Interval returns the interval of the current or last loop.
func (r *Runner) Interval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interval
}

func (r *Runner) loop(ctx context.Context, interval time.Duration, done chan<- struct{}) {
	defer close(done)

	r.logger.Load().Info("Auto refresh started", zap.Duration("interval", interval))
	defer func() { r.logger.Load().Info("Auto refresh stopped") }()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}

		r.tick(ctx)

		timer.Reset(interval)
	}
}

// tick performs one refresh cycle. Failures are logged and swallowed.
func (r *Runner) tick(ctx context.Context) {
	cycle := uuid.NewString()

	ctx, span := r.tracer.Start(ctx, "runner.tick",
		trace.WithAttributes(attribute.String("refresh.cycle", cycle)))
	defer span.End()

	start := time.Now()
	err := r.refresher.Refresh(ctx)
	duration := time.Since(start)

	r.metrics.RefreshDuration.Observe(duration.Seconds())
	span.SetAttributes(attribute.Int64("refresh.duration_ms", duration.Milliseconds()))

	logger := r.logger.Load()
	switch {
	case err == nil:
		r.metrics.Refreshes.WithLabelValues(TriggerAuto, metrics.ResultSuccess).Inc()
		span.SetStatus(codes.Ok, "")
		logger.Debug("Auto refresh completed",
			zap.String("cycle", cycle),
			zap.Duration("duration", duration))

	case ctx.Err() != nil:
		// Stopped while the cycle was in flight.
		r.metrics.Refreshes.WithLabelValues(TriggerAuto, metrics.ResultCancelled).Inc()
		span.SetStatus(codes.Unset, "stopped")
		logger.Debug("Auto refresh interrupted by stop",
			zap.String("cycle", cycle))

	default:
		r.metrics.Refreshes.WithLabelValues(TriggerAuto, metrics.ResultError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("Auto refresh failed",
			zap.String("cycle", cycle),
			zap.Duration("duration", duration),
			zap.Error(err))
	}
}

package source

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wehubfusion/nucleares/pkg/concurrency"
	sdkerrors "github.com/wehubfusion/nucleares/pkg/errors"
	"github.com/wehubfusion/nucleares/pkg/metrics"
)

const (
	opRead  = "read"
	opWrite = "write"
)

// Throttled funnels every read and write of a snapshot tree through one Limiter.
// The slot is held only for the duration of the upstream call and is released on
// every exit path, including cancellation.
type Throttled struct {
	source  DataSource
	limiter *concurrency.Limiter
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// ThrottleOption configures a Throttled source.
type ThrottleOption func(*Throttled)

// WithMetrics records request counters and latencies into m.
func WithMetrics(m *metrics.Metrics) ThrottleOption {
	return func(t *Throttled) {
		if m != nil {
			t.metrics = m
		}
	}
}

// WithTracer overrides the tracer used for request spans.
func WithTracer(tr trace.Tracer) ThrottleOption {
	return func(t *Throttled) {
		if tr != nil {
			t.tracer = tr
		}
	}
}

// NewThrottled wraps src with limiter. A nil limiter gets the default capacity.
func NewThrottled(src DataSource, limiter *concurrency.Limiter, opts ...ThrottleOption) *Throttled {
	if limiter == nil {
		limiter = concurrency.NewLimiterFromConfig(concurrency.DefaultConfig())
	}
	t := &Throttled{
		source:  src,
		limiter: limiter,
		metrics: metrics.New(nil),
		tracer:  otel.Tracer("nucleares/source"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Limiter returns the shared gate.
func (t *Throttled) Limiter() *concurrency.Limiter {
	return t.limiter
}

// Unwrap returns the wrapped source.
func (t *Throttled) Unwrap() DataSource {
	return t.source
}

// Read implements DataSource.
func (t *Throttled) Read(ctx context.Context, name string) (string, error) {
	var value string
	err := t.call(ctx, opRead, name, func(ctx context.Context) error {
		v, err := t.source.Read(ctx, name)
		value = v
		return err
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

// Write implements DataSource. Writes outside the writable set fail before any
// network activity.
func (t *Throttled) Write(ctx context.Context, name, value string) error {
	if !Writable(name) {
		return sdkerrors.NewNotWritableError(name)
	}
	return t.call(ctx, opWrite, name, func(ctx context.Context) error {
		return t.source.Write(ctx, name, value)
	})
}

func (t *Throttled) call(ctx context.Context, op, name string, fn func(context.Context) error) error {
	ctx, span := t.tracer.Start(ctx, "source."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("nucleares.variable", name),
		))
	defer span.End()

	start := time.Now()
	err := t.limiter.GoSync(ctx, func() error {
		t.metrics.InFlight.Inc()
		defer t.metrics.InFlight.Dec()
		return fn(ctx)
	})
	err = classify(ctx, name, err)

	t.metrics.RequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	t.metrics.Requests.WithLabelValues(op, metrics.Result(err, sdkerrors.IsCancelled(err))).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

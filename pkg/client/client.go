// Package client is the entry point for reading and commanding a running game.
// It composes the snapshot trees, the HTTP data source, the request throttle and
// the auto-refresh loop.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wehubfusion/nucleares/internal/tracing"
	"github.com/wehubfusion/nucleares/pkg/concurrency"
	"github.com/wehubfusion/nucleares/pkg/config"
	sdkerrors "github.com/wehubfusion/nucleares/pkg/errors"
	"github.com/wehubfusion/nucleares/pkg/metrics"
	"github.com/wehubfusion/nucleares/pkg/runner"
	"github.com/wehubfusion/nucleares/pkg/snapshot"
	"github.com/wehubfusion/nucleares/pkg/source"
)

// TriggerManual labels refresh metrics recorded by Client.Refresh.
const TriggerManual = "manual"

// ErrFixedEndpoint is returned by SetEndpoint when the client was built on a
// custom data source.
var ErrFixedEndpoint = errors.New("endpoint cannot be changed on a custom data source")

// Client is the root of a live game snapshot. It owns the Plant and World trees,
// the shared request throttle and the auto-refresh loop.
//
// Example usage:
//
//	c, err := client.NewClient("127.0.0.1", 8785)
//	if err != nil {
//	    logger.Fatal("Failed to create client", zap.Error(err))
//	}
//	defer c.Close()
//
//	c.Plant().Reactor().Core().SubscribeField("temperature", func(string) {
//	    fmt.Println(c.Plant().Reactor().Core().Temperature())
//	})
//	c.StartAutoRefresh(time.Second)
type Client struct {
	config  config.Config
	logger  atomic.Pointer[zap.Logger]
	metrics *metrics.Metrics
	tracer  trace.Tracer

	http    *source.HTTPSource
	source  *source.Throttled
	limiter *concurrency.Limiter

	plant  *snapshot.Plant
	world  *snapshot.World
	runner *runner.Runner

	tracingShutdown func(context.Context) error
}

// Option customizes client construction.
type Option func(*options)

type options struct {
	logger     *zap.Logger
	registerer prometheus.Registerer
	source     source.DataSource
}

// WithLogger sets the logger instead of building one from the configuration.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRegisterer registers the client's Prometheus instruments with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithDataSource replaces the HTTP connection with src. The throttle still applies.
// Useful for tests and replays.
func WithDataSource(src source.DataSource) Option {
	return func(o *options) {
		o.source = src
	}
}

// NewClient creates a client for the game web server at host:port with default settings.
func NewClient(host string, port int, opts ...Option) (*Client, error) {
	cfg := config.Default()
	cfg.Host = host
	cfg.Port = port
	return NewClientWithConfig(cfg, opts...)
}

// NewClientWithConfig creates a client from cfg.
//
// When cfg.AutoRefresh is set the whole tree is refreshed once before returning,
// and a failure of that refresh is returned. The background loop is not started;
// call StartAutoRefresh for that.
func NewClientWithConfig(cfg config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		if logger, err = config.NewLogger(cfg); err != nil {
			return nil, err
		}
	}

	c := &Client{
		config:  cfg,
		metrics: metrics.New(o.registerer),
		tracer:  otel.Tracer("nucleares/client"),
		limiter: concurrency.NewLimiterFromConfig(cfg.Concurrency()),
	}
	c.logger.Store(logger)

	if cfg.TracingEnabled {
		shutdown, err := tracing.SetupTracing(context.Background(), cfg.Tracing(), logger)
		if err != nil {
			logger.Warn("Failed to setup tracing, continuing without tracing", zap.Error(err))
		} else {
			c.tracingShutdown = shutdown
		}
	}

	raw := o.source
	if raw == nil {
		httpSource, err := source.NewHTTPSource(cfg.Connection())
		if err != nil {
			return nil, err
		}
		c.http = httpSource
		raw = httpSource
	}

	c.source = source.NewThrottled(raw, c.limiter, source.WithMetrics(c.metrics))
	c.plant = snapshot.NewPlant(c.source)
	c.world = snapshot.NewWorld(c.source)

	r, err := runner.NewRunner(refreshFunc(c.refreshTree), logger, runner.WithMetrics(c.metrics))
	if err != nil {
		return nil, err
	}
	c.runner = r

	logger.Info("Client created",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Int("max_concurrent", c.limiter.Capacity()),
		zap.Bool("auto_refresh", cfg.AutoRefresh))

	if cfg.AutoRefresh {
		if err := c.Refresh(context.Background()); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("initial refresh: %w", err)
		}
	}
	return c, nil
}

type refreshFunc func(ctx context.Context) error

func (f refreshFunc) Refresh(ctx context.Context) error { return f(ctx) }

// SetLogger sets a custom zap logger for the client and its refresh loop
func (c *Client) SetLogger(logger *zap.Logger) {
	if logger != nil {
		c.logger.Store(logger)
		c.runner.SetLogger(logger)
	}
}

// Plant returns the plant tree.
func (c *Client) Plant() *snapshot.Plant { return c.plant }

// World returns the in-game clock.
func (c *Client) World() *snapshot.World { return c.world }

// Config returns the configuration the client was built with.
func (c *Client) Config() config.Config { return c.config }

// Metrics returns the client's Prometheus instruments.
func (c *Client) Metrics() *metrics.Metrics { return c.metrics }

// LimiterMetrics returns a snapshot of the request throttle counters.
func (c *Client) LimiterMetrics() concurrency.Metrics { return c.limiter.GetMetrics() }

// Refresh refreshes Plant and World concurrently and returns the first error once
// both have finished. Nodes whose fetches succeeded are applied regardless.
func (c *Client) Refresh(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "client.Refresh")
	defer span.End()

	start := time.Now()
	err := c.refreshTree(ctx)
	duration := time.Since(start)

	c.metrics.RefreshDuration.Observe(duration.Seconds())
	c.metrics.Refreshes.WithLabelValues(TriggerManual, metrics.Result(err, sdkerrors.IsCancelled(err))).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Load().Warn("Refresh failed", zap.Duration("duration", duration), zap.Error(err))
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (c *Client) refreshTree(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return c.plant.Refresh(ctx) })
	g.Go(func() error { return c.world.Refresh(ctx) })
	return g.Wait()
}

// StartAutoRefresh starts the background refresh loop. A non-positive interval
// uses the configured refresh interval. It reports false when already running.
func (c *Client) StartAutoRefresh(interval time.Duration) bool {
	if interval <= 0 {
		interval = c.config.RefreshInterval
	}
	return c.runner.Start(interval)
}

// StopAutoRefresh stops the background loop and waits for it to exit.
// Do not call it from a field listener.
func (c *Client) StopAutoRefresh() {
	c.runner.Stop()
}

// AutoRefreshRunning reports whether the background loop is active.
func (c *Client) AutoRefreshRunning() bool {
	return c.runner.Running()
}

// SetCommand writes value to the writable variable name. Read-only variables are
// rejected without contacting the game.
func (c *Client) SetCommand(ctx context.Context, name, value string) error {
	return c.source.Write(ctx, name, value)
}

// Endpoint returns the host and port of the game web server.
func (c *Client) Endpoint() (string, int) {
	if c.http == nil {
		return c.config.Host, c.config.Port
	}
	return c.http.Endpoint()
}

// SetEndpoint points the client at another game web server. With AutoRefresh
// configured the tree is refreshed against the new endpoint before returning.
func (c *Client) SetEndpoint(ctx context.Context, host string, port int) error {
	if c.http == nil {
		return ErrFixedEndpoint
	}
	if err := c.http.SetEndpoint(host, port); err != nil {
		return err
	}

	c.logger.Load().Info("Endpoint changed", zap.String("host", host), zap.Int("port", port))

	if c.config.AutoRefresh {
		return c.Refresh(ctx)
	}
	return nil
}

// Close stops the refresh loop and flushes tracing.
func (c *Client) Close() error {
	c.runner.Stop()

	if c.tracingShutdown != nil {
		shutdown := c.tracingShutdown
		c.tracingShutdown = nil
		return tracing.ShutdownTracing(shutdown, c.logger.Load())
	}
	return nil
}

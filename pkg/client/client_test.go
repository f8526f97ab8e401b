package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wehubfusion/nucleares/pkg/config"
	sdkerrors "github.com/wehubfusion/nucleares/pkg/errors"
	"github.com/wehubfusion/nucleares/pkg/metrics"
	"github.com/wehubfusion/nucleares/pkg/source/sourcetest"
)

func newTestClient(t *testing.T, fake *sourcetest.Fake, mutate func(*config.Config), opts ...Option) *Client {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	opts = append([]Option{WithLogger(zap.NewNop()), WithDataSource(fake)}, opts...)
	c, err := NewClientWithConfig(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRefreshPopulatesPlantAndWorld(t *testing.T) {
	fake := sourcetest.New(map[string]string{
		"CORE_TEMP":      "350",
		"TIME_STAMP":     "1440",
		"GENERATOR_0_KW": "900",
	})
	c := newTestClient(t, fake, nil)

	require.NoError(t, c.Refresh(context.Background()))

	assert.Equal(t, "350", c.Plant().Reactor().Core().Temperature())
	assert.Equal(t, "900", c.Plant().SteamGenerator(0).ActivePowerKw())
	assert.Equal(t, 1, c.World().CurrentDay())
	assert.Equal(t, int64(74), fake.Reads())
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Metrics().Refreshes.WithLabelValues(TriggerManual, metrics.ResultSuccess)))
}

func TestRefreshReturnsErrorButAppliesHealthyBranches(t *testing.T) {
	fake := sourcetest.New(map[string]string{
		"TIME":            "08:00",
		"RODS_POS_ACTUAL": "30",
		"GENERATOR_2_KW":  "700",
	})
	fake.Set("COOLANT_CORE_QUANTITY_FREIGHT_PUMPS_PRESENT", "2")
	fake.Fail("CORE_TEMP", errors.New("timeout"))
	c := newTestClient(t, fake, nil)

	err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, sdkerrors.IsTransport(err))

	assert.Equal(t, "08:00", c.World().Time())
	assert.Equal(t, "30", c.Plant().Reactor().Core().ControlRods().ActualPosition())
	assert.Equal(t, "700", c.Plant().SteamGenerator(2).ActivePowerKw())
	assert.Equal(t, "", c.Plant().Reactor().Core().Temperature())
	assert.Equal(t, "", c.Plant().FreightPumpsPresent(), "the plant owns the failed core and keeps its previous values")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Metrics().Refreshes.WithLabelValues(TriggerManual, metrics.ResultError)))
}

func TestAutoRefreshConfigRefreshesOnConstruction(t *testing.T) {
	fake := sourcetest.New(map[string]string{"CORE_TEMP": "351"})
	c := newTestClient(t, fake, func(cfg *config.Config) { cfg.AutoRefresh = true })

	assert.Equal(t, "351", c.Plant().Reactor().Core().Temperature())
	assert.False(t, c.AutoRefreshRunning(), "construction does not start the loop")
}

func TestAutoRefreshConstructionFailure(t *testing.T) {
	fake := sourcetest.New(nil)
	fake.Fail("CORE_TEMP", errors.New("connection refused"))

	cfg := config.Default()
	cfg.AutoRefresh = true
	c, err := NewClientWithConfig(cfg, WithLogger(zap.NewNop()), WithDataSource(fake))
	require.Error(t, err)
	assert.Nil(t, c)
	assert.True(t, sdkerrors.IsTransport(err))
}

func TestInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.MaxConcurrent = 0
	_, err := NewClientWithConfig(cfg, WithLogger(zap.NewNop()))
	assert.Error(t, err)
}

func TestThrottleBoundsClientRefresh(t *testing.T) {
	fake := sourcetest.New(nil)
	fake.SetDelay(time.Millisecond)
	c := newTestClient(t, fake, func(cfg *config.Config) { cfg.MaxConcurrent = 4 })

	require.NoError(t, c.Refresh(context.Background()))
	assert.LessOrEqual(t, fake.PeakConcurrent(), int64(4))
	assert.LessOrEqual(t, c.LimiterMetrics().PeakConcurrent, int64(4))
}

func TestAutoRefreshStartStop(t *testing.T) {
	fake := sourcetest.New(nil)
	c := newTestClient(t, fake, func(cfg *config.Config) { cfg.RefreshInterval = time.Millisecond })

	assert.True(t, c.StartAutoRefresh(0))
	assert.False(t, c.StartAutoRefresh(0))
	assert.True(t, c.AutoRefreshRunning())

	require.Eventually(t, func() bool { return fake.Reads() >= 3*74 }, 2*time.Second, time.Millisecond)

	c.StopAutoRefresh()
	c.StopAutoRefresh()
	assert.False(t, c.AutoRefreshRunning())

	reads := fake.Reads()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, reads, fake.Reads())
}

func TestManualRefreshDuringAutoRefreshSharesThrottle(t *testing.T) {
	fake := sourcetest.New(nil)
	fake.SetDelay(time.Millisecond)
	c := newTestClient(t, fake, func(cfg *config.Config) {
		cfg.MaxConcurrent = 3
		cfg.RefreshInterval = time.Millisecond
	})

	require.True(t, c.StartAutoRefresh(0))
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Refresh(context.Background()))
	}
	c.StopAutoRefresh()

	assert.LessOrEqual(t, fake.PeakConcurrent(), int64(3))
}

func TestSetCommand(t *testing.T) {
	fake := sourcetest.New(nil)
	c := newTestClient(t, fake, nil)

	err := c.SetCommand(context.Background(), "CORE_TEMP", "0")
	assert.True(t, sdkerrors.IsNotWritable(err))
	assert.Empty(t, fake.Writes())

	require.NoError(t, c.SetCommand(context.Background(), "RODS_ALL_POS_ORDERED", "75"))
	require.NoError(t, c.Plant().Reactor().Core().ControlRods().SetOrderedPosition(context.Background(), 80))
	assert.Equal(t, []sourcetest.Write{
		{Name: "RODS_ALL_POS_ORDERED", Value: "75"},
		{Name: "RODS_ALL_POS_ORDERED", Value: "80"},
	}, fake.Writes())
}

func TestSetEndpointOnCustomSource(t *testing.T) {
	c := newTestClient(t, sourcetest.New(nil), nil)
	assert.ErrorIs(t, c.SetEndpoint(context.Background(), "10.0.0.1", 8785), ErrFixedEndpoint)
}

func TestRegistererReceivesInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newTestClient(t, sourcetest.New(nil), nil, WithRegisterer(reg))
	require.NoError(t, c.Refresh(context.Background()))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "nucleares_source_requests_total")
	assert.Contains(t, names, "nucleares_refresh_cycles_total")
}

func gameServer(t *testing.T, coreTemp string) (string, int) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("Variable") == "CORE_TEMP" {
			_, _ = w.Write([]byte(coreTemp))
			return
		}
		_, _ = w.Write([]byte("0"))
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func TestHTTPClientEndToEnd(t *testing.T) {
	host, port := gameServer(t, "350")
	otherHost, otherPort := gameServer(t, "410")

	cfg := config.Default()
	cfg.Host = host
	cfg.Port = port
	cfg.AutoRefresh = true
	c, err := NewClientWithConfig(cfg, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "350", c.Plant().Reactor().Core().Temperature())

	require.NoError(t, c.SetEndpoint(context.Background(), otherHost, otherPort))
	gotHost, gotPort := c.Endpoint()
	assert.Equal(t, otherHost, gotHost)
	assert.Equal(t, otherPort, gotPort)
	assert.Equal(t, "410", c.Plant().Reactor().Core().Temperature())
}

func TestNewClientUnreachable(t *testing.T) {
	c, err := NewClient("127.0.0.1", 1, WithLogger(zap.NewNop()))
	require.NoError(t, err, "construction without auto refresh does not contact the game")
	defer c.Close()

	err = c.Refresh(context.Background())
	assert.True(t, sdkerrors.IsTransport(err))
}

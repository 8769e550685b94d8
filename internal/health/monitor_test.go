package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sermady/stockdata-core/internal/config"
	"github.com/sermady/stockdata-core/internal/domain"
)

type fakeProber struct {
	name string
	err  error
	wait time.Duration
}

func (f *fakeProber) Name() string { return f.name }
func (f *fakeProber) HealthProbe(ctx context.Context) (time.Duration, error) {
	return f.wait, f.err
}

func testConfig() config.HealthMonitorConfig {
	return config.HealthMonitorConfig{TickSeconds: 300, FailureThreshold: 3, ResponseTimeThresholdSeconds: 30}
}

func TestRecordSuccessMarksHealthy(t *testing.T) {
	m := NewMonitor(testConfig(), map[string]Prober{"tushare": &fakeProber{name: "tushare"}}, zerolog.Nop())
	m.checkOne(context.Background(), "tushare", &fakeProber{name: "tushare"})

	status := m.Status("tushare")
	assert.Equal(t, domain.HealthHealthy, status.Status)
	assert.Equal(t, 1, status.SuccessCount)
}

func TestRecordFailureBelowThresholdMarksDegraded(t *testing.T) {
	m := NewMonitor(testConfig(), nil, zerolog.Nop())
	prober := &fakeProber{name: "akshare", err: errors.New("boom")}

	m.checkOne(context.Background(), "akshare", prober)
	status := m.Status("akshare")
	assert.Equal(t, domain.HealthDegraded, status.Status)
	assert.Equal(t, 1, status.ConsecutiveFailures)
}

func TestRecordFailureAtThresholdMarksUnavailable(t *testing.T) {
	m := NewMonitor(testConfig(), nil, zerolog.Nop())
	prober := &fakeProber{name: "baostock", err: errors.New("boom")}

	for i := 0; i < 3; i++ {
		m.checkOne(context.Background(), "baostock", prober)
	}
	status := m.Status("baostock")
	assert.Equal(t, domain.HealthUnavailable, status.Status)
	assert.Equal(t, 3, status.ConsecutiveFailures)
}

func TestSuccessAfterFailuresMarksDegradedNotHealthy(t *testing.T) {
	m := NewMonitor(testConfig(), nil, zerolog.Nop())
	failing := &fakeProber{name: "yfinance", err: errors.New("boom")}
	m.checkOne(context.Background(), "yfinance", failing)

	healthy := &fakeProber{name: "yfinance"}
	m.checkOne(context.Background(), "yfinance", healthy)

	status := m.Status("yfinance")
	require.Equal(t, 0, status.ConsecutiveFailures)
	assert.Equal(t, domain.HealthDegraded, status.Status)
}

func TestUnhealthySourcesExcludesHealthy(t *testing.T) {
	m := NewMonitor(testConfig(), nil, zerolog.Nop())
	m.checkOne(context.Background(), "ok", &fakeProber{name: "ok"})
	m.checkOne(context.Background(), "bad", &fakeProber{name: "bad", err: errors.New("boom")})

	unhealthy := m.UnhealthySources()
	assert.Equal(t, []string{"bad"}, unhealthy)
}

func TestResponseTimeOverBudgetCountsAsFailure(t *testing.T) {
	cfg := config.HealthMonitorConfig{TickSeconds: 300, FailureThreshold: 3, ResponseTimeThresholdSeconds: 0}
	m := NewMonitor(cfg, nil, zerolog.Nop())
	prober := &fakeProber{name: "slow", wait: 1 * time.Second}

	m.checkOne(context.Background(), "slow", prober)
	status := m.Status("slow")
	assert.Equal(t, domain.HealthDegraded, status.Status)
}

func TestReportIncludesEveryTrackedProvider(t *testing.T) {
	m := NewMonitor(testConfig(), nil, zerolog.Nop())
	m.checkOne(context.Background(), "tushare", &fakeProber{name: "tushare"})
	report := m.Report()
	assert.Contains(t, report, "tushare")
}

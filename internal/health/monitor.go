// Package health implements the data-source health monitor (C2): a
// background probe loop that tracks per-provider success/failure history
// and exposes a live status any other component can consult before
// routing a request to that provider.
package health

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sermady/stockdata-core/internal/config"
	"github.com/sermady/stockdata-core/internal/domain"
	"github.com/sermady/stockdata-core/internal/providers"
)

// Prober is satisfied by any providers.Adapter; narrowed here so Monitor
// does not depend on the full adapter capability surface.
type Prober interface {
	Name() string
	HealthProbe(ctx context.Context) (time.Duration, error)
}

// Monitor polls every registered provider on a fixed interval and derives
// a healthy/degraded/unavailable/unknown status per spec.md §4.2, mirroring
// the consecutive-failure state machine of the Python health monitor this
// was distilled from.
type Monitor struct {
	mu       sync.RWMutex
	metrics  map[string]*domain.HealthMetrics
	probers  map[string]Prober
	log      zerolog.Logger

	tickInterval       time.Duration
	failureThreshold   int
	responseTimeBudget time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewMonitor builds a Monitor over the given provider probers, configured
// from cfg.HealthMonitor (defaults: 300s interval, 3 consecutive failures,
// 30s response-time budget, per original_source/.../health_monitor.py).
func NewMonitor(cfg config.HealthMonitorConfig, probers map[string]Prober, log zerolog.Logger) *Monitor {
	return &Monitor{
		metrics:            make(map[string]*domain.HealthMetrics, len(probers)),
		probers:            probers,
		log:                log.With().Str("component", "health_monitor").Logger(),
		tickInterval:       time.Duration(cfg.TickSeconds) * time.Second,
		failureThreshold:   cfg.FailureThreshold,
		responseTimeBudget: time.Duration(cfg.ResponseTimeThresholdSeconds) * time.Second,
		stopCh:             make(chan struct{}),
		doneCh:             make(chan struct{}),
	}
}

// NewMonitorFromAdapters adapts a providers.Adapter map to the narrower
// Prober interface Monitor depends on.
func NewMonitorFromAdapters(cfg config.HealthMonitorConfig, adapters map[string]providers.Adapter, log zerolog.Logger) *Monitor {
	probers := make(map[string]Prober, len(adapters))
	for name, a := range adapters {
		probers[name] = a
	}
	return NewMonitor(cfg, probers, log)
}

// Start launches the background probe loop. It returns immediately; call
// Stop to terminate it.
func (m *Monitor) Start(ctx context.Context) {
	go m.loop(ctx)
}

// Stop terminates the background probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	close(m.stopCh)
	<-m.doneCh
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()

	m.checkAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.checkAll(ctx)
		}
	}
}

func (m *Monitor) checkAll(ctx context.Context) {
	for name, prober := range m.probers {
		m.checkOne(ctx, name, prober)
	}
	m.log.Debug().Msg(m.Report())
}

func (m *Monitor) checkOne(ctx context.Context, name string, prober Prober) {
	probeCtx, cancel := context.WithTimeout(ctx, m.responseTimeBudget)
	defer cancel()

	elapsed, err := prober.HealthProbe(probeCtx)
	if err == nil && elapsed > m.responseTimeBudget {
		err = fmt.Errorf("response time %s exceeded threshold %s", elapsed, m.responseTimeBudget)
	}
	m.record(name, err, elapsed)
}

// record applies one probe result to the provider's metrics, following
// the same transition rules as the source health monitor: success resets
// consecutive failures and marks healthy (or degraded if failures have
// ever been seen); failure increments consecutive failures and marks
// unavailable once the threshold is reached.
func (m *Monitor) record(name string, probeErr error, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics, ok := m.metrics[name]
	if !ok {
		metrics = &domain.HealthMetrics{Status: domain.HealthUnknown}
		m.metrics[name] = metrics
	}

	now := time.Now().UTC()
	metrics.LastCheck = &now
	metrics.LastResponseTime = elapsed.Seconds()

	if probeErr == nil {
		metrics.SuccessCount++
		metrics.LastSuccess = &now
		metrics.ConsecutiveFailures = 0

		if metrics.AvgResponseTime == 0 {
			metrics.AvgResponseTime = elapsed.Seconds()
		} else {
			metrics.AvgResponseTime = (metrics.AvgResponseTime + elapsed.Seconds()) / 2
		}

		if metrics.FailureCount == 0 {
			metrics.Status = domain.HealthHealthy
		} else {
			metrics.Status = domain.HealthDegraded
		}
		return
	}

	metrics.FailureCount++
	metrics.LastFailure = &now
	metrics.ConsecutiveFailures++
	metrics.RecordError(probeErr.Error())

	if metrics.ConsecutiveFailures >= m.failureThreshold {
		metrics.Status = domain.HealthUnavailable
	} else {
		metrics.Status = domain.HealthDegraded
	}
}

// Status returns the current metrics snapshot for one provider. A
// provider never probed reports domain.HealthUnknown.
func (m *Monitor) Status(name string) domain.HealthMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if metrics, ok := m.metrics[name]; ok {
		return *metrics
	}
	return domain.HealthMetrics{Status: domain.HealthUnknown}
}

// AllStatuses returns a snapshot of every tracked provider's metrics,
// keyed by provider name.
func (m *Monitor) AllStatuses() map[string]domain.HealthMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]domain.HealthMetrics, len(m.metrics))
	for name, metrics := range m.metrics {
		out[name] = *metrics
	}
	return out
}

// IsHealthy reports whether a provider's latest status is healthy.
func (m *Monitor) IsHealthy(name string) bool {
	return m.Status(name).Status == domain.HealthHealthy
}

// UnhealthySources returns the names of every provider whose latest
// status is not healthy, sorted for deterministic output.
func (m *Monitor) UnhealthySources() []string {
	statuses := m.AllStatuses()
	out := make([]string, 0, len(statuses))
	for name, metrics := range statuses {
		if metrics.Status != domain.HealthHealthy {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Report renders a one-shot human-readable summary of every tracked
// provider, the same periodic report original_source's health monitor
// logs after each check_all_sources pass.
func (m *Monitor) Report() string {
	statuses := m.AllStatuses()
	names := make([]string, 0, len(statuses))
	for name := range statuses {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("data source health report:\n")
	for _, name := range names {
		metrics := statuses[name]
		total := metrics.SuccessCount + metrics.FailureCount
		successRate := 0.0
		if total > 0 {
			successRate = float64(metrics.SuccessCount) / float64(total) * 100
		}
		b.WriteString(fmt.Sprintf(
			"  %s: status=%s success_rate=%.1f%% (%d/%d) avg_response=%.2fs consecutive_failures=%d\n",
			name, metrics.Status, successRate, metrics.SuccessCount, total,
			metrics.AvgResponseTime, metrics.ConsecutiveFailures,
		))
	}
	return b.String()
}

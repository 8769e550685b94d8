// Package observability implements C11: per-operation timing stats,
// a slow-query log, LLM token-usage counters, Prometheus exposition,
// and periodic system resource gauges.
package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SlowQueryThreshold is the duration above which an operation is logged
// into the slow-query ring buffer.
const SlowQueryThreshold = time.Second

// slowQueryRingSize bounds how many recent slow operations are retained.
const slowQueryRingSize = 100

// opStat accumulates min/max/avg for one named operation.
type opStat struct {
	count int64
	sum   time.Duration
	min   time.Duration
	max   time.Duration
}

// SlowEntry is one ring-buffered slow-operation record.
type SlowEntry struct {
	Operation string
	Duration  time.Duration
	At        time.Time
}

// OperationSnapshot is one operation's min/max/avg/count at the moment
// Snapshot was called.
type OperationSnapshot struct {
	Operation string
	Count     int64
	Min       time.Duration
	Max       time.Duration
	Avg       time.Duration
}

// Service is the observability facade: components call RecordOperation
// around any unit of work worth tracking, and RecordLLMTokens after any
// LLM call.
type Service struct {
	mu   sync.Mutex
	ops  map[string]*opStat
	slow []SlowEntry

	promptTokens     int64
	completionTokens int64

	registry   *prometheus.Registry
	opDuration *prometheus.HistogramVec
	slowTotal  prometheus.Counter
	llmTokens  *prometheus.CounterVec
	cpuGauge   prometheus.Gauge
	memGauge   prometheus.Gauge

	log zerolog.Logger
}

// New builds a Service with its own Prometheus registry (not the global
// default one, so tests and multiple instances don't collide).
func New(log zerolog.Logger) *Service {
	reg := prometheus.NewRegistry()

	opDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stockdata_operation_duration_seconds",
		Help:    "Duration of tracked operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	slowTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stockdata_slow_operations_total",
		Help: "Count of operations that exceeded the slow-operation threshold.",
	})

	llmTokens := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockdata_llm_tokens_total",
		Help: "Count of LLM tokens consumed, by kind (prompt/completion).",
	}, []string{"kind"})

	cpuGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stockdata_process_cpu_percent",
		Help: "Most recently sampled system-wide CPU usage percentage.",
	})
	memGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stockdata_process_mem_percent",
		Help: "Most recently sampled system memory usage percentage.",
	})

	reg.MustRegister(opDuration, slowTotal, llmTokens, cpuGauge, memGauge)

	return &Service{
		ops:        make(map[string]*opStat),
		registry:   reg,
		opDuration: opDuration,
		slowTotal:  slowTotal,
		llmTokens:  llmTokens,
		cpuGauge:   cpuGauge,
		memGauge:   memGauge,
		log:        log.With().Str("component", "observability").Logger(),
	}
}

// RecordOperation accumulates one operation's duration into its
// min/max/avg stats, the Prometheus histogram, and (if over threshold)
// the slow-query ring buffer.
func (s *Service) RecordOperation(operation string, d time.Duration) {
	s.opDuration.WithLabelValues(operation).Observe(d.Seconds())

	s.mu.Lock()
	st, ok := s.ops[operation]
	if !ok {
		st = &opStat{min: d, max: d}
		s.ops[operation] = st
	}
	st.count++
	st.sum += d
	if d < st.min {
		st.min = d
	}
	if d > st.max {
		st.max = d
	}

	if d > SlowQueryThreshold {
		s.slow = append(s.slow, SlowEntry{Operation: operation, Duration: d, At: time.Now()})
		if len(s.slow) > slowQueryRingSize {
			s.slow = s.slow[len(s.slow)-slowQueryRingSize:]
		}
	}
	s.mu.Unlock()

	if d > SlowQueryThreshold {
		s.slowTotal.Inc()
		s.log.Warn().Str("operation", operation).Dur("duration", d).Msg("slow operation")
	}
}

// Track is a convenience wrapper: defer Track(name)() at the top of any
// function whose wall time should feed RecordOperation.
func (s *Service) Track(operation string) func() {
	start := time.Now()
	return func() { s.RecordOperation(operation, time.Since(start)) }
}

// RecordLLMTokens adds to the running prompt/completion token counters.
func (s *Service) RecordLLMTokens(promptTokens, completionTokens int) {
	s.mu.Lock()
	s.promptTokens += int64(promptTokens)
	s.completionTokens += int64(completionTokens)
	s.mu.Unlock()
	s.llmTokens.WithLabelValues("prompt").Add(float64(promptTokens))
	s.llmTokens.WithLabelValues("completion").Add(float64(completionTokens))
}

// TokenUsage returns the cumulative prompt/completion token counts.
func (s *Service) TokenUsage() (prompt, completion int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promptTokens, s.completionTokens
}

// SlowQueries returns a copy of the current slow-operation ring buffer,
// most recent last.
func (s *Service) SlowQueries() []SlowEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SlowEntry, len(s.slow))
	copy(out, s.slow)
	return out
}

// Snapshot returns the current min/max/avg/count for every operation
// observed so far.
func (s *Service) Snapshot() []OperationSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OperationSnapshot, 0, len(s.ops))
	for name, st := range s.ops {
		avg := time.Duration(0)
		if st.count > 0 {
			avg = st.sum / time.Duration(st.count)
		}
		out = append(out, OperationSnapshot{Operation: name, Count: st.count, Min: st.min, Max: st.max, Avg: avg})
	}
	return out
}

// Handler exposes the Prometheus exposition endpoint for this Service's
// registry.
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// RunSystemGaugeLoop samples CPU/memory usage via gopsutil every
// interval until ctx is cancelled, the same sampling approach the
// teacher's system handlers used for its on-demand stats endpoint.
func (s *Service) RunSystemGaugeLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleSystemGauges()
		}
	}
}

func (s *Service) sampleSystemGauges() {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to sample cpu percent")
	} else if len(cpuPercent) > 0 {
		s.cpuGauge.Set(cpuPercent[0])
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to sample memory stats")
		return
	}
	s.memGauge.Set(memStat.UsedPercent)
}

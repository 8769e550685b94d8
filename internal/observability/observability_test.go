package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOperation_AccumulatesMinMaxAvg(t *testing.T) {
	s := New(zerolog.Nop())
	s.RecordOperation("sync.basic_info", 10*time.Millisecond)
	s.RecordOperation("sync.basic_info", 30*time.Millisecond)
	s.RecordOperation("sync.basic_info", 20*time.Millisecond)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, int64(3), snap[0].Count)
	assert.Equal(t, 10*time.Millisecond, snap[0].Min)
	assert.Equal(t, 30*time.Millisecond, snap[0].Max)
	assert.Equal(t, 20*time.Millisecond, snap[0].Avg)
}

func TestRecordOperation_SlowOperationsGoToRingBuffer(t *testing.T) {
	s := New(zerolog.Nop())
	s.RecordOperation("analysis.run", 1500*time.Millisecond)
	s.RecordOperation("analysis.run", 10*time.Millisecond)

	slow := s.SlowQueries()
	require.Len(t, slow, 1)
	assert.Equal(t, "analysis.run", slow[0].Operation)
}

func TestRecordOperation_RingBufferCapsAt100(t *testing.T) {
	s := New(zerolog.Nop())
	for i := 0; i < 150; i++ {
		s.RecordOperation("op", 2*time.Second)
	}
	assert.Len(t, s.SlowQueries(), slowQueryRingSize)
}

func TestTrack_RecordsElapsedTime(t *testing.T) {
	s := New(zerolog.Nop())
	func() {
		defer s.Track("quick")()
		time.Sleep(5 * time.Millisecond)
	}()

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, int64(1), snap[0].Count)
}

func TestRecordLLMTokens_Accumulates(t *testing.T) {
	s := New(zerolog.Nop())
	s.RecordLLMTokens(100, 50)
	s.RecordLLMTokens(20, 10)

	prompt, completion := s.TokenUsage()
	assert.Equal(t, int64(120), prompt)
	assert.Equal(t, int64(60), completion)
}

func TestHandler_ExposesPrometheusFormat(t *testing.T) {
	s := New(zerolog.Nop())
	s.RecordOperation("op", 10*time.Millisecond)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "stockdata_operation_duration_seconds")
}

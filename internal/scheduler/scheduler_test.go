package scheduler

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHours struct{ open bool }

func (f fakeHours) IsOpen(market string) bool { return f.open }

func TestMarketHourGatedJob_SkipsWhenClosedUnlessForced(t *testing.T) {
	var ran int
	job := NewMarketHourGatedJob("quote_sync", "cn-equity", fakeHours{open: false}, func(ctx context.Context, force bool) error {
		ran++
		return nil
	})

	require.NoError(t, job.Run(context.Background(), false))
	assert.Equal(t, 0, ran)

	require.NoError(t, job.Run(context.Background(), true))
	assert.Equal(t, 1, ran)
}

func TestMarketHourGatedJob_RunsWhenOpen(t *testing.T) {
	var ran int
	job := NewMarketHourGatedJob("quote_sync", "cn-equity", fakeHours{open: true}, func(ctx context.Context, force bool) error {
		ran++
		return nil
	})
	require.NoError(t, job.Run(context.Background(), false))
	assert.Equal(t, 1, ran)
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())
	var ran bool
	require.NoError(t, s.Register("@every 1h", NewJob("basic_info_sync", func(ctx context.Context, force bool) error {
		ran = true
		return nil
	})))

	require.NoError(t, s.RunNow(context.Background(), "basic_info_sync", true))
	assert.True(t, ran)
}

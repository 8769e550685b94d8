package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sermady/stockdata-core/internal/database"
	"github.com/sermady/stockdata-core/internal/domain"
	"github.com/sermady/stockdata-core/internal/store"
)

type fakeCollaborator struct {
	name string
	out  map[string]interface{}
}

func (f *fakeCollaborator) Name() string { return f.name }
func (f *fakeCollaborator) Run(ctx context.Context, symbol string, accumulated map[string]interface{}) (map[string]interface{}, error) {
	return f.out, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := database.New(database.Config{Path: ":memory:", Profile: database.ProfileStandard, Name: "stockdata"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	st := store.New(db, zerolog.Nop())
	require.NoError(t, st.Migrate())
	return st
}

func TestAnalyze_AssemblesStoreContextAndRunsPhases(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.UpsertBasicInfo(ctx, domain.StockBasicInfo{
		Code: "600000", Source: "tushare", Name: "Pudong Bank", UpdatedAt: time.Now().UTC(),
	}))

	svc := New(st, &fakeCollaborator{name: "fundamentals", out: map[string]interface{}{"rating": "buy"}})

	var progressValues []int
	task := &domain.AnalysisTask{TaskID: "t1", Symbol: "600000"}
	result, err := svc.Analyze(ctx, task, func(p int) { progressValues = append(progressValues, p) })
	require.NoError(t, err)

	assert.Equal(t, "600000", result["symbol"])
	assert.NotNil(t, result["basic_info"])
	assert.Equal(t, "buy", result["rating"])
	require.NotEmpty(t, progressValues)
	assert.Equal(t, 99, progressValues[len(progressValues)-1])
}

func TestAnalyze_StopsOnCancelBetweenPhases(t *testing.T) {
	st := newTestStore(t)
	svc := New(st, &fakeCollaborator{name: "slow", out: map[string]interface{}{}})

	task := &domain.AnalysisTask{TaskID: "t1", Symbol: "600000"}
	task.RequestCancel()

	_, err := svc.Analyze(context.Background(), task, func(int) {})
	require.Error(t, err)
}

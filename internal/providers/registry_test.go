package providers

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sermady/stockdata-core/internal/config"
	"github.com/sermady/stockdata-core/internal/domain"
)

func TestBuildSkipsDisabledProviders(t *testing.T) {
	cfg := &config.Config{
		Providers: []domain.Provider{
			{Name: "tushare", Enabled: true},
			{Name: "akshare", Enabled: false},
		},
	}

	adapters, err := Build(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Contains(t, adapters, "tushare")
	assert.NotContains(t, adapters, "akshare")

	CloseAll(adapters)
}

func TestBuildReturnsErrorWhenNoAdaptersConstructed(t *testing.T) {
	cfg := &config.Config{
		Providers: []domain.Provider{
			{Name: "unknown-vendor", Enabled: true},
		},
	}

	_, err := Build(cfg, zerolog.Nop())
	require.Error(t, err)
}

func TestBuildConstructsAllFourKnownVendors(t *testing.T) {
	cfg := &config.Config{
		Providers: []domain.Provider{
			{Name: "tushare", Enabled: true},
			{Name: "akshare", Enabled: true},
			{Name: "baostock", Enabled: true},
			{Name: "yfinance", Enabled: true},
		},
	}

	adapters, err := Build(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, adapters, 4)
	CloseAll(adapters)
}

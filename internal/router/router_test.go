package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sermady/stockdata-core/internal/domain"
)

type fakeHealth struct {
	statuses map[string]domain.HealthStatus
}

func (f *fakeHealth) IsHealthy(name string) bool {
	return f.statuses[name] == domain.HealthHealthy
}

func (f *fakeHealth) Status(name string) domain.HealthMetrics {
	status, ok := f.statuses[name]
	if !ok {
		status = domain.HealthUnknown
	}
	return domain.HealthMetrics{Status: status}
}

func providerSet() []domain.Provider {
	return []domain.Provider{
		{Name: "tushare", Type: domain.ProviderTypeCNEquity, Enabled: true, Priority: 1},
		{Name: "akshare", Type: domain.ProviderTypeCNEquity, Enabled: true, Priority: 2},
		{Name: "baostock", Type: domain.ProviderTypeCNEquity, Enabled: true, Priority: 3},
		{Name: "yfinance", Type: domain.ProviderTypeUSEquity, Enabled: true, Priority: 1},
		{Name: "disabled-src", Type: domain.ProviderTypeCNEquity, Enabled: false, Priority: 1},
	}
}

func TestResolveOrdersByPriorityWhenAllHealthy(t *testing.T) {
	r := New(providerSet(), &fakeHealth{statuses: map[string]domain.HealthStatus{}})
	order := r.Resolve(domain.ProviderTypeCNEquity)
	assert.Equal(t, []string{"tushare", "akshare", "baostock"}, order)
}

func TestResolveExcludesDisabledProviders(t *testing.T) {
	r := New(providerSet(), &fakeHealth{statuses: map[string]domain.HealthStatus{}})
	order := r.Resolve(domain.ProviderTypeCNEquity)
	assert.NotContains(t, order, "disabled-src")
}

func TestResolveDeprioritizesUnavailableInsteadOfDropping(t *testing.T) {
	health := &fakeHealth{statuses: map[string]domain.HealthStatus{
		"tushare": domain.HealthUnavailable,
	}}
	r := New(providerSet(), health)
	order := r.Resolve(domain.ProviderTypeCNEquity)
	assert.Equal(t, []string{"akshare", "baostock", "tushare"}, order)
}

func TestResolveStrictOmitsUnavailable(t *testing.T) {
	health := &fakeHealth{statuses: map[string]domain.HealthStatus{
		"tushare": domain.HealthUnavailable,
	}}
	r := New(providerSet(), health)
	order := r.ResolveStrict(domain.ProviderTypeCNEquity)
	assert.Equal(t, []string{"akshare", "baostock"}, order)
}

func TestResolveOrdersDegradedAfterHealthy(t *testing.T) {
	health := &fakeHealth{statuses: map[string]domain.HealthStatus{
		"tushare": domain.HealthDegraded,
	}}
	r := New(providerSet(), health)
	order := r.Resolve(domain.ProviderTypeCNEquity)
	assert.Equal(t, []string{"akshare", "baostock", "tushare"}, order)
}

func TestPrimaryReturnsFirstCandidate(t *testing.T) {
	r := New(providerSet(), &fakeHealth{statuses: map[string]domain.HealthStatus{}})
	assert.Equal(t, "tushare", r.Primary(domain.ProviderTypeCNEquity))
	assert.Equal(t, "", r.Primary(domain.ProviderTypeNews))
}

// Package router implements the source router (C3): given a provider
// type, it returns an ordered list of provider names reflecting
// configured priority and live health, so callers can try each in turn
// and stop at the first success.
package router

import (
	"sort"

	"github.com/sermady/stockdata-core/internal/domain"
)

// HealthView is the narrow slice of health.Monitor the router depends on.
type HealthView interface {
	IsHealthy(name string) bool
	Status(name string) domain.HealthMetrics
}

// Router resolves provider order per domain.ProviderType.
type Router struct {
	byType map[domain.ProviderType][]domain.Provider
	health HealthView
}

// New builds a Router from the full provider list, grouping and
// pre-sorting by declared priority (ascending: 1 is tried first).
func New(allProviders []domain.Provider, health HealthView) *Router {
	byType := make(map[domain.ProviderType][]domain.Provider)
	for _, p := range allProviders {
		if !p.Enabled {
			continue
		}
		byType[p.Type] = append(byType[p.Type], p)
	}
	for _, list := range byType {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Priority < list[j].Priority })
	}
	return &Router{byType: byType, health: health}
}

// Resolve returns provider names for ptype in the order callers should try
// them: healthy and unknown providers first (in priority order), then
// degraded providers, then unavailable providers last — never omitted,
// since an unavailable source may still be the only one reachable.
func (r *Router) Resolve(ptype domain.ProviderType) []string {
	return r.resolve(ptype, false)
}

// ResolveStrict behaves like Resolve but omits any provider whose current
// status is domain.HealthUnavailable entirely, for callers that would
// rather fail fast than wait on a known-down source.
func (r *Router) ResolveStrict(ptype domain.ProviderType) []string {
	return r.resolve(ptype, true)
}

func (r *Router) resolve(ptype domain.ProviderType, strict bool) []string {
	candidates := r.byType[ptype]
	if len(candidates) == 0 {
		return nil
	}

	var healthyOrUnknown, degraded, unavailable []string
	for _, p := range candidates {
		status := domain.HealthUnknown
		if r.health != nil {
			status = r.health.Status(p.Name).Status
		}
		switch status {
		case domain.HealthUnavailable:
			if !strict {
				unavailable = append(unavailable, p.Name)
			}
		case domain.HealthDegraded:
			degraded = append(degraded, p.Name)
		default:
			healthyOrUnknown = append(healthyOrUnknown, p.Name)
		}
	}

	out := make([]string, 0, len(healthyOrUnknown)+len(degraded)+len(unavailable))
	out = append(out, healthyOrUnknown...)
	out = append(out, degraded...)
	out = append(out, unavailable...)
	return out
}

// Primary returns the first candidate Resolve would try, or "" if none
// are configured for ptype.
func (r *Router) Primary(ptype domain.ProviderType) string {
	order := r.Resolve(ptype)
	if len(order) == 0 {
		return ""
	}
	return order[0]
}

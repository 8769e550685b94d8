package server

import (
	"net/http"

	"github.com/sermady/stockdata-core/internal/config"
)

// handleConfigSummary implements GET /config/summary: an admin-audience
// view of the running configuration with every credential and secret
// field stripped, per spec.md §7's audience-scoped error/detail rule.
func (s *Server) handleConfigSummary(w http.ResponseWriter, r *http.Request) {
	providers := make([]map[string]interface{}, 0, len(s.cfg.Providers))
	for _, p := range s.cfg.Providers {
		providers = append(providers, map[string]interface{}{
			"name":     p.Name,
			"type":     p.Type,
			"enabled":  p.Enabled,
			"priority": p.Priority,
		})
	}

	jobs := make([]map[string]interface{}, 0, len(s.cfg.SyncJobs))
	for _, j := range s.cfg.SyncJobs {
		jobs = append(jobs, map[string]interface{}{
			"name":       j.Name,
			"data_class": j.DataClass,
			"schedule":   j.Schedule,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data_dir":       s.cfg.DataDir,
		"log_level":      s.cfg.LogLevel,
		"port":           s.cfg.Port,
		"dev_mode":       s.cfg.DevMode,
		"providers":      providers,
		"sync_jobs":      jobs,
		"worker_pool":    s.cfg.WorkerPool,
		"quotas":         s.cfg.Quotas,
		"health_monitor": s.cfg.HealthMonitor,
		"consistency":    s.cfg.Consistency,
		"backup_enabled": s.cfg.S3Bucket != "",
	})
}

// handleConfigValidate implements GET /config/validate, running the same
// Validate pass startup runs and reporting every offense found rather
// than stopping at the first (spec.md's config-validation invariant).
func (s *Server) handleConfigValidate(w http.ResponseWriter, r *http.Request) {
	err := s.cfg.Validate()
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"valid": true})
		return
	}

	var offenses []config.Offense
	if verr, ok := err.(*config.ValidationError); ok {
		offenses = verr.Offenses
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":    false,
		"offenses": offenses,
	})
}

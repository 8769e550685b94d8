package config

import (
	"fmt"
	"strings"
)

// Offense is one field that failed startup validation.
type Offense struct {
	Field  string
	Reason string
}

// ValidationError aggregates every Offense found during Validate, so
// main.go can print a complete, human-readable list instead of failing on
// the first problem (see original_source/app/core/startup_validator.py).
type ValidationError struct {
	Offenses []Offense
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("configuration invalid (%d offense(s)):\n", len(e.Offenses)))
	for _, o := range e.Offenses {
		b.WriteString(fmt.Sprintf("  - %s: %s\n", o.Field, o.Reason))
	}
	return b.String()
}

// Validate checks every required field and known-reference constraint,
// collecting all offenders rather than returning on the first. A non-nil
// error here is fatal at startup (spec.md §6/§7: config-invalid).
func (c *Config) Validate() error {
	var offenses []Offense

	if c.DataDir == "" {
		offenses = append(offenses, Offense{"data_dir", "must not be empty"})
	}
	if c.Port <= 0 || c.Port > 65535 {
		offenses = append(offenses, Offense{"port", "must be between 1 and 65535"})
	}
	if c.WorkerPool.Workers <= 0 {
		offenses = append(offenses, Offense{"worker_pool.workers", "must be greater than zero"})
	}
	if c.WorkerPool.DefaultMaxRetries < 0 {
		offenses = append(offenses, Offense{"worker_pool.default_max_retries", "must not be negative"})
	}
	if c.Quotas.DailyQuota <= 0 {
		offenses = append(offenses, Offense{"quotas.daily_quota", "must be greater than zero"})
	}
	if c.Quotas.ConcurrentLimit <= 0 {
		offenses = append(offenses, Offense{"quotas.concurrent_limit", "must be greater than zero"})
	}
	if c.HealthMonitor.TickSeconds <= 0 {
		offenses = append(offenses, Offense{"health_monitor.tick_seconds", "must be greater than zero"})
	}
	if c.HealthMonitor.FailureThreshold <= 0 {
		offenses = append(offenses, Offense{"health_monitor.failure_threshold", "must be greater than zero"})
	}

	if len(c.Providers) == 0 {
		offenses = append(offenses, Offense{"providers", "at least one provider must be configured"})
	}
	seenNames := map[string]bool{}
	for _, p := range c.Providers {
		if p.Name == "" {
			offenses = append(offenses, Offense{"providers[].name", "must not be empty"})
			continue
		}
		if seenNames[p.Name] {
			offenses = append(offenses, Offense{"providers[].name", fmt.Sprintf("duplicate provider name %q", p.Name)})
		}
		seenNames[p.Name] = true
		if p.Enabled && p.CredentialsRef != "" {
			if _, ok := c.credentials[p.CredentialsRef]; !ok {
				offenses = append(offenses, Offense{
					fmt.Sprintf("providers[%s].credentials_ref", p.Name),
					fmt.Sprintf("credentials_ref %q has no resolved value (expected env PROVIDER_CRED_%s)", p.CredentialsRef, strings.ToUpper(p.CredentialsRef)),
				})
			}
		}
	}

	for _, job := range c.SyncJobs {
		if job.Name == "" {
			offenses = append(offenses, Offense{"sync_jobs[].name", "must not be empty"})
		}
		if job.ChunkSize <= 0 {
			offenses = append(offenses, Offense{fmt.Sprintf("sync_jobs[%s].chunk_size", job.Name), "must be greater than zero"})
		}
		if job.Timeout <= 0 {
			offenses = append(offenses, Offense{fmt.Sprintf("sync_jobs[%s].timeout", job.Name), "must be greater than zero"})
		}
	}

	for prefix, policy := range c.CachePolicies {
		if policy.Tier != "L1" && policy.Tier != "L2" {
			offenses = append(offenses, Offense{fmt.Sprintf("cache_policies[%s].tier", prefix), "must be L1 or L2"})
		}
		if policy.TTLSeconds <= 0 {
			offenses = append(offenses, Offense{fmt.Sprintf("cache_policies[%s].ttl_seconds", prefix), "must be greater than zero"})
		}
	}

	if len(offenses) > 0 {
		return &ValidationError{Offenses: offenses}
	}
	return nil
}

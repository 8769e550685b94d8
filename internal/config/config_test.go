package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.WorkerPool.Workers != 4 {
		t.Errorf("expected default worker pool size 4, got %d", cfg.WorkerPool.Workers)
	}
	if len(cfg.Providers) == 0 {
		t.Error("expected default providers to be populated")
	}
	if len(cfg.SyncJobs) == 0 {
		t.Error("expected default sync jobs to be populated")
	}
}

func TestValidateCollectsAllOffenses(t *testing.T) {
	cfg := &Config{
		DataDir:       "",
		Port:          0,
		WorkerPool:    WorkerPoolConfig{Workers: 0},
		Quotas:        QuotaConfig{DailyQuota: 0, ConcurrentLimit: 0},
		HealthMonitor: HealthMonitorConfig{TickSeconds: 0, FailureThreshold: 0},
		CachePolicies: map[string]CachePolicy{"bad": {Tier: "L3", TTLSeconds: -1}},
		credentials:   map[string]string{},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Offenses) < 7 {
		t.Errorf("expected validation to collect multiple offenses, got %d: %v", len(verr.Offenses), verr.Offenses)
	}
}

func TestValidatePassesForLoadedDefaults(t *testing.T) {
	dir := t.TempDir()
	// The default tushare provider names credentials_ref "tushare", which
	// Validate requires to resolve from the environment.
	t.Setenv("PROVIDER_CRED_TUSHARE", "test-token")
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to validate cleanly, got: %v", err)
	}
}

func TestLoadCredentialsFromEnv(t *testing.T) {
	os.Setenv("PROVIDER_CRED_TUSHARE", "secret-token")
	defer os.Unsetenv("PROVIDER_CRED_TUSHARE")

	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	v, ok := cfg.Credential("tushare")
	if !ok || v != "secret-token" {
		t.Errorf("expected tushare credential to resolve to secret-token, got %q ok=%v", v, ok)
	}
}

func TestDataDirIsAbsolute(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "sub"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !filepath.IsAbs(cfg.DataDir) {
		t.Errorf("expected absolute data dir, got %q", cfg.DataDir)
	}
}

// Package config provides configuration management for the ingestion and
// analysis service.
//
// Configuration is loaded from environment variables (with an optional
// .env file via godotenv) into a typed structure. Unlike a loosely
// validated config, Validate() here is load-bearing: it is the mechanism
// by which main.go refuses to start with missing provider credentials or
// other invalid settings, producing the full list of offenders rather
// than stopping at the first one.
//
// Configuration Loading Order:
// 1. Load from .env file (if exists)
// 2. Load from environment variables
// 3. Parse the JSON-encoded structured sections (providers, sync jobs, ...)
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sermady/stockdata-core/internal/domain"
)

// SyncJobConfig describes one scheduled sync trigger for a data class.
type SyncJobConfig struct {
	Name      string           `json:"name"`
	DataClass domain.DataClass `json:"data_class"`
	Schedule  string           `json:"schedule"` // cron expression
	ChunkSize int              `json:"chunk_size"`
	Timeout   int              `json:"timeout"`
}

// WorkerPoolConfig sizes the analysis task worker pool (C8).
type WorkerPoolConfig struct {
	Workers           int `json:"workers"`
	DefaultMaxRetries int `json:"default_max_retries"`
}

// CachePolicy names the tier, TTL, and (for L1) max resident entry count
// for one cache key prefix (C10).
type CachePolicy struct {
	Tier       string `json:"tier"` // "L1" or "L2"
	TTLSeconds int    `json:"ttl_seconds"`
	MaxEntries int    `json:"max_entries"` // L1 only; ignored for L2
}

// QuotaConfig is the per-user default daily/concurrency limit (C8).
type QuotaConfig struct {
	DailyQuota     int `json:"daily_quota"`
	ConcurrentLimit int `json:"concurrent_limit"`
}

// HealthMonitorConfig tunes C2's probe loop.
type HealthMonitorConfig struct {
	TickSeconds                 int `json:"tick_seconds"`
	FailureThreshold             int `json:"failure_threshold"`
	ResponseTimeThresholdSeconds int `json:"response_time_threshold_seconds"`
}

// ConsistencyPolicy is the per-field tolerance/weight table C4 uses to
// compute its confidence score (Open Question 2: made configurable).
type ConsistencyPolicy struct {
	Tolerances map[string]float64 `json:"tolerances"`
	Weights    map[string]float64 `json:"weights"`
}

// DefaultConsistencyPolicy mirrors the table in spec.md §4.4.
func DefaultConsistencyPolicy() ConsistencyPolicy {
	return ConsistencyPolicy{
		Tolerances: map[string]float64{
			"price": 0.01, "total_mv": 0.02, "pe": 0.05, "pb": 0.05,
			"volume": 0.10, "turnover_rate": 0.05,
		},
		Weights: map[string]float64{
			"pe": 0.25, "pb": 0.25, "total_mv": 0.20, "price": 0.15,
			"volume": 0.10, "turnover_rate": 0.05,
		},
	}
}

// DefaultCachePolicies mirrors the illustrative table in spec.md §4.10.
func DefaultCachePolicies() map[string]CachePolicy {
	return map[string]CachePolicy{
		"stock_info":      {Tier: "L1", TTLSeconds: 3600, MaxEntries: 100},
		"stock_quotes":    {Tier: "L1", TTLSeconds: 60, MaxEntries: 100},
		"analysis_result": {Tier: "L2", TTLSeconds: 7200},
		"market_data":     {Tier: "L1", TTLSeconds: 300, MaxEntries: 100},
	}
}

// Config holds the fully resolved application configuration.
type Config struct {
	DataDir    string
	LogLevel   string
	Port       int
	DevMode    bool

	Providers     []domain.Provider
	SyncJobs      []SyncJobConfig
	WorkerPool    WorkerPoolConfig
	CachePolicies map[string]CachePolicy
	Quotas        QuotaConfig
	HealthMonitor HealthMonitorConfig
	Consistency   ConsistencyPolicy

	S3Bucket    string
	S3Region    string
	S3AccessKey string
	S3SecretKey string

	credentials map[string]string // resolved by CredentialsRef
}

// Credential resolves a provider's opaque CredentialsRef to its secret
// value. The core never inspects provider credential shape beyond this.
func (c *Config) Credential(ref string) (string, bool) {
	v, ok := c.credentials[ref]
	return v, ok
}

// Load reads configuration from the environment (and an optional .env
// file). It does not validate; call Validate() explicitly so the caller
// controls whether a startup failure is fatal.
func Load(dataDirOverride ...string) (*Config, error) {
	_ = godotenv.Load()

	dataDir := ""
	if len(dataDirOverride) > 0 && dataDirOverride[0] != "" {
		dataDir = dataDirOverride[0]
	} else {
		dataDir = getEnv("STOCKDATA_DATA_DIR", "")
		if dataDir == "" {
			dataDir = "./data"
		}
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:       absDataDir,
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Port:          getEnvAsInt("HTTP_PORT", 8080),
		DevMode:       getEnvAsBool("DEV_MODE", false),
		WorkerPool:    WorkerPoolConfig{Workers: getEnvAsInt("WORKER_POOL_SIZE", 4), DefaultMaxRetries: getEnvAsInt("WORKER_MAX_RETRIES", 3)},
		CachePolicies: DefaultCachePolicies(),
		Quotas:        QuotaConfig{DailyQuota: getEnvAsInt("DEFAULT_DAILY_QUOTA", 50), ConcurrentLimit: getEnvAsInt("DEFAULT_CONCURRENT_LIMIT", 3)},
		HealthMonitor: HealthMonitorConfig{
			TickSeconds:                  getEnvAsInt("HEALTH_TICK_SECONDS", 300),
			FailureThreshold:             getEnvAsInt("HEALTH_FAILURE_THRESHOLD", 3),
			ResponseTimeThresholdSeconds: getEnvAsInt("HEALTH_RESPONSE_TIME_THRESHOLD", 30),
		},
		Consistency: DefaultConsistencyPolicy(),
		S3Bucket:    getEnv("BACKUP_S3_BUCKET", ""),
		S3Region:    getEnv("BACKUP_S3_REGION", "auto"),
		S3AccessKey: getEnv("BACKUP_S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("BACKUP_S3_SECRET_KEY", ""),
		credentials: map[string]string{},
	}

	if err := cfg.loadProviders(); err != nil {
		return nil, err
	}
	if err := cfg.loadSyncJobs(); err != nil {
		return nil, err
	}
	cfg.loadCredentials()

	return cfg, nil
}

// loadProviders parses PROVIDERS_JSON, a JSON array of
// {name,type,enabled,priority,credentials_ref}, per spec.md §6.
func (c *Config) loadProviders() error {
	raw := getEnv("PROVIDERS_JSON", defaultProvidersJSON)
	var providers []domain.Provider
	if err := json.Unmarshal([]byte(raw), &providers); err != nil {
		return fmt.Errorf("failed to parse PROVIDERS_JSON: %w", err)
	}
	c.Providers = providers
	return nil
}

// loadSyncJobs parses SYNC_JOBS_JSON, a JSON array of
// {name,data_class,schedule,chunk_size,timeout}, per spec.md §6.
func (c *Config) loadSyncJobs() error {
	raw := getEnv("SYNC_JOBS_JSON", defaultSyncJobsJSON)
	var jobs []SyncJobConfig
	if err := json.Unmarshal([]byte(raw), &jobs); err != nil {
		return fmt.Errorf("failed to parse SYNC_JOBS_JSON: %w", err)
	}
	c.SyncJobs = jobs
	return nil
}

// loadCredentials resolves each provider's credentials_ref to an
// environment variable named PROVIDER_CRED_<REF>, keeping secrets out of
// PROVIDERS_JSON itself.
func (c *Config) loadCredentials() {
	for _, p := range c.Providers {
		if p.CredentialsRef == "" {
			continue
		}
		envKey := "PROVIDER_CRED_" + strings.ToUpper(p.CredentialsRef)
		if v := os.Getenv(envKey); v != "" {
			c.credentials[p.CredentialsRef] = v
		}
	}
}

const defaultProvidersJSON = `[
	{"name":"tushare","type":"cn-equity","enabled":true,"priority":1,"credentials_ref":"tushare"},
	{"name":"akshare","type":"cn-equity","enabled":true,"priority":2,"credentials_ref":""},
	{"name":"baostock","type":"cn-equity","enabled":true,"priority":3,"credentials_ref":""},
	{"name":"yfinance","type":"us-equity","enabled":true,"priority":1,"credentials_ref":""}
]`

const defaultSyncJobsJSON = `[
	{"name":"basic_info_sync","data_class":"basic_info","schedule":"0 30 16 * * *","chunk_size":200,"timeout":600},
	{"name":"historical_sync","data_class":"historical","schedule":"0 0 17 * * *","chunk_size":100,"timeout":1800},
	{"name":"financial_sync","data_class":"financial","schedule":"0 0 2 * * *","chunk_size":50,"timeout":1800},
	{"name":"quote_sync","data_class":"quotes","schedule":"0 */6 9-15 * * 1-5","chunk_size":500,"timeout":120}
]`

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

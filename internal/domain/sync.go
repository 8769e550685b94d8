package domain

import "time"

// SyncRunStatus is the lifecycle state of one sync job invocation.
type SyncRunStatus string

const (
	SyncIdle              SyncRunStatus = "idle"
	SyncRunning           SyncRunStatus = "running"
	SyncSuccess           SyncRunStatus = "success"
	SyncSuccessWithErrors SyncRunStatus = "success_with_errors"
	SyncFailed            SyncRunStatus = "failed"
)

// DataClass names one of the sync-able data families C6 orchestrates.
type DataClass string

const (
	DataClassBasicInfo  DataClass = "basic_info"
	DataClassHistorical DataClass = "historical"
	DataClassFinancial  DataClass = "financial"
	DataClassQuotes     DataClass = "quotes"
)

// SyncStatus is the persisted run record for one (Job, DataType) pair.
// Exactly one document exists per key; each run overwrites it.
type SyncStatus struct {
	StartedAt       time.Time     `json:"started_at"`
	FinishedAt      *time.Time    `json:"finished_at,omitempty"`
	Job             string        `json:"job"`
	DataType        DataClass     `json:"data_type"`
	Status          SyncRunStatus `json:"status"`
	Message         string        `json:"message,omitempty"`
	DataSourcesUsed []string      `json:"data_sources_used,omitempty"`
	Total           int           `json:"total"`
	Inserted        int           `json:"inserted"`
	Updated         int           `json:"updated"`
	Errors          int           `json:"errors"`
}

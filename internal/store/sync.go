package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/sermady/stockdata-core/internal/apperr"
	"github.com/sermady/stockdata-core/internal/domain"
)

// UpsertSyncStatus writes the run record for (Job, DataType), replacing
// whatever the previous run left behind. Exactly one row exists per key.
func (s *Store) UpsertSyncStatus(ctx context.Context, st domain.SyncStatus) error {
	sources, err := json.Marshal(st.DataSourcesUsed)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "marshal data sources", err)
	}
	var finishedAt sql.NullString
	if st.FinishedAt != nil {
		finishedAt = sql.NullString{String: st.FinishedAt.UTC().Format(timeLayout), Valid: true}
	}

	_, err = s.db.Conn().ExecContext(ctx, `
		INSERT INTO sync_status
			(job, data_type, status, started_at, finished_at, total, inserted, updated, errors, data_sources_used, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job, data_type) DO UPDATE SET
			status = excluded.status, started_at = excluded.started_at, finished_at = excluded.finished_at,
			total = excluded.total, inserted = excluded.inserted, updated = excluded.updated,
			errors = excluded.errors, data_sources_used = excluded.data_sources_used, message = excluded.message
	`, st.Job, string(st.DataType), string(st.Status), st.StartedAt.UTC().Format(timeLayout), finishedAt,
		st.Total, st.Inserted, st.Updated, st.Errors, sources, st.Message)
	if err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, "upsert sync status", err)
	}
	return nil
}

// GetSyncStatus returns the run record for (job, dataType), or apperr.NotFound
// if the job has never run.
func (s *Store) GetSyncStatus(ctx context.Context, job string, dataType domain.DataClass) (*domain.SyncStatus, error) {
	var st domain.SyncStatus
	var dt, status, startedAt string
	var finishedAt sql.NullString
	var sources sql.NullString

	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT job, data_type, status, started_at, finished_at, total, inserted, updated, errors, data_sources_used, message
		FROM sync_status WHERE job = ? AND data_type = ?
	`, job, string(dataType)).Scan(&st.Job, &dt, &status, &startedAt, &finishedAt,
		&st.Total, &st.Inserted, &st.Updated, &st.Errors, &sources, &st.Message)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "sync status not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "get sync status", err)
	}

	st.DataType = domain.DataClass(dt)
	st.Status = domain.SyncRunStatus(status)
	st.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		t := parseTime(finishedAt.String)
		st.FinishedAt = &t
	}
	if sources.Valid && sources.String != "" {
		_ = json.Unmarshal([]byte(sources.String), &st.DataSourcesUsed)
	}
	return &st, nil
}

// ListSyncStatus returns every persisted run record, ordered by job then
// data_type, for the sync-status summary endpoint (§6).
func (s *Store) ListSyncStatus(ctx context.Context) ([]domain.SyncStatus, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT job, data_type, status, started_at, finished_at, total, inserted, updated, errors, data_sources_used, message
		FROM sync_status ORDER BY job, data_type
	`)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "list sync status", err)
	}
	defer rows.Close()

	var out []domain.SyncStatus
	for rows.Next() {
		var st domain.SyncStatus
		var dataType, status, startedAt string
		var finishedAt, sources sql.NullString
		if err := rows.Scan(&st.Job, &dataType, &status, &startedAt, &finishedAt,
			&st.Total, &st.Inserted, &st.Updated, &st.Errors, &sources, &st.Message); err != nil {
			return nil, apperr.Wrap(apperr.StoreUnavailable, "scan sync status", err)
		}
		st.DataType = domain.DataClass(dataType)
		st.Status = domain.SyncRunStatus(status)
		st.StartedAt = parseTime(startedAt)
		if finishedAt.Valid {
			t := parseTime(finishedAt.String)
			st.FinishedAt = &t
		}
		if sources.Valid && sources.String != "" {
			_ = json.Unmarshal([]byte(sources.String), &st.DataSourcesUsed)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Package store implements the normalizer/persistor (C5): canonical
// upserts into the document collections of §3, batched with idempotent
// semantics and exponential-backoff retry on transient store failures.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/sermady/stockdata-core/internal/apperr"
	"github.com/sermady/stockdata-core/internal/database"
)

// DefaultBatchSize is the default number of records per persisted batch,
// per spec.md §4.5.
const DefaultBatchSize = 500

// batchRetryDelays is the exponential backoff schedule applied to a whole
// batch on store timeout, per spec.md §4.5 (2s, 4s, 8s).
var batchRetryDelays = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

// Store wraps the canonical document store. One *database.DB backs every
// collection in §3; tests typically point it at an in-memory SQLite file.
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

// New builds a Store over db. Callers must call Migrate once at startup.
func New(db *database.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log.With().Str("component", "store").Logger()}
}

// Migrate applies the stockdata schema.
func (s *Store) Migrate() error { return s.db.Migrate() }

// Conn exposes the underlying *sql.DB for components (e.g. the cache
// layer's L2 tier) that need a raw connection to a sibling table.
func (s *Store) Conn() *sql.DB { return s.db.Conn() }

// BatchOutcome tallies the result of persisting one batch of records, per
// the counters §4.6 requires the sync service to update after every
// batch.
type BatchOutcome struct {
	Inserted int
	Updated  int
	Errors   int
}

// WithBatchRetry runs fn (a single batch's persistence) and retries it up
// to three times with the 2s/4s/8s backoff of §4.5 if fn returns a
// store-unavailable-class error. fn must be idempotent: the same batch
// may be applied more than once. After the final attempt fails, the
// caller is expected to count the batch's records as errors.
func (s *Store) WithBatchRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= len(batchRetryDelays); attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if apperr.CodeOf(lastErr) != apperr.StoreUnavailable {
			return lastErr
		}
		if attempt == len(batchRetryDelays) {
			break
		}
		s.log.Warn().Err(lastErr).Int("attempt", attempt+1).Msg("batch write failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(batchRetryDelays[attempt]):
		}
	}
	return apperr.Wrap(apperr.StoreUnavailable, "batch exhausted retries", lastErr)
}

// Chunk splits ids into groups of at most size, preserving order.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var chunks [][]T
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}

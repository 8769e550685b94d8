// Package cache implements the two-tier cache (C10): an in-process L1
// LRU for hot, cheap-to-refetch prefixes (quotes, basic info, market
// data) and a shared L2 SQLite key/value store for the prefixes worth
// persisting across restarts and across process instances (analysis
// results). A per-prefix policy table, sourced from config.CachePolicy,
// decides which tier a Put lands in; Get always checks L1 first and
// promotes an L2 hit back into L1 for locality on the next read.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/sermady/stockdata-core/internal/apperr"
	"github.com/sermady/stockdata-core/internal/config"
	"github.com/sermady/stockdata-core/internal/database"
)

// promotionCacheSize bounds the L1 front for prefixes whose policy tier
// is L2: small, since these entries only exist in L1 opportunistically
// after an L2 hit, not as their primary home.
const promotionCacheSize = 20

type prefixStats struct {
	hits   int64
	misses int64
}

// Service is the cache facade handed to every component that reads
// cached provider/analysis data.
type Service struct {
	db       *database.DB
	policies map[string]config.CachePolicy
	l1       map[string]*lru.LRU[string, []byte]
	stats    sync.Map // prefix -> *prefixStats
	log      zerolog.Logger
}

// New builds a Service with one L1 instance per configured prefix
// (sized by policy.MaxEntries for L1-tier prefixes, or a small
// promotion-only cache for L2-tier prefixes).
func New(db *database.DB, policies map[string]config.CachePolicy, log zerolog.Logger) *Service {
	s := &Service{
		db:       db,
		policies: policies,
		l1:       make(map[string]*lru.LRU[string, []byte]),
		log:      log.With().Str("component", "cache").Logger(),
	}
	for prefix, p := range policies {
		size := p.MaxEntries
		if size <= 0 {
			size = promotionCacheSize
		}
		ttl := time.Duration(p.TTLSeconds) * time.Second
		s.l1[prefix] = lru.NewLRU[string, []byte](size, nil, ttl)
	}
	return s
}

// Get looks up prefix:key, decoding the stored msgpack value into out
// (a pointer). Returns found=false, err=nil on a clean miss.
func (s *Service) Get(ctx context.Context, prefix, key string, out interface{}) (bool, error) {
	st := s.statsFor(prefix)

	if l1, ok := s.l1[prefix]; ok {
		if raw, ok := l1.Get(key); ok {
			atomic.AddInt64(&st.hits, 1)
			return true, msgpack.Unmarshal(raw, out)
		}
	}

	raw, ok, err := s.getL2(ctx, prefix, key)
	if err != nil {
		return false, err
	}
	if !ok {
		atomic.AddInt64(&st.misses, 1)
		return false, nil
	}

	atomic.AddInt64(&st.hits, 1)
	if l1, ok := s.l1[prefix]; ok {
		l1.Add(key, raw)
	}
	return true, msgpack.Unmarshal(raw, out)
}

// Put writes value under prefix:key per the prefix's configured tier.
// An unconfigured prefix is a no-op: caching is an optimization, not a
// correctness requirement, so callers need not special-case it.
func (s *Service) Put(ctx context.Context, prefix, key string, value interface{}) error {
	policy, ok := s.policies[prefix]
	if !ok {
		return nil
	}
	raw, err := msgpack.Marshal(value)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "marshal cache value", err)
	}

	if policy.Tier == "L1" {
		if l1, ok := s.l1[prefix]; ok {
			l1.Add(key, raw)
		}
		return nil
	}
	return s.putL2(ctx, prefix, key, raw, time.Duration(policy.TTLSeconds)*time.Second)
}

// Invalidate removes one exact prefix:key from both tiers.
func (s *Service) Invalidate(ctx context.Context, prefix, key string) error {
	if l1, ok := s.l1[prefix]; ok {
		l1.Remove(key)
	}
	_, err := s.db.Conn().ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, fullKey(prefix, key))
	if err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, "invalidate cache key", err)
	}
	return nil
}

// InvalidatePrefix drops every entry under prefix from both tiers.
func (s *Service) InvalidatePrefix(ctx context.Context, prefix string) error {
	if l1, ok := s.l1[prefix]; ok {
		l1.Purge()
	}
	_, err := s.db.Conn().ExecContext(ctx, `DELETE FROM cache_entries WHERE key LIKE ?`, prefix+":%")
	if err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, "invalidate cache prefix", err)
	}
	return nil
}

// Stats returns the hit/miss counters accumulated for prefix so far.
func (s *Service) Stats(prefix string) (hits, misses int64) {
	st := s.statsFor(prefix)
	return atomic.LoadInt64(&st.hits), atomic.LoadInt64(&st.misses)
}

func (s *Service) statsFor(prefix string) *prefixStats {
	v, _ := s.stats.LoadOrStore(prefix, &prefixStats{})
	return v.(*prefixStats)
}

func (s *Service) getL2(ctx context.Context, prefix, key string) ([]byte, bool, error) {
	var raw []byte
	var expiresAt int64
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT value, expires_at FROM cache_entries WHERE key = ?
	`, fullKey(prefix, key)).Scan(&raw, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperr.Wrap(apperr.StoreUnavailable, "get cache entry", err)
	}
	if expiresAt < time.Now().Unix() {
		_, _ = s.db.Conn().ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, fullKey(prefix, key))
		return nil, false, nil
	}
	return raw, true, nil
}

func (s *Service) putL2(ctx context.Context, prefix, key string, raw []byte, ttl time.Duration) error {
	expiresAt := time.Now().Add(ttl).Unix()
	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`, fullKey(prefix, key), raw, expiresAt)
	if err != nil {
		return apperr.Wrap(apperr.StoreUnavailable, "put cache entry", err)
	}
	return nil
}

func fullKey(prefix, key string) string {
	var b strings.Builder
	b.Grow(len(prefix) + len(key) + 1)
	b.WriteString(prefix)
	b.WriteByte(':')
	b.WriteString(key)
	return b.String()
}

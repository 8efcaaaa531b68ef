package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/stakevault/staking-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the pool configuration and per-owner stake records. Writes go
// to the primary store and invalidate the cache; reads check Redis first
// then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreatePool(ctx context.Context, pool *model.PoolConfig) error {
	if err := s.primary.CreatePool(ctx, pool); err != nil {
		return err
	}
	s.cachePool(ctx, pool)
	return nil
}

func (s *CachedStore) UpdatePoolParams(ctx context.Context, startTime, endTime, lockDuration int64, annualRate uint64) error {
	if err := s.primary.UpdatePoolParams(ctx, startTime, endTime, lockDuration, annualRate); err != nil {
		return err
	}
	s.rdb.Del(ctx, poolKey())
	return nil
}

func (s *CachedStore) AddTotalStaked(ctx context.Context, delta decimal.Decimal) error {
	if err := s.primary.AddTotalStaked(ctx, delta); err != nil {
		return err
	}
	s.rdb.Del(ctx, poolKey())
	return nil
}

func (s *CachedStore) PutStakeRecord(ctx context.Context, rec *model.StakeRecord) error {
	if err := s.primary.PutStakeRecord(ctx, rec); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, recordKey(rec.Owner))
	return nil
}

func (s *CachedStore) InsertTransferEntry(ctx context.Context, entry *model.TransferEntry) error {
	return s.primary.InsertTransferEntry(ctx, entry)
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetPool(ctx context.Context) (*model.PoolConfig, error) {
	data, err := s.rdb.Get(ctx, poolKey()).Bytes()
	if err == nil {
		var c cachedPool
		if json.Unmarshal(data, &c) == nil {
			p := c.PoolConfig
			p.CustodyAuthorityToken = c.AuthorityToken
			return &p, nil
		}
	}

	p, err := s.primary.GetPool(ctx)
	if err != nil {
		return nil, err
	}
	s.cachePool(ctx, p)
	return p, nil
}

func (s *CachedStore) GetStakeRecord(ctx context.Context, owner string) (*model.StakeRecord, error) {
	data, err := s.rdb.Get(ctx, recordKey(owner)).Bytes()
	if err == nil {
		var rec model.StakeRecord
		if json.Unmarshal(data, &rec) == nil {
			return &rec, nil
		}
	}

	rec, err := s.primary.GetStakeRecord(ctx, owner)
	if err != nil {
		return nil, err
	}
	s.cacheRecord(ctx, rec)
	return rec, nil
}

func (s *CachedStore) EnsureStakeRecord(ctx context.Context, owner string) (*model.StakeRecord, error) {
	// Creation must hit the primary; cache only the result.
	rec, err := s.primary.EnsureStakeRecord(ctx, owner)
	if err != nil {
		return nil, err
	}
	s.cacheRecord(ctx, rec)
	return rec, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListStakeRecords(ctx context.Context) ([]model.StakeRecord, error) {
	return s.primary.ListStakeRecords(ctx)
}

func (s *CachedStore) ListTransfersByOwner(ctx context.Context, owner string) ([]model.TransferEntry, error) {
	return s.primary.ListTransfersByOwner(ctx, owner)
}

// --- Cache helpers ---

// cachedPool carries the custody authority token explicitly: the model tags
// it json:"-" so it can never leak through an API response, which would
// otherwise also strip it from the cached copy.
type cachedPool struct {
	model.PoolConfig
	AuthorityToken string `json:"custody_authority_token"`
}

func (s *CachedStore) cachePool(ctx context.Context, p *model.PoolConfig) {
	c := cachedPool{PoolConfig: *p, AuthorityToken: p.CustodyAuthorityToken}
	if data, err := json.Marshal(c); err == nil {
		s.rdb.Set(ctx, poolKey(), data, s.ttl)
	}
}

func (s *CachedStore) cacheRecord(ctx context.Context, rec *model.StakeRecord) {
	if data, err := json.Marshal(rec); err == nil {
		s.rdb.Set(ctx, recordKey(rec.Owner), data, s.ttl)
	}
}

func poolKey() string            { return "pool:config" }
func recordKey(owner string) string { return fmt.Sprintf("stake:%s", owner) }

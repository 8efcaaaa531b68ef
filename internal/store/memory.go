package store

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stakevault/staking-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	pool    *model.PoolConfig
	records map[string]*model.StakeRecord
	journal []model.TransferEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*model.StakeRecord),
	}
}

func (s *MemoryStore) CreatePool(_ context.Context, pool *model.PoolConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool != nil {
		return ErrPoolExists
	}
	cp := *pool
	s.pool = &cp
	return nil
}

func (s *MemoryStore) GetPool(_ context.Context) (*model.PoolConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.pool == nil {
		return nil, ErrPoolNotFound
	}
	cp := *s.pool
	return &cp, nil
}

func (s *MemoryStore) UpdatePoolParams(_ context.Context, startTime, endTime, lockDuration int64, annualRate uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool == nil {
		return ErrPoolNotFound
	}
	s.pool.StartTime = startTime
	s.pool.EndTime = endTime
	s.pool.LockDuration = lockDuration
	s.pool.AnnualRate = annualRate
	return nil
}

func (s *MemoryStore) AddTotalStaked(_ context.Context, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool == nil {
		return ErrPoolNotFound
	}
	s.pool.TotalStaked = s.pool.TotalStaked.Add(delta)
	return nil
}

func (s *MemoryStore) EnsureStakeRecord(_ context.Context, owner string) (*model.StakeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[owner]
	if !ok {
		rec = &model.StakeRecord{
			Owner:         owner,
			AmountStaked:  decimal.Zero,
			RewardClaimed: decimal.Zero,
			UpdatedAt:     time.Now().UTC(),
		}
		s.records[owner] = rec
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) GetStakeRecord(_ context.Context, owner string) (*model.StakeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[owner]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) PutStakeRecord(_ context.Context, rec *model.StakeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.records[rec.Owner] = &cp
	return nil
}

func (s *MemoryStore) ListStakeRecords(_ context.Context) ([]model.StakeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]model.StakeRecord, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, *rec)
	}
	return records, nil
}

func (s *MemoryStore) InsertTransferEntry(_ context.Context, entry *model.TransferEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.journal = append(s.journal, *entry)
	return nil
}

func (s *MemoryStore) ListTransfersByOwner(_ context.Context, owner string) ([]model.TransferEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.TransferEntry
	for _, e := range s.journal {
		if e.Owner == owner {
			result = append(result, e)
		}
	}
	return result, nil
}

// Package store defines the persistence interface for the staking engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/stakevault/staking-engine/internal/model"
)

var (
	// ErrPoolExists is returned when initializing a pool that already exists.
	ErrPoolExists = errors.New("store: pool already initialized")

	// ErrPoolNotFound is returned when the pool has not been initialized.
	ErrPoolNotFound = errors.New("store: pool not initialized")

	// ErrRecordNotFound is returned when a user has no stake record.
	ErrRecordNotFound = errors.New("store: stake record not found")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Pool configuration (global singleton) ---

	// CreatePool persists the pool configuration. Fails with ErrPoolExists
	// if a pool was already created.
	CreatePool(ctx context.Context, pool *model.PoolConfig) error

	// GetPool retrieves the pool configuration.
	GetPool(ctx context.Context) (*model.PoolConfig, error)

	// UpdatePoolParams overwrites the four mutable pool parameters in place.
	UpdatePoolParams(ctx context.Context, startTime, endTime, lockDuration int64, annualRate uint64) error

	// AddTotalStaked adjusts the informational total-staked aggregate by
	// delta (positive on stake, negative on unstake).
	AddTotalStaked(ctx context.Context, delta decimal.Decimal) error

	// --- Stake records (one per user, keyed by owner identity) ---

	// EnsureStakeRecord returns the owner's record, creating an empty one
	// if none exists yet. Idempotent: the same owner always resolves to the
	// same record.
	EnsureStakeRecord(ctx context.Context, owner string) (*model.StakeRecord, error)

	// GetStakeRecord retrieves an existing record.
	GetStakeRecord(ctx context.Context, owner string) (*model.StakeRecord, error)

	// PutStakeRecord writes the record back.
	PutStakeRecord(ctx context.Context, rec *model.StakeRecord) error

	// ListStakeRecords returns all stake records.
	ListStakeRecords(ctx context.Context) ([]model.StakeRecord, error)

	// --- Immutable transfer journal ---

	// InsertTransferEntry appends an immutable transfer record.
	InsertTransferEntry(ctx context.Context, entry *model.TransferEntry) error

	// ListTransfersByOwner returns all journal entries for a user.
	ListTransfersByOwner(ctx context.Context, owner string) ([]model.TransferEntry, error)
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stakevault/staking-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All token amounts are stored as NUMERIC for exact precision. The pool
// configuration lives in a single-row table (singleton BOOLEAN key).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreatePool(ctx context.Context, p *model.PoolConfig) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pool_config (singleton, owner, asset_id, custody_account, start_time, end_time,
		                          lock_duration, annual_rate, custody_authority_token, total_staked, created_at)
		 VALUES (TRUE, $1, $2, $3, $4, $5, $6, $7, $8, $9::NUMERIC, $10)`,
		p.Owner, p.AssetID, p.CustodyAccount, p.StartTime, p.EndTime,
		p.LockDuration, p.AnnualRate, p.CustodyAuthorityToken,
		p.TotalStaked.String(), p.CreatedAt,
	)
	if err != nil {
		// The singleton key makes a second insert a unique violation.
		return fmt.Errorf("%w: %v", ErrPoolExists, err)
	}
	return nil
}

func (s *PostgresStore) GetPool(ctx context.Context) (*model.PoolConfig, error) {
	var p model.PoolConfig
	var totalStaked string

	err := s.pool.QueryRow(ctx,
		`SELECT owner, asset_id, custody_account, start_time, end_time,
		        lock_duration, annual_rate, custody_authority_token,
		        total_staked::TEXT, created_at
		 FROM pool_config WHERE singleton`).
		Scan(&p.Owner, &p.AssetID, &p.CustodyAccount, &p.StartTime, &p.EndTime,
			&p.LockDuration, &p.AnnualRate, &p.CustodyAuthorityToken,
			&totalStaked, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPoolNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pool: %w", err)
	}

	p.TotalStaked, _ = decimal.NewFromString(totalStaked)
	return &p, nil
}

func (s *PostgresStore) UpdatePoolParams(ctx context.Context, startTime, endTime, lockDuration int64, annualRate uint64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pool_config
		 SET start_time = $1, end_time = $2, lock_duration = $3, annual_rate = $4
		 WHERE singleton`,
		startTime, endTime, lockDuration, annualRate,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPoolNotFound
	}
	return nil
}

func (s *PostgresStore) AddTotalStaked(ctx context.Context, delta decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pool_config SET total_staked = total_staked + $1::NUMERIC WHERE singleton`,
		delta.String(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPoolNotFound
	}
	return nil
}

func (s *PostgresStore) EnsureStakeRecord(ctx context.Context, owner string) (*model.StakeRecord, error) {
	// Insert-if-absent keeps record creation idempotent under concurrent
	// first stakes by the same owner.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO stake_records (owner, amount_staked, start_time, lock_duration, rate_snapshot, reward_claimed, updated_at)
		 VALUES ($1, 0, 0, 0, 0, 0, NOW())
		 ON CONFLICT (owner) DO NOTHING`, owner)
	if err != nil {
		return nil, fmt.Errorf("ensure stake record %s: %w", owner, err)
	}
	return s.GetStakeRecord(ctx, owner)
}

func (s *PostgresStore) GetStakeRecord(ctx context.Context, owner string) (*model.StakeRecord, error) {
	var rec model.StakeRecord
	var amountStaked, rewardClaimed string

	err := s.pool.QueryRow(ctx,
		`SELECT owner, amount_staked::TEXT, start_time, lock_duration,
		        rate_snapshot, reward_claimed::TEXT, updated_at
		 FROM stake_records WHERE owner = $1`, owner).
		Scan(&rec.Owner, &amountStaked, &rec.StartTime, &rec.LockDuration,
			&rec.RateSnapshot, &rewardClaimed, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stake record %s: %w", owner, err)
	}

	rec.AmountStaked, _ = decimal.NewFromString(amountStaked)
	rec.RewardClaimed, _ = decimal.NewFromString(rewardClaimed)
	return &rec, nil
}

func (s *PostgresStore) PutStakeRecord(ctx context.Context, rec *model.StakeRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO stake_records (owner, amount_staked, start_time, lock_duration, rate_snapshot, reward_claimed, updated_at)
		 VALUES ($1, $2::NUMERIC, $3, $4, $5, $6::NUMERIC, $7)
		 ON CONFLICT (owner) DO UPDATE SET
		   amount_staked = EXCLUDED.amount_staked,
		   start_time = EXCLUDED.start_time,
		   lock_duration = EXCLUDED.lock_duration,
		   rate_snapshot = EXCLUDED.rate_snapshot,
		   reward_claimed = EXCLUDED.reward_claimed,
		   updated_at = EXCLUDED.updated_at`,
		rec.Owner, rec.AmountStaked.String(), rec.StartTime, rec.LockDuration,
		rec.RateSnapshot, rec.RewardClaimed.String(), rec.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) ListStakeRecords(ctx context.Context) ([]model.StakeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT owner, amount_staked::TEXT, start_time, lock_duration,
		        rate_snapshot, reward_claimed::TEXT, updated_at
		 FROM stake_records ORDER BY owner`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.StakeRecord
	for rows.Next() {
		var rec model.StakeRecord
		var amountStaked, rewardClaimed string
		if err := rows.Scan(&rec.Owner, &amountStaked, &rec.StartTime, &rec.LockDuration,
			&rec.RateSnapshot, &rewardClaimed, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.AmountStaked, _ = decimal.NewFromString(amountStaked)
		rec.RewardClaimed, _ = decimal.NewFromString(rewardClaimed)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) InsertTransferEntry(ctx context.Context, e *model.TransferEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transfer_journal (id, operation, from_account, to_account, owner, amount, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7)`,
		e.ID, e.Operation, e.FromAccount, e.ToAccount, e.Owner,
		e.Amount.String(), e.Timestamp,
	)
	return err
}

func (s *PostgresStore) ListTransfersByOwner(ctx context.Context, owner string) ([]model.TransferEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, operation, from_account, to_account, owner, amount::TEXT, timestamp
		 FROM transfer_journal WHERE owner = $1 ORDER BY timestamp`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.TransferEntry
	for rows.Next() {
		var e model.TransferEntry
		var amount string
		if err := rows.Scan(&e.ID, &e.Operation, &e.FromAccount, &e.ToAccount,
			&e.Owner, &amount, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Amount, _ = decimal.NewFromString(amount)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

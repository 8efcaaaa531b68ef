// Package model defines the core domain types shared across the staking engine.
// All token amounts use shopspring/decimal — never float64 for money. Amounts
// are integer-valued base units of the staked asset.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PoolConfig is the singleton staking pool configuration. Exactly one pool
// exists for the lifetime of the system; Owner is immutable after creation.
// StartTime/EndTime bound the window in which new stakes may open.
type PoolConfig struct {
	Owner          string `json:"owner" db:"owner"`
	AssetID        string `json:"asset_id" db:"asset_id"`
	CustodyAccount string `json:"custody_account" db:"custody_account"`
	StartTime      int64  `json:"start_time" db:"start_time"` // unix seconds
	EndTime        int64  `json:"end_time" db:"end_time"`
	LockDuration   int64  `json:"lock_duration" db:"lock_duration"` // seconds
	AnnualRate     uint64 `json:"annual_rate" db:"annual_rate"`     // whole percent

	// CustodyAuthorityToken is the opaque credential that authorizes outbound
	// transfers from the custody account. Held by the ledger, never exposed
	// to callers.
	CustodyAuthorityToken string `json:"-" db:"custody_authority_token"`

	// TotalStaked is a running sum of all open stake principals. Informational
	// only — no operation relies on it for correctness.
	TotalStaked decimal.Decimal `json:"total_staked" db:"total_staked"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// StakeRecord holds one user's stake lifecycle data. Records are reusable
// slots: AmountStaked == 0 is both the initial and the post-unstake state,
// and the remaining fields are meaningless until the next stake opens.
//
// LockDuration and RateSnapshot are frozen copies of the pool parameters at
// stake time, so a later pool reconfiguration cannot retroactively change
// the terms of an open stake.
type StakeRecord struct {
	Owner         string          `json:"owner" db:"owner"`
	AmountStaked  decimal.Decimal `json:"amount_staked" db:"amount_staked"`
	StartTime     int64           `json:"start_time" db:"start_time"`
	LockDuration  int64           `json:"lock_duration" db:"lock_duration"`
	RateSnapshot  uint64          `json:"rate_snapshot" db:"rate_snapshot"`
	RewardClaimed decimal.Decimal `json:"reward_claimed" db:"reward_claimed"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// Active reports whether the record currently holds an open stake cycle.
func (r *StakeRecord) Active() bool {
	return r.AmountStaked.IsPositive()
}

// Transfer operation labels used in the journal.
const (
	TransferFund    = "fund"
	TransferStake   = "stake"
	TransferClaim   = "claim"
	TransferUnstake = "unstake"
)

// TransferEntry is an immutable journal record of an executed transfer.
// Once created, these are never modified or deleted.
type TransferEntry struct {
	ID          string          `json:"id" db:"id"`
	Operation   string          `json:"operation" db:"operation"`
	FromAccount string          `json:"from_account" db:"from_account"`
	ToAccount   string          `json:"to_account" db:"to_account"`
	Owner       string          `json:"owner" db:"owner"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Timestamp   time.Time       `json:"timestamp" db:"timestamp"`
}

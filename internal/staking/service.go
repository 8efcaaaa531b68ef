// Package staking implements the staking accounting state machine: the
// singleton pool configuration, per-user stake records, and the lifecycle
// operations (initialize pool, update pool, stake, claim rewards, unstake).
//
// Every operation checks all preconditions before mutating anything, issues
// at most one outbound transfer, and treats the transfer and the record
// mutation as joint: if one of the two fails, the other is compensated so
// no partial state survives.
package staking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stakevault/staking-engine/internal/metrics"
	"github.com/stakevault/staking-engine/internal/model"
	"github.com/stakevault/staking-engine/internal/reward"
	"github.com/stakevault/staking-engine/internal/store"
	"github.com/stakevault/staking-engine/internal/token"
)

var (
	// ErrUnauthorized is returned when a reconfiguration caller is not the
	// pool owner.
	ErrUnauthorized = errors.New("staking: caller is not the pool owner")

	// ErrStakingNotStarted is returned when staking before the window opens.
	ErrStakingNotStarted = errors.New("staking: staking window has not started")

	// ErrStakingEnded is returned when staking after the window closes.
	ErrStakingEnded = errors.New("staking: staking window has ended")

	// ErrAlreadyStaked is returned when the caller's record already holds an
	// active stake.
	ErrAlreadyStaked = errors.New("staking: record already has an active stake")

	// ErrNoRewardsAvailable is returned when no newly accrued reward exists.
	ErrNoRewardsAvailable = errors.New("staking: no newly accrued rewards to claim")

	// ErrLockPeriodNotOver is returned when unstaking before the lock elapses.
	ErrLockPeriodNotOver = errors.New("staking: lock period has not elapsed")

	// ErrNoActiveStake is returned when claiming or unstaking against a
	// record with no open stake cycle.
	ErrNoActiveStake = errors.New("staking: record has no active stake")

	// ErrTransferFailed wraps a declined transfer from the token service.
	ErrTransferFailed = errors.New("staking: token transfer declined")

	// ErrInvalidAmount is returned for non-positive or fractional amounts.
	ErrInvalidAmount = errors.New("staking: amount must be a positive whole number of base units")

	// ErrInvalidWindow is returned when start_time exceeds end_time.
	ErrInvalidWindow = errors.New("staking: start_time must not exceed end_time")
)

// CustodyAccountID is the deterministic id of the account holding pooled
// funds. Derived once; re-derivation always resolves to the same account.
const CustodyAccountID = "staking-pool-custody"

// custodyOwner is the non-human principal the custody account is registered
// under. Outbound transfers are authorized by the pool's credential, never
// by this principal.
const custodyOwner = "staking-pool"

// Service is the staking ledger orchestrator. Operations on the same owner's
// record are serialized through a per-owner lock; operations on different
// owners do not contend.
type Service struct {
	store store.Store
	bank  token.Service
	hub   *Hub // optional WebSocket hub for lifecycle event broadcasts
	now   func() time.Time

	initMu sync.Mutex // serializes pool initialization/reconfiguration
	locks  ownerLocks
}

// NewService creates a new staking service.
// Pass nil for hub if event broadcasting is not needed.
func NewService(st store.Store, bank token.Service, hub *Hub) *Service {
	return &Service{
		store: st,
		bank:  bank,
		hub:   hub,
		now:   time.Now,
		locks: ownerLocks{m: make(map[string]*sync.Mutex)},
	}
}

// SetClock overrides the time source. Tests use this to control accrual and
// lock expiry deterministically.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// InitPoolParams are the arguments to InitializePool.
type InitPoolParams struct {
	Owner        string
	AssetID      string
	StartTime    int64
	EndTime      int64
	LockDuration int64
	AnnualRate   uint64

	// Funding is moved from the owner's account into custody at creation.
	// Zero means no seed funding.
	Funding decimal.Decimal
}

// ClaimResult reports the outcome of a rewards claim.
type ClaimResult struct {
	Owner        string          `json:"owner"`
	Claimed      decimal.Decimal `json:"claimed"`
	TotalAccrued decimal.Decimal `json:"total_accrued"`
}

// InitializePool creates the singleton pool configuration, provisions the
// custody account with its authority credential, and seed-funds custody
// from the owner's own balance.
func (s *Service) InitializePool(ctx context.Context, p InitPoolParams) (*model.PoolConfig, error) {
	defer observe("initialize_pool")()

	if p.Owner == "" {
		return nil, s.reject("initialize_pool", fmt.Errorf("%w: owner is required", ErrUnauthorized))
	}
	if p.StartTime > p.EndTime {
		return nil, s.reject("initialize_pool", ErrInvalidWindow)
	}
	if !p.Funding.IsZero() && (!p.Funding.IsPositive() || !p.Funding.IsInteger()) {
		return nil, s.reject("initialize_pool", ErrInvalidAmount)
	}

	s.initMu.Lock()
	defer s.initMu.Unlock()

	if _, err := s.store.GetPool(ctx); err == nil {
		return nil, s.reject("initialize_pool", store.ErrPoolExists)
	} else if !errors.Is(err, store.ErrPoolNotFound) {
		return nil, err
	}

	// Custody provisioning is idempotent across failed initialization
	// attempts: the account may survive, the credential is re-issued.
	if err := s.bank.CreateAccount(ctx, CustodyAccountID, custodyOwner); err != nil && !errors.Is(err, token.ErrAccountExists) {
		return nil, err
	}
	cred, err := s.bank.IssueCredential(ctx, CustodyAccountID)
	if err != nil {
		return nil, err
	}

	if p.Funding.IsPositive() {
		auth := token.Authority{Principal: p.Owner}
		if err := s.bank.Transfer(ctx, p.Owner, CustodyAccountID, auth, p.Funding); err != nil {
			return nil, s.reject("initialize_pool", fmt.Errorf("%w: %v", ErrTransferFailed, err))
		}
	}

	pool := &model.PoolConfig{
		Owner:                 p.Owner,
		AssetID:               p.AssetID,
		CustodyAccount:        CustodyAccountID,
		StartTime:             p.StartTime,
		EndTime:               p.EndTime,
		LockDuration:          p.LockDuration,
		AnnualRate:            p.AnnualRate,
		CustodyAuthorityToken: string(cred),
		TotalStaked:           decimal.Zero,
		CreatedAt:             s.now().UTC(),
	}

	if err := s.store.CreatePool(ctx, pool); err != nil {
		// Undo the seed funding so the failed initialization leaves nothing
		// behind in custody.
		if p.Funding.IsPositive() {
			s.compensate(ctx, pool, p.Owner, p.Funding)
		}
		return nil, err
	}

	if p.Funding.IsPositive() {
		s.journal(ctx, model.TransferFund, p.Owner, CustodyAccountID, p.Owner, p.Funding)
	}

	slog.Info("pool initialized",
		"owner", p.Owner,
		"start_time", p.StartTime,
		"end_time", p.EndTime,
		"lock_duration", p.LockDuration,
		"annual_rate", p.AnnualRate,
		"funding", p.Funding.String(),
	)
	metrics.OperationsTotal.WithLabelValues("initialize_pool").Inc()
	s.broadcast(Event{Type: "pool_initialized", Owner: p.Owner, Amount: p.Funding.String()})

	return pool, nil
}

// UpdatePool overwrites the four mutable pool parameters. Only the pool
// owner may call it; already-open stakes keep their snapshotted terms.
func (s *Service) UpdatePool(ctx context.Context, caller string, startTime, endTime, lockDuration int64, annualRate uint64) (*model.PoolConfig, error) {
	defer observe("update_pool")()

	s.initMu.Lock()
	defer s.initMu.Unlock()

	pool, err := s.store.GetPool(ctx)
	if err != nil {
		return nil, err
	}
	if caller != pool.Owner {
		return nil, s.reject("update_pool", ErrUnauthorized)
	}
	if startTime > endTime {
		return nil, s.reject("update_pool", ErrInvalidWindow)
	}

	if err := s.store.UpdatePoolParams(ctx, startTime, endTime, lockDuration, annualRate); err != nil {
		return nil, err
	}

	pool.StartTime = startTime
	pool.EndTime = endTime
	pool.LockDuration = lockDuration
	pool.AnnualRate = annualRate

	slog.Info("pool updated",
		"start_time", startTime,
		"end_time", endTime,
		"lock_duration", lockDuration,
		"annual_rate", annualRate,
	)
	metrics.OperationsTotal.WithLabelValues("update_pool").Inc()
	s.broadcast(Event{Type: "pool_updated", Owner: caller})

	return pool, nil
}

// Stake opens a stake cycle for owner: moves amount into custody and writes
// the record with the pool's current lock duration and rate frozen in.
func (s *Service) Stake(ctx context.Context, owner string, amount decimal.Decimal) (*model.StakeRecord, error) {
	defer observe("stake")()
	defer s.locks.acquire(owner).Unlock()

	pool, err := s.store.GetPool(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().Unix()
	if now < pool.StartTime {
		return nil, s.reject("stake", ErrStakingNotStarted)
	}
	if now > pool.EndTime {
		return nil, s.reject("stake", ErrStakingEnded)
	}
	if !amount.IsPositive() || !amount.IsInteger() {
		return nil, s.reject("stake", ErrInvalidAmount)
	}

	rec, err := s.store.EnsureStakeRecord(ctx, owner)
	if err != nil {
		return nil, err
	}
	if rec.Active() {
		return nil, s.reject("stake", ErrAlreadyStaked)
	}

	// Transfer first; the record write below is compensated if it fails.
	auth := token.Authority{Principal: owner}
	if err := s.bank.Transfer(ctx, owner, pool.CustodyAccount, auth, amount); err != nil {
		return nil, s.reject("stake", fmt.Errorf("%w: %v", ErrTransferFailed, err))
	}

	rec.Owner = owner
	rec.AmountStaked = amount
	rec.StartTime = now
	rec.LockDuration = pool.LockDuration
	rec.RateSnapshot = pool.AnnualRate
	rec.RewardClaimed = decimal.Zero
	rec.UpdatedAt = s.now().UTC()

	if err := s.store.PutStakeRecord(ctx, rec); err != nil {
		s.compensate(ctx, pool, owner, amount)
		return nil, err
	}

	if err := s.store.AddTotalStaked(ctx, amount); err != nil {
		slog.Error("total_staked update failed", "owner", owner, "err", err)
	}
	s.journal(ctx, model.TransferStake, owner, pool.CustodyAccount, owner, amount)

	slog.Info("stake opened",
		"owner", owner,
		"amount", amount.String(),
		"start_time", now,
		"lock_duration", rec.LockDuration,
		"rate", rec.RateSnapshot,
	)
	metrics.OperationsTotal.WithLabelValues("stake").Inc()
	s.broadcast(Event{Type: "staked", Owner: owner, Amount: amount.String()})

	return rec, nil
}

// ClaimRewards pays out rewards accrued since the last claim. The record's
// snapshotted rate is used, not the pool's current one.
func (s *Service) ClaimRewards(ctx context.Context, owner string) (*ClaimResult, error) {
	defer observe("claim_rewards")()
	defer s.locks.acquire(owner).Unlock()

	pool, err := s.store.GetPool(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.GetStakeRecord(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !rec.Active() {
		return nil, s.reject("claim_rewards", ErrNoActiveStake)
	}

	now := s.now().Unix()
	total := reward.Accrued(rec.AmountStaked, rec.RateSnapshot, now-rec.StartTime)
	if !total.GreaterThan(rec.RewardClaimed) {
		return nil, s.reject("claim_rewards", ErrNoRewardsAvailable)
	}
	claimable := total.Sub(rec.RewardClaimed)

	// Commit the record, then pay. A declined transfer rolls the record
	// back so the claim can be retried once custody is funded.
	prev := *rec
	rec.RewardClaimed = total
	rec.UpdatedAt = s.now().UTC()
	if err := s.store.PutStakeRecord(ctx, rec); err != nil {
		return nil, err
	}

	auth := token.Authority{Credential: token.Credential(pool.CustodyAuthorityToken)}
	if err := s.bank.Transfer(ctx, pool.CustodyAccount, owner, auth, claimable); err != nil {
		s.restore(ctx, &prev)
		return nil, s.reject("claim_rewards", fmt.Errorf("%w: %v", ErrTransferFailed, err))
	}

	s.journal(ctx, model.TransferClaim, pool.CustodyAccount, owner, owner, claimable)

	slog.Info("rewards claimed",
		"owner", owner,
		"claimed", claimable.String(),
		"total_accrued", total.String(),
	)
	metrics.OperationsTotal.WithLabelValues("claim_rewards").Inc()
	s.broadcast(Event{Type: "rewards_claimed", Owner: owner, Reward: claimable.String()})

	return &ClaimResult{Owner: owner, Claimed: claimable, TotalAccrued: total}, nil
}

// Unstake returns the principal after the lock expires and resets the record
// to its reusable empty state.
func (s *Service) Unstake(ctx context.Context, owner string) (decimal.Decimal, error) {
	defer observe("unstake")()
	defer s.locks.acquire(owner).Unlock()

	pool, err := s.store.GetPool(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	rec, err := s.store.GetStakeRecord(ctx, owner)
	if err != nil {
		return decimal.Zero, err
	}
	if !rec.Active() {
		return decimal.Zero, s.reject("unstake", ErrNoActiveStake)
	}

	now := s.now().Unix()
	if now < rec.StartTime+rec.LockDuration {
		return decimal.Zero, s.reject("unstake", ErrLockPeriodNotOver)
	}

	amount := rec.AmountStaked

	prev := *rec
	rec.AmountStaked = decimal.Zero
	rec.RewardClaimed = decimal.Zero
	rec.UpdatedAt = s.now().UTC()
	if err := s.store.PutStakeRecord(ctx, rec); err != nil {
		return decimal.Zero, err
	}

	auth := token.Authority{Credential: token.Credential(pool.CustodyAuthorityToken)}
	if err := s.bank.Transfer(ctx, pool.CustodyAccount, owner, auth, amount); err != nil {
		s.restore(ctx, &prev)
		return decimal.Zero, s.reject("unstake", fmt.Errorf("%w: %v", ErrTransferFailed, err))
	}

	if err := s.store.AddTotalStaked(ctx, amount.Neg()); err != nil {
		slog.Error("total_staked update failed", "owner", owner, "err", err)
	}
	s.journal(ctx, model.TransferUnstake, pool.CustodyAccount, owner, owner, amount)

	slog.Info("stake closed", "owner", owner, "returned", amount.String())
	metrics.OperationsTotal.WithLabelValues("unstake").Inc()
	s.broadcast(Event{Type: "unstaked", Owner: owner, Amount: amount.String()})

	return amount, nil
}

// --- helpers ---

// compensate moves amount back out of custody after a failed commit,
// authorized by the pool's credential.
func (s *Service) compensate(ctx context.Context, pool *model.PoolConfig, to string, amount decimal.Decimal) {
	auth := token.Authority{Credential: token.Credential(pool.CustodyAuthorityToken)}
	if err := s.bank.Transfer(ctx, pool.CustodyAccount, to, auth, amount); err != nil {
		slog.Error("compensating transfer failed", "to", to, "amount", amount.String(), "err", err)
	}
}

// restore writes back the pre-operation record after a declined transfer.
func (s *Service) restore(ctx context.Context, prev *model.StakeRecord) {
	if err := s.store.PutStakeRecord(ctx, prev); err != nil {
		slog.Error("record rollback failed", "owner", prev.Owner, "err", err)
	}
}

// journal appends an immutable transfer entry. Journal failures are logged,
// not surfaced: the journal is informational, the record is authoritative.
func (s *Service) journal(ctx context.Context, op, from, to, owner string, amount decimal.Decimal) {
	entry := &model.TransferEntry{
		ID:          uuid.New().String(),
		Operation:   op,
		FromAccount: from,
		ToAccount:   to,
		Owner:       owner,
		Amount:      amount,
		Timestamp:   s.now().UTC(),
	}
	if err := s.store.InsertTransferEntry(ctx, entry); err != nil {
		slog.Error("journal append failed", "op", op, "owner", owner, "err", err)
	}
}

func (s *Service) broadcast(ev Event) {
	if s.hub != nil {
		s.hub.Broadcast(ev)
	}
}

// reject counts a precondition rejection and passes the error through.
func (s *Service) reject(op string, err error) error {
	metrics.OperationRejections.WithLabelValues(op, reasonLabel(err)).Inc()
	return err
}

func reasonLabel(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrStakingNotStarted):
		return "staking_not_started"
	case errors.Is(err, ErrStakingEnded):
		return "staking_ended"
	case errors.Is(err, ErrAlreadyStaked):
		return "already_staked"
	case errors.Is(err, ErrNoRewardsAvailable):
		return "no_rewards_available"
	case errors.Is(err, ErrLockPeriodNotOver):
		return "lock_period_not_over"
	case errors.Is(err, ErrNoActiveStake):
		return "no_active_stake"
	case errors.Is(err, ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidWindow):
		return "invalid_window"
	case errors.Is(err, store.ErrPoolExists):
		return "pool_exists"
	default:
		return "internal"
	}
}

// observe times an operation for the latency histogram.
func observe(op string) func() {
	start := time.Now()
	return func() {
		metrics.OperationLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// ownerLocks serializes operations per owner identity. Two concurrent
// claims by the same owner run one after the other; the loser observes the
// winner's committed record and fails its own precondition.
type ownerLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (l *ownerLocks) acquire(owner string) *sync.Mutex {
	l.mu.Lock()
	m, ok := l.m[owner]
	if !ok {
		m = &sync.Mutex{}
		l.m[owner] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m
}

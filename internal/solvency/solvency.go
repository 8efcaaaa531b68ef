// Package solvency watches the gap between the custody account balance and
// the pool's outstanding obligations.
//
// The pool is funded once at initialization; nothing in the ledger itself
// guarantees that custody always covers principal plus accrued rewards. The
// ledger deliberately keeps that behavior — claims and unstakes fail at the
// transfer step when custody runs dry — so this reconciler exists to make
// underfunding visible to operators before users hit it.
package solvency

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/stakevault/staking-engine/internal/metrics"
	"github.com/stakevault/staking-engine/internal/reward"
	"github.com/stakevault/staking-engine/internal/store"
	"github.com/stakevault/staking-engine/internal/token"
)

// Report is one reconciliation snapshot.
type Report struct {
	CustodyBalance       decimal.Decimal `json:"custody_balance"`
	PrincipalOutstanding decimal.Decimal `json:"principal_outstanding"`
	RewardsOwed          decimal.Decimal `json:"rewards_owed"`
	Shortfall            decimal.Decimal `json:"shortfall"` // zero when solvent
}

// Reconciler periodically computes outstanding liability across all open
// stakes and publishes it as Prometheus gauges.
type Reconciler struct {
	store store.Store
	bank  token.Service
	cron  *cron.Cron
	now   func() time.Time
}

// NewReconciler creates a reconciler over the given store and bank.
func NewReconciler(st store.Store, bank token.Service) *Reconciler {
	return &Reconciler{
		store: st,
		bank:  bank,
		cron:  cron.New(),
		now:   time.Now,
	}
}

// SetClock overrides the time source for tests.
func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
}

// Start schedules reconciliation on the given cron spec (e.g. "@every 1m").
func (r *Reconciler) Start(spec string) error {
	_, err := r.cron.AddFunc(spec, func() {
		if _, err := r.Reconcile(context.Background()); err != nil {
			slog.Error("solvency reconcile failed", "err", err)
		}
	})
	if err != nil {
		return err
	}
	r.cron.Start()
	slog.Info("solvency reconciler started", "schedule", spec)
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (r *Reconciler) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	slog.Info("solvency reconciler stopped")
}

// Reconcile computes the current snapshot and updates the gauges. A missing
// pool yields an all-zero report.
func (r *Reconciler) Reconcile(ctx context.Context) (Report, error) {
	var report Report
	report.CustodyBalance = decimal.Zero
	report.PrincipalOutstanding = decimal.Zero
	report.RewardsOwed = decimal.Zero
	report.Shortfall = decimal.Zero

	pool, err := r.store.GetPool(ctx)
	if errors.Is(err, store.ErrPoolNotFound) {
		return report, nil
	}
	if err != nil {
		return report, err
	}

	balance, err := r.bank.Balance(ctx, pool.CustodyAccount)
	if err != nil {
		return report, err
	}
	report.CustodyBalance = balance

	records, err := r.store.ListStakeRecords(ctx)
	if err != nil {
		return report, err
	}

	now := r.now().Unix()
	for i := range records {
		rec := &records[i]
		if !rec.Active() {
			continue
		}
		report.PrincipalOutstanding = report.PrincipalOutstanding.Add(rec.AmountStaked)

		accrued := reward.Accrued(rec.AmountStaked, rec.RateSnapshot, now-rec.StartTime)
		owed := accrued.Sub(rec.RewardClaimed)
		if owed.IsPositive() {
			report.RewardsOwed = report.RewardsOwed.Add(owed)
		}
	}

	liability := report.PrincipalOutstanding.Add(report.RewardsOwed)
	if liability.GreaterThan(balance) {
		report.Shortfall = liability.Sub(balance)
	}

	metrics.CustodyBalance.Set(report.CustodyBalance.InexactFloat64())
	metrics.TotalStaked.Set(report.PrincipalOutstanding.InexactFloat64())
	metrics.OutstandingLiability.Set(liability.InexactFloat64())
	metrics.SolvencyShortfall.Set(report.Shortfall.InexactFloat64())

	if report.Shortfall.IsPositive() {
		slog.Warn("custody underfunded",
			"balance", report.CustodyBalance.String(),
			"liability", liability.String(),
			"shortfall", report.Shortfall.String(),
		)
	}
	return report, nil
}

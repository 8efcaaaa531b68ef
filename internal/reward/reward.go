// Package reward implements the linear time-proportional accrual formula
// for the staking pool:
//
//	reward = floor(principal * annualRate * elapsed / secondsPerYear / 100)
//
// annualRate is expressed in whole percentage points (10 means 10% per year).
// All monetary values use shopspring/decimal — never float64 for money.
// The arithmetic is exact: amounts are integer-valued decimals backed by
// arbitrary-precision coefficients, so the triple product never overflows
// and never rounds. The final division truncates (floor): rewards never
// round up, which keeps rounding from ever draining the custody pool.
package reward

import (
	"github.com/shopspring/decimal"
)

// SecondsPerYear is the accrual year used by the annual rate: 365 days,
// no leap handling.
const SecondsPerYear = 365 * 24 * 60 * 60

// divisor folds the percent scaling into the per-year division.
var divisor = decimal.NewFromInt(SecondsPerYear * 100)

// Accrued returns the total reward earned by principal at annualRate over
// elapsedSeconds. Callers pass elapsed = now - stake start; a non-positive
// elapsed yields zero rather than arithmetic on a negative operand.
func Accrued(principal decimal.Decimal, annualRate uint64, elapsedSeconds int64) decimal.Decimal {
	if elapsedSeconds <= 0 || !principal.IsPositive() {
		return decimal.Zero
	}

	product := principal.
		Mul(decimal.NewFromUint64(annualRate)).
		Mul(decimal.NewFromInt(elapsedSeconds))

	// QuoRem with precision 0 truncates toward zero; operands are
	// non-negative here, so this is the floor.
	q, _ := product.QuoRem(divisor, 0)
	return q
}

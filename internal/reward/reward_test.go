package reward

import (
	"testing"

	"github.com/shopspring/decimal"
)

// d is a test helper for creating integer decimals.
func d(i int64) decimal.Decimal {
	return decimal.NewFromInt(i)
}

func TestAccrued_TenPercentOverOneYear(t *testing.T) {
	// 1_000_000 at 10% for exactly 365 days → 100_000.
	got := Accrued(d(1_000_000), 10, SecondsPerYear)
	if !got.Equal(d(100_000)) {
		t.Errorf("expected 100000, got %s", got)
	}
}

func TestAccrued_HalfYear(t *testing.T) {
	got := Accrued(d(1_000_000), 10, SecondsPerYear/2)
	if !got.Equal(d(50_000)) {
		t.Errorf("expected 50000, got %s", got)
	}
}

func TestAccrued_TruncatesTowardZero(t *testing.T) {
	// 1 unit at 10% for a full year is 0.1 units → floors to 0.
	got := Accrued(d(1), 10, SecondsPerYear)
	if !got.IsZero() {
		t.Errorf("expected 0, got %s", got)
	}
}

func TestAccrued_OneDay(t *testing.T) {
	// 5e9 * 12 * 86400 / (SecondsPerYear * 100) = 1_643_835.61... → 1_643_835.
	got := Accrued(d(5_000_000_000), 12, 86400)
	if !got.Equal(d(1_643_835)) {
		t.Errorf("expected 1643835, got %s", got)
	}
}

func TestAccrued_NonPositiveElapsed(t *testing.T) {
	if got := Accrued(d(1_000_000), 10, 0); !got.IsZero() {
		t.Errorf("expected 0 for zero elapsed, got %s", got)
	}
	if got := Accrued(d(1_000_000), 10, -1); !got.IsZero() {
		t.Errorf("expected 0 for negative elapsed, got %s", got)
	}
}

func TestAccrued_ZeroPrincipalOrRate(t *testing.T) {
	if got := Accrued(decimal.Zero, 10, SecondsPerYear); !got.IsZero() {
		t.Errorf("expected 0 for zero principal, got %s", got)
	}
	if got := Accrued(d(1_000_000), 0, SecondsPerYear); !got.IsZero() {
		t.Errorf("expected 0 for zero rate, got %s", got)
	}
}

func TestAccrued_MonotonicInElapsed(t *testing.T) {
	principal := d(123_456_789)
	prev := decimal.Zero
	for elapsed := int64(0); elapsed <= 10*SecondsPerYear; elapsed += SecondsPerYear / 7 {
		got := Accrued(principal, 10, elapsed)
		if got.LessThan(prev) {
			t.Fatalf("accrual decreased: elapsed=%d prev=%s got=%s", elapsed, prev, got)
		}
		prev = got
	}
}

func TestAccrued_LargeInputsDoNotOverflow(t *testing.T) {
	// Principal 2^63 at 300% for a decade. 10 years / (year * 100) = 1/10
	// exactly, so the expected value is principal * 30.
	principal, err := decimal.NewFromString("9223372036854775808")
	if err != nil {
		t.Fatal(err)
	}
	want, err := decimal.NewFromString("276701161105643274240")
	if err != nil {
		t.Fatal(err)
	}

	got := Accrued(principal, 300, 10*SecondsPerYear)
	if !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestAccrued_AlwaysWholeUnits(t *testing.T) {
	cases := []struct {
		principal int64
		rate      uint64
		elapsed   int64
	}{
		{999, 7, 123_456},
		{1_000_003, 13, 86_401},
		{77, 100, SecondsPerYear - 1},
		{123_456_789_000, 3, 59},
	}
	for _, tt := range cases {
		got := Accrued(d(tt.principal), tt.rate, tt.elapsed)
		if !got.IsInteger() {
			t.Errorf("Accrued(%d,%d,%d) = %s, want whole units",
				tt.principal, tt.rate, tt.elapsed, got)
		}
		if got.IsNegative() {
			t.Errorf("Accrued(%d,%d,%d) = %s, want non-negative",
				tt.principal, tt.rate, tt.elapsed, got)
		}
	}
}

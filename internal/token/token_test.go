package token

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(i int64) decimal.Decimal {
	return decimal.NewFromInt(i)
}

func newBank(t *testing.T) *MemoryBank {
	t.Helper()
	b := NewMemoryBank()
	ctx := context.Background()
	if err := b.CreateAccount(ctx, "alice", "alice"); err != nil {
		t.Fatal(err)
	}
	if err := b.CreateAccount(ctx, "custody", "pool"); err != nil {
		t.Fatal(err)
	}
	if err := b.Mint(ctx, "alice", d(1000)); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestTransfer_ByOwnerPrincipal(t *testing.T) {
	b := newBank(t)
	ctx := context.Background()

	err := b.Transfer(ctx, "alice", "custody", Authority{Principal: "alice"}, d(400))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := b.Balance(ctx, "alice")
	if !got.Equal(d(600)) {
		t.Errorf("alice balance: expected 600, got %s", got)
	}
	got, _ = b.Balance(ctx, "custody")
	if !got.Equal(d(400)) {
		t.Errorf("custody balance: expected 400, got %s", got)
	}
}

func TestTransfer_WrongPrincipalRejected(t *testing.T) {
	b := newBank(t)

	err := b.Transfer(context.Background(), "alice", "custody", Authority{Principal: "mallory"}, d(100))
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestTransfer_CredentialControlsAccount(t *testing.T) {
	b := newBank(t)
	ctx := context.Background()

	cred, err := b.IssueCredential(ctx, "custody")
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Transfer(ctx, "alice", "custody", Authority{Principal: "alice"}, d(500)); err != nil {
		t.Fatal(err)
	}

	// The credential moves funds out of custody.
	if err := b.Transfer(ctx, "custody", "alice", Authority{Credential: cred}, d(200)); err != nil {
		t.Fatalf("credential transfer failed: %v", err)
	}

	// A wrong credential does not.
	err = b.Transfer(ctx, "custody", "alice", Authority{Credential: Credential("forged")}, d(1))
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for forged credential, got %v", err)
	}

	// Once bound, not even the registered owner principal moves funds.
	err = b.Transfer(ctx, "custody", "alice", Authority{Principal: "pool"}, d(1))
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for principal on credentialed account, got %v", err)
	}
}

func TestTransfer_InsufficientFunds(t *testing.T) {
	b := newBank(t)

	err := b.Transfer(context.Background(), "alice", "custody", Authority{Principal: "alice"}, d(1001))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}

	// Nothing moved.
	got, _ := b.Balance(context.Background(), "alice")
	if !got.Equal(d(1000)) {
		t.Errorf("alice balance: expected 1000, got %s", got)
	}
}

func TestTransfer_InvalidAmounts(t *testing.T) {
	b := newBank(t)
	ctx := context.Background()

	for _, amount := range []decimal.Decimal{
		decimal.Zero,
		d(-5),
		decimal.NewFromFloat(1.5),
	} {
		err := b.Transfer(ctx, "alice", "custody", Authority{Principal: "alice"}, amount)
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("amount %s: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestTransfer_UnknownAccounts(t *testing.T) {
	b := newBank(t)
	ctx := context.Background()

	err := b.Transfer(ctx, "ghost", "custody", Authority{Principal: "ghost"}, d(1))
	if !errors.Is(err, ErrUnknownAccount) {
		t.Errorf("expected ErrUnknownAccount for source, got %v", err)
	}
	err = b.Transfer(ctx, "alice", "ghost", Authority{Principal: "alice"}, d(1))
	if !errors.Is(err, ErrUnknownAccount) {
		t.Errorf("expected ErrUnknownAccount for destination, got %v", err)
	}
}

func TestCreateAccount_Duplicate(t *testing.T) {
	b := newBank(t)

	err := b.CreateAccount(context.Background(), "alice", "alice")
	if !errors.Is(err, ErrAccountExists) {
		t.Errorf("expected ErrAccountExists, got %v", err)
	}
}

func TestIssueCredential_UnknownAccount(t *testing.T) {
	b := newBank(t)

	_, err := b.IssueCredential(context.Background(), "ghost")
	if !errors.Is(err, ErrUnknownAccount) {
		t.Errorf("expected ErrUnknownAccount, got %v", err)
	}
}

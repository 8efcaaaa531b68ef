// Package token models the external token-transfer service the staking
// ledger depends on: named accounts holding balances of a single fungible
// asset, with transfers authorized either by the source account's owner or
// by a custody credential held by the pool itself.
//
// The in-memory bank here is a stand-in for the real asset layer. It is
// used for testing and development; a production deployment would back the
// Service interface with the actual transfer system.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownAccount is returned when a transfer names an account that
	// does not exist.
	ErrUnknownAccount = errors.New("token: unknown account")

	// ErrAccountExists is returned when creating an account whose id is taken.
	ErrAccountExists = errors.New("token: account already exists")

	// ErrUnauthorized is returned when the presented authority does not
	// control the source account.
	ErrUnauthorized = errors.New("token: authority does not control source account")

	// ErrInsufficientFunds is returned when the source balance cannot cover
	// the transfer amount.
	ErrInsufficientFunds = errors.New("token: insufficient funds")

	// ErrInvalidAmount is returned for non-positive or fractional amounts.
	ErrInvalidAmount = errors.New("token: amount must be a positive whole number of base units")
)

// Credential is an opaque capability that authorizes outbound transfers
// from the account it was issued for. The ledger obtains one when the
// custody account is created and presents it for every outbound transfer;
// it is never exposed to, or satisfiable by, external callers.
type Credential string

// Authority identifies who is authorizing a transfer out of the source
// account: a principal that must own the account, or a custody credential
// bound to it. Exactly one of the two should be set.
type Authority struct {
	Principal  string
	Credential Credential
}

// Service is the transfer interface consumed by the staking ledger.
type Service interface {
	// CreateAccount registers a new empty account owned by owner.
	CreateAccount(ctx context.Context, id, owner string) error

	// IssueCredential binds a fresh custody credential to the account.
	// Transfers out of the account may then be authorized by the credential
	// instead of the owner principal.
	IssueCredential(ctx context.Context, id string) (Credential, error)

	// Transfer moves amount from one account to another. The authority must
	// control the source account. Either the whole transfer happens or
	// nothing does.
	Transfer(ctx context.Context, from, to string, auth Authority, amount decimal.Decimal) error

	// Balance returns the current balance of an account.
	Balance(ctx context.Context, id string) (decimal.Decimal, error)
}

type account struct {
	owner      string
	balance    decimal.Decimal
	credential Credential
}

// MemoryBank implements Service with in-memory accounts. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryBank struct {
	mu       sync.Mutex
	accounts map[string]*account
}

// NewMemoryBank creates an empty in-memory bank.
func NewMemoryBank() *MemoryBank {
	return &MemoryBank{accounts: make(map[string]*account)}
}

func (b *MemoryBank) CreateAccount(_ context.Context, id, owner string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.accounts[id]; ok {
		return fmt.Errorf("%w: %s", ErrAccountExists, id)
	}
	b.accounts[id] = &account{owner: owner, balance: decimal.Zero}
	return nil
}

func (b *MemoryBank) IssueCredential(_ context.Context, id string) (Credential, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	acct, ok := b.accounts[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAccount, id)
	}
	acct.credential = Credential(uuid.New().String())
	return acct.credential, nil
}

func (b *MemoryBank) Transfer(_ context.Context, from, to string, auth Authority, amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.IsInteger() {
		return ErrInvalidAmount
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	src, ok := b.accounts[from]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, from)
	}
	dst, ok := b.accounts[to]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, to)
	}

	if !b.authorized(src, auth) {
		return ErrUnauthorized
	}
	if src.balance.LessThan(amount) {
		return fmt.Errorf("%w: %s has %s, need %s", ErrInsufficientFunds, from, src.balance, amount)
	}

	src.balance = src.balance.Sub(amount)
	dst.balance = dst.balance.Add(amount)
	return nil
}

func (b *MemoryBank) Balance(_ context.Context, id string) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	acct, ok := b.accounts[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownAccount, id)
	}
	return acct.balance, nil
}

// Mint credits an account out of thin air. Test and development seeding only.
func (b *MemoryBank) Mint(_ context.Context, id string, amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.IsInteger() {
		return ErrInvalidAmount
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	acct, ok := b.accounts[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, id)
	}
	acct.balance = acct.balance.Add(amount)
	return nil
}

// authorized checks the presented authority against the source account.
// Once a credential is bound, it is the only authority the account honors:
// no principal, including the registered owner, can move funds out.
func (b *MemoryBank) authorized(src *account, auth Authority) bool {
	if src.credential != "" {
		return auth.Credential == src.credential
	}
	return auth.Principal != "" && auth.Principal == src.owner
}

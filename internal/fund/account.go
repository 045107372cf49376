package fund

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"StockPicker/internal/model"
)

// ErrInsufficientCash is returned when a debit or reservation exceeds free cash.
var ErrInsufficientCash = errors.New("insufficient cash")

// Account is the cash ledger behind paper trading. Reserved cash is held for
// buy orders that have been accepted but not yet filled.
type Account struct {
	mu    sync.Mutex
	state model.AccountState
}

// NewAccount creates an account that sizes entries at percent of free cash.
func NewAccount(initialCash, percent float64) (*Account, error) {
	if initialCash <= 0 {
		return nil, fmt.Errorf("initial cash must be positive, got %.2f", initialCash)
	}
	if percent <= 0 || percent > 100 {
		return nil, fmt.Errorf("percent must be in (0,100], got %.2f", percent)
	}
	return &Account{state: model.AccountState{
		InitialCash: initialCash,
		Cash:        initialCash,
		Percent:     percent,
		UpdatedAt:   time.Now(),
	}}, nil
}

// FromState resumes an account from a saved snapshot.
func FromState(st model.AccountState) *Account {
	return &Account{state: st}
}

// Snapshot returns a copy of the current state.
func (a *Account) Snapshot() model.AccountState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Free is cash not held for pending buys.
func (a *Account) Free() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Cash - a.state.Reserved
}

// Size implements strategy.Sizer: Percent of free cash in whole units.
func (a *Account) Size(_ string, price float64) float64 {
	if price <= 0 {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	free := a.state.Cash - a.state.Reserved
	return math.Floor(free * a.state.Percent / 100 / price)
}

// Reserve holds amount for a pending buy.
func (a *Account) Reserve(amount float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if amount > a.state.Cash-a.state.Reserved {
		return fmt.Errorf("reserve %.2f with %.2f free: %w", amount, a.state.Cash-a.state.Reserved, ErrInsufficientCash)
	}
	a.state.Reserved += amount
	a.touch()
	return nil
}

// Release returns a reservation that will not be used.
func (a *Account) Release(amount float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Reserved = math.Max(0, a.state.Reserved-amount)
	a.touch()
}

// SettleBuy releases reserved and debits the actual cost. The debit may use
// free cash beyond the reservation when the fill price moved up.
func (a *Account) SettleBuy(reserved, cost float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	held := math.Min(reserved, a.state.Reserved)
	if cost > a.state.Cash-a.state.Reserved+held {
		return fmt.Errorf("settle %.2f: %w", cost, ErrInsufficientCash)
	}
	a.state.Reserved -= held
	a.state.Cash -= cost
	a.touch()
	return nil
}

// Credit adds sale proceeds.
func (a *Account) Credit(amount float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Cash += amount
	a.touch()
}

func (a *Account) touch() { a.state.UpdatedAt = time.Now() }

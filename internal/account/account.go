// Package account maintains the simulated ledger: per-instrument positions,
// cash balances, frozen funds, and the capital-flow history. All mutation
// goes through defined transitions guarded by a per-account mutex so that
// concurrent tasks touching the same account cannot lose updates.
package account

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"papertrade/internal/cost"
	"papertrade/internal/domain"
)

var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientPosition = errors.New("insufficient position")
	ErrInvalidAmount        = errors.New("amount must be positive")
)

// FlowEntry records a single balance-affecting event.
type FlowEntry struct {
	Time      time.Time        `json:"time"`
	Type      string           `json:"type"` // trade, deposit, withdraw, dividend
	Symbol    string           `json:"symbol,omitempty"`
	Direction domain.Direction `json:"direction,omitempty"`
	Volume    int64            `json:"volume,omitempty"`
	Price     float64          `json:"price,omitempty"`
	Amount    float64          `json:"amount"`
	Cost      float64          `json:"cost,omitempty"`
	Balance   float64          `json:"balance"`
	Available float64          `json:"available"`
}

// Account is a simulated brokerage account. The invariant
// available == balance − frozen holds by construction: available is always
// derived, never stored.
type Account struct {
	mu sync.Mutex

	id             string
	initialBalance float64
	balance        float64
	frozen         float64
	realizedPnL    float64
	commissionPaid float64

	positions map[string]*Position
	history   []FlowEntry
	calc      *cost.Calculator
	updatedAt time.Time
}

// New creates an account with the given starting balance and fee calculator.
func New(id string, initialBalance float64, calc *cost.Calculator) *Account {
	return &Account{
		id:             id,
		initialBalance: initialBalance,
		balance:        initialBalance,
		positions:      make(map[string]*Position),
		calc:           calc,
		updatedAt:      time.Now(),
	}
}

// ID returns the account identifier.
func (a *Account) ID() string { return a.id }

// Balance returns the current cash balance.
func (a *Account) Balance() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// Available returns balance minus frozen funds.
func (a *Account) Available() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance - a.frozen
}

// Frozen returns the funds reserved against pending opening orders.
func (a *Account) Frozen() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frozen
}

// Freeze reserves cash against a pending opening order.
func (a *Account) Freeze(amount float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if amount > a.balance-a.frozen {
		return fmt.Errorf("%w: need %.2f, available %.2f", ErrInsufficientFunds, amount, a.balance-a.frozen)
	}
	a.frozen += amount
	a.updatedAt = time.Now()
	return nil
}

// Release returns previously frozen cash, on order cancellation or fill.
func (a *Account) Release(amount float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frozen -= amount
	if a.frozen < 0 {
		a.frozen = 0
	}
	a.updatedAt = time.Now()
}

// ApplyFill settles a fill against the ledger: releases the frozen amount
// for opening fills, updates the position, and moves cash net of fees.
// It returns the fee breakdown and the realized profit (closes only).
func (a *Account) ApplyFill(symbol string, venue domain.Venue, direction domain.Direction, offset domain.Offset, price float64, volume int64) (cost.Breakdown, float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	breakdown := a.calc.Calculate(price, volume, direction, offset, venue)

	pos := a.positions[symbol]
	if pos == nil {
		pos = &Position{Symbol: symbol, Venue: venue}
		a.positions[symbol] = pos
	}

	var pnl float64
	if offset == domain.OffsetOpen {
		// The engine froze price×volume at submission; the fill releases it
		// and the cash leaves the balance together with fees.
		a.frozen -= breakdown.Amount
		if a.frozen < 0 {
			a.frozen = 0
		}
		a.balance -= breakdown.Amount + breakdown.TotalCost
		pos.open(price, volume)
	} else {
		if pos.Volume < volume {
			return cost.Breakdown{}, 0, fmt.Errorf("%w: need %d, held %d", ErrInsufficientPosition, volume, pos.Volume)
		}
		pnl = pos.close(price, volume, direction)
		a.balance += breakdown.Amount - breakdown.TotalCost
		a.realizedPnL += pnl
	}

	a.commissionPaid += breakdown.Commission
	a.appendFlow(FlowEntry{
		Time:      time.Now(),
		Type:      "trade",
		Symbol:    symbol,
		Direction: direction,
		Volume:    volume,
		Price:     price,
		Amount:    breakdown.Amount,
		Cost:      breakdown.TotalCost,
	})
	return breakdown, pnl, nil
}

// UpdatePrice marks a held position to the latest market price. Prices for
// symbols with no position are ignored.
func (a *Account) UpdatePrice(symbol string, price float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if pos, ok := a.positions[symbol]; ok {
		pos.CurrentPrice = price
		pos.UpdatedAt = time.Now()
	}
}

// Deposit credits cash to the account.
func (a *Account) Deposit(amount float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if amount <= 0 {
		return ErrInvalidAmount
	}
	a.balance += amount
	a.appendFlow(FlowEntry{Time: time.Now(), Type: "deposit", Amount: amount})
	return nil
}

// Withdraw debits cash; rejected when the amount exceeds available funds.
func (a *Account) Withdraw(amount float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > a.balance-a.frozen {
		return fmt.Errorf("%w: need %.2f, available %.2f", ErrInsufficientFunds, amount, a.balance-a.frozen)
	}
	a.balance -= amount
	a.appendFlow(FlowEntry{Time: time.Now(), Type: "withdraw", Amount: amount})
	return nil
}

// Dividend credits a cash dividend for a held symbol.
func (a *Account) Dividend(symbol string, amount float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if amount <= 0 {
		return ErrInvalidAmount
	}
	a.balance += amount
	a.appendFlow(FlowEntry{Time: time.Now(), Type: "dividend", Symbol: symbol, Amount: amount})
	return nil
}

// Position returns a snapshot of the holding in symbol, and whether any
// volume is held.
func (a *Account) Position(symbol string) (Snapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	pos, ok := a.positions[symbol]
	if !ok || pos.Volume == 0 {
		return Snapshot{}, false
	}
	return pos.snapshot(), true
}

// Positions returns snapshots of all holdings with non-zero volume.
func (a *Account) Positions() []Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Snapshot, 0, len(a.positions))
	for _, pos := range a.positions {
		if pos.Volume > 0 {
			out = append(out, pos.snapshot())
		}
	}
	return out
}

// History returns a copy of the capital-flow history.
func (a *Account) History() []FlowEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]FlowEntry, len(a.history))
	copy(out, a.history)
	return out
}

// Info is a point-in-time summary of the account's financial state.
type Info struct {
	ID             string  `json:"account_id"`
	InitialBalance float64 `json:"initial_balance"`
	Balance        float64 `json:"balance"`
	Available      float64 `json:"available"`
	Frozen         float64 `json:"frozen"`
	MarketValue    float64 `json:"market_value"`
	TotalAsset     float64 `json:"total_asset"`
	RealizedPnL    float64 `json:"realized_pnl"`
	CommissionPaid float64 `json:"commission_paid"`
	PositionCount  int     `json:"position_count"`
}

// Snapshot summarizes the account.
func (a *Account) Snapshot() Info {
	a.mu.Lock()
	defer a.mu.Unlock()

	var marketValue float64
	var count int
	for _, pos := range a.positions {
		if pos.Volume > 0 {
			marketValue += pos.MarketValue()
			count++
		}
	}
	return Info{
		ID:             a.id,
		InitialBalance: a.initialBalance,
		Balance:        a.balance,
		Available:      a.balance - a.frozen,
		Frozen:         a.frozen,
		MarketValue:    marketValue,
		TotalAsset:     a.balance + marketValue,
		RealizedPnL:    a.realizedPnL,
		CommissionPaid: a.commissionPaid,
		PositionCount:  count,
	}
}

// appendFlow records a balance change. Caller must hold a.mu.
func (a *Account) appendFlow(e FlowEntry) {
	e.Balance = a.balance
	e.Available = a.balance - a.frozen
	a.history = append(a.history, e)
	a.updatedAt = e.Time
}

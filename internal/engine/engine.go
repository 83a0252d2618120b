// Package engine executes admitted orders against the simulated ledger.
// Fills are immediate: the full requested volume executes at the requested
// price, a simplification versus a real matching engine (no partial fills,
// no resting book). Admission control lives in the risk gate; the engine
// validates request shape, then focuses on state transition.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"papertrade/internal/account"
	"papertrade/internal/domain"
	"papertrade/internal/risk"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrRejected      = errors.New("order rejected")
)

// Recorder persists orders and trades as they reach terminal states. The
// engine treats persistence as best-effort: a failing recorder is logged,
// never blocks a fill.
type Recorder interface {
	SaveOrder(o *domain.Order) error
	SaveTrade(t *domain.Trade) error
}

// Request describes an order to submit.
type Request struct {
	AccountID string           `json:"account_id"`
	Symbol    string           `json:"symbol"`
	Venue     domain.Venue     `json:"venue"`
	Direction domain.Direction `json:"direction"`
	Offset    domain.Offset    `json:"offset"`
	Kind      domain.OrderKind `json:"kind"`
	Price     float64          `json:"price"`
	Volume    int64            `json:"volume"`
}

// Engine turns admitted requests into fills and keeps the order and trade
// history. All dependencies are injected; two engines over different
// registries are fully independent.
type Engine struct {
	accounts *account.Registry
	gate     *risk.Gate
	log      *slog.Logger
	recorder Recorder

	mu     sync.Mutex
	orders map[string]*domain.Order
	trades []*domain.Trade
}

// New constructs an Engine. The recorder may be nil for in-memory-only use.
func New(accounts *account.Registry, gate *risk.Gate, recorder Recorder, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		accounts: accounts,
		gate:     gate,
		log:      log,
		recorder: recorder,
		orders:   make(map[string]*domain.Order),
	}
}

// validate rejects malformed requests before any state is touched.
func validate(req Request) error {
	if req.AccountID == "" {
		return errors.New("account id required")
	}
	if req.Symbol == "" {
		return errors.New("symbol required")
	}
	if req.Venue != domain.VenueSSE && req.Venue != domain.VenueSZSE {
		return fmt.Errorf("unknown venue %q", req.Venue)
	}
	if req.Volume <= 0 {
		return fmt.Errorf("volume must be positive, got %d", req.Volume)
	}
	if req.Price <= 0 {
		return fmt.Errorf("price must be positive, got %v", req.Price)
	}
	return nil
}

// Submit validates the request, runs it through the risk gate, and on
// admission fills it immediately. It returns the order ID; a risk-rejected
// order is still recorded, with status rejected, and the returned error
// wraps ErrRejected with the gate's reason.
func (e *Engine) Submit(req Request) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}

	now := time.Now()
	order := &domain.Order{
		ID:        uuid.NewString(),
		AccountID: req.AccountID,
		Symbol:    req.Symbol,
		Venue:     req.Venue,
		Direction: req.Direction,
		Offset:    req.Offset,
		Kind:      req.Kind,
		Price:     req.Price,
		Volume:    req.Volume,
		Status:    domain.OrderStatusSubmitting,
		CreatedAt: now,
		UpdatedAt: now,
	}

	verdict := e.gate.CheckOrder(req.AccountID, order)
	if !verdict.Passed {
		order.Status = domain.OrderStatusRejected
		order.UpdatedAt = time.Now()
		e.remember(order)
		e.log.Warn("order rejected",
			"order_id", order.ID,
			"account_id", req.AccountID,
			"symbol", req.Symbol,
			"reason", verdict.Reason,
			"severity", verdict.Severity)
		return order.ID, fmt.Errorf("%w: %s", ErrRejected, verdict.Reason)
	}

	acct := e.accounts.Get(req.AccountID)
	if acct == nil {
		return "", fmt.Errorf("account %q not found", req.AccountID)
	}

	// Reserve cash for the opening leg. The gate already verified coverage,
	// but the ledger re-checks under its own lock.
	frozen := 0.0
	if req.Offset == domain.OffsetOpen {
		frozen = req.Price * float64(req.Volume)
		if err := acct.Freeze(frozen); err != nil {
			order.Status = domain.OrderStatusRejected
			order.UpdatedAt = time.Now()
			e.remember(order)
			return order.ID, fmt.Errorf("%w: %v", ErrRejected, err)
		}
	}
	order.Status = domain.OrderStatusActive

	breakdown, pnl, err := acct.ApplyFill(req.Symbol, req.Venue, req.Direction, req.Offset, req.Price, req.Volume)
	if err != nil {
		if frozen > 0 {
			acct.Release(frozen)
		}
		order.Status = domain.OrderStatusRejected
		order.UpdatedAt = time.Now()
		e.remember(order)
		return order.ID, fmt.Errorf("%w: %v", ErrRejected, err)
	}

	order.Status = domain.OrderStatusFilled
	order.TradedVolume = req.Volume
	order.UpdatedAt = time.Now()

	trade := &domain.Trade{
		ID:         uuid.NewString(),
		OrderID:    order.ID,
		AccountID:  req.AccountID,
		Symbol:     req.Symbol,
		Venue:      req.Venue,
		Direction:  req.Direction,
		Offset:     req.Offset,
		Price:      req.Price,
		Volume:     req.Volume,
		Commission: breakdown.Commission,
		Profit:     pnl,
		Timestamp:  time.Now(),
	}

	e.mu.Lock()
	e.orders[order.ID] = order
	e.trades = append(e.trades, trade)
	e.mu.Unlock()

	e.gate.RecordTrade(req.AccountID, trade)
	e.persist(order, trade)

	e.log.Info("order filled",
		"order_id", order.ID,
		"trade_id", trade.ID,
		"account_id", req.AccountID,
		"symbol", req.Symbol,
		"direction", req.Direction,
		"offset", req.Offset,
		"price", req.Price,
		"volume", req.Volume,
		"commission", breakdown.Commission,
		"profit", pnl)
	return order.ID, nil
}

// Cancel cancels an order still in a non-terminal state, reversing any cash
// frozen at submission. Cancelling a terminal order is a no-op returning
// false.
func (e *Engine) Cancel(orderID string) bool {
	e.mu.Lock()
	order, ok := e.orders[orderID]
	if !ok || order.Status.IsTerminal() {
		e.mu.Unlock()
		return false
	}
	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = time.Now()
	e.mu.Unlock()

	if order.Offset == domain.OffsetOpen {
		if acct := e.accounts.Get(order.AccountID); acct != nil {
			acct.Release(order.Price * float64(order.Volume))
		}
	}
	e.persist(order, nil)
	e.log.Info("order cancelled", "order_id", orderID)
	return true
}

// Order returns a copy of the order with the given ID.
func (e *Engine) Order(orderID string) (domain.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	order, ok := e.orders[orderID]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return *order, nil
}

// Orders returns all orders for an account, oldest first.
func (e *Engine) Orders(accountID string) []domain.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Order, 0)
	for _, o := range e.orders {
		if o.AccountID == accountID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Trades returns all trades for an account in execution order.
func (e *Engine) Trades(accountID string) []domain.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Trade, 0)
	for _, t := range e.trades {
		if t.AccountID == accountID {
			out = append(out, *t)
		}
	}
	return out
}

func (e *Engine) remember(order *domain.Order) {
	e.mu.Lock()
	e.orders[order.ID] = order
	e.mu.Unlock()
	e.persist(order, nil)
}

func (e *Engine) persist(order *domain.Order, trade *domain.Trade) {
	if e.recorder == nil {
		return
	}
	if order != nil {
		if err := e.recorder.SaveOrder(order); err != nil {
			e.log.Error("persist order failed", "order_id", order.ID, "error", err)
		}
	}
	if trade != nil {
		if err := e.recorder.SaveTrade(trade); err != nil {
			e.log.Error("persist trade failed", "trade_id", trade.ID, "error", err)
		}
	}
}

// Package builtins provides ready-to-use strategy implementations.
package builtins

import (
	"context"
	"fmt"
	"time"

	"papertrade/internal/domain"
	"papertrade/internal/indicator"
	"papertrade/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross is a dual moving average crossover strategy. It emits a buy
// signal when the short SMA crosses above the long SMA, and a sell signal
// when it crosses below.
type SMACross struct {
	shortPeriod int
	longPeriod  int

	closes []float64
	// prevAbove tracks whether the short SMA was above the long SMA on the
	// previous bar; nil until both SMAs are computable.
	prevAbove *bool
}

// NewSMACross creates an SMA crossover strategy. longPeriod must exceed
// shortPeriod and both must be positive.
func NewSMACross(shortPeriod, longPeriod int) (*SMACross, error) {
	if shortPeriod <= 0 || longPeriod <= shortPeriod {
		return nil, fmt.Errorf("invalid periods: short=%d long=%d", shortPeriod, longPeriod)
	}
	return &SMACross{shortPeriod: shortPeriod, longPeriod: longPeriod}, nil
}

// Name implements strategy.Strategy.
func (s *SMACross) Name() string {
	return fmt.Sprintf("sma-cross-%d-%d", s.shortPeriod, s.longPeriod)
}

// Clone returns a stateless copy with the same periods.
func (s *SMACross) Clone() strategy.Strategy {
	return &SMACross{shortPeriod: s.shortPeriod, longPeriod: s.longPeriod}
}

// Init resets the price buffer so the instance can be reused across runs.
func (s *SMACross) Init(ctx context.Context) error {
	s.closes = s.closes[:0]
	s.prevAbove = nil
	return nil
}

// OnBar implements strategy.Strategy.
func (s *SMACross) OnBar(ctx context.Context, bar domain.Bar) ([]domain.Signal, error) {
	s.closes = append(s.closes, bar.Close)
	if len(s.closes) < s.longPeriod {
		return nil, nil
	}

	short := indicator.SMA(s.closes, s.shortPeriod)
	long := indicator.SMA(s.closes, s.longPeriod)
	above := short > long

	defer func() { s.prevAbove = &above }()

	if s.prevAbove == nil || *s.prevAbove == above {
		return nil, nil
	}

	sigType := domain.SignalTypeSell
	if above {
		sigType = domain.SignalTypeBuy
	}
	return []domain.Signal{{
		StrategyID: s.Name(),
		Symbol:     bar.Symbol,
		Type:       sigType,
		Price:      bar.Close,
		Strength:   crossStrength(short, long),
		CreatedAt:  time.Now(),
	}}, nil
}

// crossStrength scales the SMA gap into a 0..1 signal strength.
func crossStrength(short, long float64) float64 {
	if long == 0 {
		return 0
	}
	gap := (short - long) / long
	if gap < 0 {
		gap = -gap
	}
	if gap > 1 {
		gap = 1
	}
	return gap
}

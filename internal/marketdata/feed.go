// Package marketdata supplies price data to the rest of the platform: live
// quotes for marking positions and daily bars for backfilling the bar store.
package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"papertrade/internal/domain"
)

// PriceFeed provides the latest traded price per symbol and historical daily
// bars.
type PriceFeed interface {
	// LatestPrices returns the most recent price for each requested symbol.
	// Symbols with no available price are absent from the result.
	LatestPrices(ctx context.Context, symbols []string) (map[string]float64, error)

	// DailyBars returns daily OHLCV bars for the symbol within [start, end].
	DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// Compile-time interface check.
var _ PriceFeed = (*StaticFeed)(nil)

// StaticFeed serves prices and bars set by hand. It backs offline use and
// tests.
type StaticFeed struct {
	mu     sync.RWMutex
	prices map[string]float64
	bars   map[string][]domain.Bar
}

// NewStaticFeed creates an empty StaticFeed.
func NewStaticFeed() *StaticFeed {
	return &StaticFeed{
		prices: make(map[string]float64),
		bars:   make(map[string][]domain.Bar),
	}
}

// SetPrice sets the latest price for a symbol.
func (f *StaticFeed) SetPrice(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = price
}

// SetBars replaces the bar history for a symbol.
func (f *StaticFeed) SetBars(symbol string, bars []domain.Bar) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bars[symbol] = bars
}

// LatestPrices implements PriceFeed.
func (f *StaticFeed) LatestPrices(_ context.Context, symbols []string) (map[string]float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		if p, ok := f.prices[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

// DailyBars implements PriceFeed. A symbol with no bars at all yields
// ErrNoData; a window that happens to be empty yields an empty slice.
func (f *StaticFeed) DailyBars(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	bars, ok := f.bars[symbol]
	if !ok || len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}
	var out []domain.Bar
	for _, b := range bars {
		if !b.Timestamp.Before(start) && !b.Timestamp.After(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

// ErrNoData is wrapped by feed errors when a symbol has no bars at all.
// Callers that treat missing symbols as skippable branch on it with
// errors.Is.
var ErrNoData = fmt.Errorf("no market data")

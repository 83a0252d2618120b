// Package store persists domain objects: OHLCV bars in Parquet files for
// backtests and scans, orders and trades in SQLite for the execution audit
// trail.
package store

import (
	"context"
	"time"

	"papertrade/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars under the given venue.
	WriteBars(ctx context.Context, venue domain.Venue, bars []domain.Bar) error

	// ReadBars returns bars for the symbol within [start, end].
	ReadBars(ctx context.Context, symbol string, venue domain.Venue, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols stored for the venue.
	ListSymbols(ctx context.Context, venue domain.Venue) ([]string, error)
}

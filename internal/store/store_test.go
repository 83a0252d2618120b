package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"papertrade/internal/domain"
)

func TestParquetStoreWriteReadBars(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	bars := []domain.Bar{
		{
			Symbol:    "600519",
			Timestamp: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
			Open:      1500, High: 1520, Low: 1495, Close: 1510,
			Volume: 3000000, TradeCount: 45000, VWAP: 1508,
		},
		{
			Symbol:    "600519",
			Timestamp: time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
			Open:      1510, High: 1530, Low: 1505, Close: 1525,
			Volume: 2800000, TradeCount: 42000, VWAP: 1520,
		},
	}
	if err := ps.WriteBars(ctx, domain.VenueSSE, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	got, err := ps.ReadBars(ctx, "600519", domain.VenueSSE, start, end)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2", len(got))
	}
	if got[0].Close != 1510 || got[1].Close != 1525 {
		t.Errorf("closes = %v/%v, want 1510/1525", got[0].Close, got[1].Close)
	}
}

func TestParquetStoreMergeBars(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	first := []domain.Bar{{
		Symbol:    "000001",
		Timestamp: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		Open:      11, High: 11.5, Low: 10.8, Close: 11.2, Volume: 90000000,
	}}
	if err := ps.WriteBars(ctx, domain.VenueSZSE, first); err != nil {
		t.Fatalf("WriteBars (first): %v", err)
	}

	// Same symbol and year: the file must merge, not overwrite.
	second := []domain.Bar{{
		Symbol:    "000001",
		Timestamp: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC),
		Open:      11.2, High: 11.8, Low: 11.1, Close: 11.6, Volume: 85000000,
	}}
	if err := ps.WriteBars(ctx, domain.VenueSZSE, second); err != nil {
		t.Fatalf("WriteBars (second): %v", err)
	}

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	got, err := ps.ReadBars(ctx, "000001", domain.VenueSZSE, start, end)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars after merge, want 2", len(got))
	}
}

func TestParquetStoreListSymbols(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	bars := []domain.Bar{
		{Symbol: "600000", Timestamp: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), Close: 8.5, Volume: 50000000},
		{Symbol: "600519", Timestamp: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), Close: 1510, Volume: 3000000},
	}
	if err := ps.WriteBars(ctx, domain.VenueSSE, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	symbols, err := ps.ListSymbols(ctx, domain.VenueSSE)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "600000" || symbols[1] != "600519" {
		t.Errorf("ListSymbols = %v, want [600000 600519]", symbols)
	}
	if other, _ := ps.ListSymbols(ctx, domain.VenueSZSE); other != nil {
		t.Errorf("ListSymbols for empty venue = %v, want nil", other)
	}
}

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestSQLiteStoreOrderRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)

	now := time.Now().Truncate(time.Millisecond)
	order := &domain.Order{
		ID:        "o1",
		AccountID: "a1",
		Symbol:    "600519",
		Venue:     domain.VenueSSE,
		Direction: domain.DirectionLong,
		Offset:    domain.OffsetOpen,
		Kind:      domain.OrderKindLimit,
		Price:     1510,
		Volume:    100,
		Status:    domain.OrderStatusSubmitting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.SaveOrder(order); err != nil {
		t.Fatalf("SaveOrder: %v", err)
	}

	// Status change re-saves the same row.
	order.Status = domain.OrderStatusFilled
	order.TradedVolume = 100
	if err := s.SaveOrder(order); err != nil {
		t.Fatalf("SaveOrder (update): %v", err)
	}

	got, err := s.Order("o1")
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if got.Status != domain.OrderStatusFilled {
		t.Errorf("status = %q, want filled", got.Status)
	}
	if got.TradedVolume != 100 {
		t.Errorf("traded volume = %d, want 100", got.TradedVolume)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, now)
	}

	orders, err := s.Orders("a1")
	if err != nil {
		t.Fatalf("Orders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("Orders returned %d rows, want 1", len(orders))
	}
	if empty, _ := s.Orders("other"); len(empty) != 0 {
		t.Errorf("Orders for unknown account = %d rows, want 0", len(empty))
	}
}

func TestSQLiteStoreTradeRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)

	now := time.Now().Truncate(time.Millisecond)
	trade := &domain.Trade{
		ID:         "t1",
		OrderID:    "o1",
		AccountID:  "a1",
		Symbol:     "000001",
		Venue:      domain.VenueSZSE,
		Direction:  domain.DirectionShort,
		Offset:     domain.OffsetClose,
		Price:      12,
		Volume:     100,
		Commission: 5,
		Profit:     200,
		Timestamp:  now,
	}
	if err := s.SaveTrade(trade); err != nil {
		t.Fatalf("SaveTrade: %v", err)
	}
	if err := s.SaveTrade(trade); err == nil {
		t.Error("duplicate SaveTrade succeeded, want error")
	}

	trades, err := s.Trades("a1")
	if err != nil {
		t.Fatalf("Trades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("Trades returned %d rows, want 1", len(trades))
	}
	got := trades[0]
	if got.Profit != 200 || got.Commission != 5 {
		t.Errorf("profit/commission = %v/%v, want 200/5", got.Profit, got.Commission)
	}
	if got.Direction != domain.DirectionShort || got.Offset != domain.OffsetClose {
		t.Errorf("direction/offset = %q/%q, want short/close", got.Direction, got.Offset)
	}
	if !got.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, now)
	}
}

package marketdata

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"papertrade/internal/account"
	"papertrade/internal/cost"
	"papertrade/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStaticFeedLatestPrices(t *testing.T) {
	f := NewStaticFeed()
	f.SetPrice("600519", 1510)
	f.SetPrice("000001", 11.2)

	prices, err := f.LatestPrices(context.Background(), []string{"600519", "000001", "999999"})
	if err != nil {
		t.Fatalf("LatestPrices: %v", err)
	}
	if len(prices) != 2 {
		t.Fatalf("got %d prices, want 2", len(prices))
	}
	if prices["600519"] != 1510 {
		t.Errorf("price[600519] = %v, want 1510", prices["600519"])
	}
	if _, ok := prices["999999"]; ok {
		t.Error("unknown symbol has a price")
	}
}

func TestStaticFeedDailyBarsWindow(t *testing.T) {
	f := NewStaticFeed()
	day := func(d int) time.Time { return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC) }
	f.SetBars("600519", []domain.Bar{
		{Symbol: "600519", Timestamp: day(2), Close: 1500},
		{Symbol: "600519", Timestamp: day(3), Close: 1510},
		{Symbol: "600519", Timestamp: day(6), Close: 1520},
	})

	bars, err := f.DailyBars(context.Background(), "600519", day(3), day(5))
	if err != nil {
		t.Fatalf("DailyBars: %v", err)
	}
	if len(bars) != 1 || bars[0].Close != 1510 {
		t.Errorf("bars = %+v, want only the Jan 3 bar", bars)
	}
}

func TestStaticFeedDailyBarsNoData(t *testing.T) {
	f := NewStaticFeed()
	day := func(d int) time.Time { return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC) }
	f.SetBars("600519", []domain.Bar{
		{Symbol: "600519", Timestamp: day(2), Close: 1500},
	})

	// Unknown symbol: ErrNoData.
	_, err := f.DailyBars(context.Background(), "999999", day(1), day(31))
	if !errors.Is(err, ErrNoData) {
		t.Errorf("DailyBars(unknown) error = %v, want ErrNoData", err)
	}

	// Known symbol, empty window: no bars but no error either.
	bars, err := f.DailyBars(context.Background(), "600519", day(10), day(20))
	if err != nil {
		t.Fatalf("DailyBars(empty window): %v", err)
	}
	if len(bars) != 0 {
		t.Errorf("bars = %+v, want none", bars)
	}
}

func newTestAccounts(t *testing.T) *account.Registry {
	t.Helper()
	reg := account.NewRegistry(cost.NewCalculator(cost.Schedule{}))
	acct, err := reg.Create("a1", 100000)
	if err != nil {
		t.Fatal(err)
	}
	if err := acct.Freeze(1000); err != nil {
		t.Fatal(err)
	}
	if _, _, err := acct.ApplyFill("600519", domain.VenueSSE, domain.DirectionLong, domain.OffsetOpen, 10, 100); err != nil {
		t.Fatal(err)
	}
	return reg
}

func TestPollerMarkOnce(t *testing.T) {
	reg := newTestAccounts(t)
	feed := NewStaticFeed()
	feed.SetPrice("600519", 12.5)

	p := NewPoller(feed, reg, time.Minute, discardLogger())
	if err := p.MarkOnce(context.Background()); err != nil {
		t.Fatalf("MarkOnce: %v", err)
	}

	pos, ok := reg.Get("a1").Position("600519")
	if !ok {
		t.Fatal("position missing")
	}
	if pos.CurrentPrice != 12.5 {
		t.Errorf("marked price = %v, want 12.5", pos.CurrentPrice)
	}
	if pos.Profit != 250 {
		t.Errorf("profit = %v, want 250", pos.Profit)
	}
}

func TestPollerNoPositionsNoFetch(t *testing.T) {
	reg := account.NewRegistry(cost.NewCalculator(cost.Schedule{}))
	if _, err := reg.Create("a1", 100000); err != nil {
		t.Fatal(err)
	}

	p := NewPoller(NewStaticFeed(), reg, time.Minute, discardLogger())
	if err := p.MarkOnce(context.Background()); err != nil {
		t.Errorf("MarkOnce with no positions: %v", err)
	}
}

func TestPollerRunStopsOnCancel(t *testing.T) {
	reg := newTestAccounts(t)
	feed := NewStaticFeed()
	feed.SetPrice("600519", 11)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	p := NewPoller(feed, reg, 10*time.Millisecond, discardLogger())
	go func() { done <- p.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

// memBarStore collects written bars in memory.
type memBarStore struct {
	written []domain.Bar
}

func (m *memBarStore) WriteBars(_ context.Context, _ domain.Venue, bars []domain.Bar) error {
	m.written = append(m.written, bars...)
	return nil
}

func (m *memBarStore) ReadBars(context.Context, string, domain.Venue, time.Time, time.Time) ([]domain.Bar, error) {
	return nil, nil
}

func (m *memBarStore) ListSymbols(context.Context, domain.Venue) ([]string, error) {
	return nil, nil
}

func TestIngestorWritesBars(t *testing.T) {
	feed := NewStaticFeed()
	day := func(d int) time.Time { return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC) }
	feed.SetBars("600519", []domain.Bar{
		{Symbol: "600519", Timestamp: day(2), Close: 1500},
		{Symbol: "600519", Timestamp: day(3), Close: 1510},
	})

	ms := &memBarStore{}
	in := NewIngestor(feed, ms, domain.VenueSSE, discardLogger())

	// "999999" has no data and must be skipped silently.
	n, err := in.Ingest(context.Background(), []string{"600519", "999999"}, day(1), day(31))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 2 {
		t.Errorf("ingested %d bars, want 2", n)
	}
	if len(ms.written) != 2 {
		t.Errorf("store received %d bars, want 2", len(ms.written))
	}
}

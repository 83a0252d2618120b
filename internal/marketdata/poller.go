package marketdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"papertrade/internal/account"
	"papertrade/internal/domain"
	"papertrade/internal/store"
)

// Poller periodically marks every account position to the latest feed
// price, keeping unrealized profit figures current.
type Poller struct {
	feed     PriceFeed
	accounts *account.Registry
	interval time.Duration
	log      *slog.Logger
}

// NewPoller creates a Poller. Interval defaults to one minute when
// non-positive.
func NewPoller(feed PriceFeed, accounts *account.Registry, interval time.Duration, log *slog.Logger) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Poller{feed: feed, accounts: accounts, interval: interval, log: log}
}

// Run marks positions immediately and then on every tick until the context
// is cancelled. Feed failures are logged and retried on the next tick.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.MarkOnce(ctx); err != nil {
			p.log.Warn("price poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// MarkOnce fetches one quote per held symbol and pushes the prices into
// every account holding it. It returns the feed error, if any.
func (p *Poller) MarkOnce(ctx context.Context) error {
	symbols := p.heldSymbols()
	if len(symbols) == 0 {
		return nil
	}

	prices, err := p.feed.LatestPrices(ctx, symbols)
	if err != nil {
		return fmt.Errorf("fetching latest prices: %w", err)
	}

	marked := 0
	for _, id := range p.accounts.List() {
		acct := p.accounts.Get(id)
		if acct == nil {
			continue
		}
		for _, pos := range acct.Positions() {
			if price, ok := prices[pos.Symbol]; ok {
				acct.UpdatePrice(pos.Symbol, price)
				marked++
			}
		}
	}
	p.log.Debug("positions marked", "symbols", len(symbols), "updates", marked)
	return nil
}

// heldSymbols returns the distinct symbols held across all accounts.
func (p *Poller) heldSymbols() []string {
	seen := make(map[string]struct{})
	for _, id := range p.accounts.List() {
		acct := p.accounts.Get(id)
		if acct == nil {
			continue
		}
		for _, pos := range acct.Positions() {
			seen[pos.Symbol] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Ingestor backfills the bar store from a price feed.
type Ingestor struct {
	feed  PriceFeed
	store store.BarStore
	venue domain.Venue
	log   *slog.Logger
}

// NewIngestor creates an Ingestor writing bars for the given venue.
func NewIngestor(feed PriceFeed, s store.BarStore, venue domain.Venue, log *slog.Logger) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{feed: feed, store: s, venue: venue, log: log}
}

// Ingest fetches daily bars for each symbol and writes them to the store.
// It returns the total number of bars written; symbols with no data are
// skipped, not errors.
func (in *Ingestor) Ingest(ctx context.Context, symbols []string, start, end time.Time) (int, error) {
	total := 0
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		bars, err := in.feed.DailyBars(ctx, symbol, start, end)
		if errors.Is(err, ErrNoData) {
			in.log.Debug("no bars", "symbol", symbol)
			continue
		}
		if err != nil {
			return total, fmt.Errorf("fetching bars for %s: %w", symbol, err)
		}
		if len(bars) == 0 {
			in.log.Debug("no bars in range", "symbol", symbol)
			continue
		}
		if err := in.store.WriteBars(ctx, in.venue, bars); err != nil {
			return total, fmt.Errorf("writing bars for %s: %w", symbol, err)
		}
		total += len(bars)
		in.log.Info("bars ingested", "symbol", symbol, "count", len(bars))
	}
	return total, nil
}

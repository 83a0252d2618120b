package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"papertrade/internal/domain"
	"papertrade/internal/util"
)

// Compile-time interface check.
var _ PriceFeed = (*AlpacaFeed)(nil)

const (
	// latestLookbackDays bounds the window scanned for the most recent
	// daily bar when serving LatestPrices.
	latestLookbackDays = 7

	retryAttempts  = 3
	retryBaseDelay = 2 * time.Second
)

// AlpacaFeed implements PriceFeed over the Alpaca market-data API. Calls are
// rate-limited and retried with exponential backoff.
type AlpacaFeed struct {
	client  *marketdata.Client
	limiter *util.RateLimiter
}

// NewAlpacaFeed creates an AlpacaFeed with the given credentials. dataURL
// may be empty to use the default endpoint; ratePerMin bounds outgoing API
// calls.
func NewAlpacaFeed(apiKey, apiSecret, dataURL string, ratePerMin int) *AlpacaFeed {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if ratePerMin <= 0 {
		ratePerMin = 200
	}
	return &AlpacaFeed{
		client:  marketdata.NewClient(opts),
		limiter: util.NewRateLimiter(ratePerMin),
	}
}

// LatestPrices returns the close of the most recent daily bar for each
// symbol, scanning back at most a week.
func (f *AlpacaFeed) LatestPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -latestLookbackDays)

	multiBars, err := f.getMultiBars(ctx, symbols, start, end)
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(symbols))
	for symbol, bars := range multiBars {
		if len(bars) > 0 {
			out[strings.ToUpper(symbol)] = bars[len(bars)-1].Close
		}
	}
	return out, nil
}

// DailyBars returns daily bars for one symbol within [start, end].
func (f *AlpacaFeed) DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	multiBars, err := f.getMultiBars(ctx, []string{symbol}, start, end)
	if err != nil {
		return nil, err
	}

	var out []domain.Bar
	for sym, bars := range multiBars {
		for _, ab := range bars {
			out = append(out, toBar(sym, ab))
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}
	return out, nil
}

func (f *AlpacaFeed) getMultiBars(ctx context.Context, symbols []string, start, end time.Time) (map[string][]marketdata.Bar, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var multiBars map[string][]marketdata.Bar
	err := util.Retry(ctx, retryAttempts, retryBaseDelay, func() error {
		var err error
		multiBars, err = f.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     start,
			End:       end,
			Feed:      "sip",
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}
	return multiBars, nil
}

func toBar(symbol string, ab marketdata.Bar) domain.Bar {
	return domain.Bar{
		Symbol:     strings.ToUpper(symbol),
		Timestamp:  ab.Timestamp,
		Open:       ab.Open,
		High:       ab.High,
		Low:        ab.Low,
		Close:      ab.Close,
		Volume:     int64(ab.Volume),
		TradeCount: int64(ab.TradeCount),
		VWAP:       ab.VWAP,
	}
}

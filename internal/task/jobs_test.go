package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"papertrade/internal/account"
	"papertrade/internal/cost"
	"papertrade/internal/domain"
	"papertrade/internal/engine"
	"papertrade/internal/risk"
	"papertrade/internal/strategy"
)

// fakeBarStore serves a fixed bar history for every symbol.
type fakeBarStore struct {
	bars map[string][]domain.Bar
}

func (f *fakeBarStore) WriteBars(context.Context, domain.Venue, []domain.Bar) error { return nil }

func (f *fakeBarStore) ReadBars(_ context.Context, symbol string, _ domain.Venue, _, _ time.Time) ([]domain.Bar, error) {
	return f.bars[symbol], nil
}

func (f *fakeBarStore) ListSymbols(context.Context, domain.Venue) ([]string, error) { return nil, nil }

// noopStrategy emits no signals.
type noopStrategy struct{}

func (noopStrategy) Name() string               { return "noop" }
func (noopStrategy) Init(context.Context) error { return nil }
func (noopStrategy) OnBar(context.Context, domain.Bar) ([]domain.Signal, error) {
	return nil, nil
}
func (s noopStrategy) Clone() strategy.Strategy { return s }

func risingBars(symbol string, n int, start, step float64) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := range bars {
		price := start + step*float64(i)
		bars[i] = domain.Bar{
			Symbol:    symbol,
			Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Open:      price, High: price, Low: price, Close: price,
			Volume: 2000000,
		}
	}
	return bars
}

func flatBars(symbol string, n int, price float64) []domain.Bar {
	return risingBars(symbol, n, price, 0)
}

func TestBacktestJob(t *testing.T) {
	fs := &fakeBarStore{bars: map[string][]domain.Bar{
		"600519": flatBars("600519", 10, 1500),
		"000001": flatBars("000001", 10, 11),
	}}
	reg := strategy.NewRegistry()
	reg.Register(noopStrategy{})
	bt := strategy.NewBacktester(fs, reg, cost.NewCalculator(cost.Schedule{}))

	job := NewBacktestJob(bt, BacktestJobParams{
		Strategy:       "noop",
		Venue:          domain.VenueSSE,
		Symbols:        []string{"600519", "000001"},
		Start:          time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:            time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		InitialCapital: 100000,
	})

	ctl := &Control{}
	result, err := job(ctl)
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	results, ok := result.([]*strategy.BacktestResult)
	if !ok {
		t.Fatalf("result type = %T, want []*strategy.BacktestResult", result)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].TotalTrades != 0 {
		t.Errorf("noop strategy traded %d times, want 0", results[0].TotalTrades)
	}
	if got := ctl.Progress(); got != 100 {
		t.Errorf("progress = %v, want 100", got)
	}
}

func TestBacktestJobHonorsStop(t *testing.T) {
	bt := strategy.NewBacktester(&fakeBarStore{}, strategy.NewRegistry(), cost.NewCalculator(cost.Schedule{}))
	job := NewBacktestJob(bt, BacktestJobParams{
		Strategy: "noop",
		Symbols:  []string{"600519"},
	})

	ctl := &Control{}
	ctl.stop.Store(true)
	if _, err := job(ctl); !errors.Is(err, ErrStopped) {
		t.Errorf("stopped job error = %v, want ErrStopped", err)
	}
}

func TestBacktestJobNoSymbols(t *testing.T) {
	bt := strategy.NewBacktester(&fakeBarStore{}, strategy.NewRegistry(), cost.NewCalculator(cost.Schedule{}))
	job := NewBacktestJob(bt, BacktestJobParams{Strategy: "noop"})
	if _, err := job(&Control{}); err == nil {
		t.Error("job with no symbols succeeded, want error")
	}
}

func cheapFundamentals(string) Fundamentals {
	return Fundamentals{PE: 10, PB: 1.0, ROE: 0.15}
}

func TestScanJobRanksSymbols(t *testing.T) {
	// "600519" trends up strongly; "000001" is flat. The riser should score
	// higher on growth and momentum and rank first.
	fs := &fakeBarStore{bars: map[string][]domain.Bar{
		"600519": risingBars("600519", 70, 100, 2),
		"000001": flatBars("000001", 70, 11),
	}}

	job := NewScanJob(fs, ScanJobParams{
		Venue:   domain.VenueSSE,
		Symbols: []string{"000001", "600519"},
		TopN:    1,
	}, cheapFundamentals)

	ctl := &Control{}
	result, err := job(ctl)
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	scan, ok := result.(*ScanResult)
	if !ok {
		t.Fatalf("result type = %T, want *ScanResult", result)
	}
	if scan.TotalAnalyzed != 2 {
		t.Fatalf("analyzed %d symbols, want 2", scan.TotalAnalyzed)
	}
	if len(scan.TopStocks) != 1 {
		t.Fatalf("top stocks = %d, want 1", len(scan.TopStocks))
	}
	if scan.TopStocks[0].Symbol != "600519" {
		t.Errorf("top symbol = %q, want 600519", scan.TopStocks[0].Symbol)
	}
	if scan.Results[0].Score < scan.Results[1].Score {
		t.Error("results not sorted by descending score")
	}
	if got := ctl.Progress(); got != 100 {
		t.Errorf("progress = %v, want 100", got)
	}
}

func TestScanJobScores(t *testing.T) {
	bars := risingBars("600519", 70, 100, 2)
	analysis := analyzeSymbol("600519", bars, AllScanStrategies, cheapFundamentals)

	// cheapFundamentals hits every value threshold: 2+2+2.
	if got := analysis.Strategies[ScanValue]; got != 6 {
		t.Errorf("value score = %v, want 6", got)
	}
	// Steady riser: ma20 > ma60 (+2), positive MACD histogram (+1), RSI 100
	// is outside both bands (0).
	if got := analysis.Strategies[ScanTechnical]; got != 3 {
		t.Errorf("technical score = %v, want 3", got)
	}
	// Mean daily return ~1%, above the 0.005 momentum threshold.
	if got := analysis.Strategies[ScanMomentum]; got < 1 {
		t.Errorf("momentum score = %v, want >= 1", got)
	}
	// Price sits above its 20-day mean, so no mean-reversion signal.
	if got := analysis.Strategies[ScanMeanReversion]; got != 0 {
		t.Errorf("mean reversion score = %v, want 0", got)
	}
	if analysis.Price != bars[len(bars)-1].Close {
		t.Errorf("price = %v, want %v", analysis.Price, bars[len(bars)-1].Close)
	}
	if analysis.Return30D <= 0 {
		t.Errorf("return_30d = %v, want > 0", analysis.Return30D)
	}
}

func TestScanJobSkipsEmptySymbols(t *testing.T) {
	fs := &fakeBarStore{bars: map[string][]domain.Bar{
		"600519": flatBars("600519", 70, 1500),
	}}
	job := NewScanJob(fs, ScanJobParams{
		Symbols: []string{"600519", "999999"},
	}, cheapFundamentals)

	result, err := job(&Control{})
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	scan := result.(*ScanResult)
	if scan.TotalAnalyzed != 1 {
		t.Errorf("analyzed %d symbols, want 1 (no data for 999999)", scan.TotalAnalyzed)
	}
}

func newTradeFixture(t *testing.T, balance float64) (*engine.Engine, *account.Registry) {
	t.Helper()
	reg := account.NewRegistry(cost.NewCalculator(cost.Schedule{}))
	if _, err := reg.Create("a1", balance); err != nil {
		t.Fatal(err)
	}
	cfg := risk.DefaultConfig()
	cfg.CoolDownPeriod = 0
	gate, err := risk.NewGate(cfg, reg, nil)
	if err != nil {
		t.Fatal(err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return engine.New(reg, gate, nil, log), reg
}

func TestTradeJobFills(t *testing.T) {
	eng, reg := newTradeFixture(t, 100000)
	job := NewTradeJob(eng, reg, engine.Request{
		AccountID: "a1",
		Symbol:    "000001",
		Venue:     domain.VenueSZSE,
		Direction: domain.DirectionLong,
		Offset:    domain.OffsetOpen,
		Kind:      domain.OrderKindLimit,
		Price:     10,
		Volume:    100,
	})

	result, err := job(&Control{})
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	res, ok := result.(*TradeResult)
	if !ok {
		t.Fatalf("result type = %T, want *TradeResult", result)
	}
	if res.Error != "" {
		t.Fatalf("trade error = %q, want none", res.Error)
	}
	if res.OrderID == "" {
		t.Error("order id empty after fill")
	}
	if len(res.Positions) != 1 || res.Positions[0].Volume != 100 {
		t.Errorf("positions = %+v, want one 100-share position", res.Positions)
	}
	if len(res.Trades) != 1 {
		t.Errorf("trades = %d, want 1", len(res.Trades))
	}
}

func TestTradeJobReportsRejection(t *testing.T) {
	eng, reg := newTradeFixture(t, 100)
	job := NewTradeJob(eng, reg, engine.Request{
		AccountID: "a1",
		Symbol:    "000001",
		Venue:     domain.VenueSZSE,
		Direction: domain.DirectionLong,
		Offset:    domain.OffsetOpen,
		Kind:      domain.OrderKindLimit,
		Price:     10,
		Volume:    100,
	})

	result, err := job(&Control{})
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	res := result.(*TradeResult)
	if res.Error == "" {
		t.Fatal("underfunded trade completed without error detail")
	}
	if !strings.Contains(res.Error, "rejected") {
		t.Errorf("trade error = %q, want a rejection", res.Error)
	}
	if len(res.Trades) != 0 {
		t.Errorf("trades = %d, want 0 after rejection", len(res.Trades))
	}
}

func TestTradeJobUnknownAccount(t *testing.T) {
	eng, reg := newTradeFixture(t, 100000)
	job := NewTradeJob(eng, reg, engine.Request{AccountID: "ghost", Symbol: "000001"})
	if _, err := job(&Control{}); err == nil {
		t.Error("job for unknown account succeeded, want error")
	}
}

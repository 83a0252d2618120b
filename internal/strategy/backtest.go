package strategy

import (
	"context"
	"fmt"
	"math"
	"time"

	"papertrade/internal/cost"
	"papertrade/internal/domain"
	"papertrade/internal/indicator"
	"papertrade/internal/store"
)

// tradingDaysPerYear annualizes the Sharpe ratio.
const tradingDaysPerYear = 252

// BacktestResult holds the summary metrics produced by a backtest run.
type BacktestResult struct {
	Strategy     string    `json:"strategy"`
	Symbols      []string  `json:"symbols"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Capital      float64   `json:"capital"`
	FinalEquity  float64   `json:"final_equity"`
	TotalReturn  float64   `json:"total_return"`
	SharpeRatio  float64   `json:"sharpe_ratio"`
	MaxDrawdown  float64   `json:"max_drawdown"`
	TotalTrades  int       `json:"total_trades"`
	WinRate      float64   `json:"win_rate"`
	ProfitFactor float64   `json:"profit_factor"`
	EquityCurve  []float64 `json:"equity_curve,omitempty"`
}

// backtestPosition tracks the open long during a replay.
type backtestPosition struct {
	volume   int64
	avgPrice float64
}

// Backtester replays historical bar data through a strategy and computes
// performance metrics. Fills happen at the signal price for a fixed lot,
// charged through the cost calculator.
type Backtester struct {
	store    store.BarStore
	registry *Registry
	calc     *cost.Calculator

	// LotSize is the volume bought per buy signal. Defaults to 100.
	LotSize int64
}

// NewBacktester creates a Backtester that reads bars from the given store and
// looks up strategies in the provided registry.
func NewBacktester(barStore store.BarStore, registry *Registry, calc *cost.Calculator) *Backtester {
	return &Backtester{
		store:    barStore,
		registry: registry,
		calc:     calc,
		LotSize:  100,
	}
}

// Run executes a backtest for the named strategy over the specified symbols
// and date range, starting with initialCapital. Symbols are replayed
// sequentially against a shared equity account.
func (bt *Backtester) Run(ctx context.Context, name string, venue domain.Venue, symbols []string, start, end time.Time, initialCapital float64) (*BacktestResult, error) {
	prototype, ok := bt.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("strategy %q not registered", name)
	}
	// Registered strategies are shared prototypes; run on a private clone so
	// concurrent backtests never touch the same state.
	strat := prototype.Clone()
	if initialCapital <= 0 {
		return nil, fmt.Errorf("initial capital must be positive, got %v", initialCapital)
	}

	result := &BacktestResult{
		Strategy: name,
		Symbols:  symbols,
		Start:    start,
		End:      end,
		Capital:  initialCapital,
	}

	cash := initialCapital
	equityCurve := []float64{initialCapital}
	var wins, losses int
	var grossProfit, grossLoss float64

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bars, err := bt.store.ReadBars(ctx, symbol, venue, start, end)
		if err != nil {
			return nil, fmt.Errorf("reading bars for %s: %w", symbol, err)
		}
		if err := strat.Init(ctx); err != nil {
			return nil, fmt.Errorf("initializing strategy for %s: %w", symbol, err)
		}

		var pos backtestPosition
		for _, bar := range bars {
			signals, err := strat.OnBar(ctx, bar)
			if err != nil {
				return nil, fmt.Errorf("strategy error on %s at %s: %w", symbol, bar.Timestamp, err)
			}

			for _, sig := range signals {
				switch sig.Type {
				case domain.SignalTypeBuy:
					volume := bt.LotSize
					fees := bt.calc.Calculate(sig.Price, volume, domain.DirectionLong, domain.OffsetOpen, venue)
					outlay := fees.Amount + fees.TotalCost
					if outlay > cash {
						continue // cannot afford the lot, skip the signal
					}
					cash -= outlay
					total := pos.avgPrice*float64(pos.volume) + sig.Price*float64(volume)
					pos.volume += volume
					pos.avgPrice = total / float64(pos.volume)
					result.TotalTrades++

				case domain.SignalTypeSell:
					if pos.volume == 0 {
						continue
					}
					volume := pos.volume
					fees := bt.calc.Calculate(sig.Price, volume, domain.DirectionShort, domain.OffsetClose, venue)
					cash += fees.Amount - fees.TotalCost
					pnl := (sig.Price-pos.avgPrice)*float64(volume) - fees.TotalCost
					if pnl > 0 {
						wins++
						grossProfit += pnl
					} else {
						losses++
						grossLoss += -pnl
					}
					pos = backtestPosition{}
					result.TotalTrades++
				}
			}

			equityCurve = append(equityCurve, cash+float64(pos.volume)*bar.Close)
		}

		// Liquidate any open position at the final close.
		if pos.volume > 0 && len(bars) > 0 {
			last := bars[len(bars)-1].Close
			fees := bt.calc.Calculate(last, pos.volume, domain.DirectionShort, domain.OffsetClose, venue)
			cash += fees.Amount - fees.TotalCost
			pnl := (last-pos.avgPrice)*float64(pos.volume) - fees.TotalCost
			if pnl > 0 {
				wins++
				grossProfit += pnl
			} else {
				losses++
				grossLoss += -pnl
			}
			equityCurve[len(equityCurve)-1] = cash
		}
	}

	result.FinalEquity = equityCurve[len(equityCurve)-1]
	result.TotalReturn = (result.FinalEquity - initialCapital) / initialCapital
	result.MaxDrawdown = maxDrawdown(equityCurve)
	result.SharpeRatio = sharpeRatio(equityCurve)
	if wins+losses > 0 {
		result.WinRate = float64(wins) / float64(wins+losses)
	}
	if grossLoss > 0 {
		result.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		result.ProfitFactor = math.Inf(1)
	}
	result.EquityCurve = equityCurve
	return result, nil
}

// maxDrawdown returns the largest peak-to-trough decline of the equity
// curve, as a fraction of the peak.
func maxDrawdown(equity []float64) float64 {
	var peak, maxDD float64
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// sharpeRatio annualizes the mean per-bar return over its standard
// deviation, assuming a zero risk-free rate.
func sharpeRatio(equity []float64) float64 {
	returns := indicator.Returns(equity)
	if len(returns) == 0 {
		return 0
	}
	std := indicator.StdDev(returns)
	if std == 0 {
		return 0
	}
	return indicator.Mean(returns) / std * math.Sqrt(tradingDaysPerYear)
}

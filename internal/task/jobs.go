package task

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"papertrade/internal/account"
	"papertrade/internal/domain"
	"papertrade/internal/engine"
	"papertrade/internal/store"
	"papertrade/internal/strategy"
)

// Job type names used when creating tasks over the API.
const (
	TypeBacktest = "backtest"
	TypeScan     = "stock_analysis"
	TypeTrade    = "trading"
)

// BacktestJobParams configures a backtest job.
type BacktestJobParams struct {
	Strategy       string       `json:"strategy"`
	Venue          domain.Venue `json:"venue"`
	Symbols        []string     `json:"symbols"`
	Start          time.Time    `json:"start"`
	End            time.Time    `json:"end"`
	InitialCapital float64      `json:"initial_capital"`
}

// NewBacktestJob returns a job that backtests one strategy over each symbol
// in turn. Progress advances per symbol and the stop flag is honored between
// symbols.
func NewBacktestJob(bt *strategy.Backtester, p BacktestJobParams) Job {
	return func(ctl *Control) (any, error) {
		if len(p.Symbols) == 0 {
			return nil, errors.New("no symbols to backtest")
		}

		results := make([]*strategy.BacktestResult, 0, len(p.Symbols))
		for i, symbol := range p.Symbols {
			if ctl.Stopped() {
				return nil, ErrStopped
			}
			res, err := bt.Run(context.Background(), p.Strategy, p.Venue, []string{symbol}, p.Start, p.End, p.InitialCapital)
			if err != nil {
				return nil, fmt.Errorf("backtesting %s: %w", symbol, err)
			}
			results = append(results, res)
			ctl.SetProgress(float64(i+1) / float64(len(p.Symbols)) * 100)
		}
		return results, nil
	}
}

// ScanJobParams configures a symbol scan job.
type ScanJobParams struct {
	Venue        domain.Venue `json:"venue"`
	Symbols      []string     `json:"symbols"`
	Strategies   []string     `json:"strategies"`
	LookbackDays int          `json:"lookback_days"`
	TopN         int          `json:"top_n"`
}

// ScanResult ranks the scanned symbols by combined strategy score.
type ScanResult struct {
	TopStocks     []SymbolAnalysis `json:"top_stocks"`
	Results       []SymbolAnalysis `json:"analysis_results"`
	TotalAnalyzed int              `json:"total_stocks_analyzed"`
	TopN          int              `json:"top_n"`
	LookbackDays  int              `json:"lookback_days"`
	Date          time.Time        `json:"date"`
}

// NewScanJob returns a job that scores symbols with the requested scan
// strategies and ranks the top N. A nil fundamentals func falls back to
// SimulatedFundamentals. Symbols with no bar data are skipped.
func NewScanJob(bars store.BarStore, p ScanJobParams, fundamentals FundamentalsFunc) Job {
	if fundamentals == nil {
		fundamentals = SimulatedFundamentals
	}
	return func(ctl *Control) (any, error) {
		if len(p.Symbols) == 0 {
			return nil, errors.New("no symbols to scan")
		}
		strategies := p.Strategies
		if len(strategies) == 0 {
			strategies = AllScanStrategies
		}
		lookback := p.LookbackDays
		if lookback <= 0 {
			lookback = 60
		}
		topN := p.TopN
		if topN <= 0 {
			topN = 5
		}

		end := time.Now()
		start := end.AddDate(0, 0, -lookback)

		results := make([]SymbolAnalysis, 0, len(p.Symbols))
		for i, symbol := range p.Symbols {
			if ctl.Stopped() {
				return nil, ErrStopped
			}
			history, err := bars.ReadBars(context.Background(), symbol, p.Venue, start, end)
			if err != nil {
				return nil, fmt.Errorf("reading bars for %s: %w", symbol, err)
			}
			if len(history) == 0 {
				continue
			}
			results = append(results, analyzeSymbol(symbol, history, strategies, fundamentals))
			ctl.SetProgress(float64(i+1) / float64(len(p.Symbols)) * 100)
		}

		sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
		top := results
		if len(top) > topN {
			top = top[:topN]
		}

		return &ScanResult{
			TopStocks:     top,
			Results:       results,
			TotalAnalyzed: len(results),
			TopN:          topN,
			LookbackDays:  lookback,
			Date:          end,
		}, nil
	}
}

// TradeResult is the outcome of a trade job: the submission result plus the
// account state after it.
type TradeResult struct {
	OrderID   string             `json:"order_id"`
	Error     string             `json:"error,omitempty"`
	Account   account.Info       `json:"account_info"`
	Positions []account.Snapshot `json:"positions"`
	Trades    []domain.Trade     `json:"trades"`
}

// NewTradeJob returns a job that submits one order through the engine. A
// risk rejection completes the job with the rejection reason in the result;
// any other submission failure fails the job.
func NewTradeJob(eng *engine.Engine, accounts *account.Registry, req engine.Request) Job {
	return func(ctl *Control) (any, error) {
		acct := accounts.Get(req.AccountID)
		if acct == nil {
			return nil, fmt.Errorf("account %q not found", req.AccountID)
		}
		acct.UpdatePrice(req.Symbol, req.Price)
		ctl.SetProgress(30)

		orderID, err := eng.Submit(req)
		res := &TradeResult{OrderID: orderID}
		if err != nil {
			if !errors.Is(err, engine.ErrRejected) {
				return nil, err
			}
			res.Error = err.Error()
		}
		ctl.SetProgress(80)

		res.Account = acct.Snapshot()
		res.Positions = acct.Positions()
		res.Trades = eng.Trades(req.AccountID)
		return res, nil
	}
}

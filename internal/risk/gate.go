// Package risk implements pre-trade admission control. A Gate evaluates an
// ordered pipeline of rules against the current ledger state and either
// admits an order or rejects it with a reason and severity score. The gate
// is the single authority for admission: cash and holdings sufficiency are
// checked here, so the execution engine can assume an admitted order is
// coverable and focus on state transition.
package risk

import (
	"sync"
	"time"

	"papertrade/internal/account"
	"papertrade/internal/domain"
	"papertrade/internal/util"
)

// Verdict is the outcome of a pre-trade check. Severity grades how serious
// the rejected condition is, 0 for an admitted order up to 1 for a hard
// failure like an unknown account.
type Verdict struct {
	Passed   bool    `json:"risk_passed"`
	Reason   string  `json:"reason"`
	Severity float64 `json:"risk_score"`
}

func reject(reason string, severity float64) Verdict {
	return Verdict{Passed: false, Reason: reason, Severity: severity}
}

// ComplianceFunc is a pluggable screen for insider-trading or manipulation
// patterns. It returns false to block the order.
type ComplianceFunc func(accountID, symbol string) bool

// Gate evaluates orders against configured limits. It holds only rolling
// counters (daily and intraday trade counts, last-trade time, industry
// exposure); everything else is read from the account registry on demand.
type Gate struct {
	mu       sync.Mutex
	cfg      Config
	accounts *account.Registry
	industry map[string]string

	dailyTrades    map[string]map[string]int // account -> symbol -> count, today
	intradayTrades map[string]int
	lastTradeTime  map[string]time.Time
	industryExpo   map[string]map[string]float64 // account -> industry -> exposure

	compliance ComplianceFunc
	marketRisk float64 // latest market-wide risk score, set by the monitor

	// calendar gates admission on trading hours; nil means always open
	// (backtests and offline use).
	calendar *util.TradingCalendar
	now      func() time.Time

	lastMonitoring time.Time
}

// NewGate constructs a Gate over the given account registry. The industry
// map may be nil, in which case every symbol falls into "other".
func NewGate(cfg Config, accounts *account.Registry, industry map[string]string) (*Gate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if industry == nil {
		industry = map[string]string{}
	}
	return &Gate{
		cfg:            cfg,
		accounts:       accounts,
		industry:       industry,
		now:            time.Now,
		dailyTrades:    make(map[string]map[string]int),
		intradayTrades: make(map[string]int),
		lastTradeTime:  make(map[string]time.Time),
		industryExpo:   make(map[string]map[string]float64),
	}, nil
}

// SetCalendar installs a trading calendar; orders placed outside market
// hours are then rejected before any other rule runs. Pass nil to clear.
func (g *Gate) SetCalendar(cal *util.TradingCalendar) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calendar = cal
}

// SetCompliance installs a compliance screen. Pass nil to clear.
func (g *Gate) SetCompliance(f ComplianceFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.compliance = f
}

// SetMarketRisk updates the market-wide risk score used by the final
// pipeline rule.
func (g *Gate) SetMarketRisk(score float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.marketRisk = score
}

// Config returns the current limits.
func (g *Gate) Config() Config {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg
}

// SetConfig replaces the limits after validating them.
func (g *Gate) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg = cfg
	return nil
}

// CheckOrder runs the rule pipeline, short-circuiting on the first failing
// rule. Rule order fixes which reason a multiply-offending order reports;
// the rules themselves are independent.
func (g *Gate) CheckOrder(accountID string, o *domain.Order) Verdict {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.calendar != nil && !g.calendar.IsMarketOpen(g.now()) {
		return reject("Not trading time", 1.0)
	}

	acct := g.accounts.Get(accountID)
	if acct == nil {
		return reject("Account not found", 1.0)
	}
	info := acct.Snapshot()

	if o.Offset == domain.OffsetOpen {
		if required := o.Price * float64(o.Volume); required > info.Available {
			return reject("Insufficient funds", 1.0)
		}
	} else {
		pos, ok := acct.Position(o.Symbol)
		if !ok || pos.Volume < o.Volume {
			return reject("Insufficient position", 1.0)
		}
	}

	if !g.checkTradeFrequency(accountID, o.Symbol) {
		return reject("Trade frequency limit exceeded", 0.9)
	}
	if o.Offset == domain.OffsetOpen && !g.checkPositionLimit(acct, info, o) {
		return reject("Position limit exceeded", 0.8)
	}
	if o.Offset == domain.OffsetOpen && !g.checkIndustryExposure(accountID, info, o) {
		return reject("Industry exposure limit exceeded", 0.7)
	}
	if !g.checkLiquidity(o.Volume) {
		return reject("Liquidity risk too high", 0.6)
	}
	if g.compliance != nil && !g.compliance(accountID, o.Symbol) {
		return reject("Compliance risk detected", 0.95)
	}
	if o.Offset == domain.OffsetOpen && !g.checkLeverage(info) {
		return reject("Leverage limit exceeded", 0.85)
	}
	if o.Offset == domain.OffsetOpen && !g.checkStopLossTakeProfit(acct, info, o.Symbol) {
		return reject("Stop loss/take profit limit hit", 0.75)
	}
	if g.cfg.MarketRiskStopLoss && g.marketRisk > g.cfg.MarketRiskThreshold {
		return reject("Market risk too high", 0.8)
	}

	return Verdict{Passed: true, Reason: "Risk check passed", Severity: 0}
}

// checkTradeFrequency enforces the cooldown interval and the per-stock,
// total-daily, and intraday trade count limits. Caller holds g.mu.
func (g *Gate) checkTradeFrequency(accountID, symbol string) bool {
	if last, ok := g.lastTradeTime[accountID]; ok {
		if time.Since(last) < g.cfg.CoolDownPeriod {
			return false
		}
	}

	counts := g.dailyTrades[accountID]
	if counts[symbol] >= g.cfg.MaxTradesPerStock {
		return false
	}
	var total int
	for _, n := range counts {
		total += n
	}
	if total >= g.cfg.MaxDailyTrades {
		return false
	}
	if g.intradayTrades[accountID] >= g.cfg.MaxIntradayTrades {
		return false
	}
	return true
}

// checkPositionLimit bounds the number of distinct holdings and the
// per-instrument exposure the order would create. Caller holds g.mu.
func (g *Gate) checkPositionLimit(acct *account.Account, info account.Info, o *domain.Order) bool {
	if info.PositionCount >= g.cfg.MaxTotalPositions {
		if _, held := acct.Position(o.Symbol); !held {
			return false
		}
	}

	var currentExposure float64
	if pos, ok := acct.Position(o.Symbol); ok {
		currentExposure = pos.MarketValue
	}
	newExposure := currentExposure + o.Price*float64(o.Volume)

	if info.TotalAsset > 0 && newExposure/info.TotalAsset > g.cfg.MaxPositionPerStock {
		return false
	}
	return true
}

// checkIndustryExposure bounds sector exposure and concentration. Caller
// holds g.mu.
func (g *Gate) checkIndustryExposure(accountID string, info account.Info, o *domain.Order) bool {
	industry := g.industryOf(o.Symbol)
	amount := o.Price * float64(o.Volume)

	expo := g.industryExpo[accountID]
	newExposure := expo[industry] + amount

	if info.TotalAsset > 0 && newExposure/info.TotalAsset > g.cfg.MaxPositionPerIndustry {
		return false
	}

	// Concentration only means something once exposure spans more than one
	// sector; a single-sector account is caught by the per-industry cap.
	var totalExposure float64
	var sectorsHeld int
	for _, e := range expo {
		if e > 0 {
			sectorsHeld++
		}
		totalExposure += e
	}
	if sectorsHeld >= 2 && newExposure/(totalExposure+amount) > g.cfg.MaxIndustryConcentration {
		return false
	}
	return true
}

// checkLiquidity bounds the order size relative to the configured minimum
// tradable volume. Caller holds g.mu.
func (g *Gate) checkLiquidity(volume int64) bool {
	limit := float64(g.cfg.MinVolume) * g.cfg.MaxPositionToVolumeRatio
	return float64(volume) <= limit
}

// checkLeverage bounds market value over total assets. Caller holds g.mu.
func (g *Gate) checkLeverage(info account.Info) bool {
	if info.TotalAsset <= 0 {
		return true
	}
	return info.MarketValue/info.TotalAsset <= g.cfg.MaxLeverage
}

// checkStopLossTakeProfit blocks further entries when the account's drawdown
// exceeds the global stop or an existing position in the symbol already sits
// beyond its per-position bounds. Caller holds g.mu.
func (g *Gate) checkStopLossTakeProfit(acct *account.Account, info account.Info, symbol string) bool {
	if info.InitialBalance > 0 {
		drawdown := (info.InitialBalance - info.TotalAsset) / info.InitialBalance
		if drawdown > g.cfg.GlobalStopLoss {
			return false
		}
	}

	if pos, ok := acct.Position(symbol); ok {
		if pos.ProfitRatio < -g.cfg.PositionStopLoss {
			return false
		}
		if pos.ProfitRatio > g.cfg.PositionTakeProfit {
			return false
		}
	}
	return true
}

// RecordTrade updates the rolling counters after a fill. The engine calls
// this for every executed trade.
func (g *Gate) RecordTrade(accountID string, t *domain.Trade) {
	g.mu.Lock()
	defer g.mu.Unlock()

	counts := g.dailyTrades[accountID]
	if counts == nil {
		counts = make(map[string]int)
		g.dailyTrades[accountID] = counts
	}
	counts[t.Symbol]++
	g.intradayTrades[accountID]++
	g.lastTradeTime[accountID] = time.Now()

	industry := g.industryOf(t.Symbol)
	expo := g.industryExpo[accountID]
	if expo == nil {
		expo = make(map[string]float64)
		g.industryExpo[accountID] = expo
	}
	amount := t.Price * float64(t.Volume)
	if t.Offset == domain.OffsetOpen {
		expo[industry] += amount
	} else {
		expo[industry] -= amount
		if expo[industry] < 0 {
			expo[industry] = 0
		}
	}
}

// ResetDaily clears the rolling counters. Run it once at the daily rollover.
func (g *Gate) ResetDaily() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dailyTrades = make(map[string]map[string]int)
	g.intradayTrades = make(map[string]int)
}

// TradesToday returns today's per-symbol and total trade counts for an
// account.
func (g *Gate) TradesToday(accountID string) (perSymbol map[string]int, total int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	perSymbol = make(map[string]int, len(g.dailyTrades[accountID]))
	for symbol, n := range g.dailyTrades[accountID] {
		perSymbol[symbol] = n
		total += n
	}
	return perSymbol, total
}

func (g *Gate) industryOf(symbol string) string {
	if ind, ok := g.industry[symbol]; ok {
		return ind
	}
	return "other"
}

package risk

import (
	"fmt"
	"time"

	"papertrade/internal/account"
)

// PortfolioRisk is a composite risk assessment of one account.
type PortfolioRisk struct {
	RiskScore             float64 `json:"risk_score"`
	Exposure              float64 `json:"exposure"`
	Diversification       float64 `json:"diversification"`
	Drawdown              float64 `json:"drawdown"`
	Leverage              float64 `json:"leverage"`
	IndustryConcentration float64 `json:"industry_concentration"`
	StockConcentration    float64 `json:"stock_concentration"`
	RiskLevel             string  `json:"risk_level"`
}

// PositionRisk grades a single holding.
type PositionRisk struct {
	Symbol       string  `json:"symbol"`
	Volume       int64   `json:"volume"`
	AvgPrice     float64 `json:"avg_price"`
	CurrentPrice float64 `json:"current_price"`
	MarketValue  float64 `json:"market_value"`
	Profit       float64 `json:"profit"`
	ProfitRatio  float64 `json:"profit_ratio"`
	RiskScore    float64 `json:"risk_score"`
	RiskLevel    string  `json:"risk_level"`
}

// Alert flags an account whose composite risk crossed the warning level.
type Alert struct {
	AccountID string    `json:"account_id"`
	RiskScore float64   `json:"risk_score"`
	RiskLevel string    `json:"risk_level"`
	Message   string    `json:"message"`
	Time      time.Time `json:"time"`
}

// Recommendation is a risk-reduction suggestion attached to a report.
type Recommendation struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

// Report is a full risk report for one account.
type Report struct {
	AccountID        string             `json:"account_id"`
	GeneratedAt      time.Time          `json:"generated_at"`
	Portfolio        PortfolioRisk      `json:"portfolio_risk"`
	Positions        []PositionRisk     `json:"position_risks"`
	IndustryExposure map[string]float64 `json:"industry_exposure"`
	DailyTrades      int                `json:"daily_trades"`
	IntradayTrades   int                `json:"intraday_trades"`
	Alerts           []Alert            `json:"risk_alerts"`
	Recommendations  []Recommendation   `json:"recommendations"`
}

// riskLevel maps a composite score to a three-tier label.
func riskLevel(score float64) string {
	switch {
	case score < 0.3:
		return "low"
	case score < 0.6:
		return "medium"
	default:
		return "high"
	}
}

// CalculatePortfolioRisk computes the composite risk of an account: the two
// concentration terms weigh 0.3 each, leverage and drawdown 0.2 each.
func (g *Gate) CalculatePortfolioRisk(accountID string) PortfolioRisk {
	acct := g.accounts.Get(accountID)
	if acct == nil {
		return PortfolioRisk{RiskLevel: "low"}
	}
	info := acct.Snapshot()
	positions := acct.Positions()

	g.mu.Lock()
	cfg := g.cfg
	g.mu.Unlock()

	var stockConcentration float64
	if len(positions) > 0 {
		stockConcentration = 1.0 / float64(len(positions))
	}

	industries := make(map[string]struct{})
	for _, pos := range positions {
		industries[g.industryOf(pos.Symbol)] = struct{}{}
	}
	var industryConcentration float64
	if len(industries) > 0 {
		industryConcentration = 1.0 / float64(len(industries))
	}

	var leverage float64
	if info.TotalAsset > 0 {
		leverage = info.MarketValue / info.TotalAsset
	}

	var drawdown float64
	if info.InitialBalance > 0 {
		drawdown = (info.InitialBalance - info.TotalAsset) / info.InitialBalance
		if drawdown < 0 {
			drawdown = 0
		}
	}

	score := stockConcentration*0.3 + industryConcentration*0.3
	score += clamp01(leverage/cfg.MaxLeverage) * 0.2
	score += clamp01(drawdown/cfg.GlobalStopLoss) * 0.2
	score = clamp01(score)

	return PortfolioRisk{
		RiskScore:             score,
		Exposure:              info.MarketValue,
		Diversification:       1.0 - (stockConcentration+industryConcentration)/2,
		Drawdown:              drawdown,
		Leverage:              leverage,
		IndustryConcentration: industryConcentration,
		StockConcentration:    stockConcentration,
		RiskLevel:             riskLevel(score),
	}
}

// positionRiskScore grades one holding from its unrealized P&L ratio and its
// share of total assets.
func (g *Gate) positionRiskScore(pos account.Snapshot, info account.Info, cfg Config) float64 {
	var score float64
	if pos.ProfitRatio < -cfg.PositionStopLoss {
		score += 0.5
	} else if pos.ProfitRatio > cfg.PositionTakeProfit {
		score += 0.3
	}
	if info.TotalAsset > 0 {
		ratio := pos.MarketValue / info.TotalAsset
		if ratio > cfg.MaxPositionPerStock {
			score += 0.5
		} else if ratio > cfg.MaxPositionPerStock*cfg.WarningLevel {
			score += 0.3
		}
	}
	return clamp01(score)
}

// GenerateReport builds a full risk report for an account.
func (g *Gate) GenerateReport(accountID string) Report {
	report := Report{
		AccountID:        accountID,
		GeneratedAt:      time.Now(),
		Portfolio:        g.CalculatePortfolioRisk(accountID),
		IndustryExposure: map[string]float64{},
	}

	acct := g.accounts.Get(accountID)
	if acct == nil {
		return report
	}
	info := acct.Snapshot()

	g.mu.Lock()
	cfg := g.cfg
	for industry, expo := range g.industryExpo[accountID] {
		report.IndustryExposure[industry] = expo
	}
	for _, n := range g.dailyTrades[accountID] {
		report.DailyTrades += n
	}
	report.IntradayTrades = g.intradayTrades[accountID]
	g.mu.Unlock()

	for _, pos := range acct.Positions() {
		score := g.positionRiskScore(pos, info, cfg)
		report.Positions = append(report.Positions, PositionRisk{
			Symbol:       pos.Symbol,
			Volume:       pos.Volume,
			AvgPrice:     pos.AvgPrice,
			CurrentPrice: pos.CurrentPrice,
			MarketValue:  pos.MarketValue,
			Profit:       pos.Profit,
			ProfitRatio:  pos.ProfitRatio,
			RiskScore:    score,
			RiskLevel:    riskLevel(score),
		})
	}

	if report.Portfolio.RiskScore > 0.6 {
		report.Alerts = append(report.Alerts, Alert{
			AccountID: accountID,
			RiskScore: report.Portfolio.RiskScore,
			RiskLevel: report.Portfolio.RiskLevel,
			Message:   fmt.Sprintf("portfolio risk score too high: %.2f", report.Portfolio.RiskScore),
			Time:      time.Now(),
		})
	}
	if report.Portfolio.IndustryConcentration > cfg.MaxIndustryConcentration {
		report.Recommendations = append(report.Recommendations, Recommendation{
			Type:     "diversification",
			Message:  "industry concentration too high, diversify holdings",
			Priority: "high",
		})
	}
	if report.Portfolio.Leverage > cfg.MaxLeverage*cfg.WarningLevel {
		report.Recommendations = append(report.Recommendations, Recommendation{
			Type:     "leverage",
			Message:  "leverage near the configured limit, reduce exposure",
			Priority: "medium",
		})
	}
	return report
}

// Monitor sweeps all accounts and returns alerts for those whose composite
// risk exceeds the warning level. Sweeps closer together than the configured
// monitoring interval are skipped.
func (g *Gate) Monitor() []Alert {
	g.mu.Lock()
	if time.Since(g.lastMonitoring) < g.cfg.MonitoringInterval {
		g.mu.Unlock()
		return nil
	}
	g.lastMonitoring = time.Now()
	warningLevel := g.cfg.WarningLevel
	g.mu.Unlock()

	var alerts []Alert
	for _, id := range g.accounts.List() {
		pr := g.CalculatePortfolioRisk(id)
		if pr.RiskScore > warningLevel {
			alerts = append(alerts, Alert{
				AccountID: id,
				RiskScore: pr.RiskScore,
				RiskLevel: pr.RiskLevel,
				Message:   fmt.Sprintf("account risk score too high: %.2f", pr.RiskScore),
				Time:      time.Now(),
			})
		}
	}
	return alerts
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

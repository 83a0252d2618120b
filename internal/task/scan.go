package task

import (
	"math/rand"
	"time"

	"papertrade/internal/domain"
	"papertrade/internal/indicator"
)

// Strategy names accepted by the symbol scanner.
const (
	ScanValue         = "value"
	ScanGrowth        = "growth"
	ScanTechnical     = "technical"
	ScanMomentum      = "momentum"
	ScanMeanReversion = "mean_reversion"
)

// AllScanStrategies lists every scoring strategy the scanner knows.
var AllScanStrategies = []string{ScanValue, ScanGrowth, ScanTechnical, ScanMomentum, ScanMeanReversion}

// Fundamentals are the per-symbol fundamental figures used by the value
// scorer.
type Fundamentals struct {
	PE  float64 `json:"pe"`
	PB  float64 `json:"pb"`
	ROE float64 `json:"roe"`
}

// FundamentalsFunc supplies fundamentals for a symbol. No fundamental data
// source is wired in yet, so the default simulates plausible figures.
type FundamentalsFunc func(symbol string) Fundamentals

// SimulatedFundamentals draws random fundamentals from typical retail
// ranges.
func SimulatedFundamentals(string) Fundamentals {
	return Fundamentals{
		PE:  5 + rand.Float64()*25,
		PB:  0.5 + rand.Float64()*4.5,
		ROE: 0.05 + rand.Float64()*0.15,
	}
}

// SymbolAnalysis is the scored analysis of one symbol.
type SymbolAnalysis struct {
	Symbol       string             `json:"symbol"`
	Score        float64            `json:"score"`
	Strategies   map[string]float64 `json:"strategies"`
	Price        float64            `json:"price"`
	Volume       int64              `json:"volume"`
	Return1D     float64            `json:"return_1d"`
	Return7D     float64            `json:"return_7d"`
	Return30D    float64            `json:"return_30d"`
	Volatility   float64            `json:"volatility"`
	AvgVolume30D float64            `json:"avg_volume_30d"`
	Date         time.Time          `json:"date"`
}

// analyzeSymbol scores one symbol's bar history against the requested
// strategies. Each scorer contributes 0 when it lacks enough history.
func analyzeSymbol(symbol string, bars []domain.Bar, strategies []string, fundamentals FundamentalsFunc) SymbolAnalysis {
	result := SymbolAnalysis{
		Symbol:     symbol,
		Strategies: make(map[string]float64, len(strategies)),
	}
	if len(bars) > 0 {
		last := bars[len(bars)-1]
		result.Price = last.Close
		result.Volume = last.Volume
		result.Date = last.Timestamp
	}

	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = float64(b.Volume)
	}
	returns := indicator.Returns(closes)

	if len(bars) >= 20 {
		if len(returns) > 0 {
			result.Return1D = returns[len(returns)-1]
		}
		if len(returns) >= 7 {
			result.Return7D = indicator.Mean(returns[len(returns)-7:])
		}
		if len(returns) >= 30 {
			result.Return30D = indicator.Mean(returns[len(returns)-30:])
		}
		result.Volatility = indicator.StdDev(returns)
		if len(volumes) >= 30 {
			result.AvgVolume30D = indicator.Mean(volumes[len(volumes)-30:])
		}
	}

	for _, name := range strategies {
		var score float64
		switch name {
		case ScanValue:
			score = valueScore(bars, symbol, fundamentals)
		case ScanGrowth:
			score = growthScore(bars, returns)
		case ScanTechnical:
			score = technicalScore(bars, closes)
		case ScanMomentum:
			score = momentumScore(bars, returns)
		case ScanMeanReversion:
			score = meanReversionScore(bars, closes)
		default:
			continue
		}
		result.Strategies[name] = score
		result.Score += score
	}
	return result
}

func valueScore(bars []domain.Bar, symbol string, fundamentals FundamentalsFunc) float64 {
	if len(bars) < 20 {
		return 0
	}
	f := fundamentals(symbol)

	var score float64
	switch {
	case f.PE < 15:
		score += 2
	case f.PE < 20:
		score += 1
	}
	switch {
	case f.PB < 1.5:
		score += 2
	case f.PB < 2.0:
		score += 1
	}
	switch {
	case f.ROE > 0.1:
		score += 2
	case f.ROE > 0.08:
		score += 1
	}
	return score
}

func growthScore(bars []domain.Bar, returns []float64) float64 {
	if len(bars) < 30 {
		return 0
	}

	var growth30, growth60 float64
	if len(returns) >= 30 {
		growth30 = indicator.Mean(returns[len(returns)-30:])
	}
	if len(returns) >= 60 {
		growth60 = indicator.Mean(returns[len(returns)-60:])
	}

	var score float64
	switch {
	case growth30 > 0.02:
		score += 2
	case growth30 > 0.01:
		score += 1
	}
	switch {
	case growth60 > 0.04:
		score += 2
	case growth60 > 0.02:
		score += 1
	}
	return score
}

func technicalScore(bars []domain.Bar, closes []float64) float64 {
	if len(bars) < 60 {
		return 0
	}

	var score float64
	if indicator.SMA(closes, 20) > indicator.SMA(closes, 60) {
		score += 2
	}

	_, _, hist := indicator.MACD(closes)
	n := len(hist)
	switch {
	case hist[n-1] > 0 && hist[n-2] <= 0:
		score += 2 // golden cross
	case hist[n-1] > 0:
		score += 1
	}

	rsi := indicator.RSI(closes, 14)
	switch {
	case rsi < 30:
		score += 2 // oversold
	case rsi > 30 && rsi < 70:
		score += 1
	}
	return score
}

func momentumScore(bars []domain.Bar, returns []float64) float64 {
	if len(bars) < 20 || len(returns) < 20 {
		return 0
	}
	momentum := indicator.Mean(returns[len(returns)-20:])
	switch {
	case momentum > 0.01:
		return 2
	case momentum > 0.005:
		return 1
	}
	return 0
}

func meanReversionScore(bars []domain.Bar, closes []float64) float64 {
	if len(bars) < 20 {
		return 0
	}
	window := closes[len(closes)-20:]
	mean := indicator.Mean(window)
	std := indicator.StdDev(window)
	if std == 0 {
		return 0
	}
	z := (closes[len(closes)-1] - mean) / std
	switch {
	case z < -2:
		return 2 // heavily discounted
	case z < -1:
		return 1
	}
	return 0
}

// Package indicator provides the technical indicators used by strategies
// and the symbol scanner: SMA, EMA, MACD, and RSI. All functions are pure
// and operate on plain float64 slices of closing prices.
package indicator

import "math"

// SMA returns the arithmetic mean of the last period values, or 0 when
// fewer than period values are available.
func SMA(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period {
		return 0
	}
	var sum float64
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period)
}

// EMA returns the exponential moving average series, seeded with the first
// value and smoothed with multiplier 2/(period+1).
func EMA(prices []float64, period int) []float64 {
	if len(prices) == 0 || period <= 0 {
		return nil
	}
	multiplier := 2.0 / float64(period+1)
	out := make([]float64, len(prices))
	out[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		out[i] = (prices[i]-out[i-1])*multiplier + out[i-1]
	}
	return out
}

// MACD returns the MACD line (EMA12 − EMA26), its signal line (EMA9 of the
// MACD line), and the histogram (MACD − signal).
func MACD(prices []float64) (macd, signal, histogram []float64) {
	if len(prices) == 0 {
		return nil, nil, nil
	}
	fast := EMA(prices, 12)
	slow := EMA(prices, 26)
	macd = make([]float64, len(prices))
	for i := range prices {
		macd[i] = fast[i] - slow[i]
	}
	signal = EMA(macd, 9)
	histogram = make([]float64, len(prices))
	for i := range prices {
		histogram[i] = macd[i] - signal[i]
	}
	return macd, signal, histogram
}

// RSI returns the relative strength index over the last period price
// changes. It returns 50 with insufficient data and 100 when there are no
// losses in the window.
func RSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return 50
	}

	gains := make([]float64, 0, len(prices)-1)
	losses := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -change)
		}
	}

	var avgGain, avgLoss float64
	for _, g := range gains[len(gains)-period:] {
		avgGain += g
	}
	for _, l := range losses[len(losses)-period:] {
		avgLoss += l
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Returns converts a price series into simple period-over-period returns.
func Returns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		out[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
	}
	return out
}

// Mean returns the arithmetic mean of values, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation of values.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}

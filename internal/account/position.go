package account

import (
	"time"

	"papertrade/internal/domain"
)

// Position tracks the holding in a single instrument. Volume is always
// non-negative: the simplified model holds at most one open position per
// symbol. Mutations happen only under the owning Account's lock.
type Position struct {
	Symbol       string
	Venue        domain.Venue
	Volume       int64
	AvgPrice     float64 // volume-weighted entry price, 0 when flat
	CurrentPrice float64 // last mark price from the feed
	UpdatedAt    time.Time
}

// MarketValue is the position's value at the current mark price.
func (p *Position) MarketValue() float64 {
	return p.CurrentPrice * float64(p.Volume)
}

// CostBasis is the capital tied up at the average entry price.
func (p *Position) CostBasis() float64 {
	return p.AvgPrice * float64(p.Volume)
}

// Profit is the unrealized profit at the current mark price.
func (p *Position) Profit() float64 {
	return p.MarketValue() - p.CostBasis()
}

// ProfitRatio is unrealized profit relative to cost basis, 0 when flat.
func (p *Position) ProfitRatio() float64 {
	cb := p.CostBasis()
	if cb <= 0 {
		return 0
	}
	return p.Profit() / cb
}

// open adds volume at the fill price, recomputing the weighted average.
func (p *Position) open(price float64, volume int64) {
	if p.Volume == 0 {
		p.AvgPrice = price
	} else {
		total := p.AvgPrice*float64(p.Volume) + price*float64(volume)
		p.AvgPrice = total / float64(p.Volume+volume)
	}
	p.Volume += volume
	p.CurrentPrice = price
	p.UpdatedAt = time.Now()
}

// close removes volume at the fill price and returns the realized profit.
// The profit sign depends on the closing direction: selling out of a long
// realizes (fill − avg)·volume, buying back a short realizes (avg − fill)·volume.
func (p *Position) close(price float64, volume int64, direction domain.Direction) float64 {
	var pnl float64
	if direction == domain.DirectionShort {
		pnl = (price - p.AvgPrice) * float64(volume)
	} else {
		pnl = (p.AvgPrice - price) * float64(volume)
	}

	p.Volume -= volume
	if p.Volume == 0 {
		p.AvgPrice = 0
	}
	p.CurrentPrice = price
	p.UpdatedAt = time.Now()
	return pnl
}

// Snapshot is an immutable copy of a position with derived fields resolved.
type Snapshot struct {
	Symbol       string       `json:"symbol"`
	Venue        domain.Venue `json:"venue"`
	Volume       int64        `json:"volume"`
	AvgPrice     float64      `json:"avg_price"`
	CurrentPrice float64      `json:"current_price"`
	MarketValue  float64      `json:"market_value"`
	CostBasis    float64      `json:"cost_basis"`
	Profit       float64      `json:"profit"`
	ProfitRatio  float64      `json:"profit_ratio"`
}

func (p *Position) snapshot() Snapshot {
	return Snapshot{
		Symbol:       p.Symbol,
		Venue:        p.Venue,
		Volume:       p.Volume,
		AvgPrice:     p.AvgPrice,
		CurrentPrice: p.CurrentPrice,
		MarketValue:  p.MarketValue(),
		CostBasis:    p.CostBasis(),
		Profit:       p.Profit(),
		ProfitRatio:  p.ProfitRatio(),
	}
}

// Package cost computes transaction costs for simulated fills: commission,
// transaction tax, transfer fee, and exchange levies. All functions are pure;
// a Calculator carries only its fee schedule.
package cost

import (
	"papertrade/internal/domain"
)

// Schedule is the fee schedule applied to every fill.
type Schedule struct {
	CommissionRate    float64 `yaml:"commission_rate"`     // per-fill commission rate
	MinCommission     float64 `yaml:"min_commission"`      // commission floor
	TaxRate           float64 `yaml:"tax_rate"`            // transaction tax, selling fills only
	TransferFeeRate   float64 `yaml:"transfer_fee_rate"`   // SSE-listed instruments only
	MinTransferFee    float64 `yaml:"min_transfer_fee"`    // transfer fee floor
	HandlingFeeRate   float64 `yaml:"handling_fee_rate"`   // exchange handling fee
	RegulatoryFeeRate float64 `yaml:"regulatory_fee_rate"` // regulator levy
	OtherFees         float64 `yaml:"other_fees"`          // fixed per-fill extras
}

// DefaultSchedule returns the standard retail fee schedule.
func DefaultSchedule() Schedule {
	return Schedule{
		CommissionRate:    0.0003,
		MinCommission:     5.0,
		TaxRate:           0.001,
		TransferFeeRate:   0.00002,
		MinTransferFee:    0.0,
		HandlingFeeRate:   0.0000487,
		RegulatoryFeeRate: 0.00002,
		OtherFees:         0.0,
	}
}

// BrokerSchedules holds preset fee schedules for common brokers, keyed by
// broker name.
var BrokerSchedules = map[string]Schedule{
	"standard": DefaultSchedule(),
	"discount": {
		CommissionRate:    0.00025,
		MinCommission:     5.0,
		TaxRate:           0.001,
		TransferFeeRate:   0.00002,
		HandlingFeeRate:   0.0000487,
		RegulatoryFeeRate: 0.00002,
	},
	"zero-minimum": {
		CommissionRate:    0.0003,
		MinCommission:     0.0,
		TaxRate:           0.001,
		TransferFeeRate:   0.00002,
		HandlingFeeRate:   0.0000487,
		RegulatoryFeeRate: 0.00002,
	},
}

// Breakdown itemizes the cost of a single fill.
type Breakdown struct {
	Amount        float64 `json:"amount"` // price × volume
	Commission    float64 `json:"commission"`
	Tax           float64 `json:"tax"`
	TransferFee   float64 `json:"transfer_fee"`
	HandlingFee   float64 `json:"handling_fee"`
	RegulatoryFee float64 `json:"regulatory_fee"`
	OtherFees     float64 `json:"other_fees"`
	TotalCost     float64 `json:"total_cost"`
	CostRate      float64 `json:"cost_rate"` // TotalCost / Amount
}

// RoundTrip is the combined cost of one buy-open and one sell-close fill at
// the same price and volume.
type RoundTrip struct {
	Buy       Breakdown `json:"buy"`
	Sell      Breakdown `json:"sell"`
	TotalCost float64   `json:"total_cost"`
	Amount    float64   `json:"amount"`
	CostRate  float64   `json:"cost_rate"`
}

// Calculator computes fill costs for a fixed fee schedule.
type Calculator struct {
	schedule Schedule
}

// NewCalculator creates a Calculator with the given fee schedule.
func NewCalculator(s Schedule) *Calculator {
	return &Calculator{schedule: s}
}

// ForBroker creates a Calculator using a preset broker schedule, falling back
// to the default schedule when the broker is unknown.
func ForBroker(name string) *Calculator {
	if s, ok := BrokerSchedules[name]; ok {
		return NewCalculator(s)
	}
	return NewCalculator(DefaultSchedule())
}

// Schedule returns the calculator's fee schedule.
func (c *Calculator) Schedule() Schedule {
	return c.schedule
}

// Calculate itemizes the cost of a fill. Tax applies to selling fills only;
// the transfer fee applies only to venues that levy it (SSE).
func (c *Calculator) Calculate(price float64, volume int64, direction domain.Direction, offset domain.Offset, venue domain.Venue) Breakdown {
	amount := price * float64(volume)

	commission := amount * c.schedule.CommissionRate
	if commission < c.schedule.MinCommission {
		commission = c.schedule.MinCommission
	}

	var tax float64
	if direction == domain.DirectionShort {
		tax = amount * c.schedule.TaxRate
	}

	var transferFee float64
	if venue == domain.VenueSSE {
		transferFee = amount * c.schedule.TransferFeeRate
		if transferFee < c.schedule.MinTransferFee {
			transferFee = c.schedule.MinTransferFee
		}
	}

	handlingFee := amount * c.schedule.HandlingFeeRate
	regulatoryFee := amount * c.schedule.RegulatoryFeeRate
	otherFees := c.schedule.OtherFees

	total := commission + tax + transferFee + handlingFee + regulatoryFee + otherFees

	b := Breakdown{
		Amount:        amount,
		Commission:    commission,
		Tax:           tax,
		TransferFee:   transferFee,
		HandlingFee:   handlingFee,
		RegulatoryFee: regulatoryFee,
		OtherFees:     otherFees,
		TotalCost:     total,
	}
	if amount > 0 {
		b.CostRate = total / amount
	}
	return b
}

// CalculateRoundTrip composes a buy-open and a sell-close at the same price
// and volume.
func (c *Calculator) CalculateRoundTrip(price float64, volume int64, venue domain.Venue) RoundTrip {
	buy := c.Calculate(price, volume, domain.DirectionLong, domain.OffsetOpen, venue)
	sell := c.Calculate(price, volume, domain.DirectionShort, domain.OffsetClose, venue)

	rt := RoundTrip{
		Buy:       buy,
		Sell:      sell,
		TotalCost: buy.TotalCost + sell.TotalCost,
		Amount:    buy.Amount,
	}
	if rt.Amount > 0 {
		rt.CostRate = rt.TotalCost / rt.Amount
	}
	return rt
}

// breakevenIterations bounds the bisection search; the fee function is
// monotonic but has no closed-form inverse because of the commission floor.
const breakevenIterations = 100

// breakevenTolerance is the acceptable gap, in currency units, between gross
// profit and round-trip cost at the returned price.
const breakevenTolerance = 0.01

// BreakevenPrice returns the sell price at which a position opened at
// buyPrice neither gains nor loses after fees. Solved by bisection between
// buyPrice and buyPrice×1.1.
func (c *Calculator) BreakevenPrice(buyPrice float64, volume int64, venue domain.Venue) float64 {
	buyCost := c.Calculate(buyPrice, volume, domain.DirectionLong, domain.OffsetOpen, venue).TotalCost

	low := buyPrice
	high := buyPrice * 1.1

	for i := 0; i < breakevenIterations; i++ {
		mid := (low + high) / 2
		sellCost := c.Calculate(mid, volume, domain.DirectionShort, domain.OffsetClose, venue).TotalCost
		profit := (mid - buyPrice) * float64(volume)
		diff := profit - (buyCost + sellCost)

		switch {
		case diff > -breakevenTolerance && diff < breakevenTolerance:
			return mid
		case diff < 0:
			low = mid
		default:
			high = mid
		}
	}
	return high
}

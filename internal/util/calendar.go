package util

import (
	"time"
)

// cst is China Standard Time, the session clock for SSE and SZSE.
var cst = time.FixedZone("CST", 8*60*60)

// TradingCalendar provides market-hours awareness for the mainland A-share
// session: 9:30-11:30 and 13:00-15:00 CST, Monday through Friday.
// TODO: account for exchange holidays (needs a published holiday table).
type TradingCalendar struct{}

// NewTradingCalendar creates a TradingCalendar.
func NewTradingCalendar() *TradingCalendar {
	return &TradingCalendar{}
}

// IsTradingDay reports whether t falls on a weekday.
func (tc *TradingCalendar) IsTradingDay(t time.Time) bool {
	wd := t.In(cst).Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// IsMarketOpen returns whether the market is open at time t.
func (tc *TradingCalendar) IsMarketOpen(t time.Time) bool {
	if !tc.IsTradingDay(t) {
		return false
	}
	local := t.In(cst)
	minutes := local.Hour()*60 + local.Minute()

	morning := minutes >= 9*60+30 && minutes < 11*60+30
	afternoon := minutes >= 13*60 && minutes < 15*60
	return morning || afternoon
}

// NextOpen returns the next session open at or after t.
func (tc *TradingCalendar) NextOpen(t time.Time) time.Time {
	local := t.In(cst)
	for {
		if tc.IsTradingDay(local) {
			morning := time.Date(local.Year(), local.Month(), local.Day(), 9, 30, 0, 0, cst)
			afternoon := time.Date(local.Year(), local.Month(), local.Day(), 13, 0, 0, 0, cst)
			if !local.After(morning) {
				return morning
			}
			if local.After(morning) && local.Before(afternoon) && !tc.IsMarketOpen(local) {
				return afternoon
			}
			if tc.IsMarketOpen(local) {
				return local
			}
		}
		// Roll to the next day's candidate open.
		local = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, cst).AddDate(0, 0, 1)
	}
}

// NextClose returns the close of the session containing or following t.
func (tc *TradingCalendar) NextClose(t time.Time) time.Time {
	open := tc.NextOpen(t)
	local := open.In(cst)
	if local.Hour() < 12 {
		return time.Date(local.Year(), local.Month(), local.Day(), 11, 30, 0, 0, cst)
	}
	return time.Date(local.Year(), local.Month(), local.Day(), 15, 0, 0, 0, cst)
}

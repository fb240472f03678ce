package utils

import (
	"time"
)

// IndiaLocation is the timezone for Indian markets.
var IndiaLocation *time.Location

func init() {
	var err error
	IndiaLocation, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback to UTC+5:30
		IndiaLocation = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// Demo trading window, in minutes after midnight IST.
const (
	demoWindowOpen  = 9*60 + 20  // 09:20
	demoWindowClose = 15*60 + 15 // 15:15
)

// MarketStatus describes the demo trading window at an instant.
type MarketStatus string

const (
	MarketOpen    MarketStatus = "OPEN"
	MarketClosed  MarketStatus = "CLOSED"
	MarketWeekend MarketStatus = "WEEKEND"
)

// GetMarketStatus returns the demo trading window status at t.
func GetMarketStatus(t time.Time) MarketStatus {
	now := t.In(IndiaLocation)

	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return MarketWeekend
	}

	minutes := now.Hour()*60 + now.Minute()
	if minutes >= demoWindowOpen && minutes <= demoWindowClose {
		return MarketOpen
	}
	return MarketClosed
}

// IsMarketOpen reports whether demo orders may be placed at t.
func IsMarketOpen(t time.Time) bool {
	return GetMarketStatus(t) == MarketOpen
}

// NextMarketOpen returns the next opening of the demo trading window after t.
func NextMarketOpen(t time.Time) time.Time {
	now := t.In(IndiaLocation)

	next := time.Date(now.Year(), now.Month(), now.Day(), demoWindowOpen/60, demoWindowOpen%60, 0, 0, IndiaLocation)
	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}

	// Skip weekends
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}

	return next
}

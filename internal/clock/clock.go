// Package clock computes trading-session state as a pure function of a
// market definition and an instant. It performs no I/O; holiday data comes
// from the definition itself plus the embedded scmhub trading calendars.
package clock

import (
	"time"

	"github.com/finpulse/marketpulse/internal/model"
)

// StatusAt computes the session status of one market at a given instant.
// Identical inputs always produce identical output.
func StatusAt(def model.MarketDefinition, at time.Time) model.MarketStatus {
	status := model.StatusClosed
	if sessionOpen(def, at) {
		status = model.StatusOpen
	}
	return model.MarketStatus{
		ExchangeCode: def.Code,
		Status:       status,
		AsOf:         at,
	}
}

// AnyOpen reports whether at least one of the given markets is open at the
// instant. Session-aware jobs use it to skip work while everything is closed.
func AnyOpen(defs []model.MarketDefinition, at time.Time) bool {
	for _, def := range defs {
		if sessionOpen(def, at) {
			return true
		}
	}
	return false
}

// SessionDate returns the local calendar date (midnight, market zone) the
// instant's session belongs to. For overnight sessions the segment before
// close belongs to the previous day's session.
func SessionDate(def model.MarketDefinition, at time.Time) time.Time {
	loc := location(def)
	local := at.In(loc)
	if def.Overnight() {
		if minutesOf(local) < def.Close.Minutes() {
			local = local.AddDate(0, 0, -1)
		}
	}
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func sessionOpen(def model.MarketDefinition, at time.Time) bool {
	local := at.In(location(def))

	if !def.Weekdays.Has(local.Weekday()) {
		return false
	}
	if isHoliday(def, local) {
		return false
	}

	m := minutesOf(local)
	openMin, closeMin := def.Open.Minutes(), def.Close.Minutes()
	if openMin > closeMin {
		// Session wraps midnight.
		return m >= openMin || m < closeMin
	}
	// Half-open interval: the close minute itself is closed.
	return m >= openMin && m < closeMin
}

func minutesOf(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func location(def model.MarketDefinition) *time.Location {
	if def.Location != nil {
		return def.Location
	}
	return time.UTC
}

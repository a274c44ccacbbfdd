package clock

import (
	"time"

	"github.com/scmhub/calendar"

	"github.com/finpulse/marketpulse/internal/model"
)

// isHoliday reports whether the local instant falls on a non-trading date:
// either an explicit holiday from the definition or a non-business day per
// the market's MIC trading calendar. Explicit holidays are civil dates; their
// zone is ignored.
func isHoliday(def model.MarketDefinition, local time.Time) bool {
	for _, h := range def.Holidays {
		if sameDate(h, local) {
			return true
		}
	}
	if def.CalendarMIC != "" {
		if cal := calendar.GetCalendar(def.CalendarMIC); cal != nil {
			if !cal.IsBusinessDay(local) {
				return true
			}
		}
	}
	return false
}

// KnownMIC reports whether a MIC resolves to a bundled trading calendar.
// Loaders use it to warn about typos before definitions go live.
func KnownMIC(mic string) bool {
	return calendar.GetCalendar(mic) != nil
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

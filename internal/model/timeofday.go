package model

import (
	"fmt"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// Time-of-Day
// -----------------------------------------------------------------------------

// TimeOfDay is a wall-clock time within a day, zone-agnostic.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (24-hour).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: out of range", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// Minutes returns minutes since local midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// -----------------------------------------------------------------------------
// Weekday Set
// -----------------------------------------------------------------------------

// WeekdaySet is a bitmask of trading weekdays (bit n = time.Weekday n).
type WeekdaySet uint8

// Has reports whether d is a trading day.
func (s WeekdaySet) Has(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

// Add returns the set with d included.
func (s WeekdaySet) Add(d time.Weekday) WeekdaySet {
	return s | (1 << uint(d))
}

func (s WeekdaySet) String() string {
	var parts []string
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			parts = append(parts, d.String()[:3])
		}
	}
	return strings.Join(parts, ",")
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekday accepts short or long English day names, case-insensitive.
func ParseWeekday(s string) (time.Weekday, error) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", s)
	}
	return d, nil
}

// ParseWeekdays builds a WeekdaySet from day names.
func ParseWeekdays(names []string) (WeekdaySet, error) {
	var set WeekdaySet
	for _, n := range names {
		d, err := ParseWeekday(n)
		if err != nil {
			return 0, err
		}
		set = set.Add(d)
	}
	return set, nil
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/finpulse/marketpulse/internal/model"
)

// MarketDefinitions converts the YAML market list into resolved definitions:
// timezone loaded, open/close and weekdays parsed, holidays anchored to local
// midnight.
func (c *Config) MarketDefinitions() ([]model.MarketDefinition, error) {
	defs := make([]model.MarketDefinition, 0, len(c.Markets))
	for _, m := range c.Markets {
		def, err := m.toModel()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// InstrumentList converts the YAML instrument list.
func (c *Config) InstrumentList() []model.Instrument {
	insts := make([]model.Instrument, 0, len(c.Instruments))
	for _, i := range c.Instruments {
		insts = append(insts, model.Instrument{Symbol: i.Symbol, MarketCode: i.Market})
	}
	return insts
}

func (m MarketConfig) toModel() (model.MarketDefinition, error) {
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return model.MarketDefinition{}, fmt.Errorf("market %s: timezone: %w", m.Code, err)
	}
	open, err := model.ParseTimeOfDay(m.Open)
	if err != nil {
		return model.MarketDefinition{}, fmt.Errorf("market %s: open: %w", m.Code, err)
	}
	clos, err := model.ParseTimeOfDay(m.Close)
	if err != nil {
		return model.MarketDefinition{}, fmt.Errorf("market %s: close: %w", m.Code, err)
	}
	days, err := model.ParseWeekdays(m.Weekdays)
	if err != nil {
		return model.MarketDefinition{}, fmt.Errorf("market %s: weekdays: %w", m.Code, err)
	}

	holidays := make([]time.Time, 0, len(m.Holidays))
	for _, h := range m.Holidays {
		day, err := time.ParseInLocation("2006-01-02", h, loc)
		if err != nil {
			return model.MarketDefinition{}, fmt.Errorf("market %s: holiday %q: want YYYY-MM-DD", m.Code, h)
		}
		holidays = append(holidays, day)
	}

	return model.MarketDefinition{
		Code:        m.Code,
		Timezone:    m.Timezone,
		Location:    loc,
		Open:        open,
		Close:       clos,
		Weekdays:    days,
		CalendarMIC: strings.ToLower(m.CalendarMIC),
		Holidays:    holidays,
	}, nil
}

package models

import (
	"fmt"
	"time"
	_ "time/tzdata" // session timezones must resolve even without a system zoneinfo db
)

// Instrument describes one tradable futures contract: its feed code, the
// display name stored on every trade record, and the timezone of its
// trading session.
type Instrument struct {
	Code     string
	Name     string
	Timezone string

	loc *time.Location
}

// Location returns the instrument's trading-session timezone.
func (i Instrument) Location() *time.Location {
	return i.loc
}

// instruments maps feed product codes to their session timezone and
// display name. Pure lookup table.
var instruments = map[string]Instrument{
	"HSI":   {Code: "HSI", Name: "亞洲期指", Timezone: "Asia/Hong_Kong"},   // Hang Seng
	"HSCE":  {Code: "HSCE", Name: "亞企期指", Timezone: "Asia/Hong_Kong"},  // Hang Seng China Enterprises
	"IF300": {Code: "IF300", Name: "滬深期指", Timezone: "Asia/Hong_Kong"}, // CSI 300
	"S2SFC": {Code: "S2SFC", Name: "A50", Timezone: "Asia/Hong_Kong"},
	"O1GC":  {Code: "O1GC", Name: "紐約期金", Timezone: "America/New_York"}, // Gold
	"M1EC":  {Code: "M1EC", Name: "歐元期貨", Timezone: "America/Chicago"},  // Euro
	"B1YM":  {Code: "B1YM", Name: "迷你道瓊", Timezone: "America/Chicago"},  // Mini Dow
	"N1CL":  {Code: "N1CL", Name: "小輕原油", Timezone: "America/New_York"}, // Crude oil
	"WTX":   {Code: "WTX", Name: "台灣期指", Timezone: "Asia/Taipei"},       // TAIEX
	"M1NQ":  {Code: "M1NQ", Name: "NasDaq", Timezone: "America/Chicago"},
	"M1ES":  {Code: "M1ES", Name: "SP500", Timezone: "America/Chicago"},
}

// LookupInstrument resolves a product code against the registry and loads
// its session timezone. An unknown code or unloadable timezone is a
// startup error.
func LookupInstrument(code string) (Instrument, error) {
	inst, ok := instruments[code]
	if !ok {
		return Instrument{}, fmt.Errorf("unknown instrument code %q", code)
	}
	loc, err := time.LoadLocation(inst.Timezone)
	if err != nil {
		return Instrument{}, fmt.Errorf("load timezone %q for %s: %w", inst.Timezone, code, err)
	}
	inst.loc = loc
	return inst, nil
}

// InstrumentCodes lists the registered product codes, for startup
// diagnostics.
func InstrumentCodes() []string {
	codes := make([]string, 0, len(instruments))
	for code := range instruments {
		codes = append(codes, code)
	}
	return codes
}

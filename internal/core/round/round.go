package round

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Domain rule for finalized averages: general fields keep 1 decimal,
// precipitation-like fields keep 2. Channel-specific exceptions are declared
// as explicit overrides in config, never inferred here.
const (
	GeneralPlaces       = 1
	PrecipitationPlaces = 2
)

// Value rounds v to places decimal places, half away from zero.
// Float64 averages go through decimal so 20.35 → 20.4 instead of drifting on
// binary representation.
func Value(v float64, places int) float64 {
	f, _ := decimal.NewFromFloat(v).Round(int32(places)).Float64()
	return f
}

// Places resolves the number of decimal places for a field. Overrides win;
// otherwise the fixed domain rule applies.
func Places(field string, overrides map[string]int) int {
	if p, ok := overrides[field]; ok {
		return p
	}
	if IsPrecipitation(field) {
		return PrecipitationPlaces
	}
	return GeneralPlaces
}

// IsPrecipitation reports whether a field name denotes rain or precipitation.
// Matches the station naming across both channels (RainRate, DailyRain,
// precipitation totals, and the Spanish LLUVIA).
func IsPrecipitation(field string) bool {
	f := strings.ToLower(field)
	return strings.Contains(f, "rain") || strings.Contains(f, "precip") || strings.Contains(f, "lluvia")
}

// Field rounds a single field value using Places.
func Field(field string, v float64, overrides map[string]int) float64 {
	return Value(v, Places(field, overrides))
}

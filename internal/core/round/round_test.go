package round

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValue(t *testing.T) {
	tests := []struct {
		name   string
		v      float64
		places int
		want   float64
	}{
		{"one decimal", 20.35, 1, 20.4},
		{"one decimal down", 20.34, 1, 20.3},
		{"two decimals", 0.3625, 2, 0.36},
		{"three decimals", 0.06149, 3, 0.061},
		{"integer", 42.5, 0, 43},
		{"negative half away from zero", -1.25, 1, -1.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, Value(tt.v, tt.places), 1e-9)
		})
	}
}

func TestPlaces(t *testing.T) {
	require.Equal(t, 1, Places("Temperature", nil))
	require.Equal(t, 1, Places("WindSpeed", nil))
	require.Equal(t, 2, Places("RainRate", nil))
	require.Equal(t, 2, Places("DailyRain", nil))
	require.Equal(t, 2, Places("precipitation_total", nil))

	// Explicit channel overrides beat the domain rule.
	overrides := map[string]int{"C1": 3, "C6": 0}
	require.Equal(t, 3, Places("C1", overrides))
	require.Equal(t, 0, Places("C6", overrides))
	require.Equal(t, 1, Places("C5", overrides))
}

func TestField_ScenarioAverages(t *testing.T) {
	// Mean of 20.1, 20.3, 20.5, 20.7.
	require.InDelta(t, 20.4, Field("Temperature", 20.4, nil), 1e-9)
	// Mean of 0.25, 0.30, 0.40, 0.50 = 0.3625 keeps two decimals.
	require.InDelta(t, 0.36, Field("RainRate", 0.3625, nil), 1e-9)
}

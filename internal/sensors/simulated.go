package sensors

import (
	"context"
	"math/rand/v2"
	"sync"
)

// baselines give simulated channels plausible starting points. Unknown keys
// start at zero and walk from there.
var baselines = map[string]float64{
	"Temperature":    22.0,
	"Humidity":       60.0,
	"Pressure":       1013.0,
	"WindSpeed":      3.0,
	"WindDirection":  180.0,
	"RainRate":       0.0,
	"UV":             4.0,
	"SolarRadiation": 420.0,
}

// Simulated produces a bounded random walk per configured key. It stands in
// for the physical station when no hardware is attached, so the rest of the
// pipeline runs unchanged.
type Simulated struct {
	name string
	keys []string

	mu     sync.Mutex
	values map[string]float64
}

// NewSimulated creates a simulated sensor emitting the given keys.
func NewSimulated(name string, keys []string) *Simulated {
	values := make(map[string]float64, len(keys))
	for _, k := range keys {
		values[k] = baselines[k]
	}
	return &Simulated{name: name, keys: keys, values: values}
}

func (s *Simulated) Name() string {
	return s.name
}

// Poll steps each channel's walk and returns a snapshot. It never fails.
func (s *Simulated) Poll(_ context.Context) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]float64, len(s.keys))
	for _, k := range s.keys {
		v := s.values[k] + (rand.Float64()-0.5)*0.4
		if v < 0 {
			v = 0
		}
		s.values[k] = v
		out[k] = v
	}
	return out, nil
}

package sensors

import (
	"context"
	"sync"
)

// Scripted replays a fixed sequence of readings, cycling when exhausted.
// Test-only companion to Simulated: deterministic where Simulated is random.
type Scripted struct {
	name     string
	mu       sync.Mutex
	readings []map[string]float64
	errs     []error
	next     int
}

// NewScripted creates a sensor that returns the given readings in order.
func NewScripted(name string, readings []map[string]float64) *Scripted {
	return &Scripted{name: name, readings: readings}
}

// NewScriptedWithErrors interleaves errors into the sequence: a nil entry in
// errs means the corresponding poll succeeds.
func NewScriptedWithErrors(name string, readings []map[string]float64, errs []error) *Scripted {
	return &Scripted{name: name, readings: readings, errs: errs}
}

func (s *Scripted) Name() string { return s.name }

func (s *Scripted) Poll(ctx context.Context) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.readings) == 0 {
		return map[string]float64{}, nil
	}

	i := s.next % len(s.readings)
	s.next++

	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}

	// Copy so callers cannot mutate the script.
	reading := make(map[string]float64, len(s.readings[i]))
	for k, v := range s.readings[i] {
		reading[k] = v
	}
	return reading, nil
}

// Polls reports how many polls have been served.
func (s *Scripted) Polls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

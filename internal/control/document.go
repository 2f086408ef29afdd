package control

import (
	"encoding/json"
	"fmt"
)

// State is a subsystem's control state.
type State string

const (
	StateRunning State = "RUNNING"
	StateStopped State = "STOPPED"
	StatePaused  State = "PAUSED"
)

// Known subsystem names in the control document.
const (
	ServiceCollector        = "data_collector"
	ServicePublisher        = "publisher"
	ServiceWinAQMSPublisher = "winaqms_publisher"
)

// Services lists every subsystem the document tracks, in document order.
var Services = []string{ServiceCollector, ServicePublisher, ServiceWinAQMSPublisher}

// ParseState validates a state string, case-insensitively.
func ParseState(s string) (State, error) {
	switch State(normalizeUpper(s)) {
	case StateRunning:
		return StateRunning, nil
	case StateStopped:
		return StateStopped, nil
	case StatePaused:
		return StatePaused, nil
	}
	return "", fmt.Errorf("unknown state %q", s)
}

func normalizeUpper(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'a' && b[i] <= 'z' {
			b[i] -= 'a' - 'A'
		}
	}
	return string(b)
}

// Document mirrors the on-disk control.json layout: per-subsystem state
// strings at the top level plus a nested last_successful map from publish
// channel to the RFC 3339 timestamp of the last hour delivered.
type Document struct {
	Services       map[string]State
	LastSuccessful map[string]string
}

// NewDocument returns the initial document: every subsystem STOPPED, no
// checkpoints.
func NewDocument() Document {
	services := make(map[string]State, len(Services))
	for _, s := range Services {
		services[s] = StateStopped
	}
	return Document{
		Services:       services,
		LastSuccessful: make(map[string]string),
	}
}

// MarshalJSON flattens subsystem states to top-level keys, matching the
// layout external processes expect.
func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Services)+1)
	for name, state := range d.Services {
		out[name] = state
	}
	last := d.LastSuccessful
	if last == nil {
		last = map[string]string{}
	}
	out["last_successful"] = last
	return json.MarshalIndent(out, "", "    ")
}

// UnmarshalJSON reads the flattened layout back. Unknown top-level string
// keys are kept as subsystem states so external additions survive a
// read-modify-write.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	d.Services = make(map[string]State)
	d.LastSuccessful = make(map[string]string)

	for key, value := range raw {
		if key == "last_successful" {
			if err := json.Unmarshal(value, &d.LastSuccessful); err != nil {
				return fmt.Errorf("parse last_successful: %w", err)
			}
			continue
		}
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			// Non-string top-level values are not states; ignore them.
			continue
		}
		d.Services[key] = State(s)
	}
	return nil
}

package sensors

import "context"

// Sensor is the live poll-on-demand boundary: given one poll, return a map of
// named float readings or fail. Physical drivers (serial weather stations,
// analyzers) live behind this interface; the pipeline never sees wire
// protocols.
type Sensor interface {
	// Name identifies the sensor in logs and config.
	Name() string

	// Poll performs one reading. Absent sub-sensors are simply missing from
	// the returned map.
	Poll(ctx context.Context) (map[string]float64, error)
}

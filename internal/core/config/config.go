package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level configuration for datasync.
type Config struct {
	Station   StationConfig   `koanf:"station"`
	Server    ServerConfig    `koanf:"server"`
	Control   ControlConfig   `koanf:"control"`
	Collector CollectorConfig `koanf:"collector"`
	Weather   PublisherConfig `koanf:"weather_publisher"`
	WinAQMS   PublisherConfig `koanf:"winaqms_publisher"`
}

// StationConfig identifies the monitoring station.
type StationConfig struct {
	Name      string  `koanf:"name"`
	Location  string  `koanf:"location"`
	Latitude  float64 `koanf:"latitude"`
	Longitude float64 `koanf:"longitude"`
	Elevation float64 `koanf:"elevation"`
}

// ServerConfig holds the control API server configuration.
type ServerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`
	Mode    string `koanf:"mode"` // "debug" or "release"
}

// ControlConfig locates the shared control document.
type ControlConfig struct {
	File          string `koanf:"file"`
	CheckInterval string `koanf:"check_interval"` // parsed as time.Duration
}

// SensorConfig describes one polled instrument.
type SensorConfig struct {
	Name         string   `koanf:"name"`
	Kind         string   `koanf:"kind"` // "simulated" for now; serial kinds plug in here
	Keys         []string `koanf:"keys"`
	ScanInterval string   `koanf:"scan_interval"` // parsed as time.Duration
}

// CollectorConfig holds the acquisition and persistence settings.
type CollectorConfig struct {
	Enabled        bool           `koanf:"enabled"`
	OutputDir      string         `koanf:"output_dir"`
	OutputInterval string         `koanf:"output_interval"` // parsed as time.Duration
	BatchSize      int            `koanf:"batch_size"`
	Sensors        []SensorConfig `koanf:"sensors"`
}

// PublisherConfig holds one republish channel's settings.
type PublisherConfig struct {
	Enabled      bool           `koanf:"enabled"`
	Endpoint     string         `koanf:"endpoint"`
	APIKey       string         `koanf:"api_key"`
	Origen       string         `koanf:"origen"`
	OffsetMinute int            `koanf:"offset_minute"`
	DataDir      string         `koanf:"data_dir"`
	Precision    map[string]int `koanf:"precision"`
}

// Load loads configuration from defaults, then the YAML file at configPath
// (optional when empty), then DATASYNC_ environment overrides.
// DATASYNC_SERVER__PORT=9090 overrides server.port.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"station.name":                    "CENTENARIO",
		"station.location":                "",
		"station.latitude":                0.0,
		"station.longitude":               0.0,
		"station.elevation":               0.0,
		"server.enabled":                  true,
		"server.host":                     "127.0.0.1",
		"server.port":                     8321,
		"server.mode":                     "release",
		"control.file":                    "control.json",
		"control.check_interval":          "5s",
		"collector.enabled":               true,
		"collector.output_dir":            "./data",
		"collector.output_interval":       "1m",
		"collector.batch_size":            5,
		"weather_publisher.enabled":       true,
		"weather_publisher.endpoint":      "",
		"weather_publisher.api_key":       "",
		"weather_publisher.origen":        "CENTENARIO",
		"weather_publisher.offset_minute": 3,
		"weather_publisher.data_dir":      "./data",
		"winaqms_publisher.enabled":       true,
		"winaqms_publisher.endpoint":      "",
		"winaqms_publisher.api_key":       "",
		"winaqms_publisher.origen":        "CENTENARIO",
		"winaqms_publisher.offset_minute": 4,
		"winaqms_publisher.data_dir":      "C:/Data",
		"winaqms_publisher.precision.C1":  3,
		"winaqms_publisher.precision.C2":  3,
		"winaqms_publisher.precision.C3":  3,
		"winaqms_publisher.precision.C4":  3,
		"winaqms_publisher.precision.C5":  2,
		"winaqms_publisher.precision.C6":  0,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("DATASYNC_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "DATASYNC_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate rejects configurations that would fail mid-loop instead of at
// startup. Called once from main before anything runs.
func (c *Config) Validate() error {
	if c.Station.Name == "" {
		return fmt.Errorf("station.name is required")
	}
	if _, err := c.ControlCheckInterval(); err != nil {
		return fmt.Errorf("control.check_interval: %w", err)
	}
	if c.Collector.Enabled {
		if c.Collector.OutputDir == "" {
			return fmt.Errorf("collector.output_dir is required")
		}
		if _, err := c.Collector.ParsedOutputInterval(); err != nil {
			return fmt.Errorf("collector.output_interval: %w", err)
		}
		if c.Collector.BatchSize <= 0 {
			return fmt.Errorf("collector.batch_size must be positive")
		}
		if len(c.Collector.Sensors) == 0 {
			return fmt.Errorf("collector.sensors must list at least one sensor")
		}
		for i, s := range c.Collector.Sensors {
			if s.Name == "" {
				return fmt.Errorf("collector.sensors[%d].name is required", i)
			}
			if len(s.Keys) == 0 {
				return fmt.Errorf("collector.sensors[%d].keys is required", i)
			}
			if _, err := s.ParsedScanInterval(); err != nil {
				return fmt.Errorf("collector.sensors[%d].scan_interval: %w", i, err)
			}
		}
	}
	for _, pub := range []struct {
		key string
		cfg PublisherConfig
	}{{"weather_publisher", c.Weather}, {"winaqms_publisher", c.WinAQMS}} {
		if !pub.cfg.Enabled {
			continue
		}
		if pub.cfg.Endpoint == "" {
			return fmt.Errorf("%s.endpoint is required when enabled", pub.key)
		}
		if pub.cfg.APIKey == "" {
			return fmt.Errorf("%s.api_key is required when enabled", pub.key)
		}
		if pub.cfg.DataDir == "" {
			return fmt.Errorf("%s.data_dir is required when enabled", pub.key)
		}
		if pub.cfg.OffsetMinute < 0 || pub.cfg.OffsetMinute > 59 {
			return fmt.Errorf("%s.offset_minute must be in [0, 59]", pub.key)
		}
	}
	return nil
}

// ControlCheckInterval parses the control polling interval.
func (c *Config) ControlCheckInterval() (time.Duration, error) {
	return parseDuration(c.Control.CheckInterval, 5*time.Second)
}

// ParsedOutputInterval parses the drain interval.
func (c CollectorConfig) ParsedOutputInterval() (time.Duration, error) {
	return parseDuration(c.OutputInterval, time.Minute)
}

// ParsedScanInterval parses one sensor's poll interval.
func (s SensorConfig) ParsedScanInterval() (time.Duration, error) {
	return parseDuration(s.ScanInterval, 5*time.Second)
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %q", raw)
	}
	return d, nil
}

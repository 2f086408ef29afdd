package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datasync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "CENTENARIO", cfg.Station.Name)
	require.Equal(t, 8321, cfg.Server.Port)
	require.Equal(t, "control.json", cfg.Control.File)
	require.Equal(t, 3, cfg.Weather.OffsetMinute)
	require.Equal(t, 4, cfg.WinAQMS.OffsetMinute)
	require.Equal(t, 3, cfg.WinAQMS.Precision["C1"])
	require.Equal(t, 0, cfg.WinAQMS.Precision["C6"])

	d, err := cfg.Collector.ParsedOutputInterval()
	require.NoError(t, err)
	require.Equal(t, time.Minute, d)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
station:
  name: "ECOSUR-TAP"
  location: "Tapachula"
server:
  port: 9000
collector:
  output_dir: "/var/lib/datasync/data"
  batch_size: 10
  sensors:
    - name: "davis"
      kind: "simulated"
      keys: ["Temperature", "Humidity"]
      scan_interval: "2s"
weather_publisher:
  endpoint: "https://api.example.org/ingest"
  api_key: "k"
  origen: "ECOSUR-TAP"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "ECOSUR-TAP", cfg.Station.Name)
	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, 10, cfg.Collector.BatchSize)
	require.Len(t, cfg.Collector.Sensors, 1)
	require.Equal(t, []string{"Temperature", "Humidity"}, cfg.Collector.Sensors[0].Keys)

	d, err := cfg.Collector.Sensors[0].ParsedScanInterval()
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, d)

	// Keys the file does not mention keep their defaults.
	require.Equal(t, 3, cfg.Weather.OffsetMinute)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
`)
	t.Setenv("DATASYNC_SERVER__PORT", "9100")
	t.Setenv("DATASYNC_STATION__NAME", "ENV-STATION")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "ENV-STATION", cfg.Station.Name)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func validBase(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Collector.Sensors = []SensorConfig{{Name: "davis", Kind: "simulated", Keys: []string{"Temperature"}}}
	cfg.Weather.Endpoint = "https://api.example.org/ingest"
	cfg.Weather.APIKey = "k"
	cfg.WinAQMS.Endpoint = "https://api.example.org/ingest"
	cfg.WinAQMS.APIKey = "k"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing station name", func(c *Config) { c.Station.Name = "" }, "station.name"},
		{"no sensors", func(c *Config) { c.Collector.Sensors = nil }, "sensors"},
		{"sensor without keys", func(c *Config) { c.Collector.Sensors[0].Keys = nil }, "keys"},
		{"bad output interval", func(c *Config) { c.Collector.OutputInterval = "soon" }, "output_interval"},
		{"zero batch size", func(c *Config) { c.Collector.BatchSize = 0 }, "batch_size"},
		{"publisher without endpoint", func(c *Config) { c.Weather.Endpoint = "" }, "endpoint"},
		{"publisher without api key", func(c *Config) { c.WinAQMS.APIKey = "" }, "api_key"},
		{"offset out of range", func(c *Config) { c.Weather.OffsetMinute = 60 }, "offset_minute"},
		{"disabled publisher skips checks", func(c *Config) {
			c.Weather.Enabled = false
			c.Weather.Endpoint = ""
			c.Weather.APIKey = ""
		}, ""},
		{"disabled collector skips checks", func(c *Config) {
			c.Collector.Enabled = false
			c.Collector.Sensors = nil
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBase(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

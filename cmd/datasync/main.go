package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ecosur-lab/datasync/internal/aggregate"
	"github.com/ecosur-lab/datasync/internal/api"
	"github.com/ecosur-lab/datasync/internal/collector"
	"github.com/ecosur-lab/datasync/internal/control"
	corecfg "github.com/ecosur-lab/datasync/internal/core/config"
	"github.com/ecosur-lab/datasync/internal/publish"
	"github.com/ecosur-lab/datasync/internal/sensors"
	"github.com/ecosur-lab/datasync/internal/store"
)

func main() {
	configPath := flag.String("config", "datasync.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid config", "error", err)
		os.Exit(1)
	}
	slog.Info("Station starting",
		"name", cfg.Station.Name,
		"location", cfg.Station.Location,
		"latitude", cfg.Station.Latitude,
		"longitude", cfg.Station.Longitude,
		"elevation", cfg.Station.Elevation,
	)

	checkInterval, err := cfg.ControlCheckInterval()
	if err != nil {
		slog.Error("Invalid control check interval", "error", err)
		os.Exit(1)
	}

	// 2. Initialize the shared control document
	ctrl := control.NewStore(cfg.Control.File, logger)
	if err := ctrl.Init(); err != nil {
		slog.Error("Failed to initialize control document", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	// 3. Data collector: one poll loop per sensor, one drain loop, one
	// control watch.
	var coll *collector.Collector
	if cfg.Collector.Enabled {
		coll, err = startCollector(ctx, g, cfg, ctrl, logger, checkInterval)
		if err != nil {
			slog.Error("Failed to start collector", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("Collector disabled by config")
	}

	// 4. Publish runners: weather reads the collector's day CSVs, WinAQMS
	// reads the analyzer's .wad files. Offsets keep their hourly slots apart.
	if cfg.Weather.Enabled {
		source := store.NewDayReader(cfg.Weather.DataDir, logger)
		startPublisher(ctx, g, control.ServicePublisher, cfg.Weather,
			source, publish.WeatherFields, ctrl, checkInterval, logger)
	} else {
		slog.Info("Weather publisher disabled by config")
	}
	if cfg.WinAQMS.Enabled {
		source := store.NewWADReader(cfg.WinAQMS.DataDir, logger)
		startPublisher(ctx, g, control.ServiceWinAQMSPublisher, cfg.WinAQMS,
			source, publish.WinAQMSFields, ctrl, checkInterval, logger)
	} else {
		slog.Info("WinAQMS publisher disabled by config")
	}

	// 5. Control API server blocks its goroutine until ctx is cancelled.
	if cfg.Server.Enabled {
		var latest func() []aggregate.Record
		if coll != nil {
			latest = coll.Latest
		}
		srv := api.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), ctrl, latest, cfg.Server.Mode, logger)
		g.Go(func() error {
			return srv.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("Service stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}

// startCollector wires the aggregation buffer, the daily writer and the
// sensor loops, flips the collector's control state to RUNNING and launches
// every loop on the group.
func startCollector(
	ctx context.Context,
	g *errgroup.Group,
	cfg *corecfg.Config,
	ctrl *control.Store,
	logger *slog.Logger,
	checkInterval time.Duration,
) (*collector.Collector, error) {
	outputInterval, err := cfg.Collector.ParsedOutputInterval()
	if err != nil {
		return nil, err
	}

	// Day file columns follow config order, first sensor first.
	var columns []string
	seen := map[string]bool{}
	for _, sc := range cfg.Collector.Sensors {
		for _, key := range sc.Keys {
			if !seen[key] {
				seen[key] = true
				columns = append(columns, key)
			}
		}
	}

	buffer := aggregate.NewBuffer(nil)
	writer := store.NewDailyWriter(cfg.Collector.OutputDir, columns, logger)
	coll := collector.New(buffer, writer, logger)

	if err := ctrl.SetState(control.ServiceCollector, control.StateRunning); err != nil {
		return nil, err
	}

	for _, sc := range cfg.Collector.Sensors {
		sensor, err := buildSensor(sc)
		if err != nil {
			return nil, err
		}
		scanInterval, err := sc.ParsedScanInterval()
		if err != nil {
			return nil, err
		}
		g.Go(func() error {
			coll.PollLoop(ctx, sensor, scanInterval)
			return nil
		})
	}

	g.Go(func() error {
		coll.DrainLoop(ctx, outputInterval, cfg.Collector.BatchSize)
		return nil
	})
	g.Go(func() error {
		coll.WatchControl(ctx, ctrl, checkInterval)
		return nil
	})

	return coll, nil
}

// startPublisher flips one channel's control state to RUNNING and launches
// its hourly runner. Cycle errors are handled inside the runner; the runner
// itself only ends on STOPPED or shutdown.
func startPublisher(
	ctx context.Context,
	g *errgroup.Group,
	service string,
	pub corecfg.PublisherConfig,
	source publish.WindowSource,
	fields publish.FieldMap,
	ctrl *control.Store,
	checkInterval time.Duration,
	logger *slog.Logger,
) {
	if err := ctrl.SetState(service, control.StateRunning); err != nil {
		slog.Error("Failed to set publisher state", "service", service, "error", err)
	}

	sender := publish.NewHTTPSender(pub.Endpoint, pub.APIKey, pub.Origen, logger)
	cycle := publish.NewCycle(service, source, ctrl, sender, fields, pub.Precision, logger)
	runner := publish.NewRunner(service, cycle, ctrl, pub.OffsetMinute, checkInterval, logger)

	g.Go(func() error {
		return runner.Run(ctx)
	})
}

func buildSensor(sc corecfg.SensorConfig) (sensors.Sensor, error) {
	switch sc.Kind {
	case "", "simulated":
		return sensors.NewSimulated(sc.Name, sc.Keys), nil
	}
	return nil, fmt.Errorf("unknown sensor kind %q for sensor %q", sc.Kind, sc.Name)
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

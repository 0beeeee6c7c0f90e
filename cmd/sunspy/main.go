// sunspy switches SecuritySpy cameras between active and passive mode at
// times relative to sunrise, noon and sunset.
//
// Each camera has a start expression (switch to active) and a stop
// expression (switch to passive). sunspy computes the day's solar anchors
// for the site, queues one event per expression, and then sleeps until the
// earliest deadline, fires it, recomputes the anchors and requeues the
// event for its next occurrence. It runs until interrupted.
//
// With --noaction the first pass of events is logged without touching any
// camera; with --force every event fires at once. Both exit when the queue
// drains.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/sunspy/internal/api"
	"github.com/nerrad567/sunspy/internal/camera"
	"github.com/nerrad567/sunspy/internal/geoip"
	"github.com/nerrad567/sunspy/internal/history"
	"github.com/nerrad567/sunspy/internal/infrastructure/config"
	"github.com/nerrad567/sunspy/internal/infrastructure/database"
	"github.com/nerrad567/sunspy/internal/infrastructure/influxdb"
	"github.com/nerrad567/sunspy/internal/infrastructure/logging"
	"github.com/nerrad567/sunspy/internal/infrastructure/mqtt"
	"github.com/nerrad567/sunspy/internal/metrics"
	"github.com/nerrad567/sunspy/internal/schedule"
	"github.com/nerrad567/sunspy/internal/solar"
	"github.com/nerrad567/sunspy/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// ackQoS is the QoS used for the bridge acknowledgement subscription.
const ackQoS byte = 1

// errMissingLocation is returned when no coordinates are configured and
// geoip cannot supply them.
var errMissingLocation = errors.New("missing latitude/longitude: use --lat and --lon or set site.location in the config file")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command-line arguments without the program name
//
// Returns:
//   - error: nil on clean shutdown or a drained queue, or error describing failure
func run(ctx context.Context, args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}
	if opts.help {
		printHelp(os.Stdout, opts.flagSet)
		return nil
	}
	if opts.showVersion {
		fmt.Printf("sunspy %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting sunspy",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	executable, _ := os.Executable()
	configPath := resolveConfigPath(opts, executable)
	cfg, err := loadConfig(configPath, opts)
	if err != nil {
		return err
	}
	if configPath == "" {
		log.Info("not using a config file")
	} else {
		log.Info("configuration loaded", "path", configPath)
	}

	log, err = logging.New(cfg.Logging, version)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := log.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "closing log file: %v\n", closeErr)
		}
	}()
	log.Debug("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	if opts.askPassword {
		password, promptErr := promptPassword(os.Stdin, os.Stderr)
		if promptErr != nil {
			return promptErr
		}
		cfg.Executor.SecuritySpy.Password = password
	} else if cfg.Executor.Type == config.ExecutorSecuritySpy && cfg.Executor.SecuritySpy.Password == "" {
		log.Warn("no SecuritySpy password was given")
	}

	loc, err := resolveLocation(ctx, cfg, log)
	if err != nil {
		return err
	}
	log.Info("site location",
		"latitude", loc.Latitude,
		"longitude", loc.Longitude,
		"utc_offset_hours", loc.UTCOffsetHours,
	)

	calc, err := solar.NewTwilightCalculator(cfg.Site.Twilight, cfg.Site.TwilightAngle)
	if err != nil {
		return err
	}
	log.Debug("solar calculator", "twilight", cfg.Site.Twilight, "elevation", calc.Elevation)

	simulated := opts.noAction || opts.force
	checks := make(map[string]api.HealthChecker)
	var observers []schedule.Observer

	// Firing history (optional)
	var historyRepo history.Repository
	if cfg.Database.Enabled {
		db, openErr := database.Open(ctx, cfg.Database)
		if openErr != nil {
			return fmt.Errorf("opening database: %w", openErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database connected", "path", db.Path())

		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Debug("database migrations complete")

		repo := history.NewSQLiteRepository(db.DB)
		if days := cfg.Database.RetentionDays; days > 0 {
			cutoff := time.Now().AddDate(0, 0, -days)
			removed, pruneErr := repo.Prune(ctx, cutoff)
			if pruneErr != nil {
				log.Warn("pruning firing history failed", "error", pruneErr)
			} else if removed > 0 {
				log.Info("pruned firing history", "removed", removed, "retention_days", days)
			}
		}
		historyRepo = repo
		observers = append(observers, history.NewRecorder(repo, log))
		checks["database"] = db
	} else {
		log.Info("firing history disabled")
	}

	// MQTT (optional unless it is the executor)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, mqtt.WithLogger(log))
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		if subErr := mqttClient.Subscribe(mqtt.Topics{}.AllCameraAcks(), ackQoS, ackHandler(log)); subErr != nil {
			return fmt.Errorf("subscribing to camera acks: %w", subErr)
		}
		observers = append(observers, newStatePublisher(mqttClient, log))
		checks["mqtt"] = mqttClient
	}

	var publisher camera.Publisher
	if mqttClient != nil {
		publisher = mqttClient
	}
	exec, err := newExecutor(ctx, cfg, opts.noAction, publisher, log)
	if err != nil {
		return err
	}

	// InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		observers = append(observers, influxClient)
		checks["influxdb"] = influxClient
	}

	var sched *schedule.Scheduler
	collector := metrics.NewCollector(version, func() schedule.Status {
		if sched == nil {
			return schedule.Status{}
		}
		return sched.Snapshot()
	})
	observers = append(observers, collector)

	sched, err = schedule.New(schedule.Options{
		Location:   loc,
		Calculator: calc,
		Executor:   exec,
		Logger:     log,
		Observers:  observers,
		UTCOffset:  cfg.ResolveUTCOffset,
		DryRun:     opts.noAction,
		Immediate:  opts.force,
	})
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	if err := sched.Load(ctx, cameras(cfg.Cameras)); err != nil {
		return fmt.Errorf("loading cameras: %w", err)
	}

	// Status API (long-running mode only)
	if cfg.API.Enabled && !simulated {
		deps := api.Deps{
			Config:  cfg.API,
			Logger:  log,
			Status:  sched,
			Version: version,
			History: historyRepo,
			Metrics: collector.Handler(),
			Checks:  checks,
		}
		if mqttClient != nil {
			deps.Subscriptions = mqttClient
		}
		server, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
	}

	log.Info("scheduler running",
		"events", sched.Len(),
		"dry_run", opts.noAction,
		"immediate", opts.force,
	)

	if err := sched.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("shutdown signal received, cleaning up")
			return nil
		}
		return fmt.Errorf("running scheduler: %w", err)
	}

	log.Info("all events fired, sunspy stopped")
	return nil
}

// loadConfig reads the config file (if any), applies command-line
// overrides and validates the result.
func loadConfig(path string, opts *options) (*config.Config, error) {
	cfg, err := config.Read(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// resolveLocation returns the site coordinates and UTC offset. Missing
// coordinates are looked up over geoip when enabled.
//
// Returns:
//   - solar.Location: Validated location
//   - error: errMissingLocation, or an offset/validation failure
func resolveLocation(ctx context.Context, cfg *config.Config, log *logging.Logger) (solar.Location, error) {
	site := cfg.Site.Location
	if !site.IsSet() {
		if !cfg.GeoIP.Enabled {
			return solar.Location{}, errMissingLocation
		}
		locator := geoip.New(cfg.GeoIP.URL, time.Duration(cfg.GeoIP.Timeout)*time.Second)
		pos, err := locator.Locate(ctx)
		if err != nil {
			return solar.Location{}, fmt.Errorf("%w (geoip lookup: %w)", errMissingLocation, err)
		}
		log.Info("location detected via geoip",
			"latitude", pos.Latitude,
			"longitude", pos.Longitude,
			"ip", pos.IP,
		)
		site.Latitude = &pos.Latitude
		site.Longitude = &pos.Longitude
	}

	offset, err := cfg.ResolveUTCOffset(time.Now())
	if err != nil {
		return solar.Location{}, fmt.Errorf("resolving timezone: %w", err)
	}

	loc := solar.Location{
		Latitude:       *site.Latitude,
		Longitude:      *site.Longitude,
		UTCOffsetHours: offset,
	}
	if err := loc.Validate(); err != nil {
		return solar.Location{}, err
	}
	return loc, nil
}

// newExecutor builds the camera executor. A dry run never touches a
// camera; SecuritySpy must be reachable before scheduling starts.
func newExecutor(ctx context.Context, cfg *config.Config, dryRun bool, publisher camera.Publisher, log *logging.Logger) (camera.Executor, error) {
	if dryRun {
		return camera.NewDryRunExecutor(log), nil
	}

	switch cfg.Executor.Type {
	case config.ExecutorMQTT:
		if publisher == nil {
			return nil, errors.New("mqtt executor requires mqtt.enabled")
		}
		log.Info("camera commands via MQTT")
		return camera.NewMQTTExecutor(publisher, log), nil
	default:
		client := camera.NewSecuritySpyClient(cfg.Executor.SecuritySpy, log)
		if err := client.CheckConnection(ctx); err != nil {
			return nil, fmt.Errorf("checking SecuritySpy: %w", err)
		}
		log.Info("SecuritySpy connected", "url", cfg.Executor.SecuritySpy.URL)
		return client, nil
	}
}

func cameras(in []config.CameraConfig) []camera.Camera {
	out := make([]camera.Camera, 0, len(in))
	for _, c := range in {
		out = append(out, camera.Camera{
			Number: c.Number,
			Name:   c.Name,
			Start:  c.Start,
			Stop:   c.Stop,
		})
	}
	return out
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/sunspy/internal/camera"
	"github.com/nerrad567/sunspy/internal/history"
	"github.com/nerrad567/sunspy/internal/infrastructure/config"
	"github.com/nerrad567/sunspy/internal/infrastructure/database"
	"github.com/nerrad567/sunspy/internal/infrastructure/logging"
	"github.com/nerrad567/sunspy/internal/schedule"
	"github.com/nerrad567/sunspy/internal/solar"
)

func floatPtr(v float64) *float64 { return &v }

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		check   func(t *testing.T, o *options)
	}{
		{
			name: "long flags",
			args: []string{"--config", "/etc/sunspy.yaml", "--force", "--verbose", "--noaction", "--url", "http://nvr:8000"},
			check: func(t *testing.T, o *options) {
				if o.configPath != "/etc/sunspy.yaml" {
					t.Errorf("configPath = %q", o.configPath)
				}
				if !o.force || !o.verbose || !o.noAction {
					t.Errorf("force/verbose/noaction = %v/%v/%v, want all true", o.force, o.verbose, o.noAction)
				}
				if o.url != "http://nvr:8000" {
					t.Errorf("url = %q", o.url)
				}
			},
		},
		{
			name: "short flags",
			args: []string{"-c", "sunspy.yaml", "-v", "-n", "-i", "3", "-u", "admin", "-p", "-w", "http://nvr", "-t", "-5"},
			check: func(t *testing.T, o *options) {
				if o.configPath != "sunspy.yaml" || o.cameraID != 3 || o.user != "admin" || o.url != "http://nvr" {
					t.Errorf("unexpected options: %+v", *o)
				}
				if !o.askPassword {
					t.Error("askPassword = false, want true")
				}
				if o.timezone != -5 {
					t.Errorf("timezone = %v, want -5", o.timezone)
				}
			},
		},
		{
			name: "coordinates",
			args: []string{"--lat", "51.48", "--lon=-0.0015"},
			check: func(t *testing.T, o *options) {
				if o.lat != 51.48 || o.lon != -0.0015 {
					t.Errorf("lat/lon = %v/%v", o.lat, o.lon)
				}
			},
		},
		{
			name: "help",
			args: []string{"-h"},
			check: func(t *testing.T, o *options) {
				if !o.help {
					t.Error("help = false, want true")
				}
			},
		},
		{
			name: "version",
			args: []string{"--version"},
			check: func(t *testing.T, o *options) {
				if !o.showVersion {
					t.Error("showVersion = false, want true")
				}
			},
		},
		{name: "unknown flag", args: []string{"--action", "active"}, wantErr: true},
		{name: "bad number", args: []string{"--cameraid", "front"}, wantErr: true},
		{name: "stray argument", args: []string{"extra"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := parseFlags(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("parseFlags() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFlags() error = %v", err)
			}
			tt.check(t, o)
		})
	}
}

func TestOptionsApply(t *testing.T) {
	base := func() *config.Config {
		cfg := config.Default()
		cfg.Executor.SecuritySpy.URL = "http://file:8000"
		cfg.Executor.SecuritySpy.User = "file-user"
		cfg.Site.Location.Latitude = floatPtr(10)
		cfg.Site.Location.Longitude = floatPtr(20)
		cfg.Cameras = []config.CameraConfig{
			{Number: 1, Name: "Front", Start: "sunset", Stop: "sunrise"},
			{Number: 2, Name: "Back", Start: "sunset", Stop: "sunrise"},
		}
		return cfg
	}

	t.Run("unset flags keep file values", func(t *testing.T) {
		o, err := parseFlags([]string{"--lat", "0"})
		if err != nil {
			t.Fatalf("parseFlags() error = %v", err)
		}
		cfg := base()
		o.apply(cfg)

		if *cfg.Site.Location.Latitude != 0 {
			t.Errorf("Latitude = %v, want 0 from flag", *cfg.Site.Location.Latitude)
		}
		if *cfg.Site.Location.Longitude != 20 {
			t.Errorf("Longitude = %v, want 20 from file", *cfg.Site.Location.Longitude)
		}
		if cfg.Executor.SecuritySpy.URL != "http://file:8000" || cfg.Executor.SecuritySpy.User != "file-user" {
			t.Errorf("SecuritySpy = %+v, want file values", cfg.Executor.SecuritySpy)
		}
		if cfg.Site.UTCOffsetHours != nil {
			t.Errorf("UTCOffsetHours = %v, want nil", *cfg.Site.UTCOffsetHours)
		}
		if len(cfg.Cameras) != 2 {
			t.Errorf("Cameras = %d, want 2", len(cfg.Cameras))
		}
	})

	t.Run("command-line camera replaces list", func(t *testing.T) {
		o, err := parseFlags([]string{"-i", "7", "--start", "sunset-30m", "--stop", "+8h", "-u", "cli", "-w", "http://cli", "-t", "2", "-v"})
		if err != nil {
			t.Fatalf("parseFlags() error = %v", err)
		}
		cfg := base()
		o.apply(cfg)

		want := config.CameraConfig{Number: 7, Name: commandLineCameraName, Start: "sunset-30m", Stop: "+8h"}
		if len(cfg.Cameras) != 1 || cfg.Cameras[0] != want {
			t.Errorf("Cameras = %+v, want [%+v]", cfg.Cameras, want)
		}
		if cfg.Executor.SecuritySpy.User != "cli" || cfg.Executor.SecuritySpy.URL != "http://cli" {
			t.Errorf("SecuritySpy = %+v, want cli values", cfg.Executor.SecuritySpy)
		}
		if cfg.Site.UTCOffsetHours == nil || *cfg.Site.UTCOffsetHours != 2 {
			t.Errorf("UTCOffsetHours = %v, want 2", cfg.Site.UTCOffsetHours)
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
		}
	})

	t.Run("partial camera flags are ignored", func(t *testing.T) {
		o, err := parseFlags([]string{"-i", "7", "--start", "sunset"})
		if err != nil {
			t.Fatalf("parseFlags() error = %v", err)
		}
		if _, ok := o.commandLineCamera(); ok {
			t.Error("commandLineCamera() ok = true without --stop")
		}
		cfg := base()
		o.apply(cfg)
		if len(cfg.Cameras) != 2 {
			t.Errorf("Cameras = %d, want 2", len(cfg.Cameras))
		}
	})
}

func TestResolveConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	exe := filepath.Join(dir, "bin", "sunspy")
	if err := os.MkdirAll(filepath.Dir(exe), 0o755); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SUNSPY_CONFIG", "")
	if got := resolveConfigPath(&options{}, exe); got != "" {
		t.Errorf("no files: got %q, want empty", got)
	}

	if err := os.MkdirAll("configs", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fallbackConfigPath, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := resolveConfigPath(&options{}, exe); got != fallbackConfigPath {
		t.Errorf("fallback: got %q, want %q", got, fallbackConfigPath)
	}

	beside := exe + ".conf"
	if err := os.WriteFile(beside, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := resolveConfigPath(&options{}, exe); got != beside {
		t.Errorf("beside binary: got %q, want %q", got, beside)
	}

	t.Setenv("SUNSPY_CONFIG", "/from/env.yaml")
	if got := resolveConfigPath(&options{}, exe); got != "/from/env.yaml" {
		t.Errorf("env: got %q", got)
	}

	if got := resolveConfigPath(&options{configPath: "/from/flag.yaml"}, exe); got != "/from/flag.yaml" {
		t.Errorf("flag: got %q", got)
	}
}

func TestResolveLocation(t *testing.T) {
	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ip":"203.0.113.9","latitude":37.33,"longitude":-122.03}`)
	}))
	defer geo.Close()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer failing.Close()

	tests := []struct {
		name    string
		setup   func(cfg *config.Config)
		want    solar.Location
		wantErr error
	}{
		{
			name: "configured",
			setup: func(cfg *config.Config) {
				cfg.Site.Location.Latitude = floatPtr(51.48)
				cfg.Site.Location.Longitude = floatPtr(0)
				cfg.Site.UTCOffsetHours = floatPtr(1)
				cfg.GeoIP.URL = failing.URL
			},
			want: solar.Location{Latitude: 51.48, Longitude: 0, UTCOffsetHours: 1},
		},
		{
			name: "geoip fills missing coordinates",
			setup: func(cfg *config.Config) {
				cfg.Site.Location.Latitude = floatPtr(10)
				cfg.Site.UTCOffsetHours = floatPtr(-8)
				cfg.GeoIP.URL = geo.URL
			},
			want: solar.Location{Latitude: 37.33, Longitude: -122.03, UTCOffsetHours: -8},
		},
		{
			name: "geoip disabled",
			setup: func(cfg *config.Config) {
				cfg.GeoIP.Enabled = false
			},
			wantErr: errMissingLocation,
		},
		{
			name: "geoip fails",
			setup: func(cfg *config.Config) {
				cfg.GeoIP.URL = failing.URL
			},
			wantErr: errMissingLocation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.GeoIP.Timeout = 2
			tt.setup(cfg)

			got, err := resolveLocation(context.Background(), cfg, logging.Discard())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("resolveLocation() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveLocation() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("resolveLocation() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

type fakePublisher struct {
	connected bool
}

func (f *fakePublisher) Publish(string, []byte, byte, bool) error { return nil }
func (f *fakePublisher) IsConnected() bool                        { return f.connected }

func TestNewExecutor(t *testing.T) {
	nvr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/++systemInfo" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer nvr.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer down.Close()

	ctx := context.Background()
	log := logging.Discard()

	t.Run("dry run", func(t *testing.T) {
		cfg := config.Default()
		cfg.Executor.SecuritySpy.URL = down.URL
		exec, err := newExecutor(ctx, cfg, true, nil, log)
		if err != nil {
			t.Fatalf("newExecutor() error = %v", err)
		}
		if _, ok := exec.(*camera.DryRunExecutor); !ok {
			t.Errorf("executor = %T, want *camera.DryRunExecutor", exec)
		}
	})

	t.Run("securityspy reachable", func(t *testing.T) {
		cfg := config.Default()
		cfg.Executor.SecuritySpy.URL = nvr.URL
		exec, err := newExecutor(ctx, cfg, false, nil, log)
		if err != nil {
			t.Fatalf("newExecutor() error = %v", err)
		}
		if _, ok := exec.(*camera.SecuritySpyClient); !ok {
			t.Errorf("executor = %T, want *camera.SecuritySpyClient", exec)
		}
	})

	t.Run("securityspy unreachable", func(t *testing.T) {
		cfg := config.Default()
		cfg.Executor.SecuritySpy.URL = down.URL
		_, err := newExecutor(ctx, cfg, false, nil, log)
		if !errors.Is(err, camera.ErrUnreachable) {
			t.Errorf("newExecutor() error = %v, want ErrUnreachable", err)
		}
	})

	t.Run("mqtt", func(t *testing.T) {
		cfg := config.Default()
		cfg.Executor.Type = config.ExecutorMQTT
		exec, err := newExecutor(ctx, cfg, false, &fakePublisher{connected: true}, log)
		if err != nil {
			t.Fatalf("newExecutor() error = %v", err)
		}
		if _, ok := exec.(*camera.MQTTExecutor); !ok {
			t.Errorf("executor = %T, want *camera.MQTTExecutor", exec)
		}
	})

	t.Run("mqtt without connection", func(t *testing.T) {
		cfg := config.Default()
		cfg.Executor.Type = config.ExecutorMQTT
		if _, err := newExecutor(ctx, cfg, false, nil, log); err == nil {
			t.Error("newExecutor() expected error without publisher")
		}
	})
}

type publishedJSON struct {
	topic    string
	v        any
	retained bool
}

type fakeJSONPublisher struct {
	mu   sync.Mutex
	msgs []publishedJSON
	err  error
}

func (f *fakeJSONPublisher) PublishJSON(topic string, v any, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, publishedJSON{topic: topic, v: v, retained: retained})
	return f.err
}

func TestStatePublisher(t *testing.T) {
	firedAt := time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)
	base := schedule.Firing{
		ID:         "f1",
		EventID:    "e1",
		CameraID:   3,
		CameraName: "Drive",
		Action:     camera.Deactivate,
		Expression: "sunset",
		Deadline:   firedAt,
		FiredAt:    firedAt,
		StatusCode: camera.StatusOK,
	}

	tests := []struct {
		name       string
		firing     func() schedule.Firing
		wantTopics []string
	}{
		{
			name:       "success publishes state and event",
			firing:     func() schedule.Firing { return base },
			wantTopics: []string{"sunspy/core/camera/3/state", "sunspy/core/event/fired"},
		},
		{
			name: "failure publishes event only",
			firing: func() schedule.Firing {
				f := base
				f.StatusCode = http.StatusInternalServerError
				f.Err = camera.ErrExecutionFailed
				return f
			},
			wantTopics: []string{"sunspy/core/event/fired"},
		},
		{
			name: "dry run publishes event only",
			firing: func() schedule.Firing {
				f := base
				f.DryRun = true
				return f
			},
			wantTopics: []string{"sunspy/core/event/fired"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakeJSONPublisher{}
			p := newStatePublisher(pub, logging.Discard())
			p.EventFired(context.Background(), tt.firing())

			if len(pub.msgs) != len(tt.wantTopics) {
				t.Fatalf("published %d messages, want %d", len(pub.msgs), len(tt.wantTopics))
			}
			for i, want := range tt.wantTopics {
				if pub.msgs[i].topic != want {
					t.Errorf("msg[%d].topic = %q, want %q", i, pub.msgs[i].topic, want)
				}
			}
		})
	}

	t.Run("state payload", func(t *testing.T) {
		pub := &fakeJSONPublisher{}
		newStatePublisher(pub, logging.Discard()).EventFired(context.Background(), base)

		state, ok := pub.msgs[0].v.(cameraState)
		if !ok {
			t.Fatalf("state payload = %T, want cameraState", pub.msgs[0].v)
		}
		if !pub.msgs[0].retained {
			t.Error("state should be retained")
		}
		if state.Mode != "passive" || state.CameraID != 3 || !state.ChangedAt.Equal(firedAt) {
			t.Errorf("state = %+v", state)
		}
	})

	t.Run("error text carried", func(t *testing.T) {
		pub := &fakeJSONPublisher{}
		f := base
		f.Err = camera.ErrUnreachable
		newStatePublisher(pub, logging.Discard()).EventFired(context.Background(), f)

		msg, ok := pub.msgs[len(pub.msgs)-1].v.(firedMessage)
		if !ok {
			t.Fatalf("event payload = %T, want firedMessage", pub.msgs[0].v)
		}
		if msg.Success || msg.Error == "" {
			t.Errorf("firedMessage = %+v, want failure with error text", msg)
		}
	})

	t.Run("anchors", func(t *testing.T) {
		pub := &fakeJSONPublisher{err: errors.New("broker down")}
		newStatePublisher(pub, logging.Discard()).AnchorsRecomputed(context.Background(), solar.Anchors{Reference: firedAt})

		if len(pub.msgs) != 1 || pub.msgs[0].topic != "sunspy/core/event/anchors_recomputed" || !pub.msgs[0].retained {
			t.Errorf("msgs = %+v", pub.msgs)
		}
	})
}

func TestAckHandler(t *testing.T) {
	handler := ackHandler(logging.Discard())

	payloads := []string{
		`{"id":"c1","camera_number":3,"mode":"active","success":true}`,
		`{"id":"c2","camera_number":3,"mode":"active","success":false,"error":"camera offline"}`,
		`not json`,
	}
	for _, p := range payloads {
		if err := handler("sunspy/ack/camera/3", []byte(p)); err != nil {
			t.Errorf("handler(%q) error = %v, want nil", p, err)
		}
	}
}

func TestRun_Help(t *testing.T) {
	if err := run(context.Background(), []string{"--help"}); err != nil {
		t.Errorf("run(--help) error = %v", err)
	}
}

func TestRun_BadFlag(t *testing.T) {
	err := run(context.Background(), []string{"--no-such-flag"})
	if err == nil || !strings.Contains(err.Error(), "parsing flags") {
		t.Errorf("run() error = %v, want flag parsing error", err)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, []string{"--config", "/nonexistent/path/config.yaml"}); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_MissingCameras(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), "cameras: []\n")

	err := run(context.Background(), []string{"--config", configPath})
	if err == nil || !strings.Contains(err.Error(), "at least one camera") {
		t.Errorf("run() error = %v, want camera validation error", err)
	}
}

// TestRun_DryRun runs the first pass end to end without touching a camera
// and checks both firings land in the history database.
func TestRun_DryRun(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sunspy.db")
	configPath := writeConfig(t, dir, fmt.Sprintf(`
site:
  utc_offset_hours: 0
  location:
    latitude: 51.48
    longitude: 0
executor:
  type: securityspy
  securityspy:
    url: "http://127.0.0.1:1"
cameras:
  - number: 1
    name: "Front Door"
    start: "sunset-30m"
    stop: "sunrise+30m"
database:
  enabled: true
  path: %q
api:
  enabled: true
  port: 1
geoip:
  enabled: false
logging:
  level: error
  format: text
`, dbPath))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := run(ctx, []string{"--config", configPath, "--noaction"}); err != nil {
		t.Fatalf("run(--noaction) error = %v", err)
	}

	db, err := database.Open(ctx, config.DatabaseConfig{Path: dbPath, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("reopening database: %v", err)
	}
	defer db.Close()

	result, err := history.NewSQLiteRepository(db.DB).List(ctx, history.Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("Total = %d, want 2 firings", result.Total)
	}
	for _, r := range result.Records {
		if !r.DryRun || r.StatusCode != camera.StatusOK || r.CameraName != "Front Door" {
			t.Errorf("record = %+v, want successful dry-run firing", r)
		}
	}
}

// TestRun_CommandLineCamera schedules one camera purely from flags.
func TestRun_CommandLineCamera(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("SUNSPY_CONFIG", "")
	t.Setenv("SUNSPY_DATABASE_PATH", filepath.Join(dir, "cli.db"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	args := []string{
		"-n",
		"-i", "4", "--start", "noon", "--stop", "+8h",
		"-w", "http://127.0.0.1:1",
		"--lat", "-33.87", "--lon", "151.21", "-t", "10",
	}
	if err := run(ctx, args); err != nil {
		t.Fatalf("run() error = %v", err)
	}
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

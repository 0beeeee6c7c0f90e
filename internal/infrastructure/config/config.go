package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/sunspy/internal/solar"
)

// Config is everything sunspy reads at startup.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Executor ExecutorConfig `yaml:"executor"`
	Cameras  []CameraConfig `yaml:"cameras"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	GeoIP    GeoIPConfig    `yaml:"geoip"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SiteConfig places the cameras on the globe.
type SiteConfig struct {
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`

	// UTCOffsetHours is the fixed offset from GMT used to place solar
	// events on the local clock. When nil it is derived from Timezone,
	// or from the host's local zone when Timezone is empty.
	UTCOffsetHours *float64 `yaml:"utc_offset_hours,omitempty"`

	Location LocationConfig `yaml:"location"`

	// Twilight picks the sun elevation that counts as sunrise and sunset:
	// daylight, civil (default), nautical, astronomical, or angle with
	// TwilightAngle in degrees (negative is below the horizon).
	Twilight      string  `yaml:"twilight"`
	TwilightAngle float64 `yaml:"twilight_angle"`
}

// LocationConfig holds optional coordinates; nil means "ask geoip".
type LocationConfig struct {
	Latitude  *float64 `yaml:"latitude,omitempty"`
	Longitude *float64 `yaml:"longitude,omitempty"`
}

// IsSet reports whether both coordinates are configured.
func (l LocationConfig) IsSet() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// ExecutorConfig selects and configures the camera control transport.
type ExecutorConfig struct {
	// Type is "securityspy" (HTTP web API) or "mqtt" (command topics).
	Type        string            `yaml:"type"`
	SecuritySpy SecuritySpyConfig `yaml:"securityspy"`
}

// SecuritySpyConfig contains the SecuritySpy web API connection settings.
type SecuritySpyConfig struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Timeout  int    `yaml:"timeout"` // seconds
}

// CameraConfig describes one camera and its daily active window.
type CameraConfig struct {
	Number int    `yaml:"number"`
	Name   string `yaml:"name"`
	Start  string `yaml:"start"` // e.g. "sunset-30m"
	Stop   string `yaml:"stop"`  // e.g. "sunrise+30m" or "+8h"
}

// DatabaseConfig contains SQLite database settings for the firing history.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"` // seconds

	// RetentionDays drops firings older than this at startup. 0 keeps all.
	RetentionDays int `yaml:"retention_days"`
}

// MQTTConfig configures the broker used for state, events and the mqtt executor.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig is the reconnect backoff in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig enables the firing time series. FlushInterval is in seconds.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the read-only status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig values are seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// GeoIPConfig controls latitude/longitude auto-detection.
type GeoIPConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Timeout int    `yaml:"timeout"` // seconds
}

// LoggingConfig is consumed by package logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Executor types.
const (
	ExecutorSecuritySpy = "securityspy"
	ExecutorMQTT        = "mqtt"
)

// Load is Read followed by Validate.
//
// Parameters:
//   - path: YAML file; "" uses defaults and environment only
//
// Returns:
//   - *Config: Valid configuration
//   - error: Unreadable or malformed file, or a failed Validate
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Read layers Default, the YAML file at path and SUNSPY_* variables. It
// does not validate, so command-line flags can still be applied.
func Read(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns a Config with sensible defaults.
// It is also the starting point when sunspy runs without a config file.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			Name:     "sunspy",
			Twilight: solar.TwilightCivil,
		},
		Executor: ExecutorConfig{
			Type: ExecutorSecuritySpy,
			SecuritySpy: SecuritySpyConfig{
				Timeout: 10,
			},
		},
		Database: DatabaseConfig{
			Enabled:       true,
			Path:          "./data/sunspy.db",
			WALMode:       true,
			BusyTimeout:   5,
			RetentionDays: 90,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "sunspy",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		GeoIP: GeoIPConfig{
			Enabled: true,
			URL:     "https://ipapi.co/json/",
			Timeout: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides copies SUNSPY_<SECTION>_<KEY> variables onto cfg.
// Empty or unparsable values are ignored.
func applyEnvOverrides(cfg *Config) {
	// Site
	if v, ok := envFloat("SUNSPY_LATITUDE"); ok {
		cfg.Site.Location.Latitude = &v
	}
	if v, ok := envFloat("SUNSPY_LONGITUDE"); ok {
		cfg.Site.Location.Longitude = &v
	}
	if v, ok := envFloat("SUNSPY_UTC_OFFSET_HOURS"); ok {
		cfg.Site.UTCOffsetHours = &v
	}

	// SecuritySpy
	if v := os.Getenv("SUNSPY_SECURITYSPY_URL"); v != "" {
		cfg.Executor.SecuritySpy.URL = v
	}
	if v := os.Getenv("SUNSPY_SECURITYSPY_USER"); v != "" {
		cfg.Executor.SecuritySpy.User = v
	}
	if v := os.Getenv("SUNSPY_SECURITYSPY_PASSWORD"); v != "" {
		cfg.Executor.SecuritySpy.Password = v
	}

	// Database
	if v := os.Getenv("SUNSPY_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("SUNSPY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SUNSPY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SUNSPY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("SUNSPY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// envFloat reads a float environment variable. Unparsable values are ignored.
func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Validate reports every problem at once, joined with "; ".
func (c *Config) Validate() error {
	var errs []string

	// Location validation (only when configured; geoip fills the gap otherwise)
	if _, err := solar.TwilightElevation(c.Site.Twilight, c.Site.TwilightAngle); err != nil {
		errs = append(errs, "site.twilight must be daylight, civil, nautical, astronomical or angle with -90 < twilight_angle < 90")
	}
	if lat := c.Site.Location.Latitude; lat != nil && (math.IsNaN(*lat) || *lat < -90 || *lat > 90) {
		errs = append(errs, "site.location.latitude must be between -90 and 90")
	}
	if lon := c.Site.Location.Longitude; lon != nil && (math.IsNaN(*lon) || *lon < -180 || *lon > 180) {
		errs = append(errs, "site.location.longitude must be between -180 and 180")
	}
	if off := c.Site.UTCOffsetHours; off != nil && (math.IsNaN(*off) || *off < -12 || *off > 14) {
		errs = append(errs, "site.utc_offset_hours must be between -12 and 14")
	}
	if c.Site.Timezone != "" {
		if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("site.timezone %q is not a known zone", c.Site.Timezone))
		}
	}

	// Executor validation
	switch c.Executor.Type {
	case ExecutorSecuritySpy:
		if c.Executor.SecuritySpy.URL == "" {
			errs = append(errs, "executor.securityspy.url is required")
		}
	case ExecutorMQTT:
		if !c.MQTT.Enabled {
			errs = append(errs, "mqtt.enabled must be true when executor.type is mqtt")
		}
	default:
		errs = append(errs, fmt.Sprintf("executor.type %q must be securityspy or mqtt", c.Executor.Type))
	}

	// Camera validation
	if len(c.Cameras) == 0 {
		errs = append(errs, "at least one camera is required")
	}
	for i, cam := range c.Cameras {
		if cam.Number <= 0 {
			errs = append(errs, fmt.Sprintf("cameras[%d].number must be positive", i))
		}
		if cam.Name == "" {
			errs = append(errs, fmt.Sprintf("cameras[%d].name is required", i))
		}
		if cam.Start == "" || cam.Stop == "" {
			errs = append(errs, fmt.Sprintf("cameras[%d] requires start and stop", i))
		}
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.RetentionDays < 0 {
		errs = append(errs, "database.retention_days must not be negative")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ResolveUTCOffset returns the offset from GMT, in hours, used for solar
// anchors. An explicit utc_offset_hours wins; otherwise the offset of
// site.timezone at now; otherwise the host's local offset at now.
func (c *Config) ResolveUTCOffset(now time.Time) (float64, error) {
	if c.Site.UTCOffsetHours != nil {
		return *c.Site.UTCOffsetHours, nil
	}

	loc := time.Local
	if c.Site.Timezone != "" {
		l, err := time.LoadLocation(c.Site.Timezone)
		if err != nil {
			return 0, fmt.Errorf("loading timezone %q: %w", c.Site.Timezone, err)
		}
		loc = l
	}

	_, seconds := now.In(loc).Zone()
	return float64(seconds) / 3600.0, nil
}

// Durations converts the timeouts to time.Duration.
func (t APITimeoutConfig) Durations() (read, write, idle time.Duration) {
	return time.Duration(t.Read) * time.Second,
		time.Duration(t.Write) * time.Second,
		time.Duration(t.Idle) * time.Second
}

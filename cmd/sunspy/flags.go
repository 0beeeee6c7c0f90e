package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/nerrad567/sunspy/internal/infrastructure/config"
)

// commandLineCameraName names the camera built from --cameraid/--start/--stop.
const commandLineCameraName = "commandline"

// fallbackConfigPath is tried when neither --config nor SUNSPY_CONFIG is set
// and there is no <binary>.conf beside the executable.
const fallbackConfigPath = "configs/config.yaml"

// errNoTerminal is returned when --password is given without a terminal.
var errNoTerminal = errors.New("no terminal available for password prompt")

// options holds parsed command-line flags. Only flags the user actually
// set override the config file; see apply.
type options struct {
	configPath  string
	force       bool
	verbose     bool
	noAction    bool
	cameraID    int
	start       string
	stop        string
	user        string
	askPassword bool
	url         string
	lat         float64
	lon         float64
	timezone    float64
	help        bool
	showVersion bool

	flagSet *pflag.FlagSet
}

// newFlagSet registers every sunspy flag on a fresh FlagSet bound to o.
func newFlagSet(o *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("sunspy", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVarP(&o.configPath, "config", "c", "", "path to the YAML config file")
	fs.BoolVar(&o.force, "force", false, "fire every event immediately, once, and exit")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "log at debug level")
	fs.BoolVarP(&o.noAction, "noaction", "n", false, "print the first pass of actions without changing any camera, then exit")
	fs.IntVarP(&o.cameraID, "cameraid", "i", 0, "camera number when scheduling one camera from the command line")
	fs.StringVar(&o.start, "start", "", "time expression that switches the camera to active (e.g. sunset-30m)")
	fs.StringVar(&o.stop, "stop", "", "time expression that switches the camera to passive (e.g. sunrise+30m or +8h)")
	fs.StringVarP(&o.user, "user", "u", "", "SecuritySpy user")
	fs.BoolVarP(&o.askPassword, "password", "p", false, "prompt for the SecuritySpy password")
	fs.StringVarP(&o.url, "url", "w", "", "SecuritySpy URL (e.g. http://192.168.1.5:8000)")
	fs.Float64Var(&o.lat, "lat", 0, "latitude in degrees, north positive")
	fs.Float64Var(&o.lon, "lon", 0, "longitude in degrees, east positive")
	fs.Float64VarP(&o.timezone, "timezone", "t", 0, "offset from GMT in hours")
	fs.BoolVarP(&o.help, "help", "h", false, "show help")
	fs.BoolVar(&o.showVersion, "version", false, "print version and exit")
	return fs
}

// parseFlags parses args (without the program name).
//
// Returns:
//   - *options: Parsed flags; help is set for -h/--help
//   - error: Unknown flags, bad values or stray arguments
func parseFlags(args []string) (*options, error) {
	o := &options{}
	o.flagSet = newFlagSet(o)

	if err := o.flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			o.help = true
			return o, nil
		}
		return nil, err
	}
	if rest := o.flagSet.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return o, nil
}

// changed reports whether the named flag was given.
func (o *options) changed(name string) bool {
	return o.flagSet != nil && o.flagSet.Changed(name)
}

// commandLineCamera returns the single camera described by --cameraid,
// --start and --stop. ok is false unless all three were given.
func (o *options) commandLineCamera() (config.CameraConfig, bool) {
	if !o.changed("cameraid") || !o.changed("start") || !o.changed("stop") {
		return config.CameraConfig{}, false
	}
	return config.CameraConfig{
		Number: o.cameraID,
		Name:   commandLineCameraName,
		Start:  o.start,
		Stop:   o.stop,
	}, true
}

// apply copies every flag the user set onto cfg. The command-line camera
// replaces the configured camera list.
func (o *options) apply(cfg *config.Config) {
	if o.changed("user") {
		cfg.Executor.SecuritySpy.User = o.user
	}
	if o.changed("url") {
		cfg.Executor.SecuritySpy.URL = o.url
	}
	if o.changed("lat") {
		lat := o.lat
		cfg.Site.Location.Latitude = &lat
	}
	if o.changed("lon") {
		lon := o.lon
		cfg.Site.Location.Longitude = &lon
	}
	if o.changed("timezone") {
		tz := o.timezone
		cfg.Site.UTCOffsetHours = &tz
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
	}
	if cam, ok := o.commandLineCamera(); ok {
		cfg.Cameras = []config.CameraConfig{cam}
	}
}

// resolveConfigPath picks the config file to read.
//
// Order: --config, SUNSPY_CONFIG, <executable>.conf when it exists,
// configs/config.yaml when it exists. An explicit path is returned even if
// missing so that Read reports it. An empty result means run on defaults.
func resolveConfigPath(o *options, executable string) string {
	if o.configPath != "" {
		return o.configPath
	}
	if path := os.Getenv("SUNSPY_CONFIG"); path != "" {
		return path
	}
	if executable != "" {
		beside := strings.TrimSuffix(executable, filepath.Ext(executable)) + ".conf"
		if fileExists(beside) {
			return beside
		}
	}
	if fileExists(fallbackConfigPath) {
		return fallbackConfigPath
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// promptPassword reads a password from the terminal with echo disabled.
func promptPassword(in *os.File, out io.Writer) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", errNoTerminal
	}

	fmt.Fprint(out, "Password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(password), nil
}

func printHelp(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, `sunspy %s

Sets SecuritySpy cameras to active or passive mode at times relative to
sunrise, noon and sunset.

Options can come from a YAML config file or the command line. Command-line
options override the config file. Without --config, sunspy looks for
$SUNSPY_CONFIG, then <binary>.conf beside the executable, then %s.

Time expressions:
  sunrise         at sunrise
  sunset-30m      30 minutes before sunset
  noon+1h         1 hour after noon
  +8h             8 hours after sunrise

Usage:
  sunspy [flags]

Flags:
%s`, version, fallbackConfigPath, fs.FlagUsages())
}

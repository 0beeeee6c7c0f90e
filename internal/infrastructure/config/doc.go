// Package config reads sunspy's YAML configuration.
//
// Values are layered: Default, then the file, then SUNSPY_* environment
// variables. Read stops there so that command-line flags can be applied
// before Validate; Load does all of it in one call.
//
//	cfg, err := config.Read(path)   // "" means defaults and env only
//	flags.apply(cfg)
//	err = cfg.Validate()
//
// Secrets (SUNSPY_SECURITYSPY_PASSWORD, SUNSPY_MQTT_PASSWORD,
// SUNSPY_INFLUXDB_TOKEN) are best kept out of the file. If they are in
// it, make the file 0600.
//
// Each camera needs a number, a name and both expressions. The
// expression grammar lives in package timeexpr and is checked by the
// scheduler, not here.
package config

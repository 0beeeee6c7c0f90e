// Package logging builds sunspy's structured logger on log/slog.
//
// Every entry carries service=sunspy and the build version. Attributes
// whose key contains password, secret or token are written as
// [REDACTED].
//
//	logging:
//	  level: "info"              # debug, info, warn, error (-v forces debug)
//	  format: "json"             # json or text
//	  output: "/var/log/sunspy"  # stdout, stderr or a file path
//
// Usage:
//
//	log, err := logging.New(cfg.Logging, version)
//	if err != nil { ... }
//	defer log.Close()
//	log.Info("event fired", "camera", 3, "action", "activate")
package logging

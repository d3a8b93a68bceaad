// Package logging is the structured logging layer for rigcore.
//
// It is a thin wrapper over log/slog: JSON output for ingestion, text
// for development, level filtering, and a service/version attribute on
// every record so aggregated logs can be traced back to an instance.
//
// Configured through the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("recipe activated", "recipe_id", id)
//
// Never log secrets: broker passwords and InfluxDB tokens stay out of
// log records even at debug level.
package logging

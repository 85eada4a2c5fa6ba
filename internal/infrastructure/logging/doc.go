// Package logging provides structured logging for brightsync.
//
// It wraps log/slog with the defaults every component shares: a service and
// version attribute on each record, level filtering, and a JSON handler for
// daemons or a text handler for interactive use.
//
// Configuration lives in the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Components take a child logger so their records can be filtered:
//
//	log := logging.New(cfg.Logging, version)
//	scanLog := log.Component("controller")
//	scanLog.Info("scan finished", "added", 1, "removed", 0)
package logging

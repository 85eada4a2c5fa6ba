// Package config handles loading and validating brightsync configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The target monitor bound is resolved once at startup from the monitors
// section. Setting monitors.extended scales it by ExtendedMultiplier, and the
// persisted name cache is bounded to NamesPerMonitor times the result:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	targets := cfg.Monitors.MaxMonitorCount() // 4, or 32 when extended
//	names := cfg.Monitors.MaxNameCount()      // 16, or 128 when extended
//
// Sensitive values (MQTT password, InfluxDB token) should be set via
// environment variables rather than the config file.
package config

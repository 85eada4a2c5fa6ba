// Package influxdb writes optional brightness telemetry to InfluxDB v2.
//
// Two measurements are produced:
//
//	monitor_brightness  device_instance_id,name  brightness=<0-100>
//	monitor_scan        -                        monitors,added,removed,duration_ms
//
// The integration is off unless influxdb.enabled is set; callers treat
// ErrDisabled from Connect as "no telemetry".
package influxdb

package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementBrightness = "monitor_brightness"
	measurementScan       = "monitor_scan"
)

// WriteBrightness records a monitor's brightness. Negative values mean the
// monitor did not report one and are skipped.
//
// Example:
//
//	client.WriteBrightness("backlight:intel_backlight", "Built-in Display", 70)
func (c *Client) WriteBrightness(deviceInstanceID, name string, brightness int) {
	if !c.IsConnected() || brightness < 0 {
		return
	}
	c.writeAPI.WritePoint(brightnessPoint(deviceInstanceID, name, brightness, time.Now()))
}

// WriteScan records the outcome of one reconcile pass.
func (c *Client) WriteScan(monitors, added, removed int, elapsed time.Duration) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(scanPoint(monitors, added, removed, elapsed, time.Now()))
}

func brightnessPoint(deviceInstanceID, name string, brightness int, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementBrightness,
		map[string]string{
			"device_instance_id": deviceInstanceID,
			"name":               name,
		},
		map[string]any{
			"brightness": brightness,
		},
		ts,
	)
}

func scanPoint(monitors, added, removed int, elapsed time.Duration, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementScan,
		nil,
		map[string]any{
			"monitors":    monitors,
			"added":       added,
			"removed":     removed,
			"duration_ms": elapsed.Milliseconds(),
		},
		ts,
	)
}

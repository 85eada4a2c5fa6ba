package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every brightsync topic.
const TopicPrefix = "brightsync"

// Topics provides builders for brightsync MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.MonitorState(`DISPLAY\DEL4321\1`) // brightsync/state/monitor/DISPLAY\DEL4321\1
type Topics struct{}

// MonitorsState is the retained topic holding the JSON array of tracked
// monitors in registry order.
//
// Example: brightsync/state/monitors
func (Topics) MonitorsState() string {
	return fmt.Sprintf("%s/state/monitors", TopicPrefix)
}

// MonitorState is the retained topic for a single monitor, keyed by its
// device instance id. The id is percent-encoded into one topic level, since
// DDC ids carry EDID model strings that may contain '/', '+' or '#'.
//
// Example: brightsync/state/monitor/backlight:intel_backlight
// Example: brightsync/state/monitor/ddc:DEL:U2415%2FB:7MT0186
func (Topics) MonitorState(deviceInstanceID string) string {
	return fmt.Sprintf("%s/state/monitor/%s", TopicPrefix, EscapeTopicLevel(deviceInstanceID))
}

var topicLevelEscaper = strings.NewReplacer(
	"%", "%25",
	"/", "%2F",
	"+", "%2B",
	"#", "%23",
	"\x00", "%00",
)

// EscapeTopicLevel percent-encodes the characters that would split s into
// several topic levels or turn it into a wildcard. The result is
// reversible with url.PathUnescape.
func EscapeTopicLevel(s string) string {
	return topicLevelEscaper.Replace(s)
}

// ScanningState is the retained topic carrying {"scanning":bool}.
//
// Example: brightsync/state/scanning
func (Topics) ScanningState() string {
	return fmt.Sprintf("%s/state/scanning", TopicPrefix)
}

// PowerEvent carries power resume / display-on notifications. Any message
// on it requests a full scan.
//
// Example: brightsync/event/power
func (Topics) PowerEvent() string {
	return fmt.Sprintf("%s/event/power", TopicPrefix)
}

// BrightnessEvent carries externally observed brightness changes as
// {"instance_name": "...", "brightness": 0-100}.
//
// Example: brightsync/event/brightness
func (Topics) BrightnessEvent() string {
	return fmt.Sprintf("%s/event/brightness", TopicPrefix)
}

// SystemStatus is the retained online/offline topic, also used for the
// Last Will and Testament.
//
// Example: brightsync/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", TopicPrefix)
}

// AllEvents matches every event topic.
//
// Pattern: brightsync/event/+
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefix)
}

// AllTopics matches all brightsync traffic.
//
// Pattern: brightsync/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

package monitor

import "errors"

// Domain errors for the monitor package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, monitor.ErrEntryNotFound) {
//	    // unknown device instance id
//	}
var (
	// ErrBrightnessUnavailable is returned when a device does not report a
	// usable brightness value.
	ErrBrightnessUnavailable = errors.New("monitor: brightness unavailable")

	// ErrInvalidBrightness is returned for values outside 0-100.
	ErrInvalidBrightness = errors.New("monitor: brightness must be between 0 and 100")

	// ErrEntryNotFound is returned when no tracked entry has the given id.
	ErrEntryNotFound = errors.New("monitor: entry not found")

	// ErrEntryClosed is returned for I/O on an entry whose handle was released.
	ErrEntryClosed = errors.New("monitor: entry closed")

	// ErrCommandFailed is returned when an external helper such as ddcutil
	// exits unsuccessfully or prints something unparseable.
	ErrCommandFailed = errors.New("monitor: command failed")
)

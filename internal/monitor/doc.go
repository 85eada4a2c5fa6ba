// Package monitor tracks attached displays and their brightness.
//
// A Source enumerates Handles, one per physical display. The Registry keeps
// an ordered list of Entries built from those handles and reconciles it
// against each new enumeration: surviving devices keep their Entry (target
// flag, name, brightness), new devices are appended, and devices that
// disappeared are closed and removed.
//
// Two Linux sources are provided:
//
//   - BacklightSource reads /sys/class/backlight (internal panels)
//   - DDCSource drives ddcutil for external monitors over DDC/CI
//
// MultiSource combines them.
//
// Brightness is a percentage. BrightnessUnavailable (-1) marks a device
// that did not answer its last read.
package monitor

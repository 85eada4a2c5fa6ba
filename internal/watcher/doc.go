// Package watcher turns external change notifications into controller
// triggers.
//
//   - SettingsWatcher follows udev display events and submits scans.
//   - PowerWatcher submits a scan for every message on the power topic.
//   - BrightnessWatcher forwards monitor-reported brightness values.
//   - IntervalWatcher submits periodic refreshes.
//
// Watchers never call the controller directly; they push onto its queue
// through a Sink, so a notification burst cannot block the notifier.
package watcher

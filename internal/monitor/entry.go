package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Entry is one tracked display.
//
// The Registry owns entries. Other packages read them through accessors or
// Snapshot and mutate only per-entry state (brightness, name, target flag);
// structural changes go through Registry.Reconcile.
//
// All methods are safe for concurrent use.
type Entry struct {
	handle Handle
	id     string
	desc   string
	now    func() time.Time

	mu         sync.RWMutex
	name       string
	brightness int
	isTarget   bool
	updateTime time.Time
	closed     bool

	closeOnce sync.Once
	closeErr  error
}

func newEntry(h Handle, name string, now func() time.Time) *Entry {
	return &Entry{
		handle:     h,
		id:         h.DeviceInstanceID(),
		desc:       h.Description(),
		now:        now,
		name:       name,
		brightness: BrightnessUnavailable,
	}
}

// DeviceInstanceID returns the stable hardware id.
func (e *Entry) DeviceInstanceID() string { return e.id }

// Description returns the name reported by the device source.
func (e *Entry) Description() string { return e.desc }

// Name returns the display name, possibly empty.
func (e *Entry) Name() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.name
}

// SetName replaces the display name.
func (e *Entry) SetName(name string) {
	e.mu.Lock()
	e.name = name
	e.mu.Unlock()
}

// Brightness returns the last known brightness or BrightnessUnavailable.
func (e *Entry) Brightness() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.brightness
}

// IsTarget reports whether the entry is kept in sync by refreshes.
func (e *Entry) IsTarget() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isTarget
}

// SetTarget marks or unmarks the entry as a refresh target.
func (e *Entry) SetTarget(target bool) {
	e.mu.Lock()
	e.isTarget = target
	e.mu.Unlock()
}

// UpdateTime returns when brightness was last read or reported. The zero
// time means never.
func (e *Entry) UpdateTime() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.updateTime
}

// UpdateBrightness reads brightness from the device.
//
// On failure the entry is marked BrightnessUnavailable and the error is
// returned; UpdateTime is left untouched.
func (e *Entry) UpdateBrightness(ctx context.Context) error {
	if e.isClosed() {
		return ErrEntryClosed
	}

	value, err := e.handle.GetBrightness(ctx)
	if err == nil {
		err = ValidateBrightness(value)
	}
	if err != nil {
		e.mu.Lock()
		e.brightness = BrightnessUnavailable
		e.mu.Unlock()
		return fmt.Errorf("reading brightness of %s: %w", e.id, err)
	}

	e.record(value)
	return nil
}

// SetBrightness writes value to the device and records it.
func (e *Entry) SetBrightness(ctx context.Context, value int) error {
	if err := ValidateBrightness(value); err != nil {
		return err
	}
	if e.isClosed() {
		return ErrEntryClosed
	}
	if err := e.handle.SetBrightness(ctx, value); err != nil {
		return fmt.Errorf("writing brightness of %s: %w", e.id, err)
	}

	e.record(value)
	return nil
}

// SetReportedBrightness records a brightness the device announced on its
// own, without touching the hardware. Out-of-range values are ignored.
func (e *Entry) SetReportedBrightness(value int) bool {
	if ValidateBrightness(value) != nil {
		return false
	}
	e.record(value)
	return true
}

func (e *Entry) record(value int) {
	e.mu.Lock()
	e.brightness = value
	e.updateTime = e.now()
	e.mu.Unlock()
}

// Close releases the device handle. Only the first call reaches the handle.
func (e *Entry) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
		e.closeErr = e.handle.Close()
	})
	return e.closeErr
}

func (e *Entry) isClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}

// Snapshot returns a copy of the entry's current state.
func (e *Entry) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Snapshot{
		DeviceInstanceID: e.id,
		Description:      e.desc,
		Name:             e.name,
		Brightness:       e.brightness,
		IsTarget:         e.isTarget,
		UpdateTime:       e.updateTime,
	}
}

// Package monitortest provides in-memory monitor.Source and monitor.Handle
// implementations for tests.
package monitortest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/brightsync/internal/monitor"
)

// ErrDeviceTimeout is returned by devices configured to fail.
var ErrDeviceTimeout = errors.New("monitortest: device did not answer")

// Device is the simulated hardware behind a handle. It outlives the handles
// a Source hands out for it.
type Device struct {
	ID   string
	Desc string

	mu         sync.Mutex
	brightness int
	getErr     error
	setErr     error

	gets atomic.Int32
	sets atomic.Int32
}

// NewDevice returns a device reporting brightness.
func NewDevice(id string, brightness int) *Device {
	return &Device{ID: id, Desc: "Display " + id, brightness: brightness}
}

// FailingDevice returns a device whose reads fail with ErrDeviceTimeout.
func FailingDevice(id string) *Device {
	d := NewDevice(id, 0)
	d.getErr = ErrDeviceTimeout
	return d
}

// SetHardwareBrightness changes what the next read returns.
func (d *Device) SetHardwareBrightness(v int) {
	d.mu.Lock()
	d.brightness = v
	d.mu.Unlock()
}

// HardwareBrightness returns the simulated panel value.
func (d *Device) HardwareBrightness() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.brightness
}

// FailReads makes reads return err (nil to clear).
func (d *Device) FailReads(err error) {
	d.mu.Lock()
	d.getErr = err
	d.mu.Unlock()
}

// FailWrites makes writes return err (nil to clear).
func (d *Device) FailWrites(err error) {
	d.mu.Lock()
	d.setErr = err
	d.mu.Unlock()
}

// Gets returns how many times brightness was read through any handle.
func (d *Device) Gets() int { return int(d.gets.Load()) }

// Sets returns how many times brightness was written through any handle.
func (d *Device) Sets() int { return int(d.sets.Load()) }

// Handle is one enumeration's view of a Device.
type Handle struct {
	dev    *Device
	closes atomic.Int32
}

// NewHandle wraps dev.
func NewHandle(dev *Device) *Handle {
	return &Handle{dev: dev}
}

// Device returns the simulated hardware.
func (h *Handle) Device() *Device { return h.dev }

func (h *Handle) DeviceInstanceID() string { return h.dev.ID }
func (h *Handle) Description() string      { return h.dev.Desc }

func (h *Handle) GetBrightness(context.Context) (int, error) {
	d := h.dev
	d.gets.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.getErr != nil {
		return 0, d.getErr
	}
	return d.brightness, nil
}

func (h *Handle) SetBrightness(_ context.Context, v int) error {
	d := h.dev
	d.sets.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.setErr != nil {
		return d.setErr
	}
	d.brightness = v
	return nil
}

func (h *Handle) Close() error {
	h.closes.Add(1)
	return nil
}

// Closes returns how many times Close was called on this handle.
func (h *Handle) Closes() int { return int(h.closes.Load()) }

// Source enumerates a configurable device list, issuing a fresh Handle per
// device per call.
type Source struct {
	mu      sync.Mutex
	devices []*Device
	err     error
	issued  []*Handle

	// Entered, when non-nil, receives a value as Enumerate starts.
	Entered chan struct{}
	// Block, when non-nil, is received from before Enumerate returns.
	Block chan struct{}

	calls atomic.Int32
}

// NewSource creates a source enumerating devices.
func NewSource(devices ...*Device) *Source {
	return &Source{devices: devices}
}

// SetDevices replaces what the next enumeration returns.
func (s *Source) SetDevices(devices ...*Device) {
	s.mu.Lock()
	s.devices = devices
	s.mu.Unlock()
}

// SetError makes enumerations fail with err (nil to clear).
func (s *Source) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Enumerate implements monitor.Source.
func (s *Source) Enumerate(ctx context.Context) ([]monitor.Handle, error) {
	s.calls.Add(1)
	if s.Entered != nil {
		s.Entered <- struct{}{}
	}
	if s.Block != nil {
		select {
		case <-s.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}

	handles := make([]monitor.Handle, 0, len(s.devices))
	for _, d := range s.devices {
		h := NewHandle(d)
		s.issued = append(s.issued, h)
		handles = append(handles, h)
	}
	return handles, nil
}

// Calls returns how many times Enumerate ran.
func (s *Source) Calls() int { return int(s.calls.Load()) }

// Issued returns every handle handed out for id, oldest first.
func (s *Source) Issued(id string) []*Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Handle
	for _, h := range s.issued {
		if strings.EqualFold(h.dev.ID, id) {
			out = append(out, h)
		}
	}
	return out
}

// NameMap is a monitor.NameLookup backed by a map.
type NameMap map[string]string

// Lookup implements monitor.NameLookup.
func (m NameMap) Lookup(id string) (string, bool) {
	name, ok := m[id]
	return name, ok
}

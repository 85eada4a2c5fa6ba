package monitor

import (
	"context"
	"fmt"
	"time"
)

// BrightnessUnavailable marks an entry whose device did not answer the last
// brightness read.
const BrightnessUnavailable = -1

// Brightness bounds in percent.
const (
	MinBrightness = 0
	MaxBrightness = 100
)

// Handle is one enumerated display device.
//
// A Handle is owned by whoever enumerated it until it is handed to the
// Registry; after that the Registry closes it exactly once.
type Handle interface {
	// DeviceInstanceID is the stable hardware id. Compared case-insensitively.
	DeviceInstanceID() string

	// Description is the OS or EDID provided name, used when no remembered
	// name exists.
	Description() string

	GetBrightness(ctx context.Context) (int, error)
	SetBrightness(ctx context.Context, value int) error
	Close() error
}

// Source enumerates the displays currently attached.
type Source interface {
	Enumerate(ctx context.Context) ([]Handle, error)
}

// NameLookup resolves a remembered display name for a device instance id.
// namecache.Cache satisfies it.
type NameLookup interface {
	Lookup(deviceInstanceID string) (string, bool)
}

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Snapshot is a point-in-time copy of an Entry, safe to hold and serialise.
type Snapshot struct {
	DeviceInstanceID string    `json:"device_instance_id"`
	Description      string    `json:"description"`
	Name             string    `json:"name"`
	Brightness       int       `json:"brightness"`
	IsTarget         bool      `json:"is_target"`
	UpdateTime       time.Time `json:"update_time"`
}

// HasBrightness reports whether the snapshot carries a usable brightness.
func (s Snapshot) HasBrightness() bool {
	return s.Brightness != BrightnessUnavailable
}

// ValidateBrightness checks value is within 0-100.
func ValidateBrightness(value int) error {
	if value < MinBrightness || value > MaxBrightness {
		return fmt.Errorf("%w: got %d", ErrInvalidBrightness, value)
	}
	return nil
}

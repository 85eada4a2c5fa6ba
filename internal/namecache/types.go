package namecache

import (
	"context"
	"time"
)

// Record is one remembered display name.
type Record struct {
	DeviceInstanceID string    `json:"device_instance_id"`
	Name             string    `json:"name"`
	LastWriteTime    time.Time `json:"last_write_time"`
}

// Observed is a live (id, name) pair taken from the monitor registry.
type Observed struct {
	DeviceInstanceID string
	Name             string
}

// Store persists the whole name table.
type Store interface {
	// Load returns every stored record in no particular order.
	Load(ctx context.Context) ([]Record, error)

	// Save replaces the stored table with records.
	Save(ctx context.Context, records []Record) error
}

package namecache

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// Cache is a bounded map from device instance id to remembered name.
//
// Ids compare case-insensitively. When the cache grows past its bound the
// records with the oldest LastWriteTime are evicted first, ties broken by id.
//
// All methods are safe for concurrent use.
type Cache struct {
	maxCount int
	now      func() time.Time

	mu      sync.Mutex
	records map[string]Record
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the clock used for LastWriteTime.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a cache bounded to maxCount records, seeded with initial.
//
// Records without an id are dropped. If initial exceeds maxCount it is
// truncated oldest-first, so Snapshot returns the truncated table.
func New(maxCount int, initial []Record, opts ...Option) *Cache {
	c := &Cache{
		maxCount: maxCount,
		now:      time.Now,
		records:  make(map[string]Record, len(initial)),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, r := range initial {
		if r.DeviceInstanceID == "" {
			continue
		}
		key := keyOf(r.DeviceInstanceID)
		// Keep the newer record when the input repeats an id.
		if prev, ok := c.records[key]; ok && prev.LastWriteTime.After(r.LastWriteTime) {
			continue
		}
		c.records[key] = r
	}
	c.truncateLocked()
	return c
}

// Open loads the table from store and builds a cache over it. When the
// stored table was over the bound the truncated table is written back.
func Open(ctx context.Context, store Store, maxCount int, opts ...Option) (*Cache, error) {
	records, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading names: %w", err)
	}

	c := New(maxCount, records, opts...)
	if c.Len() < len(records) {
		if err := store.Save(ctx, c.Snapshot()); err != nil {
			return nil, fmt.Errorf("saving truncated names: %w", err)
		}
	}
	return c, nil
}

func keyOf(id string) string {
	return strings.ToLower(id)
}

// MaxCount returns the bound.
func (c *Cache) MaxCount() int {
	return c.maxCount
}

// Len returns the number of records.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Lookup returns the remembered name for id.
func (c *Cache) Lookup(id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.records[keyOf(id)]
	if !ok {
		return "", false
	}
	return r.Name, true
}

// RecordObservedNames folds live names into the cache.
//
// For each observation whose name differs from the recorded one: a new
// non-empty name is inserted, a changed non-empty name is updated, and an
// empty name removes the record. The cache is then truncated to its bound.
// It reports whether anything changed, which tells the caller to persist.
func (c *Cache) RecordObservedNames(observed []Observed) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := false
	for _, o := range observed {
		if o.DeviceInstanceID == "" {
			continue
		}
		key := keyOf(o.DeviceInstanceID)
		existing, ok := c.records[key]

		switch {
		case ok && existing.Name == o.Name:
		case !ok && o.Name == "":
		case o.Name == "":
			delete(c.records, key)
			changed = true
		default:
			c.records[key] = Record{
				DeviceInstanceID: o.DeviceInstanceID,
				Name:             o.Name,
				LastWriteTime:    c.now(),
			}
			changed = true
		}
	}

	if changed {
		c.truncateLocked()
	}
	return changed
}

// truncateLocked evicts the oldest records until the bound holds.
func (c *Cache) truncateLocked() int {
	excess := len(c.records) - c.maxCount
	if excess <= 0 {
		return 0
	}

	ordered := c.sortedLocked(byAge)
	for _, r := range ordered[:excess] {
		delete(c.records, keyOf(r.DeviceInstanceID))
	}
	return excess
}

// Snapshot returns every record sorted by id.
func (c *Cache) Snapshot() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortedLocked(byID)
}

func (c *Cache) sortedLocked(cmpFn func(a, b Record) int) []Record {
	out := make([]Record, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r)
	}
	slices.SortFunc(out, cmpFn)
	return out
}

func byID(a, b Record) int {
	return cmp.Compare(keyOf(a.DeviceInstanceID), keyOf(b.DeviceInstanceID))
}

func byAge(a, b Record) int {
	if c := a.LastWriteTime.Compare(b.LastWriteTime); c != 0 {
		return c
	}
	return byID(a, b)
}

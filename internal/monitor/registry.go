package monitor

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// Registry is the ordered set of tracked displays.
//
// Order is enumeration order and decides which entries become targets.
// Device instance ids are unique, compared case-insensitively.
//
// Structural changes (add, remove) happen under a single RWMutex; readers
// take the read lock, so they never see a half-applied reconcile.
//
// All public methods are thread-safe.
type Registry struct {
	maxTargets int
	names      NameLookup
	now        func() time.Time
	logger     Logger

	// reconcileMu serialises Reconcile calls.
	reconcileMu sync.Mutex

	mu      sync.RWMutex
	entries []*Entry
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryClock sets the clock stamped on brightness reads.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates an empty registry.
//
// maxTargets bounds how many newly discovered entries are promoted to
// target on creation. names may be nil, in which case new entries take the
// handle's Description.
func NewRegistry(maxTargets int, names NameLookup, opts ...RegistryOption) *Registry {
	r := &Registry{
		maxTargets: maxTargets,
		names:      names,
		now:        time.Now,
		logger:     noopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Now returns the current time on the clock that stamps entry update
// times.
func (r *Registry) Now() time.Time {
	return r.now()
}

// MaxTargets returns the target bound the registry was created with.
func (r *Registry) MaxTargets() int {
	return r.maxTargets
}

// Reconcile merges a fresh enumeration into the registry.
//
// Handles whose id is already tracked are closed and the existing entry is
// kept as is, so target flag, name and brightness survive. Unknown handles
// become new entries, named from the NameLookup or the handle description;
// while the registry holds fewer than MaxTargets entries each new entry has
// its brightness read and is marked target before it is appended. A second
// handle with an id already seen in the same enumeration is closed and
// skipped. Tracked entries missing from handles are closed and removed.
//
// Brightness read failures leave the entry unavailable and are logged.
func (r *Registry) Reconcile(ctx context.Context, handles []Handle) (added, removed []*Entry) {
	r.reconcileMu.Lock()
	defer r.reconcileMu.Unlock()

	old := r.Entries()

	for _, h := range handles {
		id := h.DeviceInstanceID()

		if i := indexOf(old, id); i >= 0 {
			old = slices.Delete(old, i, i+1)
			r.closeHandle(h)
			continue
		}
		if _, exists := r.Get(id); exists {
			r.logger.Warn("duplicate device in enumeration", "device_instance_id", id)
			r.closeHandle(h)
			continue
		}

		entry := newEntry(h, r.lookupName(h), r.now)
		if r.Len() < r.maxTargets {
			if err := entry.UpdateBrightness(ctx); err != nil {
				r.logger.Warn("brightness unavailable", "device_instance_id", id, "error", err)
			}
			entry.SetTarget(true)
		}

		r.mu.Lock()
		r.entries = append(r.entries, entry)
		r.mu.Unlock()

		added = append(added, entry)
		r.logger.Info("monitor added", "device_instance_id", id, "name", entry.Name(), "target", entry.IsTarget())
	}

	for _, stale := range old {
		if err := stale.Close(); err != nil {
			r.logger.Warn("closing monitor", "device_instance_id", stale.DeviceInstanceID(), "error", err)
		}

		r.mu.Lock()
		if i := slices.Index(r.entries, stale); i >= 0 {
			r.entries = slices.Delete(r.entries, i, i+1)
		}
		r.mu.Unlock()

		removed = append(removed, stale)
		r.logger.Info("monitor removed", "device_instance_id", stale.DeviceInstanceID())
	}

	return added, removed
}

func (r *Registry) lookupName(h Handle) string {
	if r.names != nil {
		if name, ok := r.names.Lookup(h.DeviceInstanceID()); ok {
			return name
		}
	}
	return h.Description()
}

func (r *Registry) closeHandle(h Handle) {
	if err := h.Close(); err != nil {
		r.logger.Debug("closing enumerated handle", "device_instance_id", h.DeviceInstanceID(), "error", err)
	}
}

// indexOf returns the position of id in entries, or -1.
func indexOf(entries []*Entry, id string) int {
	return slices.IndexFunc(entries, func(e *Entry) bool {
		return strings.EqualFold(e.DeviceInstanceID(), id)
	})
}

// Len returns the number of tracked entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Entries returns the tracked entries in order. The slice is a copy; the
// entries are shared.
func (r *Registry) Entries() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.entries)
}

// Targets returns the entries currently marked target, in order.
func (r *Registry) Targets() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var targets []*Entry
	for _, e := range r.entries {
		if e.IsTarget() {
			targets = append(targets, e)
		}
	}
	return targets
}

// Snapshot returns a copy of every entry's state, in order.
func (r *Registry) Snapshot() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Snapshot, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Snapshot()
	}
	return out
}

// Get returns the entry whose id equals id, ignoring case.
func (r *Registry) Get(id string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := indexOf(r.entries, id); i >= 0 {
		return r.entries[i], true
	}
	return nil, false
}

// FindByPrefix returns the first entry whose id is a case-insensitive
// prefix of instanceName. Brightness notifications name the device with a
// per-instance suffix (for example "_0"), so exact matching would miss.
func (r *Registry) FindByPrefix(instanceName string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		id := e.DeviceInstanceID()
		if id != "" && len(id) <= len(instanceName) && strings.EqualFold(instanceName[:len(id)], id) {
			return e, true
		}
	}
	return nil, false
}

// Close closes and removes every entry.
func (r *Registry) Close() error {
	r.reconcileMu.Lock()
	defer r.reconcileMu.Unlock()

	r.mu.Lock()
	entries := r.entries
	r.entries = nil
	r.mu.Unlock()

	var firstErr error
	for _, e := range entries {
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

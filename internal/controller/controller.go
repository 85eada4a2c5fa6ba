package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/brightsync/internal/monitor"
	"github.com/nerrad567/brightsync/internal/namecache"
)

const (
	defaultQueueSize          = 32
	defaultRefreshConcurrency = 8
)

// Logger defines the logging interface used by the controller.
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

// Observer is told about scanning state and registry changes. Calls are
// made synchronously from controller goroutines and must not block.
type Observer interface {
	ScanningChanged(scanning bool)
	MonitorsChanged(monitors []monitor.Snapshot)
}

// Telemetry receives brightness samples and scan summaries.
// influxdb.Client satisfies it.
type Telemetry interface {
	WriteBrightness(deviceInstanceID, name string, brightness int)
	WriteScan(monitors, added, removed int, elapsed time.Duration)
}

// Options holds the controller's collaborators.
type Options struct {
	// Source, Registry and Names are required.
	Source   monitor.Source
	Registry *monitor.Registry
	Names    *namecache.Cache

	// Store persists Names. Without it PersistNames only updates the cache.
	Store namecache.Store

	Observers []Observer
	Telemetry Telemetry
	Logger    Logger

	// QueueSize bounds pending triggers. Zero selects a default.
	QueueSize int

	// RefreshConcurrency bounds parallel brightness reads. Zero selects a
	// default.
	RefreshConcurrency int
}

// Stats counts controller activity since start.
type Stats struct {
	ScansCompleted    uint64 `json:"scans_completed"`
	ScansSkipped      uint64 `json:"scans_skipped"`
	ScansFailed       uint64 `json:"scans_failed"`
	UpdatesCompleted  uint64 `json:"updates_completed"`
	UpdatesSkipped    uint64 `json:"updates_skipped"`
	BrightnessEvents  uint64 `json:"brightness_events"`
	BrightnessMatched uint64 `json:"brightness_matched"`
	DeviceFailures    uint64 `json:"device_failures"`
	TriggersDropped   uint64 `json:"triggers_dropped"`
	NamesPersisted    uint64 `json:"names_persisted"`
}

type counters struct {
	scansCompleted    atomic.Uint64
	scansSkipped      atomic.Uint64
	scansFailed       atomic.Uint64
	updatesCompleted  atomic.Uint64
	updatesSkipped    atomic.Uint64
	brightnessEvents  atomic.Uint64
	brightnessMatched atomic.Uint64
	deviceFailures    atomic.Uint64
	triggersDropped   atomic.Uint64
	namesPersisted    atomic.Uint64
}

// Controller coordinates scans, refreshes and name persistence over a
// monitor registry.
//
// Scan and Update are each single-flight: a call made while another call
// of the same kind is running returns immediately without doing anything.
// Update also stands aside while a scan is running.
//
// All public methods are thread-safe.
type Controller struct {
	source    monitor.Source
	registry  *monitor.Registry
	names     *namecache.Cache
	store     namecache.Store
	telemetry Telemetry
	logger    Logger

	refreshLimit int

	observers  []Observer
	observerMu sync.RWMutex

	scanning flight
	updating flight

	persistMu sync.Mutex

	triggers chan Trigger
	wg       sync.WaitGroup

	stats counters
}

// New validates opts and creates a controller. It returns
// ErrMissingDependency when Source, Registry or Names is nil.
func New(opts Options) (*Controller, error) {
	switch {
	case opts.Source == nil:
		return nil, fmt.Errorf("%w: source", ErrMissingDependency)
	case opts.Registry == nil:
		return nil, fmt.Errorf("%w: registry", ErrMissingDependency)
	case opts.Names == nil:
		return nil, fmt.Errorf("%w: name cache", ErrMissingDependency)
	}

	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	refreshLimit := opts.RefreshConcurrency
	if refreshLimit <= 0 {
		refreshLimit = defaultRefreshConcurrency
	}

	c := &Controller{
		source:       opts.Source,
		registry:     opts.Registry,
		names:        opts.Names,
		store:        opts.Store,
		telemetry:    opts.Telemetry,
		logger:       opts.Logger,
		refreshLimit: refreshLimit,
		observers:    append([]Observer(nil), opts.Observers...),
		triggers:     make(chan Trigger, queueSize),
	}
	if c.logger == nil {
		c.logger = noopLogger{}
	}
	return c, nil
}

// AddObserver registers o for future notifications.
func (c *Controller) AddObserver(o Observer) {
	c.observerMu.Lock()
	c.observers = append(c.observers, o)
	c.observerMu.Unlock()
}

// Registry returns the registry the controller manages.
func (c *Controller) Registry() *monitor.Registry {
	return c.registry
}

// Names returns the name cache.
func (c *Controller) Names() *namecache.Cache {
	return c.names
}

// IsScanning reports whether a scan is in progress.
func (c *Controller) IsScanning() bool {
	return c.scanning.active()
}

// Stats returns a copy of the activity counters.
func (c *Controller) Stats() Stats {
	s := &c.stats
	return Stats{
		ScansCompleted:    s.scansCompleted.Load(),
		ScansSkipped:      s.scansSkipped.Load(),
		ScansFailed:       s.scansFailed.Load(),
		UpdatesCompleted:  s.updatesCompleted.Load(),
		UpdatesSkipped:    s.updatesSkipped.Load(),
		BrightnessEvents:  s.brightnessEvents.Load(),
		BrightnessMatched: s.brightnessMatched.Load(),
		DeviceFailures:    s.deviceFailures.Load(),
		TriggersDropped:   s.triggersDropped.Load(),
		NamesPersisted:    s.namesPersisted.Load(),
	}
}

// Scan enumerates monitors, reconciles the registry and refreshes the
// brightness of targets that were not read during reconciliation.
//
// Only one scan runs at a time; concurrent callers return nil at once.
// Device read failures are logged and leave the entry unavailable; only a
// failed enumeration is returned, wrapped in ErrEnumerationFailed.
func (c *Controller) Scan(ctx context.Context) error {
	if !c.scanning.tryAcquire() {
		c.stats.scansSkipped.Add(1)
		c.logger.Debug("scan already in progress")
		return nil
	}
	defer c.scanning.release()

	c.notifyScanning(true)
	defer c.notifyScanning(false)

	scanID := uuid.NewString()
	// Compared against entry update times, so it must come from the same clock.
	start := c.registry.Now()
	log := c.logger

	handles, err := c.source.Enumerate(ctx)
	if err != nil {
		c.stats.scansFailed.Add(1)
		log.Warn("enumeration failed", "scan_id", scanID, "error", err)
		return fmt.Errorf("%w: %w", ErrEnumerationFailed, err)
	}

	added, removed := c.registry.Reconcile(ctx, handles)
	for _, e := range added {
		if e.IsTarget() {
			c.writeBrightness(e)
		}
	}

	var stale []*monitor.Entry
	for i, e := range c.registry.Entries() {
		if i >= c.registry.MaxTargets() {
			break
		}
		if e.UpdateTime().Before(start) {
			stale = append(stale, e)
		}
	}
	c.refresh(ctx, stale, true)

	elapsed := c.registry.Now().Sub(start)
	monitors := c.registry.Len()
	if c.telemetry != nil {
		c.telemetry.WriteScan(monitors, len(added), len(removed), elapsed)
	}
	c.stats.scansCompleted.Add(1)
	log.Info("scan finished",
		"scan_id", scanID,
		"monitors", monitors,
		"added", len(added),
		"removed", len(removed),
		"refreshed", len(stale),
		"duration", elapsed,
	)

	c.notifyMonitors()
	return nil
}

// Update refreshes the brightness of every target entry.
//
// It returns at once while a scan is running. The scanning check and the
// update's own single-flight check are separate, so an update that passes
// the first just before a scan starts still runs alongside it.
func (c *Controller) Update(ctx context.Context) error {
	if c.scanning.active() {
		c.stats.updatesSkipped.Add(1)
		c.logger.Debug("update skipped, scan in progress")
		return nil
	}
	if !c.updating.tryAcquire() {
		c.stats.updatesSkipped.Add(1)
		c.logger.Debug("update already in progress")
		return nil
	}
	defer c.updating.release()

	targets := c.registry.Targets()
	c.refresh(ctx, targets, false)
	c.stats.updatesCompleted.Add(1)
	c.logger.Debug("update finished", "targets", len(targets))

	c.notifyMonitors()
	return nil
}

// refresh reads brightness for entries in parallel and waits for all of
// them. Failures are logged per device.
func (c *Controller) refresh(ctx context.Context, entries []*monitor.Entry, promote bool) {
	if len(entries) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(c.refreshLimit)

	for _, e := range entries {
		e := e
		g.Go(func() error {
			if err := e.UpdateBrightness(ctx); err != nil {
				c.stats.deviceFailures.Add(1)
				c.logger.Warn("brightness unavailable",
					"device_instance_id", e.DeviceInstanceID(),
					"error", err,
				)
			} else {
				c.writeBrightness(e)
			}
			if promote {
				e.SetTarget(true)
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // Workers never return errors
}

// ApplyBrightnessChange records a brightness the monitor reported on its
// own. The first entry whose id is a case-insensitive prefix of
// instanceName receives it. It reports whether an entry was updated.
func (c *Controller) ApplyBrightnessChange(instanceName string, brightness int) bool {
	c.stats.brightnessEvents.Add(1)

	e, ok := c.registry.FindByPrefix(instanceName)
	if !ok {
		c.logger.Debug("brightness change for unknown monitor", "instance_name", instanceName)
		return false
	}
	if !e.SetReportedBrightness(brightness) {
		c.logger.Warn("brightness change out of range",
			"device_instance_id", e.DeviceInstanceID(),
			"brightness", brightness,
		)
		return false
	}

	c.stats.brightnessMatched.Add(1)
	c.writeBrightness(e)
	c.notifyMonitors()
	return true
}

// SetBrightness writes value to the monitor with exactly id.
func (c *Controller) SetBrightness(ctx context.Context, id string, value int) error {
	e, ok := c.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", monitor.ErrEntryNotFound, id)
	}
	if err := e.SetBrightness(ctx, value); err != nil {
		return err
	}

	c.writeBrightness(e)
	c.notifyMonitors()
	return nil
}

// Rename sets the display name of the monitor with exactly id. The new
// name reaches the cache at the next PersistNames; an empty name removes
// the cached record there.
func (c *Controller) Rename(id, name string) error {
	e, ok := c.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", monitor.ErrEntryNotFound, id)
	}
	e.SetName(name)
	c.notifyMonitors()
	return nil
}

// PersistNames copies the registry's current names into the cache and,
// when that changed the cache, saves the cache through the store. It
// reports whether the cache changed.
func (c *Controller) PersistNames(ctx context.Context) (bool, error) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	entries := c.registry.Entries()
	observed := make([]namecache.Observed, len(entries))
	for i, e := range entries {
		observed[i] = namecache.Observed{
			DeviceInstanceID: e.DeviceInstanceID(),
			Name:             e.Name(),
		}
	}

	if !c.names.RecordObservedNames(observed) {
		return false, nil
	}
	if c.store == nil {
		return true, nil
	}

	if err := c.store.Save(ctx, c.names.Snapshot()); err != nil {
		return true, fmt.Errorf("persisting names: %w", err)
	}
	c.stats.namesPersisted.Add(1)
	c.logger.Info("names persisted", "count", c.names.Len())
	return true, nil
}

// Submit queues t without blocking. It returns false when the queue is
// full and the trigger was dropped.
func (c *Controller) Submit(t Trigger) bool {
	select {
	case c.triggers <- t:
		return true
	default:
		c.stats.triggersDropped.Add(1)
		c.logger.Warn("trigger queue full, dropping", "trigger", t.Kind.String())
		return false
	}
}

// Run performs an initial scan and then dispatches queued triggers until
// ctx is done. Each trigger runs on its own goroutine so a slow scan never
// holds up the queue; single-flight drops the redundant ones.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Scan(ctx); err != nil {
		c.logger.Warn("initial scan failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-c.triggers:
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				c.handle(ctx, t)
			}()
		}
	}
}

func (c *Controller) handle(ctx context.Context, t Trigger) {
	switch t.Kind {
	case KindScan:
		if err := c.Scan(ctx); err != nil {
			c.logger.Warn("scan failed", "error", err)
		}
	case KindUpdate:
		if err := c.Update(ctx); err != nil {
			c.logger.Warn("update failed", "error", err)
		}
	case KindBrightness:
		c.ApplyBrightnessChange(t.InstanceName, t.Brightness)
	case KindPersistNames:
		if _, err := c.PersistNames(ctx); err != nil {
			c.logger.Error("persisting names failed", "error", err)
		}
	default:
		c.logger.Warn("unknown trigger", "trigger", t.Kind.String())
	}
}

// Close waits for running triggers, persists names and closes every
// monitor. ctx bounds the wait and the final save.
func (c *Controller) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	var errs []error
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for triggers: %w", ctx.Err()))
	}

	if _, err := c.PersistNames(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := c.registry.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing monitors: %w", err))
	}
	return errors.Join(errs...)
}

func (c *Controller) writeBrightness(e *monitor.Entry) {
	if c.telemetry == nil {
		return
	}
	c.telemetry.WriteBrightness(e.DeviceInstanceID(), e.Name(), e.Brightness())
}

func (c *Controller) snapshotObservers() []Observer {
	c.observerMu.RLock()
	defer c.observerMu.RUnlock()
	return append([]Observer(nil), c.observers...)
}

func (c *Controller) notifyScanning(scanning bool) {
	for _, o := range c.snapshotObservers() {
		o.ScanningChanged(scanning)
	}
}

func (c *Controller) notifyMonitors() {
	observers := c.snapshotObservers()
	if len(observers) == 0 {
		return
	}
	snap := c.registry.Snapshot()
	for _, o := range observers {
		o.MonitorsChanged(snap)
	}
}

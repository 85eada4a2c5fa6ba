package watcher

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/brightsync/internal/controller"
	"github.com/nerrad567/brightsync/internal/infrastructure/config"
	"github.com/nerrad567/brightsync/internal/process"
)

const defaultDebounce = 500 * time.Millisecond

// SettingsWatcher follows display topology changes through
// "udevadm monitor" and submits a scan once each burst of events settles.
type SettingsWatcher struct {
	sink     Sink
	debounce time.Duration
	logger   Logger
	manager  *process.Manager

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64 // identifies the armed timer; a fire from an older one is ignored
	events  int
	stopped bool
}

// NewSettingsWatcher builds a watcher from cfg. It does not start udevadm.
func NewSettingsWatcher(cfg config.SettingsWatcherConfig, sink Sink, logger Logger) *SettingsWatcher {
	w := &SettingsWatcher{
		sink:     sink,
		debounce: time.Duration(cfg.DebounceMS) * time.Millisecond,
		logger:   loggerOrNoop(logger),
	}
	if w.debounce <= 0 {
		w.debounce = defaultDebounce
	}

	pcfg := process.DefaultConfig("udevadm", cfg.UdevadmBinary, udevArgs(cfg.Subsystems))
	pcfg.OnLine = w.handleLine
	w.manager = process.NewManager(pcfg)
	w.manager.SetLogger(w.logger)
	return w
}

func udevArgs(subsystems []string) []string {
	args := []string{"monitor", "--udev"}
	for _, s := range subsystems {
		if s = strings.TrimSpace(s); s != "" {
			args = append(args, "--subsystem-match="+s)
		}
	}
	return args
}

// Name implements Watcher.
func (w *SettingsWatcher) Name() string { return "settings" }

// Start launches udevadm under supervision.
func (w *SettingsWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	w.stopped = false
	w.mu.Unlock()
	return w.manager.Start(ctx)
}

// Stop terminates udevadm and drops any pending trigger.
func (w *SettingsWatcher) Stop() error {
	w.mu.Lock()
	w.stopped = true
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()
	return w.manager.Stop()
}

// Process returns the supervised udevadm statistics.
func (w *SettingsWatcher) Process() process.Stats {
	return w.manager.Stats()
}

// handleLine debounces udev event lines into scan triggers.
func (w *SettingsWatcher) handleLine(line string) {
	action, devpath, ok := parseUdevLine(line)
	if !ok {
		return
	}
	w.logger.Debug("display event", "action", action, "devpath", devpath)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.events++
	w.armLocked()
}

// armLocked pushes the pending trigger out by one debounce interval. A
// timer that already expired cannot be reset, because its callback may be
// waiting on w.mu; a fresh timer with a new generation replaces it.
func (w *SettingsWatcher) armLocked() {
	if w.timer != nil && w.timer.Stop() {
		w.timer.Reset(w.debounce)
		return
	}
	w.gen++
	gen := w.gen
	w.timer = time.AfterFunc(w.debounce, func() { w.fire(gen) })
}

func (w *SettingsWatcher) fire(gen uint64) {
	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		return
	}
	events := w.events
	w.events = 0
	w.timer = nil
	stopped := w.stopped
	w.mu.Unlock()

	if stopped {
		return
	}
	w.logger.Info("display configuration changed", "events", events)
	w.sink.Submit(controller.TriggerScan)
}

// parseUdevLine extracts the action and device path from an event line
// such as
//
//	UDEV  [1234.567890] change   /devices/pci0000:00/0000:00:02.0/drm/card0 (drm)
//
// Header and property lines are rejected.
func parseUdevLine(line string) (action, devpath string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", "", false
	}

	head, rest := fields[0], fields[1:]
	switch {
	case head == "UDEV" || head == "KERNEL":
		if len(rest) == 0 || !strings.HasPrefix(rest[0], "[") {
			return "", "", false
		}
		rest = rest[1:]
	case strings.HasPrefix(head, "UDEV[") || strings.HasPrefix(head, "KERNEL["):
		// Timestamp glued to the source name.
	default:
		return "", "", false
	}

	if len(rest) < 2 || !strings.HasPrefix(rest[1], "/") {
		return "", "", false
	}
	return rest[0], rest[1], true
}

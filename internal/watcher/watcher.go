package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/brightsync/internal/controller"
)

// Sentinel errors for watchers. Check with errors.Is().
var (
	// ErrAlreadyStarted is returned by Start on a running watcher.
	ErrAlreadyStarted = errors.New("watcher: already started")

	// ErrInvalidPayload indicates an event message could not be decoded.
	ErrInvalidPayload = errors.New("watcher: invalid payload")
)

// Sink receives triggers. controller.Controller satisfies it.
type Sink interface {
	Submit(t controller.Trigger) bool
}

// Watcher is a change-notification source.
type Watcher interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

// Logger defines the logging interface used by watchers.
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

func loggerOrNoop(l Logger) Logger {
	if l == nil {
		return noopLogger{}
	}
	return l
}

// Group starts watchers in order and stops them in reverse.
type Group struct {
	mu       sync.Mutex
	watchers []Watcher
	started  []Watcher
	logger   Logger
}

// NewGroup creates a group over watchers.
func NewGroup(logger Logger, watchers ...Watcher) *Group {
	return &Group{
		watchers: watchers,
		logger:   loggerOrNoop(logger),
	}
}

// Start starts every watcher. On the first failure the watchers already
// started are stopped and the error is returned.
func (g *Group) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, w := range g.watchers {
		if err := w.Start(ctx); err != nil {
			g.stopLocked()
			return fmt.Errorf("starting %s watcher: %w", w.Name(), err)
		}
		g.started = append(g.started, w)
		g.logger.Info("watcher started", "watcher", w.Name())
	}
	return nil
}

// Stop stops every started watcher, newest first.
func (g *Group) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stopLocked()
}

func (g *Group) stopLocked() error {
	var errs []error
	for i := len(g.started) - 1; i >= 0; i-- {
		w := g.started[i]
		if err := w.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping %s watcher: %w", w.Name(), err))
			continue
		}
		g.logger.Info("watcher stopped", "watcher", w.Name())
	}
	g.started = nil
	return errors.Join(errs...)
}

// Names returns the names of the watchers in the group.
func (g *Group) Names() []string {
	names := make([]string, len(g.watchers))
	for i, w := range g.watchers {
		names[i] = w.Name()
	}
	return names
}

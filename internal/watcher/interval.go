package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/brightsync/internal/controller"
)

// IntervalWatcher submits a brightness refresh on a fixed period.
type IntervalWatcher struct {
	interval time.Duration
	sink     Sink

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewIntervalWatcher creates a watcher ticking every interval.
func NewIntervalWatcher(interval time.Duration, sink Sink) *IntervalWatcher {
	return &IntervalWatcher{interval: interval, sink: sink}
}

// Name implements Watcher.
func (w *IntervalWatcher) Name() string { return "interval" }

// Start begins ticking until Stop or ctx ends.
func (w *IntervalWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return ErrAlreadyStarted
	}
	if w.interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", w.interval)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.loop(ctx, w.done)
	return nil
}

func (w *IntervalWatcher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sink.Submit(controller.TriggerUpdate)
		}
	}
}

// Stop halts the ticker and waits for the loop to exit.
func (w *IntervalWatcher) Stop() error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

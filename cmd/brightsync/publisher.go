package main

import (
	"sync"

	"github.com/nerrad567/brightsync/internal/infrastructure/mqtt"
	"github.com/nerrad567/brightsync/internal/monitor"
)

// stateQueueSize bounds the updates waiting for the broker.
const stateQueueSize = 64

// jsonPublisher is the subset of *mqtt.Client the state publisher uses.
type jsonPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

type warnLogger interface {
	Warn(msg string, args ...any)
}

// stateUpdate is one queued observer notification. Exactly one of the
// fields is set.
type stateUpdate struct {
	scanning *bool
	monitors []monitor.Snapshot
}

// statePublisher mirrors controller state onto retained MQTT topics so
// late subscribers see the current monitors without waiting for a scan.
//
// Observer callbacks only enqueue; a single goroutine publishes in order.
// When the queue is full the update is dropped with a warning.
type statePublisher struct {
	pub    jsonPublisher
	logger warnLogger
	topics mqtt.Topics

	queue     chan stateUpdate
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newStatePublisher(pub jsonPublisher, logger warnLogger, queueSize int) *statePublisher {
	if queueSize < 1 {
		queueSize = 1
	}
	p := &statePublisher{
		pub:    pub,
		logger: logger,
		queue:  make(chan stateUpdate, queueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// ScanningChanged implements controller.Observer.
func (p *statePublisher) ScanningChanged(scanning bool) {
	p.enqueue(stateUpdate{scanning: &scanning})
}

// MonitorsChanged implements controller.Observer.
func (p *statePublisher) MonitorsChanged(monitors []monitor.Snapshot) {
	if monitors == nil {
		monitors = []monitor.Snapshot{}
	}
	p.enqueue(stateUpdate{monitors: monitors})
}

// Close publishes what is already queued and stops the publishing
// goroutine. Later notifications are ignored.
func (p *statePublisher) Close() {
	p.closeOnce.Do(func() { close(p.stop) })
	<-p.done
}

func (p *statePublisher) enqueue(u stateUpdate) {
	select {
	case <-p.stop:
		return
	default:
	}
	select {
	case p.queue <- u:
	default:
		p.logger.Warn("state queue full, dropping update", "queue_size", cap(p.queue))
	}
}

func (p *statePublisher) run() {
	defer close(p.done)
	for {
		select {
		case u := <-p.queue:
			p.publishUpdate(u)
		case <-p.stop:
			for {
				select {
				case u := <-p.queue:
					p.publishUpdate(u)
				default:
					return
				}
			}
		}
	}
}

func (p *statePublisher) publishUpdate(u stateUpdate) {
	if u.scanning != nil {
		p.publish(p.topics.ScanningState(), map[string]bool{"scanning": *u.scanning})
		return
	}
	p.publish(p.topics.MonitorsState(), u.monitors)
	for _, m := range u.monitors {
		p.publish(p.topics.MonitorState(m.DeviceInstanceID), m)
	}
}

func (p *statePublisher) publish(topic string, v any) {
	if err := p.pub.PublishJSON(topic, v, true); err != nil {
		p.logger.Warn("publishing state failed", "topic", topic, "error", err)
	}
}

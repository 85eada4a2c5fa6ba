package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/brightsync/internal/controller"
	"github.com/nerrad567/brightsync/internal/infrastructure/mqtt"
)

// Subscriber is the part of mqtt.Client the event watchers use.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// PowerEvent is the payload published on the power event topic.
type PowerEvent struct {
	State string `json:"state"`
}

// BrightnessEvent is the payload published when a monitor reports a new
// brightness on its own. InstanceName is matched by prefix against device
// instance ids.
type BrightnessEvent struct {
	InstanceName string `json:"instance_name"`
	Brightness   *int   `json:"brightness"`
}

// topicWatcher subscribes one handler to one topic.
type topicWatcher struct {
	name    string
	sub     Subscriber
	topic   string
	qos     byte
	handler mqtt.MessageHandler

	mu      sync.Mutex
	started bool
}

func (w *topicWatcher) Name() string { return w.name }

// Topic returns the subscribed topic.
func (w *topicWatcher) Topic() string { return w.topic }

func (w *topicWatcher) Start(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}
	if err := w.sub.Subscribe(w.topic, w.qos, w.handler); err != nil {
		return fmt.Errorf("subscribing to %s: %w", w.topic, err)
	}
	w.started = true
	return nil
}

func (w *topicWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return nil
	}
	w.started = false
	if err := w.sub.Unsubscribe(w.topic); err != nil {
		return fmt.Errorf("unsubscribing from %s: %w", w.topic, err)
	}
	return nil
}

// PowerWatcher submits a scan for every power-state message, except that
// a machine about to sleep gets a name checkpoint instead.
type PowerWatcher struct {
	topicWatcher
}

// NewPowerWatcher creates a watcher on topic, or on the default power
// event topic when topic is empty.
func NewPowerWatcher(sub Subscriber, topic string, qos byte, sink Sink, logger Logger) *PowerWatcher {
	if topic == "" {
		topic = mqtt.Topics{}.PowerEvent()
	}
	logger = loggerOrNoop(logger)

	w := &PowerWatcher{}
	w.topicWatcher = topicWatcher{
		name:  "power",
		sub:   sub,
		topic: topic,
		qos:   qos,
		handler: func(_ string, payload []byte) error {
			var ev PowerEvent
			if len(payload) > 0 {
				// A bare or non-JSON payload still counts as a power change.
				if err := json.Unmarshal(payload, &ev); err != nil {
					ev.State = strings.TrimSpace(string(payload))
				}
			}
			logger.Info("power state changed", "state", ev.State)
			sink.Submit(powerTrigger(ev.State))
			return nil
		},
	}
	return w
}

func powerTrigger(state string) controller.Trigger {
	switch strings.ToLower(state) {
	case "suspend", "sleep", "hibernate":
		return controller.TriggerPersistNames
	default:
		return controller.TriggerScan
	}
}

// BrightnessWatcher forwards monitor-reported brightness changes.
type BrightnessWatcher struct {
	topicWatcher
}

// NewBrightnessWatcher creates a watcher on topic, or on the default
// brightness event topic when topic is empty.
func NewBrightnessWatcher(sub Subscriber, topic string, qos byte, sink Sink, logger Logger) *BrightnessWatcher {
	if topic == "" {
		topic = mqtt.Topics{}.BrightnessEvent()
	}
	logger = loggerOrNoop(logger)

	w := &BrightnessWatcher{}
	w.topicWatcher = topicWatcher{
		name:  "brightness",
		sub:   sub,
		topic: topic,
		qos:   qos,
		handler: func(_ string, payload []byte) error {
			ev, err := decodeBrightnessEvent(payload)
			if err != nil {
				return err
			}
			logger.Debug("brightness reported",
				"instance_name", ev.InstanceName,
				"brightness", *ev.Brightness,
			)
			sink.Submit(controller.BrightnessChanged(ev.InstanceName, *ev.Brightness))
			return nil
		},
	}
	return w
}

func decodeBrightnessEvent(payload []byte) (BrightnessEvent, error) {
	var ev BrightnessEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if ev.InstanceName == "" {
		return ev, fmt.Errorf("%w: missing instance_name", ErrInvalidPayload)
	}
	if ev.Brightness == nil {
		return ev, fmt.Errorf("%w: missing brightness", ErrInvalidPayload)
	}
	return ev, nil
}

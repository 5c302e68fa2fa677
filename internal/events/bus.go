package events

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "events")

// Emitter is the fire-and-forget side of the bus.
type Emitter interface {
	Emit(name string, payload any)
}

// Handler receives emitted events. A returned error is logged only.
type Handler func(event Event) error

// Bus delivers events to subscribers in emission order.
type Bus struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]Handler
	order    []int

	// emitMu keeps deliveries of one Emit from interleaving with another.
	emitMu sync.Mutex
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[int]Handler)}
}

// Subscribe registers h and returns a function removing it.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	b.handlers[id] = h
	b.order = append(b.order, id)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Emit builds an event and hands it to every subscriber synchronously.
// Failures never reach the caller.
func (b *Bus) Emit(name string, payload any) {
	ev, err := newEvent(name, payload)
	if err != nil {
		log.WithError(err).WithField("event", name).Error("failed to encode payload")
		return
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	b.emitMu.Lock()
	defer b.emitMu.Unlock()
	for _, h := range handlers {
		deliver(h, ev)
	}
}

func deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("event", ev.Name).Errorf("subscriber panicked: %v", r)
		}
	}()
	if err := h(ev); err != nil {
		log.WithError(err).WithField("event", ev.Name).Warn("subscriber failed")
	}
}

// LogSink logs every event at debug level.
func LogSink(logger logrus.FieldLogger) Handler {
	return func(ev Event) error {
		logger.WithFields(logrus.Fields{
			"event":   ev.Name,
			"id":      ev.ID,
			"payload": string(ev.Payload),
		}).Debug("event emitted")
		return nil
	}
}

// ChannelSink forwards events to ch without blocking; a full channel drops
// the event and reports it.
func ChannelSink(ch chan<- Event) Handler {
	return func(ev Event) error {
		select {
		case ch <- ev:
			return nil
		default:
			return fmt.Errorf("subscriber channel full, dropped %s", ev.ID)
		}
	}
}

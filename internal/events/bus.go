// Package events fans sensor status events out to API clients. Each
// subscriber may watch every sensor or only the ones it names.
package events

import (
	"log/slog"
	"sync"

	"github.com/micro-nova/campower/internal/models"
)

const subBufferSize = 8

type subscriber struct {
	ch      chan models.Event
	sensors map[string]struct{} // nil: every sensor
	dropped int
}

func (s *subscriber) wants(name string) bool {
	if s.sensors == nil {
		return true
	}
	_, ok := s.sensors[name]
	return ok
}

// Bus delivers events without blocking the publisher. A subscriber whose
// buffer is full misses the event; the miss is counted.
type Bus struct {
	mu   sync.Mutex
	subs map[string]*subscriber
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]*subscriber)}
}

// Subscribe registers id for events about the named sensors, or about every
// sensor when none are named. Subscribing an id again replaces the previous
// subscription and closes its channel.
func (b *Bus) Subscribe(id string, sensors ...string) <-chan models.Event {
	s := &subscriber{ch: make(chan models.Event, subBufferSize)}
	if len(sensors) > 0 {
		s.sensors = make(map[string]struct{}, len(sensors))
		for _, name := range sensors {
			s.sensors[name] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.subs[id]; ok {
		close(old.ch)
	}
	b.subs[id] = s
	return s.ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(s.ch)
	if s.dropped > 0 {
		slog.Debug("events: subscriber missed events", "id", id, "dropped", s.dropped)
	}
}

// Publish hands ev to every subscriber watching its sensor.
func (b *Bus) Publish(ev models.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		if !s.wants(ev.Sensor.Name) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			s.dropped++
		}
	}
}

// Dropped returns how many events id has missed on a full buffer.
func (b *Bus) Dropped(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.subs[id]; ok {
		return s.dropped
	}
	return 0
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Package events fans application events out to in-process subscribers and
// websocket clients.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event is one published occurrence
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// DefaultBufferSize is the per-subscriber channel capacity
const DefaultBufferSize = 32

// Hub broadcasts events to subscribers. Slow subscribers lose events rather
// than block publishers.
type Hub struct {
	mu         sync.RWMutex
	subs       map[string]chan Event
	bufferSize int
	now        func() time.Time
	log        zerolog.Logger
}

// NewHub creates an event hub
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subs:       make(map[string]chan Event),
		bufferSize: DefaultBufferSize,
		now:        time.Now,
		log:        log.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a subscriber. The returned function unsubscribes and
// closes the channel; calling it more than once is safe.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	id := uuid.NewString()
	ch := make(chan Event, h.bufferSize)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// SubscriberCount returns the number of live subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Emit publishes an untyped event
func (h *Hub) Emit(eventType string, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	h.broadcast(Event{
		ID:        uuid.NewString(),
		Type:      EventType(eventType),
		Timestamp: h.now().UTC(),
		Data:      data,
	})
}

// Emitter accepts untyped events. Hub implements it, as do test doubles.
type Emitter interface {
	Emit(eventType string, data map[string]interface{})
}

// Publish sends typed data through e. A nil emitter or nil data is a no-op.
func Publish(e Emitter, data EventData) {
	if e == nil || data == nil {
		return
	}
	e.Emit(string(data.EventType()), ToMap(data))
}

func (h *Hub) broadcast(evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- evt:
		default:
			h.log.Debug().Str("subscriber", id).Str("type", string(evt.Type)).Msg("Subscriber buffer full, dropping event")
		}
	}

	h.log.Debug().Str("type", string(evt.Type)).Int("subscribers", len(h.subs)).Msg("Event published")
}

// Package events is a small fan-out hub for broadcasting sync-engine
// messages to every connected observer (an SSE client, a local
// in-process watcher, etc.), adapted from a per-client channel
// registry into one keyed by canvasmodel-facing transport.Message
// values instead of raw MCP responses.
package events

import (
	"log/slog"
	"sync"

	"canvas-sync/internal/transport"
)

// Hub fans a stream of transport.Message values out to any number of
// registered subscribers. A slow subscriber's channel fills and drops
// the oldest backlog rather than blocking the publisher.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]chan transport.Message
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]chan transport.Message)}
}

// Register adds a new subscriber identified by id, with the given
// channel buffer depth, and returns the channel to read from.
func (h *Hub) Register(id string, buffer int) <-chan transport.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan transport.Message, buffer)
	h.subs[id] = ch
	slog.Info("events: subscriber registered", "component", "events", "id", id)
	return ch
}

// Unregister removes and closes id's channel.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		close(ch)
		delete(h.subs, id)
		slog.Info("events: subscriber unregistered", "component", "events", "id", id)
	}
}

// Publish broadcasts msg to every current subscriber. A subscriber
// whose channel is full has its oldest pending message dropped to
// make room, trading completeness for a broadcaster that never
// blocks on a stalled client.
func (h *Hub) Publish(msg transport.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- msg:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- msg:
			default:
				slog.Warn("events: subscriber channel saturated, dropping message", "component", "events", "id", id)
			}
		}
	}
}

// Count returns the current subscriber count, for diagnostics.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

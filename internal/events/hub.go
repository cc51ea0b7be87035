// hub.go
//
// A persistence core for headless content types and their relations
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of contentdb.
// contentdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// contentdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with contentdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

// Package events is the process-wide publish/subscribe hub for persistence events.
package events

import (
	"context"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/localnerve/contentdb/internal/metrics"
	"github.com/localnerve/contentdb/internal/schema"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Event names
const (
	EntryCreate    = "entry.create"
	EntryUpdate    = "entry.update"
	EntryDelete    = "entry.delete"
	EntryPublish   = "entry.publish"
	EntryUnpublish = "entry.unpublish"
	MediaCreate    = "media.create"
	MediaUpdate    = "media.update"
	MediaDelete    = "media.delete"

	// All subscribes to every event
	All = "*"
)

// Event is one emitted notification
type Event struct {
	ID        string         `json:"id"`
	Name      string         `json:"event"`
	Model     string         `json:"model,omitempty"`
	Entry     map[string]any `json:"entry,omitempty"`
	Timestamp time.Time      `json:"createdAt"`
}

// Handler receives events. Handlers run synchronously on the emitting goroutine.
type Handler func(ctx context.Context, ev Event)

type subscription struct {
	id      uint64
	event   string
	handler Handler
	once    bool
}

// Hub dispatches events to subscribers in registration order
type Hub struct {
	mu      sync.Mutex
	subs    []*subscription
	nextID  uint64
	entropy io.Reader

	sanitizer *Sanitizer
	log       *zap.Logger
}

// NewHub creates a hub. A nil sanitizer emits entries unchanged.
func NewHub(sanitizer *Sanitizer, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Hub{
		entropy:   ulid.Monotonic(src, 0),
		sanitizer: sanitizer,
		log:       log,
	}
}

// On subscribes handler to event and returns a func that unsubscribes it
func (h *Hub) On(event string, handler Handler) func() {
	return h.subscribe(event, handler, false)
}

// Once subscribes handler for a single delivery
func (h *Hub) Once(event string, handler Handler) func() {
	return h.subscribe(event, handler, true)
}

func (h *Hub) subscribe(event string, handler Handler, once bool) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &subscription{id: h.nextID, event: event, handler: handler, once: once}
	h.subs = append(h.subs, sub)
	return func() { h.remove(sub.id) }
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, s := range h.subs {
		if s.id == id {
			h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
			return
		}
	}
}

// Off removes every handler subscribed to event
func (h *Hub) Off(event string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.subs[:0:0]
	for _, s := range h.subs {
		if s.event != event {
			kept = append(kept, s)
		}
	}
	h.subs = kept
}

// Emit stamps the event and delivers it to matching handlers in FIFO
// registration order. Once handlers are claimed under the lock so concurrent
// emits deliver them at most one time. A panicking handler is logged and skipped.
func (h *Hub) Emit(ctx context.Context, ev Event) {
	h.mu.Lock()
	if ev.ID == "" {
		ev.ID = ulid.MustNew(ulid.Timestamp(time.Now()), h.entropy).String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	var targets []*subscription
	kept := h.subs[:0:0]
	for _, s := range h.subs {
		matched := s.event == ev.Name || s.event == All
		if matched {
			targets = append(targets, s)
		}
		if !(matched && s.once) {
			kept = append(kept, s)
		}
	}
	h.subs = kept
	h.mu.Unlock()

	metrics.RecordEvent(ev.Name)
	for _, s := range targets {
		h.deliver(ctx, s, ev)
	}
}

func (h *Hub) deliver(ctx context.Context, s *subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("Event handler panicked",
				zap.String("event", ev.Name),
				zap.String("eventId", ev.ID),
				zap.Any("panic", r))
		}
	}()
	s.handler(ctx, ev)
}

// EmitEntry sanitizes entry against the model and emits it under name
func (h *Hub) EmitEntry(ctx context.Context, name string, model *schema.Model, entry map[string]any) {
	if h.sanitizer != nil {
		entry = h.sanitizer.Sanitize(model, entry)
	}
	h.Emit(ctx, Event{Name: name, Model: model.UID, Entry: entry})
}

// Listeners returns the number of handlers subscribed to event, counting wildcard subscribers
func (h *Hub) Listeners(event string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, s := range h.subs {
		if s.event == event || s.event == All {
			n++
		}
	}
	return n
}

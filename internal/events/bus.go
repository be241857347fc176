// Package events carries cart change notifications between cart
// coordinators. A coordinator never talks to another one directly: it
// publishes on a Bus and listens on the same Bus, so the transport can be an
// in-process fan-out (LocalBus) or a broker shared by several replicas
// (RedisBus).
package events

import (
	"context"
	"encoding/json"
	"sync"
)

// Kind distinguishes the two change signals a coordinator reacts to.
type Kind string

const (
	// KindLocal tells the context that raised it to re-read the canonical
	// cart from its storage. It carries no payload and never leaves the
	// process.
	KindLocal Kind = "local"
	// KindStorage announces a write to storage and carries the new
	// serialized cart document.
	KindStorage Kind = "storage"
)

// Event is one change notification for a storage key.
type Event struct {
	Kind    Kind            `json:"kind"`
	Key     string          `json:"key"`
	Origin  string          `json:"origin,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Handler receives events for a subscribed key.
type Handler func(Event)

// Bus is a keyed publish/subscribe channel.
//
// Handlers may be invoked on the publisher's goroutine; a handler must not
// block and must not publish while holding locks its own publisher needs.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(key string, fn Handler) (cancel func())
}

// LocalBus delivers events synchronously to subscribers in this process.
// It is safe for concurrent use.
type LocalBus struct {
	mu   sync.RWMutex
	next uint64
	subs map[string]map[uint64]Handler
}

// NewLocalBus returns an empty in-process bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[string]map[uint64]Handler)}
}

// Publish delivers ev to every handler subscribed to ev.Key.
func (b *LocalBus) Publish(_ context.Context, ev Event) error {
	b.mu.RLock()
	hs := make([]Handler, 0, len(b.subs[ev.Key]))
	for _, h := range b.subs[ev.Key] {
		hs = append(hs, h)
	}
	b.mu.RUnlock()

	for _, h := range hs {
		h(ev)
	}
	return nil
}

// Subscribe registers fn for key. The returned cancel func is idempotent.
func (b *LocalBus) Subscribe(key string, fn Handler) func() {
	b.mu.Lock()
	b.next++
	id := b.next
	if b.subs[key] == nil {
		b.subs[key] = make(map[uint64]Handler)
	}
	b.subs[key][id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[key], id)
			if len(b.subs[key]) == 0 {
				delete(b.subs, key)
			}
			b.mu.Unlock()
		})
	}
}

// Subscribers reports how many handlers are registered for key.
func (b *LocalBus) Subscribers(key string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[key])
}

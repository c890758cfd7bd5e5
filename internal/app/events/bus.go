// Package events is an explicit subscriber registry for cross-cutting
// session events. Subscriptions are handed back to the caller and
// unsubscribe deterministically; there is no process-wide implicit channel.
package events

import (
	"sync"

	"github.com/keeperstack/wallet_bridge/internal/app/domain/connect"
)

// Kind discriminates session events.
type Kind string

const (
	SessionCommitted Kind = "session_committed"
	SessionRemoved   Kind = "session_removed"
)

// Event is one session lifecycle notification.
type Event struct {
	Kind     Kind
	WalletID string
	Origin   string
	App      connect.ConnectedApp // populated for SessionCommitted
}

// Subscription is a live registration on the bus.
type Subscription struct {
	bus *Bus
	id  int
	fn  func(Event)
}

// Unsubscribe removes the subscription. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
}

// Bus fans session events out to subscribers. Delivery happens on the
// publisher's goroutine; handlers must not block.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*Subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*Subscription)}
}

// Subscribe registers a handler and returns its subscription.
func (b *Bus) Subscribe(fn func(Event)) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{bus: b, id: b.nextID, fn: fn}
	b.subs[sub.id] = sub
	return sub
}

// Publish delivers the event to every current subscriber.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	handlers := make([]func(Event), 0, len(b.subs))
	for _, sub := range b.subs {
		handlers = append(handlers, sub.fn)
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

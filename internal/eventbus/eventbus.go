// Package eventbus multicasts swap status transitions to subscribers: a
// thin fan-out over Go channels, with no external transport of its own.
// Whatever serves the outside world (gRPC stream, REST long-poll,
// websocket) owns one subscription and translates from there.
package eventbus

import (
	"sync"
	"time"

	"github.com/klingon-exchange/swapcore/internal/nursery"
	"github.com/klingon-exchange/swapcore/pkg/logging"
)

// StatusEvent is one swap's transition to a new status, as published by
// the nursery dispatcher.
type StatusEvent struct {
	SwapID    string
	Kind      nursery.Kind
	Status    nursery.Status
	Timestamp time.Time
}

const defaultSubscriberBuffer = 32

// Bus is the multicast hub. The zero value is not usable; construct with
// New.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan StatusEvent
	next int
	log  *logging.Logger
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{
		subs: make(map[int]chan StatusEvent),
		log:  logging.GetDefault().Component("eventbus"),
	}
}

// Subscribe registers a new subscriber and returns its event channel and
// an unsubscribe function. The channel is buffered; a slow subscriber
// that falls behind has events dropped for it rather than blocking
// Publish, since the nursery calls Publish from its own serialized
// per-kind worker goroutine and must never stall on a subscriber.
func (b *Bus) Subscribe() (<-chan StatusEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan StatusEvent, defaultSubscriberBuffer)
	b.subs[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, unsubscribe
}

// Publish fans ev out to every current subscriber. Subscribers whose
// buffer is full are skipped and logged rather than blocked on.
func (b *Bus) Publish(ev StatusEvent) {
	b.mu.Lock()
	subs := make([]chan StatusEvent, 0, len(b.subs))
	for _, ch := range b.subs {
		subs = append(subs, ch)
	}
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			b.log.Warn("dropping status event for slow subscriber", "swapId", ev.SwapID, "status", string(ev.Status))
		}
	}
}

// Close unsubscribes every current subscriber, closing their channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

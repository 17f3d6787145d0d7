package event

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"dash_go/internal/domain"
)

// Handler receives every payload published on a subscribed channel. Handlers
// run synchronously on the publishing goroutine, in subscription order, so a
// widget's update always sees the cache state that the triggering message
// produced.
type Handler func(payload any)

// Subscription is the handle returned by Subscribe; pass it to Unsubscribe.
type Subscription struct {
	Channel domain.Channel
	id      uint64
	fn      Handler
}

// Bus fans incoming channel payloads out to every current subscriber.
//
// Publish iterates a snapshot of the subscriber list, so handlers may
// subscribe or unsubscribe during delivery without corrupting iteration. A
// panicking handler is recovered and logged; remaining handlers still run and
// the publisher never sees the failure.
type Bus struct {
	mu     sync.RWMutex
	subs   map[domain.Channel][]*Subscription
	nextID atomic.Uint64

	published atomic.Uint64
	recovered atomic.Uint64
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[domain.Channel][]*Subscription),
	}
}

// Subscribe registers a handler for a channel and returns its handle.
// Handlers are invoked in subscription order.
func (b *Bus) Subscribe(ch domain.Channel, fn Handler) *Subscription {
	sub := &Subscription{
		Channel: ch,
		id:      b.nextID.Add(1),
		fn:      fn,
	}

	b.mu.Lock()
	b.subs[ch] = append(b.subs[ch], sub)
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription. Unknown handles are a no-op.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[sub.Channel]
	for i, s := range list {
		if s.id == sub.id {
			b.subs[sub.Channel] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish delivers payload to all current subscribers of the channel,
// synchronously and in subscription order.
func (b *Bus) Publish(ch domain.Channel, payload any) {
	b.published.Add(1)

	b.mu.RLock()
	snapshot := make([]*Subscription, len(b.subs[ch]))
	copy(snapshot, b.subs[ch])
	b.mu.RUnlock()

	for _, sub := range snapshot {
		b.deliver(ch, sub, payload)
	}
}

// deliver invokes one handler with panic isolation.
func (b *Bus) deliver(ch domain.Channel, sub *Subscription, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.recovered.Add(1)
			slog.Error("Subscriber panicked",
				slog.String("channel", string(ch)),
				slog.Uint64("subscription", sub.id),
				slog.Any("panic", r),
			)
		}
	}()
	sub.fn(payload)
}

// SubscriberCount returns the number of current subscribers for a channel.
func (b *Bus) SubscriberCount(ch domain.Channel) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[ch])
}

// Stats returns total publishes and recovered handler panics.
func (b *Bus) Stats() (published, recovered uint64) {
	return b.published.Load(), b.recovered.Load()
}

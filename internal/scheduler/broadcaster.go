package scheduler

import (
	"log/slog"
	"sync"
)

// Subscription is a stream of Status snapshots.
type Subscription struct {
	C  <-chan Status
	ch chan Status
	id int
}

// Broadcaster fans Status snapshots out to subscribers.
//
// Each subscriber channel holds at most one value. A slow subscriber never
// blocks Publish; it just sees the latest snapshot when it reads again.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[int]*Subscription
	nextID int
	latest *Status
	logger *slog.Logger
}

// NewBroadcaster creates a Broadcaster with no subscribers.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subs:   make(map[int]*Subscription),
		logger: logger,
	}
}

// Subscribe registers a new subscriber.
// The channel is closed by Unsubscribe.
func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	b.nextID++
	ch := make(chan Status, 1)
	sub := &Subscription{C: ch, ch: ch, id: b.nextID}
	b.subs[sub.id] = sub
	count := len(b.subs)
	b.mu.Unlock()

	b.logger.Debug("status subscriber added", "subscriber", sub.id, "total", count)
	return sub
}

// Unsubscribe removes sub and closes its channel. Safe to call twice.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	_, exists := b.subs[sub.id]
	if exists {
		delete(b.subs, sub.id)
		close(sub.ch)
	}
	count := len(b.subs)
	b.mu.Unlock()

	if exists {
		b.logger.Debug("status subscriber removed", "subscriber", sub.id, "total", count)
	}
}

// Publish delivers st to every subscriber, replacing any unread value.
func (b *Broadcaster) Publish(st Status) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest = &st
	for _, sub := range b.subs {
		// Drop the stale value, if any, then send. Both steps are
		// non-blocking and the write lock keeps other publishers out.
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- st:
		default:
		}
	}
}

// Latest returns the most recently published Status.
func (b *Broadcaster) Latest() (Status, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.latest == nil {
		return Status{}, false
	}
	return *b.latest, true
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

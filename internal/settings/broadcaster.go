// ABOUTME: In-memory fan-out of settings snapshots to subscribed views
// ABOUTME: Latest-wins delivery: each subscriber holds at most one pending snapshot

package settings

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// broadcaster delivers snapshots to subscribers without ever blocking the
// publisher. A subscriber that has not read the previous snapshot gets it
// replaced by the newer one.
type broadcaster struct {
	mu          sync.Mutex
	subscribers map[string]chan Settings // subID -> ch
	stops       map[string]func() bool   // subID -> context.AfterFunc stop
	closed      bool
	logger      *slog.Logger
}

func newBroadcaster(logger *slog.Logger) *broadcaster {
	return &broadcaster{
		subscribers: make(map[string]chan Settings),
		stops:       make(map[string]func() bool),
		logger:      logger,
	}
}

// subscribe registers a subscriber. The subscription is removed and its
// channel closed when ctx is cancelled.
func (b *broadcaster) subscribe(ctx context.Context) (<-chan Settings, string) {
	subID := uuid.New().String()
	ch := make(chan Settings, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	b.subscribers[subID] = ch
	// Registered under the lock so unsubscribe always finds the stop func.
	b.stops[subID] = context.AfterFunc(ctx, func() { b.unsubscribe(subID) })
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	return ch, subID
}

// publish hands snap to every subscriber. Holding the lock across the sends
// keeps publishes ordered; every send is non-blocking.
func (b *broadcaster) publish(snap Settings) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- snap.Clone():
			continue
		default:
		}

		// Pending snapshot is stale; swap it for the newest one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap.Clone():
		default:
			b.logger.Debug("dropped snapshot for subscriber", "sub_id", id)
		}
	}
}

func (b *broadcaster) unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[subID]
	if !ok {
		return
	}
	delete(b.subscribers, subID)
	close(ch)
	b.stopLocked(subID)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

func (b *broadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subID, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, subID)
		b.stopLocked(subID)
	}
	b.closed = true
}

func (b *broadcaster) stopLocked(subID string) {
	if stop, ok := b.stops[subID]; ok {
		stop()
		delete(b.stops, subID)
	}
}

package realtime

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"vitamora/internal/observability"
)

const memoryBufferSize = 256

// MemoryBroker fans changes out in-process. It stands in for Redis in tests
// and single-instance deployments.
type MemoryBroker struct {
	mu   sync.RWMutex
	subs map[*memorySub]struct{}
}

type memorySub struct {
	table string
	types []EventType
	queue *lagQueue
	done  chan struct{}
}

// NewMemoryBroker creates an empty in-process broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[*memorySub]struct{})}
}

// Publish never blocks. A subscriber whose buffer is full misses the change
// and is sent a RESYNC ahead of the next one it does receive.
func (b *MemoryBroker) Publish(_ context.Context, change Change) error {
	if change.CommittedAt.IsZero() {
		change.CommittedAt = time.Now().UTC()
	}
	observability.RealtimeEventsTotal.WithLabelValues(change.Table, string(change.Type)).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if !change.Matches(s.table, s.types) {
			continue
		}
		s.queue.offer(change)
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, table string, types []EventType, fn Handler) (Subscription, error) {
	s := &memorySub{
		table: table,
		types: types,
		queue: newLagQueue("memory broker", memoryBufferSize),
		done:  make(chan struct{}),
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	sub := newSubscription(func() {
		b.mu.Lock()
		delete(b.subs, s)
		b.mu.Unlock()
		close(s.done)
	})

	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case change := <-s.queue.ch:
				s.queue.deliver(fn, change)
			}
		}
	}()
	return sub, nil
}

// deliver isolates handler panics from the subscription loop.
func deliver(fn Handler, change Change) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in realtime handler", "table", change.Table, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn(change)
}

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"vitamora/internal/observability"

	"github.com/redis/go-redis/v9"
)

// ChannelPrefix prefixes the Redis pub/sub channel of each table.
const ChannelPrefix = "realtime:"

const redisBufferSize = 256

// RedisBroker publishes changes on realtime:<table> so every API instance sees them.
type RedisBroker struct {
	rdb *redis.Client
}

// NewRedisBroker creates a broker on rdb, which must be non-nil.
func NewRedisBroker(rdb *redis.Client) *RedisBroker {
	return &RedisBroker{rdb: rdb}
}

// Channel returns the Redis channel carrying a table's changes.
func Channel(table string) string {
	return ChannelPrefix + table
}

func (b *RedisBroker) Publish(ctx context.Context, change Change) error {
	if change.CommittedAt.IsZero() {
		change.CommittedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := b.rdb.Publish(ctx, Channel(change.Table), payload).Err(); err != nil {
		return err
	}
	observability.RealtimeEventsTotal.WithLabelValues(change.Table, string(change.Type)).Inc()
	return nil
}

// Subscribe returns once Redis has confirmed the subscription, so no change
// published afterwards is missed.
func (b *RedisBroker) Subscribe(ctx context.Context, table string, types []EventType, fn Handler) (Subscription, error) {
	ps := b.rdb.Subscribe(ctx, Channel(table))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", table, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := newSubscription(func() {
		cancel()
		_ = ps.Close()
	})
	queue := newLagQueue("redis broker", redisBufferSize)
	ch := ps.Channel()

	// The pump keeps go-redis's channel drained so overflow is seen here,
	// where it can be turned into a RESYNC, instead of being dropped silently.
	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					slog.Warn("invalid realtime payload", "channel", msg.Channel, "error", err)
					continue
				}
				if change.Matches(table, types) {
					queue.offer(change)
				}
			}
		}
	}()

	go func() {
		for {
			select {
			case <-subCtx.Done():
				return
			case change := <-queue.ch:
				queue.deliver(fn, change)
			}
		}
	}()
	return sub, nil
}

// Package realtime carries row-change events from writers to subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"
)

// EventType is the kind of row change.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
	// EventResync tells a subscriber it missed events and should re-read.
	// It is delivered regardless of the subscribed types.
	EventResync EventType = "RESYNC"
)

// AllTables addresses every table in a RESYNC change.
const AllTables = "*"

// RESYNC reasons, carried in Record["reason"].
const (
	// ReasonBufferFull means changes were dropped because the subscriber fell behind.
	ReasonBufferFull = "buffer_full"
	// ReasonDisconnected means the subscription's transport went away; no
	// further changes arrive on it.
	ReasonDisconnected = "disconnected"
)

// ResyncChange builds the RESYNC a subscriber receives when it may have missed changes.
func ResyncChange(reason string) Change {
	return Change{
		Table:       AllTables,
		Type:        EventResync,
		Record:      map[string]any{"reason": reason},
		CommittedAt: time.Now().UTC(),
	}
}

// Change is one committed row change. Record holds the raw columns, with no
// joined data; OldRecord is set for UPDATE and DELETE when known.
type Change struct {
	Table       string         `json:"table"`
	Type        EventType      `json:"type"`
	Record      map[string]any `json:"record,omitempty"`
	OldRecord   map[string]any `json:"old_record,omitempty"`
	CommittedAt time.Time      `json:"commit_timestamp"`
}

// ResyncReason returns the reason of a RESYNC, or "" for any other change.
func (c Change) ResyncReason() string {
	if c.Type != EventResync {
		return ""
	}
	reason, _ := c.Record["reason"].(string)
	return reason
}

// RecordID returns Record["id"] as a uint, or 0 when absent.
func (c Change) RecordID() uint {
	return uintField(c.Record, "id")
}

// RecordUint reads a numeric column from Record.
func (c Change) RecordUint(column string) uint {
	return uintField(c.Record, column)
}

// Matches reports whether a subscriber of table/types should receive c.
// An empty types list means every type.
func (c Change) Matches(table string, types []EventType) bool {
	if c.Type == EventResync {
		return c.Table == table || c.Table == AllTables
	}
	if c.Table != table {
		return false
	}
	return len(types) == 0 || slices.Contains(types, c.Type)
}

func uintField(m map[string]any, key string) uint {
	switch v := m[key].(type) {
	case float64:
		if v > 0 {
			return uint(v)
		}
	case int:
		if v > 0 {
			return uint(v)
		}
	case int64:
		if v > 0 {
			return uint(v)
		}
	case uint:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil && n > 0 {
			return uint(n)
		}
	}
	return 0
}

// RecordFromModel flattens a model into its JSON column map.
func RecordFromModel(v any) map[string]any {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}

// Handler receives matching changes on a goroutine owned by the subscription.
type Handler func(Change)

// Subscription is a live registration. Unsubscribe may be called any number of times.
type Subscription interface {
	Unsubscribe()
}

// Publisher emits changes.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

// Subscriber registers handlers for one table.
type Subscriber interface {
	Subscribe(ctx context.Context, table string, types []EventType, fn Handler) (Subscription, error)
}

// Broker is both ends of the channel.
type Broker interface {
	Publisher
	Subscriber
}

type subscription struct {
	once   sync.Once
	cancel func()
}

func newSubscription(cancel func()) *subscription {
	return &subscription{cancel: cancel}
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

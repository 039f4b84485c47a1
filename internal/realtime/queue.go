package realtime

import (
	"log/slog"
	"sync/atomic"

	"vitamora/internal/observability"
)

// lagQueue buffers changes between a broker and one handler. A change that
// does not fit marks the queue lagged; the next change handed to the handler
// is preceded by a RESYNC so it can re-read what it missed.
type lagQueue struct {
	name   string
	ch     chan Change
	lagged atomic.Bool
}

func newLagQueue(name string, size int) *lagQueue {
	return &lagQueue{name: name, ch: make(chan Change, size)}
}

// offer never blocks.
func (q *lagQueue) offer(change Change) bool {
	select {
	case q.ch <- change:
		return true
	default:
		if !q.lagged.Swap(true) {
			slog.Warn("realtime subscriber buffer full, dropping changes until it catches up",
				"broker", q.name, "table", change.Table, "type", change.Type)
		}
		observability.WebSocketBackpressureDrops.WithLabelValues(q.name, "full").Inc()
		return false
	}
}

func (q *lagQueue) deliver(fn Handler, change Change) {
	if q.lagged.Swap(false) {
		deliver(fn, ResyncChange(ReasonBufferFull))
	}
	deliver(fn, change)
}

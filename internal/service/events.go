// Package service holds the data-plane business rules between handlers and repositories.
package service

import (
	"context"
	"log/slog"
	"time"

	"vitamora/internal/models"
	"vitamora/internal/realtime"
)

// publish emits a change after a committed write. The write already
// succeeded, so a broker failure is logged and swallowed.
func publish(ctx context.Context, pub realtime.Publisher, table string, typ realtime.EventType, record, old map[string]any) {
	if pub == nil {
		return
	}
	change := realtime.Change{
		Table:       table,
		Type:        typ,
		Record:      record,
		OldRecord:   old,
		CommittedAt: time.Now().UTC(),
	}
	if err := pub.Publish(ctx, change); err != nil {
		slog.WarnContext(ctx, "realtime publish failed", "table", table, "type", typ, "error", err)
	}
}

// postRecord returns the raw columns of p, without joined or viewer-specific fields.
func postRecord(p *models.Post) map[string]any {
	row := *p
	row.Author = nil
	rec := realtime.RecordFromModel(row)
	delete(rec, "liked")
	return rec
}

func commentRecord(c *models.Comment) map[string]any {
	row := *c
	row.Author = nil
	return realtime.RecordFromModel(row)
}

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appctx "rentalcore/internal/core/context"
	"rentalcore/internal/core/id"
	"rentalcore/internal/domain"
)

// AuditEntry is one recorded change.
type AuditEntry struct {
	EntityType string
	EntityID   id.ID
	Action     domain.AuditAction
	UserID     string
	TraceID    string
	Changes    map[string]any
	CreatedAt  time.Time
}

// AuditLog implements domain.AuditRecorder.
type AuditLog struct{ s *Store }

// LogChange appends an entry.
func (l *AuditLog) LogChange(ctx context.Context, entityType string, entityID id.ID, action domain.AuditAction, changes map[string]any) error {
	entry := AuditEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		UserID:     appctx.GetUserID(ctx),
		TraceID:    appctx.GetTraceID(ctx),
		Changes:    changes,
		CreatedAt:  l.s.clock().UTC(),
	}
	l.s.write(ctx, func(d *state) { d.audit = append(d.audit, entry) })
	return nil
}

// Entries returns the history of one entity, oldest first.
func (l *AuditLog) Entries(entityID id.ID) []AuditEntry {
	var out []AuditEntry
	l.s.read(func(d *state) {
		for _, e := range d.audit {
			if e.EntityID == entityID {
				out = append(out, e)
			}
		}
	})
	return out
}

// History implements domain.AuditReader.
func (l *AuditLog) History(_ context.Context, entityType string, entityID id.ID, limit int) ([]domain.AuditHistoryEntry, error) {
	var out []domain.AuditHistoryEntry
	entries := l.Entries(entityID)
	for i := len(entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		e := entries[i]
		if e.EntityType != entityType {
			continue
		}
		changes, err := json.Marshal(e.Changes)
		if err != nil {
			return nil, fmt.Errorf("encode changes: %w", err)
		}
		out = append(out, domain.AuditHistoryEntry{
			Action:    e.Action,
			UserID:    e.UserID,
			Changes:   changes,
			TraceID:   e.TraceID,
			CreatedAt: e.CreatedAt,
		})
	}
	return out, nil
}

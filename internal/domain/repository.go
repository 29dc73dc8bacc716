// Package domain provides core business logic interfaces and types shared by
// the rental domain packages.
package domain

import (
	"context"
	"encoding/json"
	"time"

	"rentalcore/internal/core/id"
)

// --- Filter & Pagination ---

// ListFilter contains common filtering options for list operations.
type ListFilter struct {
	// Search matches name-like fields (case-insensitive substring)
	Search string

	// OrderBy specifies sorting (e.g., "name", "-created_at")
	OrderBy string

	// Pagination
	Limit  int
	Offset int
}

// DefaultListFilter returns sensible defaults.
func DefaultListFilter() ListFilter {
	return ListFilter{
		Limit:   50,
		OrderBy: "-created_at",
	}
}

// Normalize clamps pagination to sane bounds.
func (f *ListFilter) Normalize() {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// --- Side effects ---

// DomainEvent is a fact recorded in the same transaction as the state change
// that produced it. Delivery happens after commit.
type DomainEvent struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// EventPublisher records events for post-commit delivery.
// Publish MUST be called inside a transaction context.
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
}

// AuditAction names an audited operation.
type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionReturn AuditAction = "return"
	AuditActionCancel AuditAction = "cancel"
	AuditActionPay    AuditAction = "payment"
)

// AuditRecorder stores a change history entry per entity.
type AuditRecorder interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action AuditAction, changes map[string]any) error
}

// AuditHistoryEntry is one recorded change as shown to API clients.
type AuditHistoryEntry struct {
	Action    AuditAction     `json:"action"`
	UserID    string          `json:"userId,omitempty"`
	Changes   json.RawMessage `json:"changes"`
	TraceID   string          `json:"traceId,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// AuditReader returns the change history of an entity, newest first.
type AuditReader interface {
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditHistoryEntry, error)
}

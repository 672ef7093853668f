package events

import (
	"time"

	"github.com/spec-kit/service-portal/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventEntityCreated EventType = "entity_created"
	EventStatusChanged EventType = "entity_status_changed"
	EventReplyAdded    EventType = "entity_reply_added"
	EventEntityDeleted EventType = "entity_deleted"
)

// Actor identifies who caused an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Kind      domain.Kind `json:"kind"`
	EntityID  string      `json:"entity_id"`
	DisplayID string      `json:"display_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// EntityCreatedPayload payload.
type EntityCreatedPayload struct {
	Category   domain.Category `json:"category"`
	Title      string          `json:"title"`
	OutletName string          `json:"outlet_name"`
}

// StatusChangedPayload payload.
type StatusChangedPayload struct {
	OldStatus domain.Status `json:"old_status"`
	NewStatus domain.Status `json:"new_status"`
	VisitAt   *time.Time    `json:"visit_at,omitempty"`
}

// ReplyAddedPayload payload.
type ReplyAddedPayload struct {
	EntryID     string        `json:"entry_id"`
	AddedBy     string        `json:"added_by"`
	NotePreview string        `json:"note_preview"`
	Status      domain.Status `json:"status"`
	VisitAt     time.Time     `json:"visit_at"`
	TotalPrice  *float64      `json:"total_price,omitempty"`
}

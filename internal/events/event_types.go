package events

import (
	"time"

	"github.com/spec-kit/opsdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated      EventType = "ticket_created"
	EventTicketTransitioned EventType = "ticket_transitioned"
	EventTicketDeleted      EventType = "ticket_deleted"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Kind      domain.TicketKind `json:"kind"`
	TicketID  string            `json:"ticket_id"`
	Actor     string            `json:"actor"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   any               `json:"payload,omitempty"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title    string                `json:"title"`
	Status   domain.TicketStatus   `json:"status"`
	Priority domain.TicketPriority `json:"priority,omitempty"`
}

// TicketTransitionedPayload payload.
type TicketTransitionedPayload struct {
	OldStatus   domain.TicketStatus `json:"old_status"`
	NewStatus   domain.TicketStatus `json:"new_status"`
	Version     int64               `json:"version"`
	EntryID     string              `json:"entry_id,omitempty"`
	NotePreview string              `json:"note_preview,omitempty"`
}

package dto

import (
	"time"

	"github.com/spec-kit/opsdesk/internal/domain"
)

// ListMeta describes the page returned by a listing.
type ListMeta struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// TicketListResponse wraps a page of tickets.
type TicketListResponse struct {
	Data []domain.Ticket `json:"data"`
	Meta ListMeta        `json:"meta"`
}

// TicketResponse wraps a single ticket record.
type TicketResponse struct {
	Data domain.Ticket `json:"data"`
}

// HistoryResponse lists the history log of one ticket.
type HistoryResponse struct {
	Data []domain.HistoryEntry `json:"data"`
	Meta HistoryMeta           `json:"meta"`
}

// HistoryMeta describes a history projection.
type HistoryMeta struct {
	TicketID string     `json:"ticketId"`
	Order    string     `json:"order"`
	Count    int        `json:"count"`
	Latest   *time.Time `json:"latest,omitempty"`
}

// DeleteResponse acknowledges a hard delete.
type DeleteResponse struct {
	Data DeletedTicket `json:"data"`
}

// DeletedTicket identifies the removed record.
type DeletedTicket struct {
	ID      string            `json:"id"`
	Kind    domain.TicketKind `json:"kind"`
	Deleted bool              `json:"deleted"`
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/spec-kit/opsdesk/internal/domain"
)

var (
	// ErrNotFound is returned when the id does not exist in the kind's partition.
	ErrNotFound = errors.New("ticket not found")
	// ErrConflict is returned when an update was computed from a stale version.
	ErrConflict = errors.New("ticket version conflict")
	// ErrDuplicateID is returned when create reuses an id within a kind.
	ErrDuplicateID = errors.New("ticket id already exists")
)

// TicketRepository encapsulates ticket persistence. Each kind is a separate
// partition; there are no cross-kind queries and no filtering.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, kind domain.TicketKind, id string) (*domain.Ticket, error)
	List(ctx context.Context, kind domain.TicketKind) ([]domain.Ticket, error)
	// Update replaces the stored record when the stored version equals ticket.Version-1.
	Update(ctx context.Context, ticket *domain.Ticket) error
	Delete(ctx context.Context, kind domain.TicketKind, id string) error
	Ping(ctx context.Context) error
}

func encodeTicket(ticket *domain.Ticket) ([]byte, error) {
	data, err := json.Marshal(ticket)
	if err != nil {
		return nil, fmt.Errorf("encode ticket %s: %w", ticket.ID, err)
	}
	return data, nil
}

func decodeTicket(data []byte) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := json.Unmarshal(data, &ticket); err != nil {
		return nil, fmt.Errorf("decode ticket: %w", err)
	}
	if ticket.Images == nil {
		ticket.Images = []string{}
	}
	for i := range ticket.History {
		if ticket.History[i].Images == nil {
			ticket.History[i].Images = []string{}
		}
	}
	return &ticket, nil
}

// sortByCreation orders tickets oldest first with id as tie breaker.
func sortByCreation(tickets []domain.Ticket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		if tickets[i].CreatedAt.Equal(tickets[j].CreatedAt) {
			return tickets[i].ID < tickets[j].ID
		}
		return tickets[i].CreatedAt.Before(tickets[j].CreatedAt)
	})
}

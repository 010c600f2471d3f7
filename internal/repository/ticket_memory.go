package repository

import (
	"context"
	"sync"

	"github.com/spec-kit/opsdesk/internal/domain"
)

type memoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[domain.TicketKind]map[string]domain.Ticket
	order   map[domain.TicketKind][]string
}

// NewMemoryTicketRepository returns a process-local store guarded by a mutex.
func NewMemoryTicketRepository() TicketRepository {
	return &memoryTicketRepository{
		tickets: make(map[domain.TicketKind]map[string]domain.Ticket),
		order:   make(map[domain.TicketKind][]string),
	}
}

func (r *memoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	partition, ok := r.tickets[ticket.Kind]
	if !ok {
		partition = make(map[string]domain.Ticket)
		r.tickets[ticket.Kind] = partition
	}
	if _, exists := partition[ticket.ID]; exists {
		return ErrDuplicateID
	}
	partition[ticket.ID] = ticket.Clone()
	r.order[ticket.Kind] = append(r.order[ticket.Kind], ticket.ID)
	return nil
}

func (r *memoryTicketRepository) GetByID(_ context.Context, kind domain.TicketKind, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ticket, ok := r.tickets[kind][id]
	if !ok {
		return nil, ErrNotFound
	}
	out := ticket.Clone()
	return &out, nil
}

func (r *memoryTicketRepository) List(_ context.Context, kind domain.TicketKind) ([]domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.order[kind]
	result := make([]domain.Ticket, 0, len(ids))
	for _, id := range ids {
		if ticket, ok := r.tickets[kind][id]; ok {
			result = append(result, ticket.Clone())
		}
	}
	return result, nil
}

func (r *memoryTicketRepository) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tickets[ticket.Kind][ticket.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != ticket.Version-1 {
		return ErrConflict
	}
	r.tickets[ticket.Kind][ticket.ID] = ticket.Clone()
	return nil
}

func (r *memoryTicketRepository) Delete(_ context.Context, kind domain.TicketKind, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tickets[kind][id]; !ok {
		return ErrNotFound
	}
	delete(r.tickets[kind], id)
	ids := r.order[kind]
	for i, candidate := range ids {
		if candidate == id {
			r.order[kind] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memoryTicketRepository) Ping(context.Context) error {
	return nil
}

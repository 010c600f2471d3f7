package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/opsdesk/internal/domain"
)

// Paging bounds for ticket listings.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Sort keys accepted by QueryTickets. A leading "-" reverses the order.
const (
	SortCreatedAt = "createdAt"
	SortUpdatedAt = "updatedAt"
	SortStatus    = "status"
)

// TicketQuery narrows and orders a ticket listing.
type TicketQuery struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Search     string
	Sort       string
	Page       int
	PageSize   int
}

// TicketPage is one page of a filtered listing.
type TicketPage struct {
	Items    []domain.Ticket
	Total    int
	Page     int
	PageSize int
}

// TicketStats summarises the tickets of one kind.
type TicketStats struct {
	Kind        domain.TicketKind             `json:"kind"`
	Total       int                           `json:"total"`
	ByStatus    map[domain.TicketStatus]int   `json:"byStatus"`
	ByPriority  map[domain.TicketPriority]int `json:"byPriority,omitempty"`
	LastUpdated *time.Time                    `json:"lastUpdated,omitempty"`
}

// QueryTickets lists tickets of a kind, then filters, sorts and pages them.
func (s *TicketService) QueryTickets(ctx context.Context, kind domain.TicketKind, query TicketQuery) (TicketPage, error) {
	tickets, err := s.ListTickets(ctx, kind)
	if err != nil {
		return TicketPage{}, err
	}
	return ApplyQuery(tickets, query), nil
}

// Stats counts tickets per status and, for kinds with priorities, per priority.
func (s *TicketService) Stats(ctx context.Context, kind domain.TicketKind) (TicketStats, error) {
	tickets, err := s.ListTickets(ctx, kind)
	if err != nil {
		return TicketStats{}, err
	}
	schema, _ := domain.SchemaFor(kind)
	stats := TicketStats{
		Kind:     kind,
		Total:    len(tickets),
		ByStatus: make(map[domain.TicketStatus]int, len(schema.Statuses)),
	}
	for _, status := range schema.Statuses {
		stats.ByStatus[status] = 0
	}
	if schema.HasPriority {
		stats.ByPriority = make(map[domain.TicketPriority]int, len(domain.Priorities))
		for _, priority := range domain.Priorities {
			stats.ByPriority[priority] = 0
		}
	}
	for i := range tickets {
		t := &tickets[i]
		stats.ByStatus[t.Status]++
		if stats.ByPriority != nil && t.Priority != "" {
			stats.ByPriority[t.Priority]++
		}
		if stats.LastUpdated == nil || t.UpdatedAt.After(*stats.LastUpdated) {
			updated := t.UpdatedAt
			stats.LastUpdated = &updated
		}
	}
	return stats, nil
}

// ApplyQuery filters, sorts and pages tickets in memory. The input slice is not modified.
func ApplyQuery(tickets []domain.Ticket, query TicketQuery) TicketPage {
	search := strings.ToLower(strings.TrimSpace(query.Search))
	filtered := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if len(query.Statuses) > 0 && !containsStatus(query.Statuses, t.Status) {
			continue
		}
		if len(query.Priorities) > 0 && !containsPriority(query.Priorities, t.Priority) {
			continue
		}
		if search != "" && !matchesSearch(t, search) {
			continue
		}
		filtered = append(filtered, t)
	}

	sortTickets(filtered, query.Sort)

	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}

	start := (page - 1) * size
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + size
	if end > len(filtered) {
		end = len(filtered)
	}
	return TicketPage{
		Items:    filtered[start:end],
		Total:    len(filtered),
		Page:     page,
		PageSize: size,
	}
}

func sortTickets(tickets []domain.Ticket, key string) {
	desc := strings.HasPrefix(key, "-")
	field := strings.TrimPrefix(key, "-")
	if field == "" {
		field, desc = SortUpdatedAt, true
	}

	var less func(a, b *domain.Ticket) bool
	switch field {
	case SortCreatedAt:
		less = func(a, b *domain.Ticket) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case SortStatus:
		less = func(a, b *domain.Ticket) bool { return a.Status < b.Status }
	default:
		less = func(a, b *domain.Ticket) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	}
	sort.SliceStable(tickets, func(i, j int) bool {
		if desc {
			return less(&tickets[j], &tickets[i])
		}
		return less(&tickets[i], &tickets[j])
	})
}

func matchesSearch(t domain.Ticket, needle string) bool {
	if strings.Contains(strings.ToLower(t.Title), needle) ||
		strings.Contains(strings.ToLower(t.Description), needle) ||
		strings.Contains(strings.ToLower(t.SiteID), needle) ||
		strings.Contains(strings.ToLower(t.ID), needle) {
		return true
	}
	for _, reporter := range t.Reporters {
		if strings.Contains(strings.ToLower(reporter), needle) {
			return true
		}
	}
	for _, value := range t.Attributes {
		if strings.Contains(strings.ToLower(value), needle) {
			return true
		}
	}
	return false
}

func containsStatus(list []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range list {
		if strings.EqualFold(string(s), string(status)) {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, priority domain.TicketPriority) bool {
	for _, p := range list {
		if strings.EqualFold(string(p), string(priority)) {
			return true
		}
	}
	return false
}

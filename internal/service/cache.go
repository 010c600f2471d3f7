package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/spec-kit/opsdesk/internal/domain"
	"github.com/spec-kit/opsdesk/internal/observability"
)

// TicketCache is an LRU of ticket records with a TTL, keyed by kind and id.
// Entries are cloned on the way in and out so callers never share slices.
type TicketCache struct {
	cache   *expirable.LRU[string, domain.Ticket]
	metrics *observability.Metrics
}

// NewTicketCache returns nil when size is not positive, which disables caching.
func NewTicketCache(size int, ttl time.Duration, metrics *observability.Metrics) *TicketCache {
	if size <= 0 {
		return nil
	}
	return &TicketCache{
		cache:   expirable.NewLRU[string, domain.Ticket](size, nil, ttl),
		metrics: metrics,
	}
}

func cacheKey(kind domain.TicketKind, id string) string {
	return string(kind) + "/" + id
}

// Get returns a cached copy.
func (c *TicketCache) Get(kind domain.TicketKind, id string) (*domain.Ticket, bool) {
	if c == nil {
		return nil, false
	}
	ticket, ok := c.cache.Get(cacheKey(kind, id))
	c.metrics.RecordCacheLookup(ok)
	if !ok {
		return nil, false
	}
	out := ticket.Clone()
	return &out, true
}

// Set stores a copy of ticket.
func (c *TicketCache) Set(ticket *domain.Ticket) {
	if c == nil || ticket == nil {
		return
	}
	c.cache.Add(cacheKey(ticket.Kind, ticket.ID), ticket.Clone())
}

// Delete invalidates an entry.
func (c *TicketCache) Delete(kind domain.TicketKind, id string) {
	if c == nil {
		return
	}
	c.cache.Remove(cacheKey(kind, id))
}

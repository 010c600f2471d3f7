package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/opsdesk/internal/domain"
)

var baseTime = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

func newTicket(kind domain.TicketKind, id string, offset time.Duration) *domain.Ticket {
	created := baseTime.Add(offset)
	return &domain.Ticket{
		ID:        id,
		Kind:      kind,
		Title:     "Mains Failure " + id,
		Status:    domain.StatusOpen,
		SiteID:    "BDO001",
		Reporters: []string{"Teknisi A"},
		Images:    []string{"img-1"},
		Version:   1,
		CreatedAt: created,
		UpdatedAt: created,
		History: []domain.HistoryEntry{{
			ID:          id + "-h1",
			TicketID:    id,
			Date:        created,
			Actor:       "Teknisi A",
			Status:      domain.StatusOpen,
			Description: "Trouble ticket opened",
			Images:      []string{"img-1"},
		}},
	}
}

func nextVersion(ticket *domain.Ticket, status domain.TicketStatus, note string) *domain.Ticket {
	next := ticket.Clone()
	next.Status = status
	next.Version++
	next.UpdatedAt = ticket.UpdatedAt.Add(time.Minute)
	next.History = append(next.History, domain.HistoryEntry{
		ID:          fmt.Sprintf("%s-h%d", ticket.ID, len(ticket.History)+1),
		TicketID:    ticket.ID,
		Date:        next.UpdatedAt,
		Actor:       "Teknisi B",
		Status:      status,
		Description: note,
		Images:      []string{},
	})
	return &next
}

// runTicketRepositoryContract exercises the behavior every backend must share.
func runTicketRepositoryContract(t *testing.T, repo TicketRepository) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		ticket := newTicket(domain.KindTrouble, "tr-1", 0)
		require.NoError(t, repo.Create(ctx, ticket))

		got, err := repo.GetByID(ctx, domain.KindTrouble, "tr-1")
		require.NoError(t, err)
		assert.Equal(t, ticket.Title, got.Title)
		assert.Equal(t, ticket.Reporters, got.Reporters)
		assert.EqualValues(t, 1, got.Version)
		require.Len(t, got.History, 1)
		assert.Equal(t, domain.StatusOpen, got.History[0].Status)
		assert.True(t, ticket.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("duplicate id", func(t *testing.T) {
		err := repo.Create(ctx, newTicket(domain.KindTrouble, "tr-1", 0))
		assert.ErrorIs(t, err, ErrDuplicateID)
	})

	t.Run("kinds are separate partitions", func(t *testing.T) {
		_, err := repo.GetByID(ctx, domain.KindGeneric, "tr-1")
		assert.ErrorIs(t, err, ErrNotFound)
		require.NoError(t, repo.Create(ctx, newTicket(domain.KindGeneric, "tr-1", 0)))
	})

	t.Run("list in creation order", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, newTicket(domain.KindTrouble, "tr-2", time.Minute)))
		require.NoError(t, repo.Create(ctx, newTicket(domain.KindTrouble, "tr-3", 2*time.Minute)))

		tickets, err := repo.List(ctx, domain.KindTrouble)
		require.NoError(t, err)
		require.Len(t, tickets, 3)
		assert.Equal(t, "tr-1", tickets[0].ID)
		assert.Equal(t, "tr-2", tickets[1].ID)
		assert.Equal(t, "tr-3", tickets[2].ID)
		for _, ticket := range tickets {
			assert.Len(t, ticket.History, 1)
		}

		empty, err := repo.List(ctx, domain.KindMaintenance)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("update appends history", func(t *testing.T) {
		current, err := repo.GetByID(ctx, domain.KindTrouble, "tr-2")
		require.NoError(t, err)

		next := nextVersion(current, domain.StatusProcess, "Genset diganti")
		require.NoError(t, repo.Update(ctx, next))

		got, err := repo.GetByID(ctx, domain.KindTrouble, "tr-2")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusProcess, got.Status)
		assert.EqualValues(t, 2, got.Version)
		require.Len(t, got.History, 2)
		assert.Equal(t, domain.StatusOpen, got.History[0].Status)
		assert.Equal(t, domain.StatusProcess, got.History[1].Status)
		assert.Equal(t, "Genset diganti", got.History[1].Description)
	})

	t.Run("stale update conflicts", func(t *testing.T) {
		current, err := repo.GetByID(ctx, domain.KindTrouble, "tr-3")
		require.NoError(t, err)

		first := nextVersion(current, domain.StatusProcess, "first writer")
		second := nextVersion(current, domain.StatusClosed, "second writer")
		require.NoError(t, repo.Update(ctx, first))
		assert.ErrorIs(t, repo.Update(ctx, second), ErrConflict)

		got, err := repo.GetByID(ctx, domain.KindTrouble, "tr-3")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusProcess, got.Status)
		assert.Len(t, got.History, 2)
	})

	t.Run("update missing", func(t *testing.T) {
		ghost := nextVersion(newTicket(domain.KindTrouble, "ghost", 0), domain.StatusProcess, "nobody")
		assert.ErrorIs(t, repo.Update(ctx, ghost), ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, domain.KindTrouble, "tr-1"))
		_, err := repo.GetByID(ctx, domain.KindTrouble, "tr-1")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = repo.GetByID(ctx, domain.KindGeneric, "tr-1")
		assert.NoError(t, err, "other kinds are untouched")

		assert.ErrorIs(t, repo.Delete(ctx, domain.KindTrouble, "tr-1"), ErrNotFound)

		tickets, err := repo.List(ctx, domain.KindTrouble)
		require.NoError(t, err)
		assert.Len(t, tickets, 2)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, repo.Ping(ctx))
	})
}

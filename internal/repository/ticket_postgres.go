package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/opsdesk/internal/domain"
)

type postgresTicketRepository struct {
	pool    *pgxpool.Pool
	history ticketHistoryRows
}

// NewPostgresTicketRepository instantiates the pgx backed store.
func NewPostgresTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &postgresTicketRepository{pool: pool}
}

func (r *postgresTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (kind, id, version, status, document, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (kind, id) DO NOTHING`
	doc, err := encodeTicket(withoutHistory(ticket))
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, query,
			ticket.Kind,
			ticket.ID,
			ticket.Version,
			ticket.Status,
			doc,
			ticket.CreatedAt,
			ticket.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrDuplicateID
		}
		for i, entry := range ticket.History {
			if err := r.history.insert(ctx, tx, ticket.Kind, i, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *postgresTicketRepository) GetByID(ctx context.Context, kind domain.TicketKind, id string) (*domain.Ticket, error) {
	const query = `SELECT document FROM tickets WHERE kind=$1 AND id=$2`
	var doc []byte
	if err := r.pool.QueryRow(ctx, query, kind, id).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	ticket, err := decodeTicket(doc)
	if err != nil {
		return nil, err
	}
	if ticket.History, err = r.history.listByTicket(ctx, r.pool, kind, id); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *postgresTicketRepository) List(ctx context.Context, kind domain.TicketKind) ([]domain.Ticket, error) {
	const query = `SELECT document FROM tickets WHERE kind=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		ticket, err := decodeTicket(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	entries, err := r.history.listByKind(ctx, r.pool, kind)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].History = entries[result[i].ID]
	}
	return result, nil
}

func (r *postgresTicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET version=$1, status=$2, document=$3, updated_at=$4
        WHERE kind=$5 AND id=$6 AND version=$7`
	doc, err := encodeTicket(withoutHistory(ticket))
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, query,
			ticket.Version,
			ticket.Status,
			doc,
			ticket.UpdatedAt,
			ticket.Kind,
			ticket.ID,
			ticket.Version-1,
		)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return r.missingOrStale(ctx, tx, ticket.Kind, ticket.ID)
		}

		stored, err := r.history.count(ctx, tx, ticket.Kind, ticket.ID)
		if err != nil {
			return err
		}
		if len(ticket.History) < stored {
			return fmt.Errorf("ticket %s: history would shrink from %d to %d entries", ticket.ID, stored, len(ticket.History))
		}
		for i := stored; i < len(ticket.History); i++ {
			if err := r.history.insert(ctx, tx, ticket.Kind, i, ticket.History[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *postgresTicketRepository) Delete(ctx context.Context, kind domain.TicketKind, id string) error {
	const query = `DELETE FROM tickets WHERE kind=$1 AND id=$2`
	cmd, err := r.pool.Exec(ctx, query, kind, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresTicketRepository) Ping(ctx context.Context) error {
	if r.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return r.pool.Ping(ctx)
}

func (r *postgresTicketRepository) missingOrStale(ctx context.Context, db dbtx, kind domain.TicketKind, id string) error {
	const query = `SELECT EXISTS (SELECT 1 FROM tickets WHERE kind=$1 AND id=$2)`
	var exists bool
	if err := db.QueryRow(ctx, query, kind, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrConflict
	}
	return ErrNotFound
}

func withoutHistory(ticket *domain.Ticket) *domain.Ticket {
	out := *ticket
	out.History = nil
	return &out
}

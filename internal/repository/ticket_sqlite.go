package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/spec-kit/opsdesk/internal/domain"
)

type sqliteTicketRepository struct {
	db *sql.DB
}

// NewSQLiteTicketRepository stores whole ticket documents in a single table.
func NewSQLiteTicketRepository(db *sql.DB) TicketRepository {
	return &sqliteTicketRepository{db: db}
}

func (r *sqliteTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT OR IGNORE INTO tickets (kind, id, seq, version, document, created_at)
        VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM tickets WHERE kind = ?), ?, ?, ?)`
	doc, err := encodeTicket(ticket)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query,
		string(ticket.Kind),
		ticket.ID,
		string(ticket.Kind),
		ticket.Version,
		string(doc),
		ticket.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrDuplicateID
	}
	return nil
}

func (r *sqliteTicketRepository) GetByID(ctx context.Context, kind domain.TicketKind, id string) (*domain.Ticket, error) {
	const query = `SELECT document FROM tickets WHERE kind = ? AND id = ?`
	var doc string
	if err := r.db.QueryRowContext(ctx, query, string(kind), id).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeTicket([]byte(doc))
}

func (r *sqliteTicketRepository) List(ctx context.Context, kind domain.TicketKind) ([]domain.Ticket, error) {
	const query = `SELECT document FROM tickets WHERE kind = ? ORDER BY seq ASC`
	rows, err := r.db.QueryContext(ctx, query, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		ticket, err := decodeTicket([]byte(doc))
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *sqliteTicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `UPDATE tickets SET version = ?, document = ? WHERE kind = ? AND id = ? AND version = ?`
	doc, err := encodeTicket(ticket)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query,
		ticket.Version,
		string(doc),
		string(ticket.Kind),
		ticket.ID,
		ticket.Version-1,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	const existsQuery = `SELECT EXISTS (SELECT 1 FROM tickets WHERE kind = ? AND id = ?)`
	if err := r.db.QueryRowContext(ctx, existsQuery, string(ticket.Kind), ticket.ID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrConflict
	}
	return ErrNotFound
}

func (r *sqliteTicketRepository) Delete(ctx context.Context, kind domain.TicketKind, id string) error {
	const query = `DELETE FROM tickets WHERE kind = ? AND id = ?`
	res, err := r.db.ExecContext(ctx, query, string(kind), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteTicketRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

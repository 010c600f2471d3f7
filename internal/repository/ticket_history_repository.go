package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/opsdesk/internal/domain"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ticketHistoryRows stores history entries as insert-only rows keyed by position.
type ticketHistoryRows struct{}

func (ticketHistoryRows) count(ctx context.Context, db dbtx, kind domain.TicketKind, ticketID string) (int, error) {
	const query = `SELECT COUNT(*) FROM ticket_history WHERE ticket_kind=$1 AND ticket_id=$2`
	var n int
	if err := db.QueryRow(ctx, query, kind, ticketID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (ticketHistoryRows) insert(ctx context.Context, db dbtx, kind domain.TicketKind, seq int, entry domain.HistoryEntry) error {
	const query = `
        INSERT INTO ticket_history (ticket_kind, ticket_id, seq, id, actor, status, description, images, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	images, err := json.Marshal(nonNilImages(entry.Images))
	if err != nil {
		return fmt.Errorf("encode history images: %w", err)
	}
	_, err = db.Exec(ctx, query,
		kind,
		entry.TicketID,
		seq,
		entry.ID,
		entry.Actor,
		entry.Status,
		entry.Description,
		images,
		entry.Date,
	)
	return err
}

func (ticketHistoryRows) listByTicket(ctx context.Context, db dbtx, kind domain.TicketKind, ticketID string) ([]domain.HistoryEntry, error) {
	const query = `
        SELECT id, ticket_id, actor, status, description, images, created_at
        FROM ticket_history WHERE ticket_kind=$1 AND ticket_id=$2 ORDER BY seq ASC`
	rows, err := db.Query(ctx, query, kind, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grouped, err := scanHistory(rows)
	if err != nil {
		return nil, err
	}
	return grouped[ticketID], nil
}

func (ticketHistoryRows) listByKind(ctx context.Context, db dbtx, kind domain.TicketKind) (map[string][]domain.HistoryEntry, error) {
	const query = `
        SELECT id, ticket_id, actor, status, description, images, created_at
        FROM ticket_history WHERE ticket_kind=$1 ORDER BY ticket_id ASC, seq ASC`
	rows, err := db.Query(ctx, query, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHistory(rows)
}

func scanHistory(rows pgx.Rows) (map[string][]domain.HistoryEntry, error) {
	result := make(map[string][]domain.HistoryEntry)
	for rows.Next() {
		var entry domain.HistoryEntry
		var images []byte
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.Actor,
			&entry.Status,
			&entry.Description,
			&images,
			&entry.Date,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(images, &entry.Images); err != nil {
			return nil, fmt.Errorf("decode history images: %w", err)
		}
		entry.Images = nonNilImages(entry.Images)
		entry.Date = entry.Date.UTC()
		result[entry.TicketID] = append(result[entry.TicketID], entry)
	}
	return result, rows.Err()
}

func nonNilImages(images []string) []string {
	if images == nil {
		return []string{}
	}
	return images
}

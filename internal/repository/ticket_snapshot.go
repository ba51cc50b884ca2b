package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/alert-engine/internal/domain"
)

// TicketSnapshotReader provides read-only access to tickets created within
// the trailing analysis window. The ticketing system owns the table; this
// engine only reads it.
type TicketSnapshotReader interface {
	ListCreatedSince(ctx context.Context, since time.Time) ([]domain.Ticket, error)
}

type ticketSnapshotReader struct {
	pool *pgxpool.Pool
}

// NewTicketSnapshotReader instantiates the postgres-backed reader.
func NewTicketSnapshotReader(pool *pgxpool.Pool) TicketSnapshotReader {
	return &ticketSnapshotReader{pool: pool}
}

func (r *ticketSnapshotReader) ListCreatedSince(ctx context.Context, since time.Time) ([]domain.Ticket, error) {
	const query = `
        SELECT id, title, description, category, priority, created_by_user_id, tags, created_at
        FROM tickets WHERE created_at >= $1 ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Title,
			&ticket.Description,
			&ticket.Category,
			&ticket.Priority,
			&ticket.CreatedByUserID,
			&ticket.TagIDs,
			&ticket.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

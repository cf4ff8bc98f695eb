package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/storefront-chat/internal/domain"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// TicketRepository stores the mirrored copy of server tickets.
type TicketRepository interface {
	Upsert(ctx context.Context, ticket domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListByParticipant(ctx context.Context, participantID string, limit int) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

// Upsert stores ticket. A resolved row is never moved back to open.
func (r *ticketRepository) Upsert(ctx context.Context, ticket domain.Ticket) error {
	const query = `
        INSERT INTO chat_tickets (id, participant_id, title, description, priority, state, opened_at, resolved_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (id) DO UPDATE SET
            title=EXCLUDED.title,
            description=EXCLUDED.description,
            priority=EXCLUDED.priority,
            state=EXCLUDED.state,
            resolved_at=EXCLUDED.resolved_at,
            updated_at=NOW()
        WHERE chat_tickets.state <> 'resolved'`
	_, err := r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.ParticipantID,
		ticket.Title,
		ticket.Description,
		ticket.Priority,
		ticket.State,
		ticket.OpenedAt,
		ticket.ResolvedAt,
	)
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `
        SELECT id, participant_id, title, description, priority, state, opened_at, resolved_at
        FROM chat_tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) ListByParticipant(ctx context.Context, participantID string, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id, participant_id, title, description, priority, state, opened_at, resolved_at
        FROM chat_tickets WHERE participant_id=$1 ORDER BY opened_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, participantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.ParticipantID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Priority,
		&ticket.State,
		&ticket.OpenedAt,
		&ticket.ResolvedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

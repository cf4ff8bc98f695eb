package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/storefront-chat/internal/domain"
)

// MessageRepository archives confirmed chat messages.
type MessageRepository interface {
	Upsert(ctx context.Context, msg domain.Message) error
	ListByConversation(ctx context.Context, key domain.ConversationKey, limit int) ([]domain.Message, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository builds repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Upsert(ctx context.Context, msg domain.Message) error {
	const query = `
        INSERT INTO chat_messages (id, participant_id, chat_category, ticket_id, body, sender, is_read, sent_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (id) DO UPDATE SET body=EXCLUDED.body, is_read=EXCLUDED.is_read, archived_at=NOW()`
	key := msg.Key()
	_, err := r.pool.Exec(ctx, query,
		msg.ID,
		key.ParticipantID,
		key.ChatCategory,
		key.TicketID,
		msg.Body,
		msg.Sender,
		msg.IsRead,
		msg.SentAt,
	)
	return err
}

func (r *messageRepository) ListByConversation(ctx context.Context, key domain.ConversationKey, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT id, participant_id, chat_category, ticket_id, body, sender, is_read, sent_at
        FROM (
            SELECT * FROM chat_messages
            WHERE participant_id=$1 AND chat_category=$2 AND ticket_id=$3
            ORDER BY sent_at DESC LIMIT $4
        ) recent ORDER BY sent_at ASC`
	rows, err := r.pool.Query(ctx, query, key.ParticipantID, key.ChatCategory, key.TicketID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var (
			msg      domain.Message
			ticketID string
		)
		if err := rows.Scan(
			&msg.ID,
			&msg.ParticipantID,
			&msg.ChatCategory,
			&ticketID,
			&msg.Body,
			&msg.Sender,
			&msg.IsRead,
			&msg.SentAt,
		); err != nil {
			return nil, err
		}
		if ticketID != "" {
			msg.TicketID = &ticketID
		}
		msg.Status = domain.MessageStatusConfirmed
		result = append(result, msg)
	}
	return result, rows.Err()
}

package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/storefront-chat/internal/domain"
)

// AttachmentRepository persists attachment metadata of archived messages.
type AttachmentRepository interface {
	ReplaceForMessage(ctx context.Context, messageID string, attachments []domain.Attachment) error
	ListByMessage(ctx context.Context, messageID string) ([]domain.Attachment, error)
}

type attachmentRepository struct {
	pool *pgxpool.Pool
}

// NewAttachmentRepository constructs repository.
func NewAttachmentRepository(pool *pgxpool.Pool) AttachmentRepository {
	return &attachmentRepository{pool: pool}
}

func (r *attachmentRepository) ReplaceForMessage(ctx context.Context, messageID string, attachments []domain.Attachment) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM chat_attachments WHERE message_id=$1`, messageID); err != nil {
			return err
		}
		const query = `
            INSERT INTO chat_attachments (message_id, position, kind, source_url, original_name, size_bytes, dimensions, duration, storage_id, uploaded_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
		batch := &pgx.Batch{}
		for i, att := range attachments {
			batch.Queue(query,
				messageID,
				i,
				att.Kind,
				att.SourceURL,
				att.OriginalName,
				att.SizeBytes,
				att.Dimensions,
				att.DurationSeconds,
				att.StorageID,
				att.UploadedAt,
			)
		}
		if batch.Len() == 0 {
			return nil
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (r *attachmentRepository) ListByMessage(ctx context.Context, messageID string) ([]domain.Attachment, error) {
	const query = `
        SELECT kind, source_url, original_name, size_bytes, dimensions, duration, storage_id, uploaded_at
        FROM chat_attachments WHERE message_id=$1 ORDER BY position ASC`
	rows, err := r.pool.Query(ctx, query, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Attachment
	for rows.Next() {
		var att domain.Attachment
		if err := rows.Scan(
			&att.Kind,
			&att.SourceURL,
			&att.OriginalName,
			&att.SizeBytes,
			&att.Dimensions,
			&att.DurationSeconds,
			&att.StorageID,
			&att.UploadedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, att)
	}
	return result, rows.Err()
}

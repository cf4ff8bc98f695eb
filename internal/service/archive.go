package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront-chat/internal/domain"
	"github.com/spec-kit/storefront-chat/internal/repository"
)

var ErrProvisionalMessage = errors.New("provisional messages cannot be archived")

const archiveWriteTimeout = 5 * time.Second

// Archive keeps a durable copy of confirmed messages and mirrored tickets.
type Archive interface {
	SaveMessage(ctx context.Context, msg domain.Message) error
	SaveTicket(ctx context.Context, ticket domain.Ticket) error
	Messages(ctx context.Context, key domain.ConversationKey, limit int) ([]domain.Message, error)
}

// NoopArchive is used when no database is configured.
type NoopArchive struct{}

func (NoopArchive) SaveMessage(_ context.Context, msg domain.Message) error {
	if msg.IsProvisional() {
		return ErrProvisionalMessage
	}
	return nil
}

func (NoopArchive) SaveTicket(context.Context, domain.Ticket) error { return nil }

func (NoopArchive) Messages(context.Context, domain.ConversationKey, int) ([]domain.Message, error) {
	return nil, nil
}

// ArchiveService writes through pgx repositories.
type ArchiveService struct {
	messages    repository.MessageRepository
	attachments repository.AttachmentRepository
	tickets     repository.TicketRepository
	logger      *zap.Logger
}

// ArchiveDependencies bundles repositories for the archive.
type ArchiveDependencies struct {
	MessageRepo    repository.MessageRepository
	AttachmentRepo repository.AttachmentRepository
	TicketRepo     repository.TicketRepository
	Logger         *zap.Logger
}

// NewArchiveService constructs the service.
func NewArchiveService(deps ArchiveDependencies) *ArchiveService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &ArchiveService{
		messages:    deps.MessageRepo,
		attachments: deps.AttachmentRepo,
		tickets:     deps.TicketRepo,
		logger:      deps.Logger,
	}
}

// SaveMessage upserts a confirmed message with its attachments.
func (a *ArchiveService) SaveMessage(ctx context.Context, msg domain.Message) error {
	if msg.IsProvisional() {
		return ErrProvisionalMessage
	}
	ctx, cancel := context.WithTimeout(ctx, archiveWriteTimeout)
	defer cancel()

	if err := a.messages.Upsert(ctx, msg); err != nil {
		return err
	}
	if len(msg.Attachments) == 0 {
		return nil
	}
	return a.attachments.ReplaceForMessage(ctx, msg.ID, msg.Attachments)
}

// SaveTicket upserts a mirrored ticket.
func (a *ArchiveService) SaveTicket(ctx context.Context, ticket domain.Ticket) error {
	if ticket.ID == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, archiveWriteTimeout)
	defer cancel()
	return a.tickets.Upsert(ctx, ticket)
}

// Messages returns archived messages of a conversation, oldest first.
func (a *ArchiveService) Messages(ctx context.Context, key domain.ConversationKey, limit int) ([]domain.Message, error) {
	msgs, err := a.messages.ListByConversation(ctx, key, limit)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		atts, err := a.attachments.ListByMessage(ctx, msgs[i].ID)
		if err != nil {
			a.logger.Warn("load archived attachments failed", zap.String("message_id", msgs[i].ID), zap.Error(err))
			continue
		}
		msgs[i].Attachments = atts
	}
	return msgs, nil
}

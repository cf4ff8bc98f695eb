package client

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-chat/internal/domain"
)

// Collaborators is the REST surface the chat session consumes.
type Collaborators interface {
	History(ctx context.Context, key domain.ConversationKey) ([]domain.Message, error)
	OpenTicket(ctx context.Context, participantID string) (*domain.Ticket, error)
	ListTickets(ctx context.Context, participantID string) ([]domain.Ticket, error)
	ActiveConversations(ctx context.Context, category domain.ChatCategory) ([]domain.Conversation, error)
}

const openTicketKeyPrefix = "chat:open-ticket:"

// TicketCache is a read-through Redis cache in front of OpenTicket lookups.
// Only open tickets are cached; callers invalidate on ticket events.
type TicketCache struct {
	Collaborators
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewTicketCache wraps api. A nil client disables caching.
func NewTicketCache(api Collaborators, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *TicketCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketCache{Collaborators: api, rdb: rdb, ttl: ttl, logger: logger}
}

// OpenTicket serves from Redis when possible.
func (c *TicketCache) OpenTicket(ctx context.Context, participantID string) (*domain.Ticket, error) {
	if c.rdb == nil || c.ttl <= 0 {
		return c.Collaborators.OpenTicket(ctx, participantID)
	}
	key := openTicketKeyPrefix + participantID

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var ticket domain.Ticket
		if jsonErr := json.Unmarshal(raw, &ticket); jsonErr == nil && ticket.IsOpen() {
			return &ticket, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("ticket cache read failed", zap.String("participant_id", participantID), zap.Error(err))
	}

	ticket, err := c.Collaborators.OpenTicket(ctx, participantID)
	if err != nil || ticket == nil || !ticket.IsOpen() {
		return ticket, err
	}
	if payload, jsonErr := json.Marshal(ticket); jsonErr == nil {
		if setErr := c.rdb.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.logger.Warn("ticket cache write failed", zap.String("participant_id", participantID), zap.Error(setErr))
		}
	}
	return ticket, nil
}

// InvalidateOpenTicket drops the cached lookup for participantID.
func (c *TicketCache) InvalidateOpenTicket(ctx context.Context, participantID string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, openTicketKeyPrefix+participantID).Err(); err != nil {
		c.logger.Warn("ticket cache invalidate failed", zap.String("participant_id", participantID), zap.Error(err))
	}
}

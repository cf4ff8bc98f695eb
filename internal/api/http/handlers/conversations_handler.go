package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-chat/internal/api/dto"
	"github.com/spec-kit/storefront-chat/internal/domain"
	"github.com/spec-kit/storefront-chat/internal/service"
	apperrors "github.com/spec-kit/storefront-chat/pkg/util/errorutil"
)

// ConversationsHandler serves the agent conversation list.
type ConversationsHandler struct {
	sessionLookup
}

// NewConversationsHandler constructs handler.
func NewConversationsHandler(registry *service.SessionRegistry) *ConversationsHandler {
	return &ConversationsHandler{sessionLookup{registry: registry}}
}

// List GET /sessions/:id/conversations?category=.
func (h *ConversationsHandler) List(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	category, err := optionalCategory(c.Query("category"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"data": session.Conversations(category)})
}

// Refresh POST /sessions/:id/conversations/refresh.
func (h *ConversationsHandler) Refresh(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	var req dto.RefreshConversationsRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	category, err := optionalCategory(req.Category)
	if err != nil {
		return mapError(err)
	}
	if err := session.RefreshConversations(c.UserContext(), category); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusAccepted)
}

// Select POST /sessions/:id/conversations/select.
func (h *ConversationsHandler) Select(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	var req dto.SelectConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	category, err := domain.ParseChatCategory(req.Category)
	if err != nil {
		return mapError(err)
	}
	key := domain.NewConversationKey(req.ParticipantID, category, req.TicketID)
	if err := session.SelectConversation(c.UserContext(), key); err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"data": key})
}

func optionalCategory(raw string) (domain.ChatCategory, error) {
	if raw == "" {
		return "", nil
	}
	return domain.ParseChatCategory(raw)
}

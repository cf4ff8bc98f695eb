package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-chat/internal/api/dto"
	"github.com/spec-kit/storefront-chat/internal/domain"
	"github.com/spec-kit/storefront-chat/internal/service"
	apperrors "github.com/spec-kit/storefront-chat/pkg/util/errorutil"
)

const defaultArchiveLimit = 100

// MessagesHandler exposes the send and receive path of a session.
type MessagesHandler struct {
	sessionLookup
}

// NewMessagesHandler constructs handler.
func NewMessagesHandler(registry *service.SessionRegistry) *MessagesHandler {
	return &MessagesHandler{sessionLookup{registry: registry}}
}

// EnterCategory POST /sessions/:id/category.
func (h *MessagesHandler) EnterCategory(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	var req dto.EnterCategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	category, err := domain.ParseChatCategory(req.Category)
	if err != nil {
		return mapError(err)
	}
	res, err := session.EnterCategory(c.UserContext(), category)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"data": res})
}

// List GET /sessions/:id/messages.
func (h *MessagesHandler) List(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": session.Messages()})
}

// Send POST /sessions/:id/messages. Once a provisional message exists the
// response is 202 even when delivery failed, so the caller can retry it.
func (h *MessagesHandler) Send(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	res, sendErr := session.Send(c.UserContext(), req.Body, req.LocalFiles())
	rejected := dto.Rejections(res.Rejected)
	if res.Message.ID == "" {
		de := apperrors.ToDomainError(mapError(sendErr))
		if len(rejected) > 0 {
			de.Details = map[string]any{"rejected": rejected}
		}
		return de
	}

	resp := dto.SendMessageResponse{Message: res.Message, Rejected: rejected}
	if sendErr != nil {
		de := apperrors.ToDomainError(mapError(sendErr))
		resp.Error = &dto.ErrorBody{Code: de.Code, Message: de.Message}
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": resp})
}

// Retry POST /sessions/:id/messages/:mid/retry.
func (h *MessagesHandler) Retry(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	msg, err := session.Retry(c.UserContext(), c.Params("mid"))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": msg})
}

// Discard DELETE /sessions/:id/messages/:mid.
func (h *MessagesHandler) Discard(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	if err := session.Discard(c.Params("mid")); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// MarkRead POST /sessions/:id/read.
func (h *MessagesHandler) MarkRead(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	if err := session.MarkRead(c.UserContext()); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Archive GET /sessions/:id/archive.
func (h *MessagesHandler) Archive(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	limit := c.QueryInt("limit", defaultArchiveLimit)
	if limit <= 0 || limit > 500 {
		return apperrors.NewValidationError("limit must be between 1 and 500", nil)
	}
	msgs, err := session.Archived(c.UserContext(), limit)
	if err != nil {
		return mapError(err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return c.JSON(fiber.Map{"data": msgs})
}

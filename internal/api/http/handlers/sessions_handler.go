package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-chat/internal/api/dto"
	"github.com/spec-kit/storefront-chat/internal/auth"
	"github.com/spec-kit/storefront-chat/internal/service"
	apperrors "github.com/spec-kit/storefront-chat/pkg/util/errorutil"
)

// SessionsHandler mounts and unmounts chat sessions.
type SessionsHandler struct {
	sessionLookup
}

// NewSessionsHandler constructs handler.
func NewSessionsHandler(registry *service.SessionRegistry) *SessionsHandler {
	return &SessionsHandler{sessionLookup{registry: registry}}
}

// Mount POST /sessions.
func (h *SessionsHandler) Mount(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	session, err := h.registry.Mount(c.UserContext(), principal)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": sessionResponse(session)})
}

// Get GET /sessions/:id.
func (h *SessionsHandler) Get(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sessionResponse(session)})
}

// Unmount DELETE /sessions/:id.
func (h *SessionsHandler) Unmount(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.registry.Unmount(c.Params("id"), principal); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Reconnect POST /sessions/:id/reconnect.
func (h *SessionsHandler) Reconnect(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	if err := session.Reconnect(c.UserContext()); err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"data": sessionResponse(session)})
}

// Notices GET /sessions/:id/notices.
func (h *SessionsHandler) Notices(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": session.Notifications().Notices()})
}

func sessionResponse(session *service.ChatSession) dto.SessionResponse {
	return dto.SessionResponse{
		Snapshot: session.Snapshot(),
		Notices:  session.Notifications().Notices(),
	}
}

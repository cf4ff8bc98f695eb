package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-chat/internal/api/dto"
	"github.com/spec-kit/storefront-chat/internal/domain"
	"github.com/spec-kit/storefront-chat/internal/service"
	apperrors "github.com/spec-kit/storefront-chat/pkg/util/errorutil"
)

// TicketsHandler manages support ticket endpoints of a session.
type TicketsHandler struct {
	sessionLookup
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(registry *service.SessionRegistry) *TicketsHandler {
	return &TicketsHandler{sessionLookup{registry: registry}}
}

// Create POST /sessions/:id/tickets. The ticket appears once the server
// broadcasts ticket_created.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := session.CreateTicket(c.UserContext(), req.Draft()); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusAccepted)
}

// Current GET /sessions/:id/tickets/current.
func (h *TicketsHandler) Current(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	ticket, ok := session.OpenTicket()
	if !ok {
		return apperrors.NewNotFound("open ticket", nil)
	}
	return c.JSON(fiber.Map{"data": ticket})
}

// List GET /sessions/:id/tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	tickets, err := session.Tickets(c.UserContext())
	if err != nil {
		return mapError(err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return c.JSON(fiber.Map{"data": tickets})
}

// Resolve POST /sessions/:id/tickets/resolve.
func (h *TicketsHandler) Resolve(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	if err := session.ResolveTicket(c.UserContext()); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusAccepted)
}

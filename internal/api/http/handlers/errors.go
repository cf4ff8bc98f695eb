package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-chat/internal/auth"
	"github.com/spec-kit/storefront-chat/internal/client"
	"github.com/spec-kit/storefront-chat/internal/domain"
	"github.com/spec-kit/storefront-chat/internal/media"
	"github.com/spec-kit/storefront-chat/internal/service"
	"github.com/spec-kit/storefront-chat/internal/transport"
	apperrors "github.com/spec-kit/storefront-chat/pkg/util/errorutil"
)

type errorMapping struct {
	target error
	code   string
	status int
}

var errorMappings = []errorMapping{
	{service.ErrSessionNotFound, "NOT_FOUND", http.StatusNotFound},
	{service.ErrMessageNotFound, "NOT_FOUND", http.StatusNotFound},
	{service.ErrSessionForbidden, "FORBIDDEN", http.StatusForbidden},
	{service.ErrWrongRole, "FORBIDDEN", http.StatusForbidden},
	{service.ErrTicketRequired, "TICKET_REQUIRED", http.StatusConflict},
	{service.ErrTicketAlreadyOpen, "CONFLICT", http.StatusConflict},
	{service.ErrNoConversation, "CONFLICT", http.StatusConflict},
	{service.ErrNoTicket, "CONFLICT", http.StatusConflict},
	{service.ErrNotFailed, "CONFLICT", http.StatusConflict},
	{transport.ErrConnectInFlight, "CONFLICT", http.StatusConflict},
	{transport.ErrNotConnected, "NOT_CONNECTED", http.StatusServiceUnavailable},
	{transport.ErrTornDown, "NOT_CONNECTED", http.StatusServiceUnavailable},
	{media.ErrRejected, "VALIDATION_FAILED", http.StatusBadRequest},
	{media.ErrUploadFailed, "UPLOAD_FAILED", http.StatusBadGateway},
	{domain.ErrEmptyMessage, "VALIDATION_FAILED", http.StatusBadRequest},
	{domain.ErrBodyTooLong, "VALIDATION_FAILED", http.StatusBadRequest},
	{domain.ErrMissingSubject, "VALIDATION_FAILED", http.StatusBadRequest},
	{domain.ErrBadCategory, "VALIDATION_FAILED", http.StatusBadRequest},
	{domain.ErrTicketTitleRequired, "VALIDATION_FAILED", http.StatusBadRequest},
	{domain.ErrTicketTitleTooLong, "VALIDATION_FAILED", http.StatusBadRequest},
	{domain.ErrTicketDescriptionRequired, "VALIDATION_FAILED", http.StatusBadRequest},
	{domain.ErrTicketDescriptionTooLong, "VALIDATION_FAILED", http.StatusBadRequest},
	{domain.ErrTicketPriority, "VALIDATION_FAILED", http.StatusBadRequest},
}

// mapError translates package sentinels into DomainErrors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return apperrors.NewDomainError(m.code, err.Error(), m.status, nil)
		}
	}
	var statusErr *client.StatusError
	if errors.As(err, &statusErr) {
		return apperrors.NewUpstreamError(err)
	}
	return apperrors.ToDomainError(err)
}

// sessionLookup resolves the session named in the route for the caller.
type sessionLookup struct {
	registry *service.SessionRegistry
}

func (l sessionLookup) session(c *fiber.Ctx) (*service.ChatSession, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	session, err := l.registry.Get(c.Params("id"), principal)
	if err != nil {
		return nil, mapError(err)
	}
	return session, nil
}

package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront-chat/internal/events"
	"github.com/spec-kit/storefront-chat/internal/transport"
)

// NoticeKind classifies user-facing notices.
type NoticeKind string

const (
	NoticeServerError    NoticeKind = "server_error"
	NoticeTicketCreated  NoticeKind = "ticket_created"
	NoticeTicketResolved NoticeKind = "ticket_resolved"
	NoticeSendFailed     NoticeKind = "send_failed"
	NoticeDisconnected   NoticeKind = "disconnected"
	NoticeReconnected    NoticeKind = "reconnected"
)

const defaultNoticeLimit = 50

// Notice is something the UI should surface.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}

// NotificationService collects notices for one session.
type NotificationService struct {
	logger *zap.Logger
	limit  int
	now    func() time.Time

	mu           sync.Mutex
	notices      []Notice
	disconnected bool
}

// NewNotificationService creates the service. limit <= 0 uses the default.
func NewNotificationService(logger *zap.Logger, limit int) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limit <= 0 {
		limit = defaultNoticeLimit
	}
	return &NotificationService{logger: logger, limit: limit, now: time.Now}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers(registry *events.Registry) {
	if registry == nil {
		return
	}
	registry.Register(events.EventError, n.handleServerError)
	registry.Register(events.EventTicketCreated, n.handleTicketCreated)
	registry.Register(events.EventTicketResolved, n.handleTicketResolved)
}

func (n *NotificationService) handleServerError(_ context.Context, event events.Event) error {
	e, ok := event.(events.ErrorEvent)
	if !ok {
		return nil
	}
	n.logger.Info("ServerError", zap.String("message", e.Message))
	n.Push(NoticeServerError, e.Message)
	return nil
}

func (n *NotificationService) handleTicketCreated(_ context.Context, event events.Event) error {
	e, ok := event.(events.TicketCreatedEvent)
	if !ok {
		return nil
	}
	n.logger.Info("TicketCreated", zap.String("ticket_id", e.Ticket.ID))
	n.Push(NoticeTicketCreated, "Ticket opened: "+e.Ticket.Title)
	return nil
}

func (n *NotificationService) handleTicketResolved(_ context.Context, event events.Event) error {
	e, ok := event.(events.TicketResolvedEvent)
	if !ok {
		return nil
	}
	n.logger.Info("TicketResolved", zap.String("ticket_id", e.Ticket.ID))
	n.Push(NoticeTicketResolved, "Ticket resolved: "+e.Ticket.Title)
	return nil
}

// ObserveConnection turns socket transitions into notices.
func (n *NotificationService) ObserveConnection(status transport.Status) {
	n.mu.Lock()
	var kind NoticeKind
	switch {
	case status.State == transport.StateClosed && status.Exhausted && !n.disconnected:
		n.disconnected = true
		kind = NoticeDisconnected
	case status.State == transport.StateOpen && n.disconnected:
		n.disconnected = false
		kind = NoticeReconnected
	}
	n.mu.Unlock()

	switch kind {
	case NoticeDisconnected:
		n.Push(kind, "Disconnected from chat. Reconnect to continue.")
	case NoticeReconnected:
		n.Push(kind, "Reconnected to chat.")
	}
}

// Push records a notice, evicting the oldest beyond the limit.
func (n *NotificationService) Push(kind NoticeKind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, Notice{Kind: kind, Message: message, At: n.now()})
	if over := len(n.notices) - n.limit; over > 0 {
		n.notices = append([]Notice(nil), n.notices[over:]...)
	}
}

// Notices returns a copy of the recorded notices, oldest first.
func (n *NotificationService) Notices() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.notices...)
}

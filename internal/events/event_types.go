package events

import (
	"github.com/spec-kit/storefront-chat/internal/domain"
)

// EventType enumerates wire event tags.
type EventType string

// Wildcard receives every inbound event regardless of type.
const Wildcard EventType = "*"

// Client to server.
const (
	EventIdentify                   EventType = "identify"
	EventSendMessage                EventType = "send_message"
	EventSendMessageWithAttachments EventType = "send_message_with_attachments"
	EventRequestHistory             EventType = "request_history"
	EventCreateTicket               EventType = "create_ticket"
	EventResolveTicket              EventType = "resolve_ticket"
	EventRequestActiveConversations EventType = "request_active_conversations"
	EventMarkRead                   EventType = "mark_read"
)

// Server to client.
const (
	EventHistory             EventType = "history"
	EventNewMessage          EventType = "new_message"
	EventMessageConfirmed    EventType = "message_confirmed"
	EventActiveConversations EventType = "active_conversations"
	EventTicketCreated       EventType = "ticket_created"
	EventTicketResolved      EventType = "ticket_resolved"
	EventError               EventType = "error"
)

// Event is one variant of the wire tagged union.
type Event interface {
	Type() EventType
}

// IdentifyEvent is sent once per successful handshake.
type IdentifyEvent struct {
	ParticipantID string      `json:"participantId"`
	Role          domain.Role `json:"role"`
}

// SendMessageEvent carries a text-only message.
type SendMessageEvent struct {
	ParticipantID string              `json:"participantId"`
	ChatCategory  domain.ChatCategory `json:"chatCategory"`
	Body          string              `json:"body"`
	TicketID      *string             `json:"ticketId"`
}

// SendMessageWithAttachmentsEvent carries a message whose attachments are uploaded.
type SendMessageWithAttachmentsEvent struct {
	ParticipantID string              `json:"participantId"`
	ChatCategory  domain.ChatCategory `json:"chatCategory"`
	Body          string              `json:"body"`
	Attachments   []domain.Attachment `json:"attachments"`
	TicketID      *string             `json:"ticketId"`
}

// RequestHistoryEvent asks for a conversation transcript.
type RequestHistoryEvent struct {
	ParticipantID string              `json:"participantId"`
	ChatCategory  domain.ChatCategory `json:"chatCategory"`
	TicketID      *string             `json:"ticketId"`
}

// CreateTicketEvent opens a support ticket.
type CreateTicketEvent struct {
	ParticipantID string                `json:"participantId"`
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Priority      domain.TicketPriority `json:"priority,omitempty"`
}

// ResolveTicketEvent is issued by agents only.
type ResolveTicketEvent struct {
	ParticipantID string `json:"participantId"`
	TicketID      string `json:"ticketId"`
}

// RequestActiveConversationsEvent asks for the summaries of one category.
type RequestActiveConversationsEvent struct {
	ChatCategory domain.ChatCategory `json:"chatCategory"`
}

// MarkReadEvent marks a conversation as read by the sender's counterpart.
type MarkReadEvent struct {
	ParticipantID string              `json:"participantId"`
	ChatCategory  domain.ChatCategory `json:"chatCategory"`
	TicketID      *string             `json:"ticketId"`
}

// HistoryEvent delivers a conversation transcript.
type HistoryEvent struct {
	ParticipantID string              `json:"participantId"`
	ChatCategory  domain.ChatCategory `json:"chatCategory"`
	TicketID      *string             `json:"ticketId,omitempty"`
	Messages      []domain.Message    `json:"messages"`
}

// NewMessageEvent announces a message from any participant.
type NewMessageEvent struct {
	Message domain.Message `json:"message"`
}

// MessageConfirmedEvent echoes a message this client sent.
type MessageConfirmedEvent struct {
	Message domain.Message `json:"message"`
}

// ActiveConversationsEvent lists conversation summaries for a category.
type ActiveConversationsEvent struct {
	ChatCategory  domain.ChatCategory   `json:"chatCategory"`
	Conversations []domain.Conversation `json:"conversations"`
}

// TicketCreatedEvent confirms a newly opened ticket.
type TicketCreatedEvent struct {
	Ticket domain.Ticket `json:"ticket"`
}

// TicketResolvedEvent announces that an agent resolved a ticket.
type TicketResolvedEvent struct {
	Ticket domain.Ticket `json:"ticket"`
}

// ErrorEvent carries a human-readable server error.
type ErrorEvent struct {
	Message string `json:"message"`
}

// UnknownEvent preserves inbound events this client has no schema for.
type UnknownEvent struct {
	Tag EventType
	Raw []byte
}

func (IdentifyEvent) Type() EventType                   { return EventIdentify }
func (SendMessageEvent) Type() EventType                { return EventSendMessage }
func (SendMessageWithAttachmentsEvent) Type() EventType { return EventSendMessageWithAttachments }
func (RequestHistoryEvent) Type() EventType             { return EventRequestHistory }
func (CreateTicketEvent) Type() EventType               { return EventCreateTicket }
func (ResolveTicketEvent) Type() EventType              { return EventResolveTicket }
func (RequestActiveConversationsEvent) Type() EventType { return EventRequestActiveConversations }
func (MarkReadEvent) Type() EventType                   { return EventMarkRead }
func (HistoryEvent) Type() EventType                    { return EventHistory }
func (NewMessageEvent) Type() EventType                 { return EventNewMessage }
func (MessageConfirmedEvent) Type() EventType           { return EventMessageConfirmed }
func (ActiveConversationsEvent) Type() EventType        { return EventActiveConversations }
func (TicketCreatedEvent) Type() EventType              { return EventTicketCreated }
func (TicketResolvedEvent) Type() EventType             { return EventTicketResolved }
func (ErrorEvent) Type() EventType                      { return EventError }
func (e UnknownEvent) Type() EventType                  { return e.Tag }

package domain

import "time"

// ConversationKey is the uniqueness triple an agent selects.
// An empty TicketID stands for "no ticket" so nil and empty compare equal.
type ConversationKey struct {
	ParticipantID string       `json:"participantId"`
	ChatCategory  ChatCategory `json:"chatCategory"`
	TicketID      string       `json:"ticketId,omitempty"`
}

// NewConversationKey builds a key, folding a nil ticket id into "".
func NewConversationKey(participantID string, category ChatCategory, ticketID *string) ConversationKey {
	key := ConversationKey{ParticipantID: participantID, ChatCategory: category}
	if ticketID != nil {
		key.TicketID = *ticketID
	}
	return key
}

// TicketIDPtr returns the ticket id as an optional value.
func (k ConversationKey) TicketIDPtr() *string {
	if k.TicketID == "" {
		return nil
	}
	id := k.TicketID
	return &id
}

// ParticipantProfile is the customer summary shown in agent lists.
type ParticipantProfile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// TicketSummary is the ticket excerpt embedded in a conversation summary.
type TicketSummary struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    TicketPriority `json:"priority"`
	OpenedAt    time.Time      `json:"openedAt"`
}

// MessagePreview is the last message of a conversation.
type MessagePreview struct {
	Body   string    `json:"body"`
	Sender Role      `json:"sender"`
	SentAt time.Time `json:"sentAt"`
}

// Conversation is the addressable (customer, category, ticket) unit.
type Conversation struct {
	ParticipantID string             `json:"participantId"`
	ChatCategory  ChatCategory       `json:"chatCategory"`
	TicketID      *string            `json:"ticketId,omitempty"`
	Participant   ParticipantProfile `json:"participant"`
	Ticket        *TicketSummary     `json:"ticket,omitempty"`
	LastMessage   *MessagePreview    `json:"lastMessage,omitempty"`
	UnreadCount   int                `json:"unreadCount"`
	TotalMessages int                `json:"totalMessages"`
	Active        bool               `json:"active"`
}

// Key returns the conversation uniqueness triple.
func (c Conversation) Key() ConversationKey {
	return NewConversationKey(c.ParticipantID, c.ChatCategory, c.TicketID)
}

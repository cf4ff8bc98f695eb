package service

import (
	"github.com/spec-kit/storefront-chat/internal/domain"
)

// TicketMirror is the client copy of server ticket state. Server events are
// applied idempotently and a resolved ticket never reopens.
type TicketMirror struct {
	open     *domain.Ticket
	resolved map[string]domain.Ticket
}

// NewTicketMirror creates an empty mirror.
func NewTicketMirror() *TicketMirror {
	return &TicketMirror{resolved: make(map[string]domain.Ticket)}
}

// Seed records the result of an open-ticket lookup.
func (m *TicketMirror) Seed(ticket *domain.Ticket) {
	if ticket == nil || !ticket.IsOpen() {
		return
	}
	m.ApplyCreated(*ticket)
}

// ApplyCreated records a ticket_created event. It reports whether the open
// ticket changed.
func (m *TicketMirror) ApplyCreated(ticket domain.Ticket) bool {
	if _, done := m.resolved[ticket.ID]; done {
		return false
	}
	ticket.State = domain.TicketStateOpen
	ticket.ResolvedAt = nil
	if m.open != nil && *m.open == ticket {
		return false
	}
	m.open = &ticket
	return true
}

// ApplyResolved records a ticket_resolved event. It reports whether this was
// the first time the ticket was seen resolved.
func (m *TicketMirror) ApplyResolved(ticket domain.Ticket) bool {
	if _, done := m.resolved[ticket.ID]; done {
		return false
	}
	ticket.State = domain.TicketStateResolved
	m.resolved[ticket.ID] = ticket
	if m.open != nil && m.open.ID == ticket.ID {
		m.open = nil
	}
	return true
}

// Open returns the open ticket, if any.
func (m *TicketMirror) Open() (domain.Ticket, bool) {
	if m.open == nil {
		return domain.Ticket{}, false
	}
	return *m.open, true
}

// IsResolved reports whether id was seen resolved.
func (m *TicketMirror) IsResolved(id string) bool {
	_, ok := m.resolved[id]
	return ok
}

// Reset forgets the open ticket. Resolved ids are kept.
func (m *TicketMirror) Reset() {
	m.open = nil
}

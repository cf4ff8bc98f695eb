package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// TicketState enumerates lifecycle states for support tickets.
type TicketState string

const (
	TicketStateOpen     TicketState = "open"
	TicketStateResolved TicketState = "resolved"
)

// TicketPriority enumerates support urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

const (
	MaxTicketTitleLength       = 100
	MaxTicketDescriptionLength = 500
)

var (
	ErrTicketTitleRequired       = errors.New("ticket title required")
	ErrTicketTitleTooLong        = errors.New("ticket title cannot exceed 100 characters")
	ErrTicketDescriptionRequired = errors.New("ticket description required")
	ErrTicketDescriptionTooLong  = errors.New("ticket description cannot exceed 500 characters")
	ErrTicketPriority            = errors.New("invalid ticket priority")
)

// Ticket is a support case opened by a customer in the support category.
type Ticket struct {
	ID            string         `json:"id"`
	ParticipantID string         `json:"participantId"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Priority      TicketPriority `json:"priority"`
	State         TicketState    `json:"state"`
	OpenedAt      time.Time      `json:"openedAt"`
	ResolvedAt    *time.Time     `json:"resolvedAt,omitempty"`
}

// IsOpen reports whether the ticket still accepts support messages.
func (t Ticket) IsOpen() bool {
	return t.State == TicketStateOpen
}

// TicketDraft is the customer input for a new ticket.
type TicketDraft struct {
	Title       string
	Description string
	Priority    TicketPriority
}

// Normalize trims the draft and applies the default priority.
func (d TicketDraft) Normalize() TicketDraft {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	if d.Priority == "" {
		d.Priority = TicketPriorityMedium
	}
	return d
}

// Validate checks title and description limits.
func (d TicketDraft) Validate() error {
	switch {
	case d.Title == "":
		return ErrTicketTitleRequired
	case utf8.RuneCountInString(d.Title) > MaxTicketTitleLength:
		return ErrTicketTitleTooLong
	case d.Description == "":
		return ErrTicketDescriptionRequired
	case utf8.RuneCountInString(d.Description) > MaxTicketDescriptionLength:
		return ErrTicketDescriptionTooLong
	case !d.Priority.Valid():
		return ErrTicketPriority
	}
	return nil
}

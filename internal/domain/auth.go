package domain

import (
	"fmt"
	"strings"
)

// Role differentiates customers from sales/support agents. It doubles as the
// sender of a message.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAgent
}

// ParseRole normalizes user input into a Role.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return r, nil
}

// Principal is the authenticated owner of a chat session.
type Principal struct {
	ParticipantID string
	Role          Role
	Token         string
}

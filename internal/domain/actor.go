package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Role is the pre-authorized capability of the actor performing an
// operation. Authorization itself happens upstream (API gateway / auth
// service); the booking engine receives the resolved role, threads it into
// every mutation call for logging, and enforces only state-graph legality.
type Role string

const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
	RoleAdmin Role = "admin"
)

// Actor identifies who is performing a mutation. There is no ambient
// "current user" — callers pass the actor explicitly.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// ParseRole converts a string into a Role.
// Returns ErrValidation for unrecognized values.
func ParseRole(raw string) (Role, error) {
	switch r := Role(raw); r {
	case RoleGuest, RoleHost, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: unknown actor role %q", ErrValidation, raw)
	}
}

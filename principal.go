package vistable

import (
	"context"

	"github.com/google/uuid"
)

// PrincipalType discriminates the two kinds of authenticated actor.
type PrincipalType string

const (
	PrincipalAccount PrincipalType = "ACCOUNT"
	PrincipalAPIKey  PrincipalType = "APIKEY"
)

// Valid reports whether t is a known principal type.
func (t PrincipalType) Valid() bool {
	return t == PrincipalAccount || t == PrincipalAPIKey
}

// Role is the platform-wide role of a principal. Roles are ordered; a higher
// role implies every lower one.
type Role int

const (
	RoleReader     Role = 10
	RoleAuthor     Role = 20
	RoleAdmin      Role = 30
	RoleSuperAdmin Role = 40
)

// Principal is an authenticated actor: an account or an API key, with its
// platform role. Derivation from a bearer token or key signature happens in
// the authentication middleware, outside this module.
type Principal struct {
	ID   uuid.UUID     `json:"id"`
	Type PrincipalType `json:"type"`
	Role Role          `json:"role"`
}

// IsSuperAdmin reports whether the principal bypasses dashboard-level
// permission checks entirely.
func (p Principal) IsSuperAdmin() bool {
	return p.Role >= RoleSuperAdmin
}

// PrincipalService resolves principals by identity. Backed by the account
// and api key tables.
type PrincipalService interface {
	FindPrincipal(ctx context.Context, id uuid.UUID, t PrincipalType) (*Principal, error)
}

package vistable

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// AccessLevel is the strength of access a principal holds on a dashboard.
// Levels are ordered VIEW < EDIT < REMOVE.
type AccessLevel string

const (
	AccessView   AccessLevel = "VIEW"
	AccessEdit   AccessLevel = "EDIT"
	AccessRemove AccessLevel = "REMOVE"

	// AccessRemoveFromList is a sentinel accepted only by access-list
	// updates: it deletes the principal's entry instead of setting a level.
	AccessRemoveFromList AccessLevel = "REMOVE_FROM_LIST"
)

var accessRank = map[AccessLevel]int{
	AccessView:   1,
	AccessEdit:   2,
	AccessRemove: 3,
}

// Valid reports whether l is a grantable access level.
func (l AccessLevel) Valid() bool {
	_, ok := accessRank[l]
	return ok
}

// Satisfies reports whether a principal holding l passes a check for
// required.
func (l AccessLevel) Satisfies(required AccessLevel) bool {
	return accessRank[l] >= accessRank[required]
}

// AccessEntry grants one principal a level of access to one dashboard.
type AccessEntry struct {
	ID    uuid.UUID     `json:"id"`
	Type  PrincipalType `json:"type"`
	Level AccessLevel   `json:"level"`
}

// AccessList is the per-dashboard access list. Entries are unique per
// (principal id, principal type); the owner never appears in the list.
type AccessList []AccessEntry

// Find returns the entry for the given principal identity, if present.
func (l AccessList) Find(id uuid.UUID, t PrincipalType) (AccessEntry, bool) {
	for _, e := range l {
		if e.ID == id && e.Type == t {
			return e, true
		}
	}
	return AccessEntry{}, false
}

// Value implements driver.Valuer so the list persists as a JSON column.
func (l AccessList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *AccessList) Scan(v interface{}) error {
	var b []byte
	switch vv := v.(type) {
	case []byte:
		b = vv
	case string:
		b = []byte(vv)
	case nil:
		*l = AccessList{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into AccessList", v)
	}
	return json.Unmarshal(b, l)
}

// DashboardPermission is the 1:1 authorization record of a dashboard: the
// owning principal, if any, plus the explicit access list. A record may be
// ownerless only transiently; access mutation is forbidden until an owner is
// assigned.
type DashboardPermission struct {
	DashboardID uuid.UUID     `db:"id" json:"id"`
	OwnerID     *uuid.UUID    `db:"owner_id" json:"owner_id"`
	OwnerType   PrincipalType `db:"owner_type" json:"owner_type"`
	Access      AccessList    `db:"access" json:"access"`
	CRUDLog
}

// HasOwner reports whether an owner is assigned.
func (p *DashboardPermission) HasOwner() bool {
	return p.OwnerID != nil
}

// IsOwner reports whether pr is the record's owner.
func (p *DashboardPermission) IsOwner(pr Principal) bool {
	return p.OwnerID != nil && *p.OwnerID == pr.ID && p.OwnerType == pr.Type
}

// AccessUpdate is one upsert in an access-list update. Level may be
// AccessRemoveFromList to delete the principal's entry.
type AccessUpdate struct {
	ID    uuid.UUID     `json:"id"`
	Type  PrincipalType `json:"type"`
	Level AccessLevel   `json:"level"`
}

// OwnerUpdate names the candidate for an ownership transfer.
type OwnerUpdate struct {
	ID   uuid.UUID     `json:"id"`
	Type PrincipalType `json:"type"`
}

// PermissionFilter is a filter for permission records.
type PermissionFilter struct {
	DashboardID string // fuzzy match on the dashboard id
}

// DashboardPermissionService manages per-dashboard permission records. The
// acting principal is carried on the context; mutations enforce the
// ownership rules documented on each method.
type DashboardPermissionService interface {
	// FindByDashboard returns the permission record of one dashboard.
	FindByDashboard(ctx context.Context, dashboardID uuid.UUID) (*DashboardPermission, error)

	// FindPermissions returns records matching filter and the total count.
	FindPermissions(ctx context.Context, filter PermissionFilter, opts FindOptions) ([]*DashboardPermission, int, error)

	// UpdateAccess applies access-list upserts. The caller must hold
	// REMOVE-level control (owner or superadmin); ownerless records reject
	// every caller.
	UpdateAccess(ctx context.Context, dashboardID uuid.UUID, upserts []AccessUpdate) (*DashboardPermission, error)

	// UpdateOwner transfers ownership. Only the current owner or a
	// superadmin may call; the candidate must already hold at least EDIT
	// access or be a superadmin.
	UpdateOwner(ctx context.Context, dashboardID uuid.UUID, upd OwnerUpdate) (*DashboardPermission, error)
}

// Package vistable holds the domain types and service contracts of the
// vistable dashboard platform. Implementations live in subpackages; HTTP
// routing, authentication and external query execution are collaborators
// behind the interfaces defined here.
package vistable

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// DashboardContent is the versioned JSON document a dashboard stores. Its
// shape is owned by the content schema migrations; everything outside the
// migration engine treats it as opaque apart from the version field.
type DashboardContent map[string]interface{}

// Version returns the embedded schema version, or the empty string for a
// document that predates versioning.
func (c DashboardContent) Version() string {
	v, _ := c["version"].(string)
	return v
}

// Clone returns a deep copy of the content.
func (c DashboardContent) Clone() DashboardContent {
	if c == nil {
		return nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		// content always originates from unmarshalled JSON
		panic(fmt.Sprintf("clone dashboard content: %v", err))
	}
	out := DashboardContent{}
	if err := json.Unmarshal(b, &out); err != nil {
		panic(fmt.Sprintf("clone dashboard content: %v", err))
	}
	return out
}

// Value implements driver.Valuer so content persists as a JSON column.
func (c DashboardContent) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (c *DashboardContent) Scan(v interface{}) error {
	var b []byte
	switch vv := v.(type) {
	case []byte:
		b = vv
	case string:
		b = []byte(vv)
	case nil:
		*c = nil
		return nil
	default:
		return fmt.Errorf("cannot scan %T into DashboardContent", v)
	}
	return json.Unmarshal(b, c)
}

// Dashboard represents a dashboard all of its base settings.
type Dashboard struct {
	ID       uuid.UUID        `db:"id" json:"id"`
	Name     string           `db:"name" json:"name"`
	Group    string           `db:"group_name" json:"group"`
	IsPreset bool             `db:"is_preset" json:"is_preset"`
	Content  DashboardContent `db:"content" json:"content"`
	CRUDLog
}

// DashboardFilter is a filter for dashboards.
type DashboardFilter struct {
	Name     string // fuzzy match
	Group    string
	IsPreset *bool
}

// DashboardUpdate is the patch structure for a dashboard.
type DashboardUpdate struct {
	Name    *string          `json:"name"`
	Group   *string          `json:"group"`
	Content DashboardContent `json:"content"`
}

// DashboardService represents a service for managing dashboards.
type DashboardService interface {
	// FindDashboardByID returns a single dashboard by ID.
	FindDashboardByID(ctx context.Context, id uuid.UUID) (*Dashboard, error)

	// FindDashboards returns a list of dashboards that match filter and the total count of matching dashboards.
	FindDashboards(ctx context.Context, filter DashboardFilter, opts FindOptions) ([]*Dashboard, int, error)

	// CreateDashboard creates a new dashboard and sets d.ID with the new identifier.
	CreateDashboard(ctx context.Context, d *Dashboard) error

	// UpdateDashboard updates a single dashboard with changeset.
	// Returns the new dashboard state after update.
	UpdateDashboard(ctx context.Context, id uuid.UUID, upd DashboardUpdate) (*Dashboard, error)

	// DeleteDashboard removes a dashboard by ID.
	DeleteDashboard(ctx context.Context, id uuid.UUID) error
}

package vistable

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DashboardChangelog is one persisted state transition of a dashboard's
// content: a line-oriented diff between the canonicalized before and after
// snapshots. Rows are immutable once created and only exist for non-empty
// diffs.
type DashboardChangelog struct {
	ID          uuid.UUID `db:"id" json:"id"`
	DashboardID uuid.UUID `db:"dashboard_id" json:"dashboard_id"`
	Diff        string    `db:"diff" json:"diff"`
	CreateTime  time.Time `db:"create_time" json:"create_time"`
}

// ChangelogFilter is a filter for changelog rows.
type ChangelogFilter struct {
	DashboardID *uuid.UUID
}

// DashboardChangelogService records and lists dashboard content changelogs.
type DashboardChangelogService interface {
	// CreateChangelog diffs the two snapshots and persists a row when the
	// diff is non-empty. Returns nil when there is nothing to record.
	// Diffing failures are swallowed (logged) so the caller's mutation is
	// never poisoned by changelog bookkeeping.
	CreateChangelog(ctx context.Context, dashboardID uuid.UUID, before, after interface{}) (*DashboardChangelog, error)

	// FindChangelogs returns rows matching filter and the total count.
	FindChangelogs(ctx context.Context, filter ChangelogFilter, opts FindOptions) ([]*DashboardChangelog, int, error)
}

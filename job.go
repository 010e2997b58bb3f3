package vistable

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// JobType names a kind of background job.
type JobType string

const (
	JobTypeRenameDataSource JobType = "RENAME_DATASOURCE"
)

// JobStatus is the lifecycle state of a job. Jobs are never re-enqueued;
// retrying means creating a new row.
type JobStatus string

const (
	JobStatusInit    JobStatus = "INIT"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// JSONMap is a JSON object column.
type JSONMap map[string]interface{}

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(v interface{}) error {
	var b []byte
	switch vv := v.(type) {
	case []byte:
		b = vv
	case string:
		b = []byte(vv)
	case nil:
		*m = nil
		return nil
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", v)
	}
	return json.Unmarshal(b, m)
}

// Job is one queued unit of background work.
type Job struct {
	ID     uuid.UUID `db:"id" json:"id"`
	Type   JobType   `db:"type" json:"type"`
	Status JobStatus `db:"status" json:"status"`
	Params JSONMap   `db:"params" json:"params"`
	Result JSONMap   `db:"result" json:"result"`
	CRUDLog
}

// RenameDataSourceParams are the parameters of a RENAME_DATASOURCE job.
type RenameDataSourceParams struct {
	Type   string `json:"type"`
	OldKey string `json:"old_key"`
	NewKey string `json:"new_key"`
}

// AffectedDashboard names one dashboard rewritten by a rename job together
// with the ids of the queries whose key changed.
type AffectedDashboard struct {
	DashboardID uuid.UUID `json:"dashboard_id"`
	Queries     []string  `json:"queries"`
}

// RenameResult is the result payload of a successful rename job.
type RenameResult struct {
	AffectedDashboards []AffectedDashboard `json:"affected_dashboards"`
}

// JobFilter is a filter for job rows. Search fuzzy-matches the job type and
// status.
type JobFilter struct {
	Search string
}

// JobService enqueues and lists background jobs. Enqueueing a rename kicks
// the coordinator asynchronously; completion is observed through FindJobs.
type JobService interface {
	AddRenameDataSourceJob(ctx context.Context, params RenameDataSourceParams) (*Job, error)
	FindJobs(ctx context.Context, filter JobFilter, opts FindOptions) ([]*Job, int, error)
}

package vistable

import (
	"context"

	"github.com/google/uuid"
)

// DataSource identifies an external query target by (type, key). The key is
// what dashboard queries reference; renaming it is a coordinated job, never
// an in-place edit (see JobService).
type DataSource struct {
	ID   uuid.UUID `db:"id" json:"id"`
	Type string    `db:"type" json:"type"`
	Key  string    `db:"key" json:"key"`
	CRUDLog
}

// DataSourceService represents a service for managing datasource metadata.
// Query execution against the datasource happens outside this module.
type DataSourceService interface {
	FindDataSourceByID(ctx context.Context, id uuid.UUID) (*DataSource, error)
	FindDataSourceByKey(ctx context.Context, dsType, key string) (*DataSource, error)
	FindDataSources(ctx context.Context, opts FindOptions) ([]*DataSource, int, error)
	CreateDataSource(ctx context.Context, ds *DataSource) error
	DeleteDataSource(ctx context.Context, id uuid.UUID) error
}

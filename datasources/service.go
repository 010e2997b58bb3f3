// Package datasources manages datasource metadata. The key of a datasource
// is referenced by dashboard queries; it is renamed only through the job
// coordinator, never edited in place here.
package datasources

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/vistable/vistable"
	"github.com/vistable/vistable/kit/errors"
	"github.com/vistable/vistable/sqlite"
)

var _ vistable.DataSourceService = (*Service)(nil)

var datasourceColumns = []string{"id", "type", "key", "create_time", "update_time"}

// Service persists datasource rows.
type Service struct {
	store *sqlite.SqlStore
	log   *zap.Logger
	clock clock.Clock
}

type ServiceOption func(*Service)

// WithClock overrides the wall clock, for tests.
func WithClock(c clock.Clock) ServiceOption {
	return func(s *Service) {
		s.clock = c
	}
}

func NewService(log *zap.Logger, store *sqlite.SqlStore, opts ...ServiceOption) *Service {
	s := &Service{
		store: store,
		log:   log,
		clock: clock.New(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) FindDataSourceByID(ctx context.Context, id uuid.UUID) (*vistable.DataSource, error) {
	s.store.Mu.RLock()
	defer s.store.Mu.RUnlock()

	query, args, err := sq.Select(datasourceColumns...).
		From("datasource").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var ds vistable.DataSource
	if err := sqlx.GetContext(ctx, s.store.DB, &ds, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, &errors.Error{
				Code: errors.ENotFound,
				Msg:  fmt.Sprintf("datasource %s not found", id),
				Op:   "datasources.FindDataSourceByID",
			}
		}
		return nil, err
	}
	return &ds, nil
}

func (s *Service) FindDataSourceByKey(ctx context.Context, dsType, key string) (*vistable.DataSource, error) {
	s.store.Mu.RLock()
	defer s.store.Mu.RUnlock()

	return FindDataSourceByKeyTx(ctx, s.store.DB, dsType, key)
}

// FindDataSourceByKeyTx resolves a datasource by its (type, key) identity on
// any open handle. The rename coordinator uses it inside its job
// transaction.
func FindDataSourceByKeyTx(ctx context.Context, db sqlx.QueryerContext, dsType, key string) (*vistable.DataSource, error) {
	query, args, err := sq.Select(datasourceColumns...).
		From("datasource").
		Where(sq.Eq{"type": dsType, "key": key}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var ds vistable.DataSource
	if err := sqlx.GetContext(ctx, db, &ds, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, &errors.Error{
				Code: errors.ENotFound,
				Msg:  fmt.Sprintf("datasource %s/%s not found", dsType, key),
				Op:   "datasources.FindDataSourceByKey",
			}
		}
		return nil, err
	}
	return &ds, nil
}

func (s *Service) FindDataSources(ctx context.Context, opts vistable.FindOptions) ([]*vistable.DataSource, int, error) {
	s.store.Mu.RLock()
	defer s.store.Mu.RUnlock()

	base := sq.Select(datasourceColumns...).
		From("datasource").
		OrderBy("type ASC", "key ASC").
		Offset(uint64(opts.Offset())).
		Limit(uint64(opts.Limit()))

	query, args, err := base.ToSql()
	if err != nil {
		return nil, 0, err
	}
	var rows []*vistable.DataSource
	if err := sqlx.SelectContext(ctx, s.store.DB, &rows, query, args...); err != nil {
		return nil, 0, err
	}

	var total int
	if err := sqlx.GetContext(ctx, s.store.DB, &total, "SELECT count(*) FROM datasource"); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (s *Service) CreateDataSource(ctx context.Context, ds *vistable.DataSource) error {
	if ds.Type == "" || ds.Key == "" {
		return &errors.Error{
			Code: errors.EInvalid,
			Msg:  "datasource type and key are required",
			Op:   "datasources.CreateDataSource",
		}
	}

	s.store.Mu.Lock()
	defer s.store.Mu.Unlock()

	ds.ID = uuid.New()
	now := s.clock.Now().UTC()
	ds.SetCreateTime(now)
	ds.SetUpdateTime(now)

	query, args, err := sq.Insert("datasource").
		Columns(datasourceColumns...).
		Values(ds.ID, ds.Type, ds.Key, ds.CreateTime, ds.UpdateTime).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.store.DB.ExecContext(ctx, query, args...); err != nil {
		return &errors.Error{
			Code: errors.EConflict,
			Msg:  fmt.Sprintf("datasource %s/%s already exists", ds.Type, ds.Key),
			Err:  err,
		}
	}
	return nil
}

func (s *Service) DeleteDataSource(ctx context.Context, id uuid.UUID) error {
	s.store.Mu.Lock()
	defer s.store.Mu.Unlock()

	query, args, err := sq.Delete("datasource").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := s.store.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &errors.Error{
			Code: errors.ENotFound,
			Msg:  fmt.Sprintf("datasource %s not found", id),
			Op:   "datasources.DeleteDataSource",
		}
	}
	return nil
}

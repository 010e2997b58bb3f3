// Package dashboards implements dashboard CRUD on sqlite, together with the
// content schema ledger and the batch content migrator.
package dashboards

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
	"github.com/vistable/vistable/changelog"
	vcontext "github.com/vistable/vistable/context"
	"github.com/vistable/vistable/kit/errors"
	"github.com/vistable/vistable/migration"
	"github.com/vistable/vistable/permissions"
	"github.com/vistable/vistable/sqlite"
)

var _ vistable.DashboardService = (*Service)(nil)

var dashboardColumns = []string{"id", "name", "group_name", "is_preset", "content", "create_time", "update_time"}

// Service persists dashboards. Creating a dashboard provisions its 1:1
// permission record; updating the content records a changelog row.
type Service struct {
	store      *sqlite.SqlStore
	runner     *migration.Runner
	perms      *permissions.Service
	changelogs *changelog.Service
	log        *zap.Logger
	clock      clock.Clock
}

type ServiceOption func(*Service)

// WithClock overrides the wall clock, for tests.
func WithClock(c clock.Clock) ServiceOption {
	return func(s *Service) {
		s.clock = c
	}
}

func NewService(log *zap.Logger, store *sqlite.SqlStore, runner *migration.Runner, perms *permissions.Service, changelogs *changelog.Service, opts ...ServiceOption) *Service {
	s := &Service{
		store:      store,
		runner:     runner,
		perms:      perms,
		changelogs: changelogs,
		log:        log,
		clock:      clock.New(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// FindDashboardByID returns a single dashboard by ID.
func (s *Service) FindDashboardByID(ctx context.Context, id uuid.UUID) (*vistable.Dashboard, error) {
	s.store.Mu.RLock()
	defer s.store.Mu.RUnlock()

	return findDashboardByID(ctx, s.store.DB, id)
}

func findDashboardByID(ctx context.Context, db sqlx.QueryerContext, id uuid.UUID) (*vistable.Dashboard, error) {
	query, args, err := sq.Select(dashboardColumns...).
		From("dashboard").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var d vistable.Dashboard
	if err := sqlx.GetContext(ctx, db, &d, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, &errors.Error{
				Code: errors.ENotFound,
				Msg:  fmt.Sprintf("dashboard %s not found", id),
				Op:   "dashboards.FindDashboardByID",
			}
		}
		return nil, err
	}
	return &d, nil
}

var dashboardSortFields = map[string]string{
	"id":          "id",
	"name":        "name",
	"group":       "group_name",
	"create_time": "create_time",
	"update_time": "update_time",
}

// FindDashboards returns dashboards matching filter and the total match
// count.
func (s *Service) FindDashboards(ctx context.Context, filter vistable.DashboardFilter, opts vistable.FindOptions) ([]*vistable.Dashboard, int, error) {
	s.store.Mu.RLock()
	defer s.store.Mu.RUnlock()

	base := sq.Select(dashboardColumns...).From("dashboard")
	count := sq.Select("count(*)").From("dashboard")

	applyWhere := func(cond interface{}, args ...interface{}) {
		base = base.Where(cond, args...)
		count = count.Where(cond, args...)
	}
	if filter.Name != "" {
		applyWhere(sq.Expr("name LIKE ? ESCAPE '\\'", "%"+sqlite.EscapeLikePattern(filter.Name)+"%"))
	}
	if filter.Group != "" {
		applyWhere(sq.Eq{"group_name": filter.Group})
	}
	if filter.IsPreset != nil {
		applyWhere(sq.Eq{"is_preset": *filter.IsPreset})
	}

	if len(opts.Sort) == 0 {
		base = base.OrderBy("create_time DESC")
	}
	for _, srt := range opts.Sort {
		col, ok := dashboardSortFields[srt.Field]
		if !ok {
			return nil, 0, &errors.Error{
				Code: errors.EInvalid,
				Msg:  fmt.Sprintf("cannot sort dashboards by %q", srt.Field),
				Op:   "dashboards.FindDashboards",
			}
		}
		order := "ASC"
		if srt.Order == vistable.SortDesc {
			order = "DESC"
		}
		base = base.OrderBy(col + " " + order)
	}
	base = base.Offset(uint64(opts.Offset())).Limit(uint64(opts.Limit()))

	query, args, err := base.ToSql()
	if err != nil {
		return nil, 0, err
	}
	var rows []*vistable.Dashboard
	if err := sqlx.SelectContext(ctx, s.store.DB, &rows, query, args...); err != nil {
		return nil, 0, err
	}

	query, args, err = count.ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := sqlx.GetContext(ctx, s.store.DB, &total, query, args...); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// CreateDashboard creates d and provisions its permission record, owned by
// the calling principal. Content, whatever its version, is brought up to the
// latest schema before it is stored.
func (s *Service) CreateDashboard(ctx context.Context, d *vistable.Dashboard) error {
	p, err := vcontext.GetPrincipal(ctx)
	if err != nil {
		return err
	}
	if d.Name == "" {
		return &errors.Error{
			Code: errors.EInvalid,
			Msg:  "dashboard name is required",
			Op:   "dashboards.CreateDashboard",
		}
	}

	res, err := s.runner.Migrate(d.Content, &migration.Env{})
	if err != nil {
		return err
	}
	d.Content = res.Doc

	d.ID = uuid.New()
	now := s.clock.Now().UTC()
	d.SetCreateTime(now)
	d.SetUpdateTime(now)

	tx, release, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer release()

	query, args, err := sq.Insert("dashboard").
		Columns(dashboardColumns...).
		Values(d.ID, d.Name, d.Group, d.IsPreset, d.Content, d.CreateTime, d.UpdateTime).
		ToSql()
	if err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		tx.Rollback()
		return err
	}

	if err := s.perms.CreateTx(ctx, tx, d.ID, &p); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.log.Info("Dashboard created",
		zap.String("dashboard_id", d.ID.String()),
		zap.String("name", d.Name),
		zap.Bool("is_preset", d.IsPreset),
	)
	return nil
}

// UpdateDashboard applies the patch and returns the new state. Updated
// content must already be at the latest schema version; a content change
// records a changelog row in the same transaction.
func (s *Service) UpdateDashboard(ctx context.Context, id uuid.UUID, upd vistable.DashboardUpdate) (*vistable.Dashboard, error) {
	if upd.Content != nil {
		if v := upd.Content.Version(); v != DefaultLedger.Latest() {
			return nil, &errors.Error{
				Code: errors.EInvalid,
				Msg:  fmt.Sprintf("content version %q is outdated, expected %q", v, DefaultLedger.Latest()),
				Op:   "dashboards.UpdateDashboard",
			}
		}
	}

	tx, release, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	before, err := findDashboardByID(ctx, tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	after := *before
	if upd.Name != nil {
		after.Name = *upd.Name
	}
	if upd.Group != nil {
		after.Group = *upd.Group
	}
	if upd.Content != nil {
		after.Content = upd.Content
	}
	after.SetUpdateTime(s.clock.Now().UTC())

	query, args, err := sq.Update("dashboard").
		Set("name", after.Name).
		Set("group_name", after.Group).
		Set("content", after.Content).
		Set("update_time", after.UpdateTime).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		tx.Rollback()
		return nil, err
	}

	if _, err := s.changelogs.AppendTx(ctx, tx, id, before, &after); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &after, nil
}

// DeleteDashboard removes a dashboard. The permission record cascades with
// it; changelog rows are kept as history.
func (s *Service) DeleteDashboard(ctx context.Context, id uuid.UUID) error {
	s.store.Mu.Lock()
	defer s.store.Mu.Unlock()

	query, args, err := sq.Delete("dashboard").Where(sq.Eq{"id": id}).ToSql()
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
			Msg:  fmt.Sprintf("dashboard %s not found", id),
			Op:   "dashboards.DeleteDashboard",
		}
	}
	return nil
}

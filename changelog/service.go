package changelog

import (
	"context"
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

var _ vistable.DashboardChangelogService = (*Service)(nil)

// Service persists changelog rows computed by a Recorder.
type Service struct {
	store    *sqlite.SqlStore
	recorder *Recorder
	log      *zap.Logger
	clock    clock.Clock
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
		store:    store,
		recorder: NewRecorder(log),
		log:      log,
		clock:    clock.New(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Recorder exposes the service's diff recorder for callers that only need
// the diff.
func (s *Service) Recorder() *Recorder {
	return s.recorder
}

// CreateChangelog diffs the snapshots and stores a row when the diff is
// non-empty. Returns nil with no error when nothing changed.
func (s *Service) CreateChangelog(ctx context.Context, dashboardID uuid.UUID, before, after interface{}) (*vistable.DashboardChangelog, error) {
	d := s.recorder.Diff(before, after)
	if d == "" {
		return nil, nil
	}

	s.store.Mu.Lock()
	defer s.store.Mu.Unlock()

	return s.insert(ctx, s.store.DB, dashboardID, d)
}

// AppendTx is CreateChangelog inside a caller-owned transaction. The caller
// is responsible for holding the store's write lock.
func (s *Service) AppendTx(ctx context.Context, tx *sqlx.Tx, dashboardID uuid.UUID, before, after interface{}) (*vistable.DashboardChangelog, error) {
	d := s.recorder.Diff(before, after)
	if d == "" {
		return nil, nil
	}
	return s.insert(ctx, tx, dashboardID, d)
}

func (s *Service) insert(ctx context.Context, db sqlx.ExtContext, dashboardID uuid.UUID, d string) (*vistable.DashboardChangelog, error) {
	row := &vistable.DashboardChangelog{
		ID:          uuid.New(),
		DashboardID: dashboardID,
		Diff:        d,
		CreateTime:  s.clock.Now().UTC(),
	}

	query, args, err := sq.Insert("dashboard_changelog").
		Columns("id", "dashboard_id", "diff", "create_time").
		Values(row.ID, row.DashboardID, row.Diff, row.CreateTime).
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	return row, nil
}

var changelogSortFields = map[string]bool{
	"id":           true,
	"dashboard_id": true,
	"create_time":  true,
}

// FindChangelogs returns rows matching filter along with the total count of
// matching rows.
func (s *Service) FindChangelogs(ctx context.Context, filter vistable.ChangelogFilter, opts vistable.FindOptions) ([]*vistable.DashboardChangelog, int, error) {
	s.store.Mu.RLock()
	defer s.store.Mu.RUnlock()

	base := sq.Select("id", "dashboard_id", "diff", "create_time").From("dashboard_changelog")
	count := sq.Select("count(*)").From("dashboard_changelog")

	if filter.DashboardID != nil {
		base = base.Where(sq.Eq{"dashboard_id": *filter.DashboardID})
		count = count.Where(sq.Eq{"dashboard_id": *filter.DashboardID})
	}

	if len(opts.Sort) == 0 {
		base = base.OrderBy("create_time DESC")
	}
	for _, srt := range opts.Sort {
		if !changelogSortFields[srt.Field] {
			return nil, 0, &errors.Error{
				Code: errors.EInvalid,
				Msg:  fmt.Sprintf("cannot sort changelogs by %q", srt.Field),
				Op:   "changelog.FindChangelogs",
			}
		}
		order := "ASC"
		if srt.Order == vistable.SortDesc {
			order = "DESC"
		}
		base = base.OrderBy(srt.Field + " " + order)
	}

	base = base.Offset(uint64(opts.Offset())).Limit(uint64(opts.Limit()))

	query, args, err := base.ToSql()
	if err != nil {
		return nil, 0, err
	}

	var rows []*vistable.DashboardChangelog
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

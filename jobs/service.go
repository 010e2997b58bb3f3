// Package jobs runs the background job queue. Today there is one job kind:
// renaming a datasource key and rewriting every dashboard query that
// references it, all inside a single transaction per job.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/vistable/vistable"
	"github.com/vistable/vistable/changelog"
	"github.com/vistable/vistable/datasources"
	"github.com/vistable/vistable/kit/errors"
	"github.com/vistable/vistable/sqlite"
)

var _ vistable.JobService = (*Service)(nil)

// PoolEvictor closes any pooled connection held under a datasource identity.
// The rename coordinator evicts before the rename becomes visible so nothing
// keeps querying through the old key.
type PoolEvictor interface {
	Evict(ctx context.Context, dsType, key string) error
}

// NopEvictor is a PoolEvictor for deployments without a connection pool.
type NopEvictor struct{}

func (NopEvictor) Evict(context.Context, string, string) error { return nil }

const defaultEvictTimeout = 10 * time.Second

var jobColumns = []string{"id", "type", "status", "params", "result", "create_time", "update_time"}

// Service enqueues and processes jobs. One processing loop runs per process;
// enqueueing while a loop is draining is picked up by that loop's re-query
// rather than starting a second one.
type Service struct {
	store      *sqlite.SqlStore
	evictor    PoolEvictor
	changelogs *changelog.Service
	log        *zap.Logger
	clock      clock.Clock

	evictTimeout time.Duration
	processing   atomic.Bool
}

type ServiceOption func(*Service)

// WithClock overrides the wall clock, for tests.
func WithClock(c clock.Clock) ServiceOption {
	return func(s *Service) {
		s.clock = c
	}
}

// WithEvictTimeout bounds how long a single pool eviction may take before
// the job is failed.
func WithEvictTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.evictTimeout = d
	}
}

func NewService(log *zap.Logger, store *sqlite.SqlStore, evictor PoolEvictor, changelogs *changelog.Service, opts ...ServiceOption) *Service {
	s := &Service{
		store:        store,
		evictor:      evictor,
		changelogs:   changelogs,
		log:          log,
		clock:        clock.New(),
		evictTimeout: defaultEvictTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AddRenameDataSourceJob enqueues a rename and kicks the processing loop
// without waiting for it. The caller observes completion through FindJobs.
func (s *Service) AddRenameDataSourceJob(ctx context.Context, params vistable.RenameDataSourceParams) (*vistable.Job, error) {
	if params.Type == "" || params.OldKey == "" || params.NewKey == "" {
		return nil, &errors.Error{
			Code: errors.EInvalid,
			Msg:  "type, old_key and new_key are required",
			Op:   "jobs.AddRenameDataSourceJob",
		}
	}
	if params.OldKey == params.NewKey {
		return nil, &errors.Error{
			Code: errors.EInvalid,
			Msg:  "old_key and new_key are identical",
			Op:   "jobs.AddRenameDataSourceJob",
		}
	}

	now := s.clock.Now().UTC()
	job := &vistable.Job{
		ID:     uuid.New(),
		Type:   vistable.JobTypeRenameDataSource,
		Status: vistable.JobStatusInit,
		Params: vistable.JSONMap{
			"type":    params.Type,
			"old_key": params.OldKey,
			"new_key": params.NewKey,
		},
		Result: vistable.JSONMap{},
	}
	job.SetCreateTime(now)
	job.SetUpdateTime(now)

	s.store.Mu.Lock()
	query, args, err := sq.Insert("job").
		Columns(jobColumns...).
		Values(job.ID, job.Type, job.Status, job.Params, job.Result, job.CreateTime, job.UpdateTime).
		ToSql()
	if err == nil {
		_, err = s.store.DB.ExecContext(ctx, query, args...)
	}
	s.store.Mu.Unlock()
	if err != nil {
		return nil, err
	}

	go s.ProcessRenameDataSourceJobs(context.Background())
	return job, nil
}

// ProcessRenameDataSourceJobs drains INIT rename jobs oldest-first. At most
// one drain runs per process; a call while one is active returns
// immediately. The queue is re-read after every pass so jobs enqueued while
// draining are picked up before the loop exits.
func (s *Service) ProcessRenameDataSourceJobs(ctx context.Context) {
	if !s.processing.CompareAndSwap(false, true) {
		return
	}
	defer s.processing.Store(false)

	for {
		jobs, err := s.pendingRenameJobs(ctx)
		if err != nil {
			s.log.Error("Failed to query pending rename jobs", zap.Error(err))
			return
		}
		if len(jobs) == 0 {
			return
		}
		for _, job := range jobs {
			s.processRenameJob(ctx, job)
		}
	}
}

func (s *Service) pendingRenameJobs(ctx context.Context) ([]*vistable.Job, error) {
	s.store.Mu.RLock()
	defer s.store.Mu.RUnlock()

	query, args, err := sq.Select(jobColumns...).
		From("job").
		Where(sq.Eq{"type": vistable.JobTypeRenameDataSource, "status": vistable.JobStatusInit}).
		OrderBy("create_time ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	var jobs []*vistable.Job
	if err := sqlx.SelectContext(ctx, s.store.DB, &jobs, query, args...); err != nil {
		return nil, err
	}
	return jobs, nil
}

// processRenameJob runs one job in its own transaction. A failure rolls the
// whole rename back and marks the job FAILED outside the transaction; the
// loop then moves on to the next job.
func (s *Service) processRenameJob(ctx context.Context, job *vistable.Job) {
	result, err := s.runRenameJob(ctx, job)
	if err != nil {
		s.log.Warn("Rename job failed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		if merr := s.markJob(ctx, job.ID, vistable.JobStatusFailed, vistable.JSONMap{"error": err.Error()}); merr != nil {
			s.log.Error("Failed to mark job as failed", zap.String("job_id", job.ID.String()), zap.Error(merr))
		}
		return
	}

	s.log.Info("Rename job succeeded",
		zap.String("job_id", job.ID.String()),
		zap.Int("affected_dashboards", len(result.AffectedDashboards)),
	)
}

func (s *Service) runRenameJob(ctx context.Context, job *vistable.Job) (*vistable.RenameResult, error) {
	var params vistable.RenameDataSourceParams
	b, err := json.Marshal(job.Params)
	if err == nil {
		err = json.Unmarshal(b, &params)
	}
	if err != nil {
		return nil, &errors.Error{
			Code: errors.EInvalid,
			Msg:  "malformed rename job params",
			Err:  err,
		}
	}

	// the eviction must land before the rename is visible: a stale pooled
	// connection writing through the old identity afterwards would target
	// the wrong datasource. Eviction failure fails the job. It runs before
	// the transaction opens so a slow pool manager never holds the store's
	// write lock.
	evictCtx, cancel := context.WithTimeout(ctx, s.evictTimeout)
	err = s.evictor.Evict(evictCtx, params.Type, params.OldKey)
	cancel()
	if err != nil {
		return nil, &errors.Error{
			Code: errors.EInternal,
			Msg:  fmt.Sprintf("evicting pooled connection for %s/%s", params.Type, params.OldKey),
			Err:  err,
		}
	}

	tx, release, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	result, err := s.renameInTx(ctx, tx, job, params)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) renameInTx(ctx context.Context, tx *sqlx.Tx, job *vistable.Job, params vistable.RenameDataSourceParams) (*vistable.RenameResult, error) {
	ds, err := datasources.FindDataSourceByKeyTx(ctx, tx, params.Type, params.OldKey)
	if err != nil {
		return nil, err
	}

	query, args, err := sq.Update("datasource").
		Set("key", params.NewKey).
		Set("update_time", s.clock.Now().UTC()).
		Where(sq.Eq{"id": ds.ID}).
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}

	result, err := s.rewriteDashboards(ctx, tx, params)
	if err != nil {
		return nil, err
	}

	resultMap := vistable.JSONMap{}
	rb, err := json.Marshal(result)
	if err == nil {
		err = json.Unmarshal(rb, &resultMap)
	}
	if err != nil {
		return nil, err
	}
	if err := s.markJobTx(ctx, tx, job.ID, vistable.JobStatusSuccess, resultMap); err != nil {
		return nil, err
	}
	return result, nil
}

// rewriteDashboards rewrites the key of every query referencing the renamed
// datasource and records one changelog row per touched dashboard.
func (s *Service) rewriteDashboards(ctx context.Context, tx *sqlx.Tx, params vistable.RenameDataSourceParams) (*vistable.RenameResult, error) {
	matches, err := scanReferencingDashboards(ctx, tx, params.Type, params.OldKey)
	if err != nil {
		return nil, err
	}

	result := &vistable.RenameResult{AffectedDashboards: []vistable.AffectedDashboard{}}
	for _, d := range matches {
		before := *d

		content := d.Content.Clone()
		queryIDs := rewriteQueryKeys(content, params)
		if len(queryIDs) == 0 {
			continue
		}
		d.Content = content
		d.SetUpdateTime(s.clock.Now().UTC())

		query, args, err := sq.Update("dashboard").
			Set("content", d.Content).
			Set("update_time", d.UpdateTime).
			Where(sq.Eq{"id": d.ID}).
			ToSql()
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, err
		}
		if _, err := s.changelogs.AppendTx(ctx, tx, d.ID, &before, d); err != nil {
			return nil, err
		}

		result.AffectedDashboards = append(result.AffectedDashboards, vistable.AffectedDashboard{
			DashboardID: d.ID,
			Queries:     queryIDs,
		})
	}
	return result, nil
}

// rewriteQueryKeys rewrites matching query keys in place and returns the ids
// of the queries it touched.
func rewriteQueryKeys(content vistable.DashboardContent, params vistable.RenameDataSourceParams) []string {
	def, ok := content["definition"].(map[string]interface{})
	if !ok {
		return nil
	}
	queries, ok := def["queries"].([]interface{})
	if !ok {
		return nil
	}

	var ids []string
	for _, rq := range queries {
		q, ok := rq.(map[string]interface{})
		if !ok {
			continue
		}
		typ, _ := q["type"].(string)
		key, _ := q["key"].(string)
		if typ != params.Type || key != params.OldKey {
			continue
		}
		q["key"] = params.NewKey
		id, _ := q["id"].(string)
		ids = append(ids, id)
	}
	return ids
}

func (s *Service) markJob(ctx context.Context, id uuid.UUID, status vistable.JobStatus, result vistable.JSONMap) error {
	s.store.Mu.Lock()
	defer s.store.Mu.Unlock()

	return s.markJobOn(ctx, s.store.DB, id, status, result)
}

func (s *Service) markJobTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status vistable.JobStatus, result vistable.JSONMap) error {
	return s.markJobOn(ctx, tx, id, status, result)
}

func (s *Service) markJobOn(ctx context.Context, db sqlx.ExtContext, id uuid.UUID, status vistable.JobStatus, result vistable.JSONMap) error {
	query, args, err := sq.Update("job").
		Set("status", status).
		Set("result", result).
		Set("update_time", s.clock.Now().UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, query, args...)
	return err
}

var jobSortFields = map[string]bool{
	"id":          true,
	"type":        true,
	"status":      true,
	"create_time": true,
	"update_time": true,
}

// FindJobs returns jobs matching filter and the total match count. The
// search term fuzzy-matches the job type and status.
func (s *Service) FindJobs(ctx context.Context, filter vistable.JobFilter, opts vistable.FindOptions) ([]*vistable.Job, int, error) {
	s.store.Mu.RLock()
	defer s.store.Mu.RUnlock()

	base := sq.Select(jobColumns...).From("job")
	count := sq.Select("count(*)").From("job")

	if filter.Search != "" {
		like := "%" + sqlite.EscapeLikePattern(filter.Search) + "%"
		cond := sq.Expr(`(type LIKE ? ESCAPE '\' OR status LIKE ? ESCAPE '\')`, like, like)
		base = base.Where(cond)
		count = count.Where(cond)
	}

	if len(opts.Sort) == 0 {
		base = base.OrderBy("create_time DESC")
	}
	for _, srt := range opts.Sort {
		if !jobSortFields[srt.Field] {
			return nil, 0, &errors.Error{
				Code: errors.EInvalid,
				Msg:  fmt.Sprintf("cannot sort jobs by %q", srt.Field),
				Op:   "jobs.FindJobs",
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
	var rows []*vistable.Job
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

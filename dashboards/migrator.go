package dashboards

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/benbjohnson/clock"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/vistable/vistable"
	"github.com/vistable/vistable/changelog"
	"github.com/vistable/vistable/kit/errors"
	"github.com/vistable/vistable/migration"
	"github.com/vistable/vistable/sqlite"
)

// Migrator walks every stored dashboard and brings its content up to the
// latest schema version, persisting and recording a changelog row after each
// single step so an interrupted run leaves only whole-step state behind.
type Migrator struct {
	store      *sqlite.SqlStore
	registry   *migration.Registry
	changelogs *changelog.Service
	log        *zap.Logger
	clock      clock.Clock
}

type MigratorOption func(*Migrator)

// WithMigratorClock overrides the wall clock, for tests.
func WithMigratorClock(c clock.Clock) MigratorOption {
	return func(m *Migrator) {
		m.clock = c
	}
}

func NewMigrator(log *zap.Logger, store *sqlite.SqlStore, registry *migration.Registry, changelogs *changelog.Service, opts ...MigratorOption) *Migrator {
	m := &Migrator{
		store:      store,
		registry:   registry,
		changelogs: changelogs,
		log:        log,
		clock:      clock.New(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// MigrateAll migrates every dashboard. Any dashboard at a version missing
// from the ledger aborts the whole run: such a row is either corrupt or was
// written by a newer deployment, and continuing could destroy it.
func (m *Migrator) MigrateAll(ctx context.Context) error {
	m.log.Info("Starting migration of dashboards")

	dashboards, err := m.loadAll(ctx)
	if err != nil {
		return err
	}

	for _, d := range dashboards {
		if v := d.Content.Version(); v != "" && !m.registry.Ledger().Contains(v) {
			return &errors.Error{
				Code: errors.EInvalid,
				Msg:  fmt.Sprintf("dashboard %q version %q is not migratable", d.Name, v),
				Op:   "dashboards.MigrateAll",
			}
		}
		if err := m.migrateOne(ctx, d); err != nil {
			return err
		}
	}

	m.log.Info("Migration of dashboards finished", zap.Int("dashboards", len(dashboards)))
	return nil
}

func (m *Migrator) loadAll(ctx context.Context) ([]*vistable.Dashboard, error) {
	m.store.Mu.RLock()
	defer m.store.Mu.RUnlock()

	query, args, err := sq.Select(dashboardColumns...).From("dashboard").OrderBy("create_time ASC").ToSql()
	if err != nil {
		return nil, err
	}
	var out []*vistable.Dashboard
	if err := sqlx.SelectContext(ctx, m.store.DB, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// migrateOne applies outstanding steps one at a time, committing each before
// looking for the next.
func (m *Migrator) migrateOne(ctx context.Context, d *vistable.Dashboard) error {
	for {
		target, fn, ok, err := m.registry.NextStep(d.Content.Version())
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		next, err := fn(d.Content, &migration.Env{})
		if err != nil {
			return &errors.Error{
				Code: errors.EInternal,
				Msg:  fmt.Sprintf("migrating dashboard %q to version %q", d.Name, target),
				Op:   "dashboards.MigrateAll",
				Err:  err,
			}
		}
		if got := next.Version(); got != target {
			return &errors.Error{
				Code: errors.EInternal,
				Msg:  fmt.Sprintf("step for version %q produced a document at version %q", target, got),
				Op:   "dashboards.MigrateAll",
			}
		}

		before := *d
		d.Content = next
		d.SetUpdateTime(m.clock.Now().UTC())
		if err := m.persistStep(ctx, &before, d); err != nil {
			return err
		}

		m.log.Info("Migrated dashboard",
			zap.String("dashboard_id", d.ID.String()),
			zap.String("to_version", target),
		)
	}
}

func (m *Migrator) persistStep(ctx context.Context, before, after *vistable.Dashboard) error {
	tx, release, err := m.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer release()

	query, args, err := sq.Update("dashboard").
		Set("content", after.Content).
		Set("update_time", after.UpdateTime).
		Where(sq.Eq{"id": after.ID}).
		ToSql()
	if err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := m.changelogs.AppendTx(ctx, tx, after.ID, before, after); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

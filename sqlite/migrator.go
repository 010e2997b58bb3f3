package sqlite

import (
	"context"
	"embed"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Migrator applies the embedded SQL schema migrations to a SqlStore.
type Migrator struct {
	store *SqlStore
	log   *zap.Logger
}

func NewMigrator(store *SqlStore, log *zap.Logger) *Migrator {
	return &Migrator{
		store: store,
		log:   log,
	}
}

// Up applies every migration script from source whose number is greater
// than the database's current user_version, in ascending order. Each script
// runs in its own transaction together with the user_version bump, so a
// failed script leaves the schema at the previous version.
func (m *Migrator) Up(ctx context.Context, source embed.FS) error {
	list, err := source.ReadDir(".")
	if err != nil {
		return err
	}
	// sort by the numeric filename prefix to ensure the migrations are
	// applied in the correct order
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})

	current, err := m.store.userVersion()
	if err != nil {
		return err
	}

	final, err := scriptVersion(list[len(list)-1].Name())
	if err != nil {
		return err
	}

	// log this message only if there are migrations to run
	if final > current {
		m.log.Info("Bringing up metadata migrations", zap.Int("migration_count", final-current))
	}

	for _, f := range list {
		n := f.Name()
		v, err := scriptVersion(n)
		if err != nil {
			return err
		}

		if v <= current {
			continue
		}

		m.log.Debug("Executing metadata migration", zap.String("migration_name", n))
		script, err := source.ReadFile(n)
		if err != nil {
			return err
		}

		if err := m.apply(ctx, v, string(script)); err != nil {
			return err
		}
		current = v
	}

	return nil
}

func (m *Migrator) apply(ctx context.Context, version int, script string) error {
	m.store.Mu.Lock()
	defer m.store.Mu.Unlock()

	tx, err := m.store.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, script); err != nil {
		tx.Rollback()
		return err
	}

	if err := m.store.setUserVersion(ctx, tx, version); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// extract the version number as an integer from a file named like "0002_migration_name.sql"
func scriptVersion(filename string) (int, error) {
	vString := strings.Split(filename, "_")[0]
	vInt, err := strconv.Atoi(vString)
	if err != nil {
		return 0, err
	}

	return vInt, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// InmemPath can be used for a transient store, primarily in tests.
	InmemPath = ":memory:"
)

// SqlStore is the shared sqlite handle for all relational services.
//
// sqlite allows a single writer at a time. Mu serializes writes in-process
// so concurrent service mutations queue instead of hitting SQLITE_BUSY;
// readers take the read lock.
type SqlStore struct {
	Mu sync.RWMutex
	DB *sqlx.DB

	log  *zap.Logger
	path string
}

// NewSqlStore opens (creating if necessary) the database at path.
func NewSqlStore(path string, log *zap.Logger) (*SqlStore, error) {
	db, err := sqlx.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, err
	}
	log.Info("Resources opened", zap.String("path", path))

	// sqlite3 requires a single connection when an in-memory database is
	// used; otherwise each pooled connection sees a different database.
	if path == InmemPath {
		db.SetMaxOpenConns(1)
	}

	return &SqlStore{
		DB:   db,
		log:  log,
		path: path,
	}, nil
}

// dsn carries the pragmas as connection parameters. A PRAGMA issued with
// Exec only reaches the one pooled connection that runs it, so foreign key
// enforcement and the WAL journal mode are set here, where the driver
// applies them to every connection it opens.
func dsn(path string) string {
	if path == InmemPath {
		return path + "?_foreign_keys=on"
	}
	return "file:" + path + "?_foreign_keys=on&_journal_mode=WAL"
}

// Close closes the database.
func (s *SqlStore) Close() error {
	return s.DB.Close()
}

// BeginTx starts a write transaction under the store's write lock. The
// returned release function must be called after the transaction finishes,
// regardless of outcome.
func (s *SqlStore) BeginTx(ctx context.Context) (*sqlx.Tx, func(), error) {
	s.Mu.Lock()
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		s.Mu.Unlock()
		return nil, nil, err
	}
	return tx, s.Mu.Unlock, nil
}

// userVersion returns the sqlite user_version, which tracks the applied
// schema migration number.
func (s *SqlStore) userVersion() (int, error) {
	var v int
	if err := s.DB.Get(&v, "PRAGMA user_version"); err != nil {
		return 0, err
	}
	return v, nil
}

func (s *SqlStore) setUserVersion(ctx context.Context, tx *sql.Tx, v int) error {
	// PRAGMA does not support bind parameters
	_, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", v))
	return err
}

// execTrans executes a script in a single transaction, rolling back on
// failure.
func (s *SqlStore) execTrans(ctx context.Context, script string) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, script); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

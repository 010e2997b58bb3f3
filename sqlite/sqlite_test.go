package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestOnDiskStoreEnforcesForeignKeysOnEveryConnection(t *testing.T) {
	t.Parallel()

	store, err := NewSqlStore(filepath.Join(t.TempDir(), "vistable.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})

	var mode string
	require.NoError(t, store.DB.Get(&mode, "PRAGMA journal_mode"))
	require.Equal(t, "wal", mode)

	_, err = store.DB.Exec(`
		CREATE TABLE parent (id TEXT PRIMARY KEY);
		CREATE TABLE child (
			id TEXT PRIMARY KEY,
			parent_id TEXT NOT NULL REFERENCES parent (id)
		);
	`)
	require.NoError(t, err)

	// Hold two connections open at once so the violating insert runs on
	// distinct pooled connections, not only the one that ran the schema.
	ctx := context.Background()
	first, err := store.DB.Conn(ctx)
	require.NoError(t, err)
	defer first.Close()
	second, err := store.DB.Conn(ctx)
	require.NoError(t, err)
	defer second.Close()

	for _, conn := range []*sql.Conn{first, second} {
		_, err := conn.ExecContext(ctx, "INSERT INTO child (id, parent_id) VALUES (?, ?)", uuid.NewString(), "missing")
		require.ErrorContains(t, err, "FOREIGN KEY constraint failed")
	}
}

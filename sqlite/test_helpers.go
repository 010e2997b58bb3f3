package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vistable/vistable/sqlite/migrations"
)

// NewTestStore returns an in-memory store with the full schema applied, for
// use in tests across packages.
func NewTestStore(t *testing.T) *SqlStore {
	t.Helper()

	store, err := NewSqlStore(InmemPath, zaptest.NewLogger(t))
	require.NoError(t, err, "unable to open in-memory database")
	t.Cleanup(func() {
		store.Close()
	})

	require.NoError(t, NewMigrator(store, zaptest.NewLogger(t)).Up(context.Background(), migrations.All))
	return store
}

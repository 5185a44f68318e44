package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hangout-reservations/internal/database"
)

// createTestStore opens a migrated SQLite database in a temp dir.
func createTestStore(t *testing.T) *ItemStore {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, database.SQLite))
	return NewItemStore(db, database.SQLite)
}

func int64p(v int64) *int64 { return &v }

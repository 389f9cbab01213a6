package core

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

// OpenTestManifest opens an in-memory SQLite manifest for testing, migrated
// and truncated. The shared cache means tests see one database, so each
// caller starts by clearing it.
func OpenTestManifest(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	// Migrate the db
	assert.NoError(t, MigrateManifest(context.Background(), db))
	assert.NoError(t, TruncateManifest(context.Background(), db))
	return db
}

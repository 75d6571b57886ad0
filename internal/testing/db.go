// Package testing holds fixtures and fakes shared by the package tests.
package testing

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/aristath/assetflow/internal/database"
	"github.com/stretchr/testify/require"
)

// NewTestDB opens a migrated database named name inside the test's temp dir.
// A file is used rather than ":memory:" because every pooled connection to
// an in-memory DSN sees its own empty database. Names without an embedded
// schema ("scratch", say) give an empty database.
//
// The returned cleanup closes the database and is safe to call twice.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: database.ProfileStandard,
		Name:    name,
	})
	require.NoError(t, err, "open %s", name)

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		require.NoError(t, err, "migrate %s", name)
	}

	var once sync.Once
	return db, func() {
		once.Do(func() {
			if err := db.Close(); err != nil {
				t.Logf("closing %s: %v", name, err)
			}
		})
	}
}

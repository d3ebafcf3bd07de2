package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/mentorhub/internal/database"
)

// TestDBOption customises the behaviour of MustOpenTestDB.
type TestDBOption func(*testDBConfig)

type testDBConfig struct {
	prepare bool
}

// WithSchema applies migrations and constraints after opening the test database.
func WithSchema() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.prepare = true
	}
}

// MustOpenTestDB opens an isolated in-memory SQLite database for tests.
// The returned connection is automatically closed via t.Cleanup.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	cfg := testDBConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	name := "mentorhub_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	db, err := database.Open(database.Config{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name),
	})
	require.NoError(t, err)

	if cfg.prepare {
		require.NoError(t, database.Prepare(db))
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/visicontrol/visicontrol/internal/database"
)

// TestDBOption customises the behaviour of MustOpenTestDB.
type TestDBOption func(*testDBConfig)

type testDBConfig struct {
	autoMigrate bool
	admin       *database.AdminSeed
}

// WithAutoMigrate enables automatic schema migration after opening the test database.
func WithAutoMigrate() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.autoMigrate = true
	}
}

// WithSeedAdmin migrates the schema and seeds the given administrator.
func WithSeedAdmin(seed database.AdminSeed) TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.autoMigrate = true
		cfg.admin = &seed
	}
}

// MustOpenTestDB opens a private in-memory SQLite database for tests, applying
// optional migrations and seed data. Every call gets its own database so
// tests never observe each other's rows. The connection is closed via t.Cleanup.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	cfg := testDBConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	name := strings.ReplaceAll(uuid.NewString(), "-", "")
	db, err := database.Open(database.Config{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name),
		MaxOpenConns: 1,
	})
	require.NoError(t, err)

	if cfg.admin != nil {
		require.NoError(t, database.AutoMigrateAndSeed(db, *cfg.admin))
	} else if cfg.autoMigrate {
		require.NoError(t, database.AutoMigrate(db))
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

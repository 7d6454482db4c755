package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/harutoki/beastline/server/cache"
	"github.com/harutoki/beastline/server/config"
	dbadapter "github.com/harutoki/beastline/server/db"
	"github.com/harutoki/beastline/server/model"
)

// SetupTestDB creates an in-memory SQLite DB and runs AutoMigrate.
// It requires no external services and is safe to use in parallel tests.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbadapter.Open(config.DatabaseConfig{
		Mode: dbadapter.ModeSQLiteMemory,
	})
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	return db
}

// SetupTestCache creates the in-process cache (no Redis required).
func SetupTestCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.New(cache.Config{}) // empty RedisAddr → local cache
	require.NoError(t, err, "SetupTestCache: New")
	return c
}

package db

import (
	"fmt"
	"sync/atomic"

	"github.com/harutoki/beastline/server/config"
	dbmysql "github.com/harutoki/beastline/server/db/mysql"
	dbsqlite "github.com/harutoki/beastline/server/db/sqlite"
	"gorm.io/gorm"
)

const (
	ModeSQLite       = "sqlite"
	ModeSQLiteMemory = "sqlite_memory"
	ModeMySQL        = "mysql"
)

var memDBSeq int64

// Open returns a *gorm.DB for the configured database mode.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Mode {
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath)
	case ModeSQLiteMemory:
		// A distinct named memory DB per Open call. cache=shared keeps the
		// pool's connections on the same database without leaking it to
		// other opens, which matters for parallel tests.
		n := atomic.AddInt64(&memDBSeq, 1)
		return dbsqlite.Open(fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", n))
	case ModeMySQL:
		return dbmysql.Open(cfg.MySQLDSN, cfg.MySQLMaxOpen, cfg.MySQLMaxIdle, cfg.MySQLMaxLife)
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}

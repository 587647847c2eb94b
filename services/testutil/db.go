package testutil

import (
	"strings"
	"testing"

	"smallbiznis-crm/pkg/db"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dsnReplacer = strings.NewReplacer("/", "_", " ", "_", "?", "_", "&", "_")

// NewTestDB opens a private in-memory SQLite database named after the test and
// migrates models through db.Migrate, the same path the binaries use.
func NewTestDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()

	dsn := "file:" + dsnReplacer.Replace(t.Name()) + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: db.NewZapGormLogger(zap.NewNop(), logger.Silent, false),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	if len(models) > 0 {
		if err := db.Migrate(conn, models...); err != nil {
			t.Fatalf("migrate test database: %v", err)
		}
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("get sql.DB from gorm: %v", err)
	}
	// one connection keeps the shared in-memory database alive and serialises writers
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return conn
}

package repo

import (
	"context"
	"fmt"
	"strings"
	"testing"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a unique in-memory database per test. With migrate set it
// runs the real AutoMigrate, including the partial home index.
func newTestDB(t *testing.T, migrate bool) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if migrate {
		if err := AutoMigrate(db); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// homesOf returns the zone ids userID has flagged as home.
func homesOf(t *testing.T, db *gorm.DB, userID string) []string {
	t.Helper()
	sels, err := ListSelections(context.Background(), db, userID)
	if err != nil {
		t.Fatalf("ListSelections: %v", err)
	}
	var out []string
	for _, s := range sels {
		if s.IsHome {
			out = append(out, s.ZoneID)
		}
	}
	return out
}

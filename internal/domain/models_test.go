package domain

import (
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	if got := (Selection{}).TableName(); got != "selections" {
		t.Fatalf("Selection.TableName() = %q; want selections", got)
	}
	if got := (Idempotency{}).TableName(); got != "idempotency" {
		t.Fatalf("Idempotency.TableName() = %q; want idempotency", got)
	}
}

func TestPrimaryCity(t *testing.T) {
	e := CatalogEntry{ZoneID: "Europe/Paris", Cities: []string{"Paris", "Lyon"}}
	if got := e.PrimaryCity(); got != "Paris" {
		t.Fatalf("PrimaryCity = %q; want Paris", got)
	}
	if got := (CatalogEntry{}).PrimaryCity(); got != "" {
		t.Fatalf("empty PrimaryCity = %q; want empty", got)
	}
}

func TestEnrichmentEntry_Expired(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	e := EnrichmentEntry{ZoneID: "Asia/Tokyo", FetchedAt: base, TTLSeconds: 60}

	if e.Expired(base) {
		t.Fatalf("fresh entry reported expired")
	}
	if e.Expired(base.Add(60 * time.Second)) {
		t.Fatalf("entry exactly at TTL must still be fresh (strictly greater expires)")
	}
	if !e.Expired(base.Add(61 * time.Second)) {
		t.Fatalf("entry past TTL should be expired")
	}

	zero := EnrichmentEntry{FetchedAt: base}
	if !zero.Expired(base.Add(time.Nanosecond)) {
		t.Fatalf("zero TTL should expire immediately after fetch")
	}
}

func TestSelection_Migration_UniqueUserZone(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Selection{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	if !m.HasIndex(&Selection{}, "ux_selection_user_zone") {
		t.Fatalf("expected unique index ux_selection_user_zone")
	}
	if !m.HasIndex(&Selection{}, "idx_selections_user") {
		t.Fatalf("expected index idx_selections_user")
	}

	now := time.Now().UTC()
	a := Selection{ID: "00000000-0000-0000-0000-000000000001", UserID: "u1", ZoneID: "Europe/Paris", AddedAt: now}
	if err := db.Create(&a).Error; err != nil {
		t.Fatalf("insert a: %v", err)
	}
	// Same zone for another user is fine.
	b := Selection{ID: "00000000-0000-0000-0000-000000000002", UserID: "u2", ZoneID: "Europe/Paris", AddedAt: now}
	if err := db.Create(&b).Error; err != nil {
		t.Fatalf("insert b: %v", err)
	}
	// Same (user, zone) must be rejected.
	dup := Selection{ID: "00000000-0000-0000-0000-000000000003", UserID: "u1", ZoneID: "Europe/Paris", AddedAt: now}
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("expected unique violation for duplicate (user, zone)")
	}

	var got Selection
	if err := db.First(&got, "id = ?", a.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.IsHome {
		t.Fatalf("IsHome default should be false")
	}
}

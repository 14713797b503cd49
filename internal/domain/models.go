// Package domain defines the models shared by the catalog, selection store,
// enrichment cache, and HTTP layers. Selection is persisted with GORM; the
// remaining types live in memory only.
package domain

import (
	"time"
)

// CatalogEntry describes one known time zone. Entries are immutable once a
// catalog snapshot has been built and are shared by every user.
//
// Fields:
//   - ZoneID: IANA identifier, unique within a catalog (e.g. "Europe/Paris").
//   - Cities: display names; the first one is the primary city.
//   - CountryName / Continent: descriptive metadata used for search.
//   - UTCOffsetMinutes: offset captured when the catalog was loaded.
//   - Alias: optional alternate search key.
//   - Latitude / Longitude: location used for weather lookups.
type CatalogEntry struct {
	ZoneID           string   `json:"zoneId"           example:"Europe/Paris"`
	Cities           []string `json:"cities"`
	CountryName      string   `json:"countryName"      example:"France"`
	Continent        string   `json:"continent"        example:"Europe"`
	UTCOffsetMinutes int      `json:"utcOffsetMinutes" example:"60"`
	Alias            string   `json:"alias,omitempty"  example:"paris"`
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
}

// PrimaryCity returns the first listed city, or "" when none is set.
func (e CatalogEntry) PrimaryCity() string {
	if len(e.Cities) == 0 {
		return ""
	}
	return e.Cities[0]
}

// Selection records that a user tracks a catalog zone. A user holds at most
// one Selection per zone and at most one Selection with IsHome set.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: owner of the selection.
//   - ZoneID: catalog reference (by value, not a foreign key).
//   - IsHome: marks the user's reference zone.
//   - AddedAt: creation time (UTC).
//   - UpdatedAt: last home transition, managed by GORM.
type Selection struct {
	ID        string    `json:"id"       gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"userId"   gorm:"type:varchar(64);not null;index:idx_selections_user;uniqueIndex:ux_selection_user_zone,priority:1"`
	ZoneID    string    `json:"zoneId"   gorm:"type:varchar(64);not null;uniqueIndex:ux_selection_user_zone,priority:2"`
	IsHome    bool      `json:"isHome"   gorm:"not null;default:false"`
	AddedAt   time.Time `json:"addedAt"  gorm:"not null"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the database table name for Selection.
func (Selection) TableName() string { return "selections" }

// EnrichmentEntry is a cached weather reading for a zone. It is shared across
// users and may be evicted at any time.
type EnrichmentEntry struct {
	ZoneID                string    `json:"zoneId"`
	TemperatureCelsius    float64   `json:"temperatureCelsius"`
	TemperatureFahrenheit float64   `json:"temperatureFahrenheit"`
	FetchedAt             time.Time `json:"fetchedAt"`
	TTLSeconds            int       `json:"ttlSeconds"`
}

// Expired reports whether now is more than TTLSeconds past FetchedAt.
func (e EnrichmentEntry) Expired(now time.Time) bool {
	return now.Sub(e.FetchedAt) > time.Duration(e.TTLSeconds)*time.Second
}

// TimeZoneView is one row of a user's "my time zones" read model.
// Weather is nil when enrichment was not requested or is unavailable.
type TimeZoneView struct {
	Selection Selection        `json:"selection"`
	Zone      CatalogEntry     `json:"zone"`
	Weather   *EnrichmentEntry `json:"weather"`
}

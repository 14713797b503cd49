// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Selection
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
//
// Error semantics:
//   - A missing selection is reported as ErrNotFound (gorm.ErrRecordNotFound).
//   - A second selection of the same zone by the same user, or a second home,
//     is reported as ErrDuplicate.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-timezones-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across the service
// layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates a unique-constraint violation.
var ErrDuplicate = errors.New("duplicate")

// CreateSelection inserts a selection of zoneID for userID. The ID is a
// random UUID and AddedAt is set to UTC now.
func CreateSelection(ctx context.Context, db *gorm.DB, userID, zoneID string, isHome bool) (*domain.Selection, error) {
	now := time.Now().UTC()
	s := &domain.Selection{
		ID:        uuid.NewString(),
		UserID:    userID,
		ZoneID:    zoneID,
		IsHome:    isHome,
		AddedAt:   now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		if IsDuplicateKeyErr(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return s, nil
}

// ListSelections returns every selection of userID in insertion order.
// It returns an empty slice if the user has none.
func ListSelections(ctx context.Context, db *gorm.DB, userID string) ([]domain.Selection, error) {
	out := []domain.Selection{}
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("added_at asc, zone_id asc").
		Find(&out).Error
	return out, err
}

// CountSelections returns the number of zones userID has selected.
func CountSelections(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Selection{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// GetSelection fetches userID's selection of zoneID, or ErrNotFound.
func GetSelection(ctx context.Context, db *gorm.DB, userID, zoneID string) (*domain.Selection, error) {
	var s domain.Selection
	err := db.WithContext(ctx).
		Where("user_id = ? AND zone_id = ?", userID, zoneID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSelection removes userID's selection of zoneID. It returns
// ErrNotFound when no row matched.
func DeleteSelection(ctx context.Context, db *gorm.DB, userID, zoneID string) error {
	res := db.WithContext(ctx).
		Where("user_id = ? AND zone_id = ?", userID, zoneID).
		Delete(&domain.Selection{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearHome unsets the home flag on every selection of userID except
// zoneID. Pass "" to clear all.
func ClearHome(ctx context.Context, db *gorm.DB, userID, exceptZoneID string) error {
	return db.WithContext(ctx).
		Model(&domain.Selection{}).
		Where("user_id = ? AND is_home = ? AND zone_id <> ?", userID, true, exceptZoneID).
		Updates(map[string]any{"is_home": false, "updated_at": time.Now().UTC()}).Error
}

// MarkHome sets the home flag on userID's selection of zoneID. It returns
// ErrNotFound when the selection does not exist and ErrDuplicate when
// another home is still set.
func MarkHome(ctx context.Context, db *gorm.DB, userID, zoneID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Selection{}).
		Where("user_id = ? AND zone_id = ?", userID, zoneID).
		Updates(map[string]any{"is_home": true, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		if IsDuplicateKeyErr(res.Error) {
			return ErrDuplicate
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DistinctZoneIDs returns every zone selected by at least one user, sorted.
func DistinctZoneIDs(ctx context.Context, db *gorm.DB) ([]string, error) {
	out := []string{}
	err := db.WithContext(ctx).
		Model(&domain.Selection{}).
		Distinct("zone_id").
		Order("zone_id asc").
		Pluck("zone_id", &out).Error
	return out, err
}

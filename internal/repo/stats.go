package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-timezones-backend/internal/domain"
)

// SelectionsStats reports how many selections userID holds and when the most
// recent of them last changed. Together they change whenever the user's list
// does (add, delete, home swap), which is what the list ETag relies on.
// A user without selections yields (0, nil, nil).
func SelectionsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, latest *time.Time, err error) {
	if count, err = CountSelections(ctx, db, userID); err != nil || count == 0 {
		return 0, nil, err
	}

	// Ordered fetch instead of MAX(): SQLite hands aggregates back as TEXT.
	var last domain.Selection
	err = db.WithContext(ctx).
		Select("updated_at").
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Take(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// deleted between the two queries
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, err
	}
	return count, &last.UpdatedAt, nil
}

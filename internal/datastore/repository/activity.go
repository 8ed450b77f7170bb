package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/opsdeck/opsdeck/internal/datastore/entities"
)

// ActivityRepository writes the audit trail. Callers treat failures as
// non-fatal and log them; a mutation never rolls back because its audit
// entry could not be written.
type ActivityRepository interface {
	Record(ctx context.Context, actorID *uint, actionType, targetType string, targetID uint, details string) error
}

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Record(ctx context.Context, actorID *uint, actionType, targetType string, targetID uint, details string) error {
	entry := entities.ActivityLog{
		UserID:     actorID,
		ActionType: actionType,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
	}
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/opsdeck/opsdeck/internal/datastore/entities"
)

// alertRepository implements AlertRepository.
type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new AlertRepository.
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

// ListConditions returns alert conditions matching the given filter, ordered
// by name.
func (r *alertRepository) ListConditions(ctx context.Context, filter ConditionFilter) ([]entities.AlertCondition, error) {
	var conds []entities.AlertCondition
	query := r.db.WithContext(ctx)

	if filter.SourceTable != "" {
		query = query.Where("source_table = ?", filter.SourceTable)
	}
	if filter.Active != nil {
		query = query.Where("active = ?", *filter.Active)
	}

	if err := query.Order("name ASC").Find(&conds).Error; err != nil {
		return nil, fmt.Errorf("failed to list alert conditions: %w", err)
	}
	return conds, nil
}

// GetCondition returns a single alert condition by ID.
func (r *alertRepository) GetCondition(ctx context.Context, id uint) (*entities.AlertCondition, error) {
	var cond entities.AlertCondition
	if err := r.db.WithContext(ctx).First(&cond, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConditionNotFound
		}
		return nil, fmt.Errorf("failed to get alert condition %d: %w", id, err)
	}
	return &cond, nil
}

// CreateCondition creates a new alert condition.
func (r *alertRepository) CreateCondition(ctx context.Context, cond *entities.AlertCondition) error {
	if err := r.db.WithContext(ctx).Create(cond).Error; err != nil {
		return fmt.Errorf("failed to create alert condition: %w", err)
	}
	return nil
}

// UpdateCondition replaces a condition's rule fields. The lifecycle fields
// (last_triggered_at) are owned by the evaluation path and left untouched.
func (r *alertRepository) UpdateCondition(ctx context.Context, cond *entities.AlertCondition) error {
	if cond.ID == 0 {
		return fmt.Errorf("failed to update alert condition: missing condition ID")
	}
	result := r.db.WithContext(ctx).Model(&entities.AlertCondition{}).
		Where("id = ?", cond.ID).
		Updates(map[string]any{
			"name":                cond.Name,
			"source_table":        cond.SourceTable,
			"field_name":          cond.FieldName,
			"comparator":          cond.Comparator,
			"threshold_value":     cond.ThresholdValue,
			"time_window_min":     cond.TimeWindowMin,
			"repeat_interval_min": cond.RepeatIntervalMin,
			"count_threshold":     cond.CountThreshold,
			"active":              cond.Active,
			"template_id":         cond.TemplateID,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update alert condition %d: %w", cond.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrConditionNotFound
	}
	return nil
}

// DeleteCondition deletes a condition and its events.
func (r *alertRepository) DeleteCondition(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("condition_id = ?", id).Delete(&entities.AlertEvent{}).Error; err != nil {
			return fmt.Errorf("failed to delete events for condition %d: %w", id, err)
		}
		result := tx.Delete(&entities.AlertCondition{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete alert condition %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrConditionNotFound
		}
		return nil
	})
}

// ToggleCondition activates or deactivates a condition.
func (r *alertRepository) ToggleCondition(ctx context.Context, id uint, active bool) error {
	result := r.db.WithContext(ctx).Model(&entities.AlertCondition{}).Where("id = ?", id).Update("active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to toggle alert condition %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrConditionNotFound
	}
	return nil
}

// ActiveConditions returns all active alert conditions.
func (r *alertRepository) ActiveConditions(ctx context.Context) ([]entities.AlertCondition, error) {
	active := true
	return r.ListConditions(ctx, ConditionFilter{Active: &active})
}

// CreateEventAndStamp creates an AlertEvent and advances last_triggered_at in
// one transaction. The stamp is a conditional update guarded by the
// previously observed value, so two overlapping evaluation runs cannot both
// create an event inside the same repeat interval: the loser sees zero rows
// affected and backs out.
func (r *alertRepository) CreateEventAndStamp(ctx context.Context, conditionID uint, prev *time.Time, now time.Time, notes string) (*entities.AlertEvent, bool, error) {
	var event *entities.AlertEvent
	stamped := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stamp := tx.Model(&entities.AlertCondition{})
		if prev == nil {
			stamp = stamp.Where("id = ? AND last_triggered_at IS NULL", conditionID)
		} else {
			stamp = stamp.Where("id = ? AND last_triggered_at = ?", conditionID, *prev)
		}
		result := stamp.Update("last_triggered_at", now)
		if result.Error != nil {
			return fmt.Errorf("failed to stamp condition %d: %w", conditionID, result.Error)
		}
		if result.RowsAffected == 0 {
			// Lost the race (or condition deleted); do not create an event.
			return nil
		}

		e := &entities.AlertEvent{
			ConditionID: conditionID,
			TriggeredAt: now,
			Notes:       notes,
		}
		if err := tx.Create(e).Error; err != nil {
			return fmt.Errorf("failed to create alert event: %w", err)
		}
		event = e
		stamped = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return event, stamped, nil
}

// GetEvent returns a single alert event with its condition.
func (r *alertRepository) GetEvent(ctx context.Context, id uint) (*entities.AlertEvent, error) {
	var event entities.AlertEvent
	if err := r.db.WithContext(ctx).Preload("Condition").First(&event, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get alert event %d: %w", id, err)
	}
	return &event, nil
}

// ListEvents returns alert events matching the filter with pagination,
// newest first.
func (r *alertRepository) ListEvents(ctx context.Context, filter EventFilter) ([]entities.AlertEvent, int64, error) {
	var events []entities.AlertEvent
	var total int64

	countQuery := r.db.WithContext(ctx).Model(&entities.AlertEvent{})
	if filter.ConditionID > 0 {
		countQuery = countQuery.Where("condition_id = ?", filter.ConditionID)
	}
	if filter.Resolved != nil {
		countQuery = countQuery.Where("resolved = ?", *filter.Resolved)
	}
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count alert events: %w", err)
	}

	query := r.db.WithContext(ctx).Preload("Condition").Order("triggered_at DESC")
	if filter.ConditionID > 0 {
		query = query.Where("condition_id = ?", filter.ConditionID)
	}
	if filter.Resolved != nil {
		query = query.Where("resolved = ?", *filter.Resolved)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list alert events: %w", err)
	}
	return events, total, nil
}

// appendResolutionNotes combines existing notes with a new resolution block.
func appendResolutionNotes(existing, notes string) string {
	if notes == "" {
		return existing
	}
	if existing == "" {
		return "Resolution notes: " + notes
	}
	return existing + "\n\nResolution notes: " + notes
}

// ResolveEvent marks an event resolved, appending resolution notes. This is
// deliberately not idempotent: re-resolving appends another note block and
// moves resolved_at to the newer time, keeping a cumulative history.
func (r *alertRepository) ResolveEvent(ctx context.Context, id uint, now time.Time, notes string) (*entities.AlertEvent, error) {
	var event entities.AlertEvent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&event, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return fmt.Errorf("failed to load alert event %d: %w", id, err)
		}

		event.Notes = appendResolutionNotes(event.Notes, notes)
		event.Resolved = true
		event.ResolvedAt = &now

		if err := tx.Model(&entities.AlertEvent{}).Where("id = ?", id).
			Updates(map[string]any{
				"resolved":    true,
				"resolved_at": now,
				"notes":       event.Notes,
			}).Error; err != nil {
			return fmt.Errorf("failed to resolve alert event %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ResolveAllEvents resolves every unresolved event with the same note text.
func (r *alertRepository) ResolveAllEvents(ctx context.Context, now time.Time, notes string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open []entities.AlertEvent
		if err := tx.Where("resolved = ?", false).Find(&open).Error; err != nil {
			return fmt.Errorf("failed to load unresolved events: %w", err)
		}
		for i := range open {
			updated := appendResolutionNotes(open[i].Notes, notes)
			if err := tx.Model(&entities.AlertEvent{}).Where("id = ?", open[i].ID).
				Updates(map[string]any{
					"resolved":    true,
					"resolved_at": now,
					"notes":       updated,
				}).Error; err != nil {
				return fmt.Errorf("failed to resolve alert event %d: %w", open[i].ID, err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

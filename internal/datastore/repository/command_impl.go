package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/opsdeck/opsdeck/internal/datastore/entities"
)

// commandRepository implements CommandRepository.
type commandRepository struct {
	db *gorm.DB
}

// NewCommandRepository creates a new CommandRepository.
func NewCommandRepository(db *gorm.DB) CommandRepository {
	return &commandRepository{db: db}
}

// ListPatterns returns all command patterns with rule and group preloaded.
func (r *commandRepository) ListPatterns(ctx context.Context) ([]entities.CommandPattern, error) {
	var patterns []entities.CommandPattern
	err := r.db.WithContext(ctx).
		Preload("Rule").
		Preload("Rule.Group").
		Order("id ASC").
		Find(&patterns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list command patterns: %w", err)
	}
	return patterns, nil
}

// ListGroups returns all command groups with their rules and patterns.
func (r *commandRepository) ListGroups(ctx context.Context) ([]entities.CommandGroup, error) {
	var groups []entities.CommandGroup
	err := r.db.WithContext(ctx).
		Preload("Rules").
		Preload("Rules.Patterns").
		Order("name ASC").
		Find(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list command groups: %w", err)
	}
	return groups, nil
}

// CreateGroup creates a command group.
func (r *commandRepository) CreateGroup(ctx context.Context, group *entities.CommandGroup) error {
	if err := r.db.WithContext(ctx).Create(group).Error; err != nil {
		return fmt.Errorf("failed to create command group: %w", err)
	}
	return nil
}

// DeleteGroup deletes a group and its rules and patterns.
func (r *commandRepository) DeleteGroup(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rules []entities.CommandRule
		if err := tx.Where("group_id = ?", id).Find(&rules).Error; err != nil {
			return fmt.Errorf("failed to load rules for group %d: %w", id, err)
		}
		for i := range rules {
			if err := tx.Where("rule_id = ?", rules[i].ID).Delete(&entities.CommandPattern{}).Error; err != nil {
				return fmt.Errorf("failed to delete patterns for rule %d: %w", rules[i].ID, err)
			}
		}
		if err := tx.Where("group_id = ?", id).Delete(&entities.CommandRule{}).Error; err != nil {
			return fmt.Errorf("failed to delete rules for group %d: %w", id, err)
		}
		result := tx.Delete(&entities.CommandGroup{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete command group %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrGroupNotFound
		}
		return nil
	})
}

// GetRule returns a command rule with its patterns and group.
func (r *commandRepository) GetRule(ctx context.Context, id uint) (*entities.CommandRule, error) {
	var rule entities.CommandRule
	err := r.db.WithContext(ctx).Preload("Patterns").Preload("Group").First(&rule, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to get command rule %d: %w", id, err)
	}
	return &rule, nil
}

// CreateRule creates a rule along with its patterns.
func (r *commandRepository) CreateRule(ctx context.Context, rule *entities.CommandRule) error {
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		return fmt.Errorf("failed to create command rule: %w", err)
	}
	return nil
}

// DeleteRule deletes a rule and its patterns.
func (r *commandRepository) DeleteRule(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("rule_id = ?", id).Delete(&entities.CommandPattern{}).Error; err != nil {
			return fmt.Errorf("failed to delete patterns for rule %d: %w", id, err)
		}
		result := tx.Delete(&entities.CommandRule{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete command rule %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrRuleNotFound
		}
		return nil
	})
}

// FindOpenMatch returns the unaddressed match for the triple, or nil.
func (r *commandRepository) FindOpenMatch(ctx context.Context, logID uint, logSource string, patternID, ruleID uint) (*entities.CommandMatch, error) {
	var match entities.CommandMatch
	err := r.db.WithContext(ctx).
		Where("log_id = ? AND log_source = ? AND pattern_id = ? AND rule_id = ? AND addressed = ?",
			logID, logSource, patternID, ruleID, false).
		First(&match).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up open command match: %w", err)
	}
	return &match, nil
}

// CreateMatch persists a new command match.
func (r *commandRepository) CreateMatch(ctx context.Context, match *entities.CommandMatch) error {
	if err := r.db.WithContext(ctx).Create(match).Error; err != nil {
		return fmt.Errorf("failed to create command match: %w", err)
	}
	return nil
}

// MarkNotified records that a notification was sent for the match.
func (r *commandRepository) MarkNotified(ctx context.Context, matchID uint) error {
	result := r.db.WithContext(ctx).Model(&entities.CommandMatch{}).
		Where("id = ?", matchID).
		Update("notification_sent", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark command match %d notified: %w", matchID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrMatchNotFound
	}
	return nil
}

// GetMatch returns a single command match with its rule.
func (r *commandRepository) GetMatch(ctx context.Context, id uint) (*entities.CommandMatch, error) {
	var match entities.CommandMatch
	err := r.db.WithContext(ctx).Preload("Rule").Preload("Rule.Group").First(&match, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get command match %d: %w", id, err)
	}
	return &match, nil
}

// ListMatches returns command matches matching the filter, newest first.
func (r *commandRepository) ListMatches(ctx context.Context, filter MatchFilter) ([]entities.CommandMatch, int64, error) {
	var matches []entities.CommandMatch
	var total int64

	base := r.db.WithContext(ctx).Model(&entities.CommandMatch{})
	if filter.Addressed != nil {
		base = base.Where("addressed = ?", *filter.Addressed)
	}
	if filter.RuleID > 0 {
		base = base.Where("rule_id = ?", filter.RuleID)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		base = base.Where("matched_text LIKE ? OR log_entry LIKE ?", pattern, pattern)
	}

	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count command matches: %w", err)
	}

	query := base.Session(&gorm.Session{}).Preload("Rule").Preload("Rule.Group").Order("timestamp DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Find(&matches).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list command matches: %w", err)
	}
	return matches, total, nil
}

// CountUnaddressed returns the number of open command matches.
func (r *commandRepository) CountUnaddressed(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.CommandMatch{}).
		Where("addressed = ?", false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unaddressed command matches: %w", err)
	}
	return count, nil
}

// MarkAddressed marks a match addressed by the actor.
func (r *commandRepository) MarkAddressed(ctx context.Context, id, actorID uint, now time.Time, notes *string) (*entities.CommandMatch, error) {
	result := r.db.WithContext(ctx).Model(&entities.CommandMatch{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"addressed":    true,
			"addressed_by": actorID,
			"addressed_at": now,
			"notes":        notes,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to mark command match %d addressed: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrMatchNotFound
	}
	return r.GetMatch(ctx, id)
}

// UnmarkAddressed reopens a match. Only the flag and attribution are cleared;
// addressed_at and notes remain as history.
func (r *commandRepository) UnmarkAddressed(ctx context.Context, id uint) (*entities.CommandMatch, error) {
	result := r.db.WithContext(ctx).Model(&entities.CommandMatch{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"addressed":    false,
			"addressed_by": nil,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to unmark command match %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrMatchNotFound
	}
	return r.GetMatch(ctx, id)
}

// AddressAll marks every unaddressed match addressed by the actor.
func (r *commandRepository) AddressAll(ctx context.Context, actorID uint, now time.Time, notes string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&entities.CommandMatch{}).
		Where("addressed = ?", false).
		Updates(map[string]any{
			"addressed":    true,
			"addressed_by": actorID,
			"addressed_at": now,
			"notes":        notes,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to address all command matches: %w", result.Error)
	}
	return result.RowsAffected, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/opsdeck/opsdeck/internal/datastore/entities"
)

// templateRepository implements TemplateRepository.
type templateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository creates a new TemplateRepository.
func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

// GetTemplate returns a template with its recipients preloaded.
func (r *templateRepository) GetTemplate(ctx context.Context, id uint) (*entities.NotificationTemplate, error) {
	var tmpl entities.NotificationTemplate
	err := r.db.WithContext(ctx).Preload("Recipients").First(&tmpl, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get notification template %d: %w", id, err)
	}
	return &tmpl, nil
}

// ListTemplates returns all templates with recipients, ordered by name.
func (r *templateRepository) ListTemplates(ctx context.Context) ([]entities.NotificationTemplate, error) {
	var tmpls []entities.NotificationTemplate
	err := r.db.WithContext(ctx).Preload("Recipients").Order("name ASC").Find(&tmpls).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notification templates: %w", err)
	}
	return tmpls, nil
}

// CreateTemplate creates a template, including any attached recipients.
func (r *templateRepository) CreateTemplate(ctx context.Context, tmpl *entities.NotificationTemplate) error {
	if err := r.db.WithContext(ctx).Create(tmpl).Error; err != nil {
		return fmt.Errorf("failed to create notification template: %w", err)
	}
	return nil
}

// UpdateTemplate updates the name/subject/body of a template. Recipient
// assignment goes through AssignRecipients/RemoveRecipients.
func (r *templateRepository) UpdateTemplate(ctx context.Context, tmpl *entities.NotificationTemplate) error {
	if tmpl.ID == 0 {
		return fmt.Errorf("failed to update notification template: missing template ID")
	}
	result := r.db.WithContext(ctx).Model(&entities.NotificationTemplate{}).
		Where("id = ?", tmpl.ID).
		Updates(map[string]any{
			"name":    tmpl.Name,
			"subject": tmpl.Subject,
			"body":    tmpl.Body,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update notification template %d: %w", tmpl.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

// DeleteTemplate deletes a template and its recipient links.
func (r *templateRepository) DeleteTemplate(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tmpl entities.NotificationTemplate
		tmpl.ID = id
		if err := tx.Model(&tmpl).Association("Recipients").Clear(); err != nil {
			return fmt.Errorf("failed to clear recipients for template %d: %w", id, err)
		}
		result := tx.Delete(&entities.NotificationTemplate{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete notification template %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrTemplateNotFound
		}
		return nil
	})
}

// AssignRecipients links users to a template. Already-linked users are kept.
func (r *templateRepository) AssignRecipients(ctx context.Context, templateID uint, userIDs []uint) error {
	tmpl, err := r.GetTemplate(ctx, templateID)
	if err != nil {
		return err
	}
	var users []entities.User
	if err := r.db.WithContext(ctx).Find(&users, userIDs).Error; err != nil {
		return fmt.Errorf("failed to load users for template %d: %w", templateID, err)
	}
	if err := r.db.WithContext(ctx).Model(tmpl).Association("Recipients").Append(&users); err != nil {
		return fmt.Errorf("failed to assign recipients to template %d: %w", templateID, err)
	}
	return nil
}

// RemoveRecipients unlinks users from a template.
func (r *templateRepository) RemoveRecipients(ctx context.Context, templateID uint, userIDs []uint) error {
	tmpl, err := r.GetTemplate(ctx, templateID)
	if err != nil {
		return err
	}
	var users []entities.User
	if err := r.db.WithContext(ctx).Find(&users, userIDs).Error; err != nil {
		return fmt.Errorf("failed to load users for template %d: %w", templateID, err)
	}
	if err := r.db.WithContext(ctx).Model(tmpl).Association("Recipients").Delete(&users); err != nil {
		return fmt.Errorf("failed to remove recipients from template %d: %w", templateID, err)
	}
	return nil
}

// ResolveRecipients returns the users with the given ids, or all users when
// ids is empty.
func (r *templateRepository) ResolveRecipients(ctx context.Context, ids []uint) ([]entities.User, error) {
	var users []entities.User
	query := r.db.WithContext(ctx)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}
	if err := query.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve recipients: %w", err)
	}
	return users, nil
}

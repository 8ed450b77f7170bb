package repository

import (
	"context"

	"github.com/opsdeck/opsdeck/internal/datastore/entities"
)

// TemplateRepository handles notification templates and their recipients.
type TemplateRepository interface {
	GetTemplate(ctx context.Context, id uint) (*entities.NotificationTemplate, error)
	ListTemplates(ctx context.Context) ([]entities.NotificationTemplate, error)
	CreateTemplate(ctx context.Context, tmpl *entities.NotificationTemplate) error
	UpdateTemplate(ctx context.Context, tmpl *entities.NotificationTemplate) error
	DeleteTemplate(ctx context.Context, id uint) error

	AssignRecipients(ctx context.Context, templateID uint, userIDs []uint) error
	RemoveRecipients(ctx context.Context, templateID uint, userIDs []uint) error

	// ResolveRecipients returns the users with the given ids, or every known
	// user when ids is empty.
	ResolveRecipients(ctx context.Context, ids []uint) ([]entities.User, error)
}

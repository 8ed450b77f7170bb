package repository_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck/opsdeck/internal/datastore/entities"
	"github.com/opsdeck/opsdeck/internal/datastore/repository"
)

func TestTemplateRecipientAssignment(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewTemplateRepository(db)
	ctx := t.Context()

	users := []entities.User{
		{Username: "alice", Email: "alice@example.com"},
		{Username: "bob", Email: "bob@example.com"},
	}
	require.NoError(t, db.Create(&users).Error)

	tmpl := &entities.NotificationTemplate{
		Name:    "alert email",
		Subject: "Alert: {{alertName}}",
		Body:    "<p>Hello {{username}}</p>",
	}
	require.NoError(t, repo.CreateTemplate(ctx, tmpl))

	require.NoError(t, repo.AssignRecipients(ctx, tmpl.ID, []uint{users[0].ID}))
	got, err := repo.GetTemplate(ctx, tmpl.ID)
	require.NoError(t, err)
	require.Len(t, got.Recipients, 1)
	assert.Equal(t, "alice", got.Recipients[0].Username)

	require.NoError(t, repo.AssignRecipients(ctx, tmpl.ID, []uint{users[1].ID}))
	got, err = repo.GetTemplate(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Len(t, got.Recipients, 2)

	require.NoError(t, repo.RemoveRecipients(ctx, tmpl.ID, []uint{users[0].ID}))
	got, err = repo.GetTemplate(ctx, tmpl.ID)
	require.NoError(t, err)
	require.Len(t, got.Recipients, 1)
	assert.Equal(t, "bob", got.Recipients[0].Username)
}

func TestResolveRecipientsEmptyMeansEveryone(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewTemplateRepository(db)
	ctx := t.Context()

	users := []entities.User{
		{Username: "alice", Email: "alice@example.com"},
		{Username: "bob", Email: "bob@example.com"},
		{Username: "carol", Email: "carol@example.com"},
	}
	require.NoError(t, db.Create(&users).Error)

	all, err := repo.ResolveRecipients(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	some, err := repo.ResolveRecipients(ctx, []uint{users[1].ID})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "bob", some[0].Username)
}

func TestDeleteTemplateClearsLinks(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewTemplateRepository(db)
	ctx := t.Context()

	user := entities.User{Username: "alice", Email: "alice@example.com"}
	require.NoError(t, db.Create(&user).Error)

	tmpl := &entities.NotificationTemplate{Name: "t", Subject: "s", Body: "b"}
	require.NoError(t, repo.CreateTemplate(ctx, tmpl))
	require.NoError(t, repo.AssignRecipients(ctx, tmpl.ID, []uint{user.ID}))

	require.NoError(t, repo.DeleteTemplate(ctx, tmpl.ID))
	_, err := repo.GetTemplate(ctx, tmpl.ID)
	assert.ErrorIs(t, err, repository.ErrTemplateNotFound)

	var linkCount int64
	require.NoError(t, db.Table("template_recipients").Count(&linkCount).Error)
	assert.Zero(t, linkCount)
}

package repository_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck/opsdeck/internal/datastore/entities"
	"github.com/opsdeck/opsdeck/internal/datastore/repository"
)

func intPtr(v int) *int { return &v }

func newCondition(name string) *entities.AlertCondition {
	return &entities.AlertCondition{
		Name:           name,
		SourceTable:    entities.SourceMetrics,
		FieldName:      "cpu_temp",
		Comparator:     ">",
		ThresholdValue: "80",
		TimeWindowMin:  intPtr(5),
		Active:         true,
	}
}

func TestConditionCRUD(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewAlertRepository(db)
	ctx := t.Context()

	cond := newCondition("high cpu temp")
	require.NoError(t, repo.CreateCondition(ctx, cond))
	require.NotZero(t, cond.ID)

	got, err := repo.GetCondition(ctx, cond.ID)
	require.NoError(t, err)
	assert.Equal(t, "high cpu temp", got.Name)
	assert.Equal(t, ">", got.Comparator)

	got.ThresholdValue = "85"
	require.NoError(t, repo.UpdateCondition(ctx, got))

	got, err = repo.GetCondition(ctx, cond.ID)
	require.NoError(t, err)
	assert.Equal(t, "85", got.ThresholdValue)

	require.NoError(t, repo.ToggleCondition(ctx, cond.ID, false))
	got, err = repo.GetCondition(ctx, cond.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	active, err := repo.ActiveConditions(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, repo.DeleteCondition(ctx, cond.ID))
	_, err = repo.GetCondition(ctx, cond.ID)
	assert.ErrorIs(t, err, repository.ErrConditionNotFound)
}

func TestConditionNotFoundErrors(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewAlertRepository(db)
	ctx := t.Context()

	_, err := repo.GetCondition(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrConditionNotFound)
	assert.ErrorIs(t, repo.ToggleCondition(ctx, 999, true), repository.ErrConditionNotFound)
	assert.ErrorIs(t, repo.DeleteCondition(ctx, 999), repository.ErrConditionNotFound)
	cond := newCondition("ghost")
	cond.ID = 999
	assert.ErrorIs(t, repo.UpdateCondition(ctx, cond), repository.ErrConditionNotFound)
}

func TestCreateEventAndStamp(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewAlertRepository(db)
	ctx := t.Context()

	cond := newCondition("stamped")
	require.NoError(t, repo.CreateCondition(ctx, cond))

	now := time.Now().UTC().Truncate(time.Second)

	event, stamped, err := repo.CreateEventAndStamp(ctx, cond.ID, nil, now, "first trigger")
	require.NoError(t, err)
	require.True(t, stamped)
	require.NotNil(t, event)
	assert.Equal(t, cond.ID, event.ConditionID)
	assert.Equal(t, "first trigger", event.Notes)
	assert.False(t, event.Resolved)

	got, err := repo.GetCondition(ctx, cond.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastTriggeredAt)

	// A second caller that still holds the pre-trigger view must lose the
	// race: no stamp, no duplicate event.
	event2, stamped2, err := repo.CreateEventAndStamp(ctx, cond.ID, nil, now.Add(time.Minute), "stale trigger")
	require.NoError(t, err)
	assert.False(t, stamped2)
	assert.Nil(t, event2)

	events, total, err := repo.ListEvents(ctx, repository.EventFilter{ConditionID: cond.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, events, 1)

	// Advancing from the current stamp succeeds.
	event3, stamped3, err := repo.CreateEventAndStamp(ctx, cond.ID, got.LastTriggeredAt, now.Add(time.Hour), "second trigger")
	require.NoError(t, err)
	assert.True(t, stamped3)
	require.NotNil(t, event3)
}

func TestResolveEventAppendsNotes(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewAlertRepository(db)
	ctx := t.Context()

	cond := newCondition("resolvable")
	require.NoError(t, repo.CreateCondition(ctx, cond))

	now := time.Now().UTC().Truncate(time.Second)
	event, _, err := repo.CreateEventAndStamp(ctx, cond.ID, nil, now, "Threshold exceeded 3 times (limit: 1)")
	require.NoError(t, err)

	resolved, err := repo.ResolveEvent(ctx, event.ID, now.Add(time.Minute), "restarted the service")
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t,
		"Threshold exceeded 3 times (limit: 1)\n\nResolution notes: restarted the service",
		resolved.Notes)

	// Re-resolving appends another block and moves resolved_at forward.
	later := now.Add(2 * time.Hour)
	resolved2, err := repo.ResolveEvent(ctx, event.ID, later, "it came back")
	require.NoError(t, err)
	assert.Contains(t, resolved2.Notes, "Resolution notes: restarted the service")
	assert.Contains(t, resolved2.Notes, "Resolution notes: it came back")
	assert.True(t, resolved2.ResolvedAt.After(*resolved.ResolvedAt))
}

func TestResolveEventWithoutExistingNotes(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewAlertRepository(db)
	ctx := t.Context()

	cond := newCondition("bare")
	require.NoError(t, repo.CreateCondition(ctx, cond))

	now := time.Now().UTC().Truncate(time.Second)
	event, _, err := repo.CreateEventAndStamp(ctx, cond.ID, nil, now, "")
	require.NoError(t, err)

	resolved, err := repo.ResolveEvent(ctx, event.ID, now, "all clear")
	require.NoError(t, err)
	assert.Equal(t, "Resolution notes: all clear", resolved.Notes)

	// Empty notes leave the existing text untouched.
	resolved2, err := repo.ResolveEvent(ctx, event.ID, now.Add(time.Minute), "")
	require.NoError(t, err)
	assert.Equal(t, "Resolution notes: all clear", resolved2.Notes)
}

func TestResolveAllEvents(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewAlertRepository(db)
	ctx := t.Context()

	now := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		cond := newCondition("bulk")
		cond.Name = cond.Name + string(rune('a'+i))
		require.NoError(t, repo.CreateCondition(ctx, cond))
		_, _, err := repo.CreateEventAndStamp(ctx, cond.ID, nil, now, "triggered")
		require.NoError(t, err)
	}

	count, err := repo.ResolveAllEvents(ctx, now.Add(time.Minute), "maintenance window")
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	unresolved := false
	events, _, err := repo.ListEvents(ctx, repository.EventFilter{Resolved: &unresolved})
	require.NoError(t, err)
	assert.Empty(t, events)

	// Nothing left to resolve.
	count, err = repo.ResolveAllEvents(ctx, now.Add(2*time.Minute), "again")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDeleteConditionCascadesEvents(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewAlertRepository(db)
	ctx := t.Context()

	cond := newCondition("cascade")
	require.NoError(t, repo.CreateCondition(ctx, cond))
	now := time.Now().UTC()
	event, _, err := repo.CreateEventAndStamp(ctx, cond.ID, nil, now, "x")
	require.NoError(t, err)

	require.NoError(t, repo.DeleteCondition(ctx, cond.ID))

	_, err = repo.GetEvent(ctx, event.ID)
	assert.ErrorIs(t, err, repository.ErrEventNotFound)
}

func TestListConditionsFilter(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewAlertRepository(db)
	ctx := t.Context()

	c1 := newCondition("metrics watcher")
	require.NoError(t, repo.CreateCondition(ctx, c1))
	c2 := newCondition("auth watcher")
	c2.SourceTable = entities.SourceAuthLogs
	c2.Comparator = "contains"
	c2.ThresholdValue = "Failed password"
	c2.Active = false
	require.NoError(t, repo.CreateCondition(ctx, c2))

	all, err := repo.ListConditions(ctx, repository.ConditionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	bySource, err := repo.ListConditions(ctx, repository.ConditionFilter{SourceTable: entities.SourceAuthLogs})
	require.NoError(t, err)
	require.Len(t, bySource, 1)
	assert.Equal(t, "auth watcher", bySource[0].Name)

	active := true
	byActive, err := repo.ListConditions(ctx, repository.ConditionFilter{Active: &active})
	require.NoError(t, err)
	require.Len(t, byActive, 1)
	assert.Equal(t, "metrics watcher", byActive[0].Name)
}

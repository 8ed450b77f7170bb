package repository_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck/opsdeck/internal/datastore/entities"
	"github.com/opsdeck/opsdeck/internal/datastore/repository"
)

func TestFetchMetricsFiltersBySensorAndWindow(t *testing.T) {
	db := newTestDB(t)
	reader := repository.NewSourceReader(db)
	ctx := t.Context()

	now := time.Now().UTC().Truncate(time.Second)
	rows := []entities.SystemMetric{
		{Timestamp: now.Add(-1 * time.Minute), SensorName: "cpu_temp", Value: 82},
		{Timestamp: now.Add(-3 * time.Minute), SensorName: "cpu_temp", Value: 78},
		{Timestamp: now.Add(-2 * time.Minute), SensorName: "fan_speed", Value: 1200},
		{Timestamp: now.Add(-20 * time.Minute), SensorName: "cpu_temp", Value: 95},
	}
	require.NoError(t, db.Create(&rows).Error)

	records, err := reader.Fetch(ctx, entities.SourceMetrics, "cpu_temp", now.Add(-5*time.Minute), now)
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Newest first.
	assert.Equal(t, 82.0, records[0].Value)
	assert.Equal(t, 78.0, records[1].Value)
}

func TestFetchAuthLogsIgnoresFieldName(t *testing.T) {
	db := newTestDB(t)
	reader := repository.NewSourceReader(db)
	ctx := t.Context()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, db.Create(&entities.AuthLog{
		Timestamp: now.Add(-1 * time.Minute),
		Username:  "root",
		LogEntry:  "Failed password for root from 10.0.0.5",
	}).Error)

	records, err := reader.Fetch(ctx, entities.SourceAuthLogs, "whatever", now.Add(-5*time.Minute), now)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Failed password for root from 10.0.0.5", records[0].Value)
}

func TestFetchSystemLogsFieldSelection(t *testing.T) {
	db := newTestDB(t)
	reader := repository.NewSourceReader(db)
	ctx := t.Context()

	now := time.Now().UTC().Truncate(time.Second)
	cpu := 93.5
	require.NoError(t, db.Create(&entities.SystemLog{
		Name:      "stress",
		Timestamp: now.Add(-1 * time.Minute),
		CPU:       &cpu,
		Command:   "stress --cpu 8",
	}).Error)

	records, err := reader.Fetch(ctx, entities.SourceSystemLogs, "cpu", now.Add(-5*time.Minute), now)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 93.5, records[0].Value)

	records, err = reader.Fetch(ctx, entities.SourceSystemLogs, "command", now.Add(-5*time.Minute), now)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "stress --cpu 8", records[0].Value)

	_, err = reader.Fetch(ctx, entities.SourceSystemLogs, "bogus", now.Add(-5*time.Minute), now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown system log field")
}

func TestFetchActivityLogs(t *testing.T) {
	db := newTestDB(t)
	reader := repository.NewSourceReader(db)
	ctx := t.Context()

	now := time.Now().UTC()
	require.NoError(t, db.Create(&entities.ActivityLog{
		ActionType: "delete_user",
		TargetType: "user",
		Details:    "removed account jdoe",
	}).Error)

	records, err := reader.Fetch(ctx, entities.SourceActivityLogs, "action_type", now.Add(-5*time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "delete_user", records[0].Value)
}

func TestFetchEmptyWindowIsNotAnError(t *testing.T) {
	db := newTestDB(t)
	reader := repository.NewSourceReader(db)

	now := time.Now().UTC()
	records, err := reader.Fetch(t.Context(), entities.SourceMetrics, "cpu_temp", now.Add(-5*time.Minute), now)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetchUnknownSource(t *testing.T) {
	db := newTestDB(t)
	reader := repository.NewSourceReader(db)

	now := time.Now().UTC()
	_, err := reader.Fetch(t.Context(), "mystery_table", "x", now.Add(-time.Minute), now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source table")
}

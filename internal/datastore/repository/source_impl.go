package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/opsdeck/opsdeck/internal/datastore/entities"
)

// sourceReader reads windowed records from the watched stream tables.
type sourceReader struct {
	db *gorm.DB
}

// NewSourceReader creates a SourceReader backed by the datastore.
func NewSourceReader(db *gorm.DB) SourceReader {
	return &sourceReader{db: db}
}

// Columns selectable per stream. Metrics are keyed by sensor name instead,
// and auth logs always expose the raw log entry.
var (
	systemLogFields = map[string]string{
		"cpu":     "cpu",
		"mem":     "mem",
		"command": "command",
		"name":    "name",
	}
	activityLogFields = map[string]string{
		"action_type": "action_type",
		"target_type": "target_type",
		"details":     "details",
	}
)

// Fetch returns records for the source within [windowStart, windowEnd],
// newest first. An unknown source table or field is an error; an empty
// window is not.
func (r *sourceReader) Fetch(ctx context.Context, sourceTable, fieldName string, windowStart, windowEnd time.Time) ([]SourceRecord, error) {
	switch sourceTable {
	case entities.SourceMetrics:
		return r.fetchMetrics(ctx, fieldName, windowStart, windowEnd)
	case entities.SourceAuthLogs:
		return r.fetchAuthLogs(ctx, windowStart, windowEnd)
	case entities.SourceSystemLogs:
		return r.fetchSystemLogs(ctx, fieldName, windowStart, windowEnd)
	case entities.SourceActivityLogs:
		return r.fetchActivityLogs(ctx, fieldName, windowStart, windowEnd)
	default:
		return nil, fmt.Errorf("unknown source table %q", sourceTable)
	}
}

// fetchMetrics selects metric rows whose sensor name equals the field name.
func (r *sourceReader) fetchMetrics(ctx context.Context, fieldName string, windowStart, windowEnd time.Time) ([]SourceRecord, error) {
	var rows []entities.SystemMetric
	err := r.db.WithContext(ctx).
		Where("sensor_name = ? AND timestamp >= ? AND timestamp <= ?", fieldName, windowStart, windowEnd).
		Order("timestamp DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch system metrics: %w", err)
	}
	records := make([]SourceRecord, 0, len(rows))
	for i := range rows {
		records = append(records, SourceRecord{
			ID:        rows[i].ID,
			Timestamp: rows[i].Timestamp,
			Value:     rows[i].Value,
		})
	}
	return records, nil
}

// fetchAuthLogs always exposes the raw log entry, regardless of field name.
func (r *sourceReader) fetchAuthLogs(ctx context.Context, windowStart, windowEnd time.Time) ([]SourceRecord, error) {
	var rows []entities.AuthLog
	err := r.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp <= ?", windowStart, windowEnd).
		Order("timestamp DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch auth logs: %w", err)
	}
	records := make([]SourceRecord, 0, len(rows))
	for i := range rows {
		records = append(records, SourceRecord{
			ID:        rows[i].ID,
			Timestamp: rows[i].Timestamp,
			Value:     rows[i].LogEntry,
		})
	}
	return records, nil
}

func (r *sourceReader) fetchSystemLogs(ctx context.Context, fieldName string, windowStart, windowEnd time.Time) ([]SourceRecord, error) {
	if _, ok := systemLogFields[fieldName]; !ok {
		return nil, fmt.Errorf("unknown system log field %q", fieldName)
	}
	var rows []entities.SystemLog
	err := r.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp <= ?", windowStart, windowEnd).
		Order("timestamp DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch system logs: %w", err)
	}
	records := make([]SourceRecord, 0, len(rows))
	for i := range rows {
		rec := SourceRecord{ID: rows[i].ID, Timestamp: rows[i].Timestamp}
		switch fieldName {
		case "cpu":
			if rows[i].CPU != nil {
				rec.Value = *rows[i].CPU
			}
		case "mem":
			if rows[i].Mem != nil {
				rec.Value = *rows[i].Mem
			}
		case "command":
			rec.Value = rows[i].Command
		case "name":
			rec.Value = rows[i].Name
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *sourceReader) fetchActivityLogs(ctx context.Context, fieldName string, windowStart, windowEnd time.Time) ([]SourceRecord, error) {
	if _, ok := activityLogFields[fieldName]; !ok {
		return nil, fmt.Errorf("unknown activity log field %q", fieldName)
	}
	var rows []entities.ActivityLog
	err := r.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp <= ?", windowStart, windowEnd).
		Order("timestamp DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch activity logs: %w", err)
	}
	records := make([]SourceRecord, 0, len(rows))
	for i := range rows {
		rec := SourceRecord{ID: rows[i].ID, Timestamp: rows[i].Timestamp}
		switch fieldName {
		case "action_type":
			rec.Value = rows[i].ActionType
		case "target_type":
			rec.Value = rows[i].TargetType
		case "details":
			rec.Value = rows[i].Details
		}
		records = append(records, rec)
	}
	return records, nil
}

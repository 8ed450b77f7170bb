package repository

import (
	"context"
	"time"
)

// SourceRecord is one row from a watched stream with the configured field
// already extracted. Value is a float64 for numeric columns and a string for
// text columns; a nil Value means the row does not carry the field.
type SourceRecord struct {
	ID        uint
	Timestamp time.Time
	Value     any
}

// SourceReader fetches records from one of the watched streams within a time
// window, newest first. An empty result is not an error.
type SourceReader interface {
	Fetch(ctx context.Context, sourceTable, fieldName string, windowStart, windowEnd time.Time) ([]SourceRecord, error)
}

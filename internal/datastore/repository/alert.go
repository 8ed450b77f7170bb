package repository

import (
	"context"
	"time"

	"github.com/opsdeck/opsdeck/internal/datastore/entities"
)

// AlertRepository handles alert condition CRUD and the alert event lifecycle.
type AlertRepository interface {
	// Condition CRUD
	ListConditions(ctx context.Context, filter ConditionFilter) ([]entities.AlertCondition, error)
	GetCondition(ctx context.Context, id uint) (*entities.AlertCondition, error)
	CreateCondition(ctx context.Context, cond *entities.AlertCondition) error
	UpdateCondition(ctx context.Context, cond *entities.AlertCondition) error
	// DeleteCondition removes a condition and cascades to its events.
	DeleteCondition(ctx context.Context, id uint) error
	ToggleCondition(ctx context.Context, id uint, active bool) error
	ActiveConditions(ctx context.Context) ([]entities.AlertCondition, error)

	// CreateEventAndStamp atomically creates an AlertEvent and advances the
	// condition's last_triggered_at from prev (the value observed before
	// evaluation) to now. Returns stamped=false without creating an event
	// when a concurrent evaluation already advanced the stamp.
	CreateEventAndStamp(ctx context.Context, conditionID uint, prev *time.Time, now time.Time, notes string) (event *entities.AlertEvent, stamped bool, err error)

	// Events
	GetEvent(ctx context.Context, id uint) (*entities.AlertEvent, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]entities.AlertEvent, int64, error)

	// ResolveEvent marks an event resolved at now, appending a
	// "Resolution notes:" block when notes is non-empty. Re-resolving an
	// already-resolved event appends again and moves resolved_at forward.
	ResolveEvent(ctx context.Context, id uint, now time.Time, notes string) (*entities.AlertEvent, error)

	// ResolveAllEvents resolves every unresolved event with the same note
	// text and returns the number affected.
	ResolveAllEvents(ctx context.Context, now time.Time, notes string) (int64, error)
}

// ConditionFilter controls condition listing queries.
type ConditionFilter struct {
	SourceTable string
	Active      *bool
}

// EventFilter controls event listing queries.
type EventFilter struct {
	ConditionID uint
	Resolved    *bool
	Limit       int
	Offset      int
}

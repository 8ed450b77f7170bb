package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opsdeck/opsdeck/internal/datastore/entities"
	"github.com/opsdeck/opsdeck/internal/datastore/repository"
	"github.com/opsdeck/opsdeck/internal/logger"
)

// ErrUnauthorized is returned when a mutation requires an identified actor.
var ErrUnauthorized = errors.New("actor identity required")

// Resolver handles alert event resolution on behalf of an identified actor
// and records the audit trail.
type Resolver struct {
	alerts   repository.AlertRepository
	activity repository.ActivityRepository
	log      logger.Logger
	now      func() time.Time
}

// NewResolver creates a Resolver.
func NewResolver(alerts repository.AlertRepository, activity repository.ActivityRepository, log logger.Logger) *Resolver {
	return &Resolver{alerts: alerts, activity: activity, log: log, now: time.Now}
}

// ResolveEvent marks one event resolved. Notes accumulate: resolving an
// already-resolved event appends another block and moves resolved_at.
func (r *Resolver) ResolveEvent(ctx context.Context, actorID, eventID uint, notes string) (*entities.AlertEvent, error) {
	if actorID == 0 {
		return nil, ErrUnauthorized
	}
	event, err := r.alerts.ResolveEvent(ctx, eventID, r.now(), notes)
	if err != nil {
		return nil, err
	}
	r.record(ctx, actorID, "resolve_alert_event", eventID, fmt.Sprintf("Resolved alert event %d", eventID))
	return event, nil
}

// ResolveAll resolves every unresolved event with the same notes and returns
// the number affected.
func (r *Resolver) ResolveAll(ctx context.Context, actorID uint, notes string) (int64, error) {
	if actorID == 0 {
		return 0, ErrUnauthorized
	}
	count, err := r.alerts.ResolveAllEvents(ctx, r.now(), notes)
	if err != nil {
		return 0, err
	}
	r.record(ctx, actorID, "resolve_all_alert_events", 0, fmt.Sprintf("Resolved %d alert events", count))
	return count, nil
}

// record writes the audit entry. Failures are logged, not returned; the
// resolution itself already happened.
func (r *Resolver) record(ctx context.Context, actorID uint, actionType string, targetID uint, details string) {
	if r.activity == nil {
		return
	}
	if err := r.activity.Record(ctx, &actorID, actionType, "alert_event", targetID, details); err != nil {
		r.log.Warn("failed to record activity", logger.String("action", actionType), logger.Error(err))
	}
}

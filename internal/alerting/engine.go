// Package alerting evaluates alert conditions against the record streams,
// materializes alert events, and hands triggered conditions to the
// notification dispatcher.
package alerting

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opsdeck/opsdeck/internal/datastore/entities"
	"github.com/opsdeck/opsdeck/internal/datastore/repository"
	"github.com/opsdeck/opsdeck/internal/logger"
	"github.com/opsdeck/opsdeck/internal/notification"
	"github.com/opsdeck/opsdeck/internal/observability"
)

// Notifier delivers a rendered template to its recipients.
type Notifier interface {
	Dispatch(ctx context.Context, templateID uint, data map[string]string) ([]notification.RecipientResult, error)
}

// ConditionResult reports the outcome of evaluating one condition. Error is
// set when evaluation itself failed; other conditions in the batch are
// unaffected.
type ConditionResult struct {
	ConditionID   uint   `json:"condition_id"`
	ConditionName string `json:"condition_name"`
	Triggered     bool   `json:"triggered"`
	EventID       uint   `json:"event_id,omitempty"`
	Reason        string `json:"reason"`
	Error         string `json:"error,omitempty"`
}

// Engine runs evaluation batches over all active conditions.
type Engine struct {
	alerts      repository.AlertRepository
	evaluator   *Evaluator
	notifier    Notifier
	log         logger.Logger
	concurrency int
	now         func() time.Time
}

// NewEngine creates an Engine. notifier may be nil to disable notifications.
func NewEngine(alerts repository.AlertRepository, evaluator *Evaluator, notifier Notifier, log logger.Logger, concurrency int) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{
		alerts:      alerts,
		evaluator:   evaluator,
		notifier:    notifier,
		log:         log,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// RunAll evaluates every active condition. Per-condition failures are
// reported in the result, not returned; the returned error covers only the
// inability to start the batch.
func (e *Engine) RunAll(ctx context.Context) ([]ConditionResult, error) {
	conditions, err := e.alerts.ActiveConditions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active conditions: %w", err)
	}

	results := make([]ConditionResult, len(conditions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range conditions {
		g.Go(func() error {
			results[i] = e.runOne(gctx, &conditions[i])
			return nil
		})
	}
	// Workers never return errors; Wait only observes context cancellation.
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// RunCondition evaluates a single condition by id, active or not.
func (e *Engine) RunCondition(ctx context.Context, id uint) (*ConditionResult, error) {
	cond, err := e.alerts.GetCondition(ctx, id)
	if err != nil {
		return nil, err
	}
	result := e.runOne(ctx, cond)
	return &result, nil
}

func (e *Engine) runOne(ctx context.Context, cond *entities.AlertCondition) ConditionResult {
	result := ConditionResult{ConditionID: cond.ID, ConditionName: cond.Name}
	now := e.now()

	if !repeatIntervalElapsed(cond, now) {
		result.Reason = "Repeat interval not elapsed"
		return result
	}

	observability.AlertEvaluations.Inc()
	eval, err := e.evaluator.Evaluate(ctx, cond, now)
	if err != nil {
		result.Error = err.Error()
		e.log.Error("condition evaluation failed",
			logger.Uint64("condition_id", uint64(cond.ID)),
			logger.Error(err))
		return result
	}
	result.Reason = eval.Reason
	if !eval.ShouldTrigger {
		return result
	}

	notes := eval.Reason
	if len(eval.ViolatedIDs) > 0 {
		notes = fmt.Sprintf("%s; matching record ids: %v", eval.Reason, eval.ViolatedIDs)
	}

	event, stamped, err := e.alerts.CreateEventAndStamp(ctx, cond.ID, cond.LastTriggeredAt, now, notes)
	if err != nil {
		result.Error = err.Error()
		e.log.Error("failed to create alert event",
			logger.Uint64("condition_id", uint64(cond.ID)),
			logger.Error(err))
		return result
	}
	if !stamped {
		// A concurrent evaluation won the stamp; no duplicate event.
		result.Reason = "Already triggered by a concurrent evaluation"
		return result
	}

	result.Triggered = true
	result.EventID = event.ID
	observability.AlertTriggers.Inc()
	e.log.Info("alert condition triggered",
		logger.Uint64("condition_id", uint64(cond.ID)),
		logger.String("condition", cond.Name),
		logger.Uint64("event_id", uint64(event.ID)),
		logger.String("reason", eval.Reason))

	e.dispatch(ctx, cond, event, now)
	return result
}

// dispatch sends the condition's template, if any. Delivery failures are
// logged and never fail the evaluation.
func (e *Engine) dispatch(ctx context.Context, cond *entities.AlertCondition, event *entities.AlertEvent, now time.Time) {
	if e.notifier == nil || cond.TemplateID == nil {
		return
	}
	data := map[string]string{
		"alertName":      cond.Name,
		"alertTime":      now.Format(time.RFC3339),
		"thresholdValue": cond.ThresholdValue,
		"notes":          event.Notes,
	}
	results, err := e.notifier.Dispatch(ctx, *cond.TemplateID, data)
	if err != nil {
		e.log.Error("alert notification dispatch failed",
			logger.Uint64("condition_id", uint64(cond.ID)),
			logger.Error(err))
		return
	}
	for i := range results {
		if !results[i].Success {
			e.log.Warn("alert notification delivery failed",
				logger.Uint64("condition_id", uint64(cond.ID)),
				logger.String("recipient", results[i].Email),
				logger.String("error", results[i].Error))
		}
	}
}

// repeatIntervalElapsed reports whether the condition may trigger again. A
// condition without a repeat interval re-alerts on every evaluation.
func repeatIntervalElapsed(cond *entities.AlertCondition, now time.Time) bool {
	if cond.LastTriggeredAt == nil || cond.RepeatIntervalMin == nil || *cond.RepeatIntervalMin <= 0 {
		return true
	}
	next := cond.LastTriggeredAt.Add(time.Duration(*cond.RepeatIntervalMin) * time.Minute)
	return !now.Before(next)
}

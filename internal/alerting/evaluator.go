package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/opsdeck/opsdeck/internal/datastore/entities"
	"github.com/opsdeck/opsdeck/internal/datastore/repository"
)

// Evaluation is the outcome of checking one condition against its stream.
type Evaluation struct {
	ShouldTrigger   bool
	Reason          string
	ViolatedIDs     []uint
	LatestViolation *repository.SourceRecord
	SourceTable     string
}

// Evaluator checks a single condition against its source stream.
type Evaluator struct {
	sources repository.SourceReader
	timeout time.Duration
}

// NewEvaluator creates an Evaluator. timeout bounds each source query; zero
// means no bound.
func NewEvaluator(sources repository.SourceReader, timeout time.Duration) *Evaluator {
	return &Evaluator{sources: sources, timeout: timeout}
}

// Evaluate fetches the condition's window of records and counts threshold
// violations. An empty window never triggers. The count threshold defaults
// to 1 when unset.
func (e *Evaluator) Evaluate(ctx context.Context, cond *entities.AlertCondition, now time.Time) (*Evaluation, error) {
	windowMin := defaultTimeWindowMin
	if cond.TimeWindowMin != nil && *cond.TimeWindowMin > 0 {
		windowMin = *cond.TimeWindowMin
	}
	windowStart := now.Add(-time.Duration(windowMin) * time.Minute)

	fetchCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	records, err := e.sources.Fetch(fetchCtx, cond.SourceTable, cond.FieldName, windowStart, now)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate condition %d: %w", cond.ID, err)
	}

	eval := &Evaluation{SourceTable: cond.SourceTable}
	if len(records) == 0 {
		eval.Reason = fmt.Sprintf("No %s found in time window", sourceNoun(cond.SourceTable))
		return eval, nil
	}

	for i := range records {
		if Compare(cond.Comparator, records[i].Value, cond.ThresholdValue) {
			eval.ViolatedIDs = append(eval.ViolatedIDs, records[i].ID)
			// Records come newest first, so the first hit is the latest.
			if eval.LatestViolation == nil {
				eval.LatestViolation = &records[i]
			}
		}
	}

	limit := 1
	if cond.CountThreshold != nil && *cond.CountThreshold > 0 {
		limit = *cond.CountThreshold
	}

	n := len(eval.ViolatedIDs)
	switch {
	case n >= limit:
		eval.ShouldTrigger = true
		if IsNumericComparator(cond.Comparator) {
			eval.Reason = fmt.Sprintf("Threshold exceeded %d times (limit: %d)", n, limit)
		} else {
			eval.Reason = fmt.Sprintf("Found %d matching logs (limit: %d)", n, limit)
		}
	case n > 0:
		if IsNumericComparator(cond.Comparator) {
			eval.Reason = fmt.Sprintf("Threshold exceeded %d times, below limit of %d", n, limit)
		} else {
			eval.Reason = fmt.Sprintf("Found %d matching logs, below limit of %d", n, limit)
		}
	default:
		if IsNumericComparator(cond.Comparator) {
			eval.Reason = "No threshold violations"
		} else {
			eval.Reason = "No matching logs"
		}
	}
	return eval, nil
}

func sourceNoun(sourceTable string) string {
	switch sourceTable {
	case entities.SourceMetrics:
		return "metrics"
	case entities.SourceAuthLogs:
		return "auth logs"
	case entities.SourceSystemLogs:
		return "system logs"
	case entities.SourceActivityLogs:
		return "activity logs"
	default:
		return "records"
	}
}

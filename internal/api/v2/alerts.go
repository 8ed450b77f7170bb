package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/opsdeck/opsdeck/internal/alerting"
	"github.com/opsdeck/opsdeck/internal/datastore/entities"
	"github.com/opsdeck/opsdeck/internal/datastore/repository"
	"github.com/opsdeck/opsdeck/internal/logger"
)

const maxEventLimit = 200

// initAlertRoutes registers alert condition and event endpoints.
func (c *Controller) initAlertRoutes() {
	alerts := c.Group.Group("/alerts")

	alerts.GET("/conditions", c.ListAlertConditions)
	alerts.GET("/conditions/:id", c.GetAlertCondition)
	alerts.POST("/conditions", c.CreateAlertCondition)
	alerts.PUT("/conditions/:id", c.UpdateAlertCondition)
	alerts.PATCH("/conditions/:id/toggle", c.ToggleAlertCondition)
	alerts.DELETE("/conditions/:id", c.DeleteAlertCondition)
	alerts.POST("/conditions/:id/run", c.RunAlertCondition)

	alerts.POST("/run", c.RunAlertConditions)

	alerts.GET("/events", c.ListAlertEvents)
	alerts.GET("/events/:id", c.GetAlertEvent)
	alerts.POST("/events/:id/resolve", c.ResolveAlertEvent)
	alerts.POST("/events/resolve-all", c.ResolveAllAlertEvents)
}

// ListAlertConditions returns all conditions, optionally filtered.
func (c *Controller) ListAlertConditions(ctx echo.Context) error {
	filter := repository.ConditionFilter{
		SourceTable: ctx.QueryParam("source_table"),
	}
	if activeParam := ctx.QueryParam("active"); activeParam != "" {
		v := activeParam == QueryValueTrue
		filter.Active = &v
	}

	conditions, err := c.alerts.ListConditions(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alert conditions", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"conditions": conditions,
		"count":      len(conditions),
	})
}

// GetAlertCondition returns a single condition by ID.
func (c *Controller) GetAlertCondition(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid condition ID")
	}
	cond, err := c.alerts.GetCondition(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrConditionNotFound) {
			return notFound(ctx, "Alert condition not found")
		}
		return c.HandleError(ctx, err, "Failed to get alert condition", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, cond)
}

// validateCondition checks the fields a condition cannot function without.
// An unparsable threshold under a numeric comparator is accepted but warned
// about: it simply never matches.
func (c *Controller) validateCondition(cond *entities.AlertCondition) string {
	if cond.Name == "" {
		return "Condition name is required"
	}
	if !entities.KnownSource(cond.SourceTable) {
		return "Unknown source table"
	}
	if !alerting.KnownComparator(cond.Comparator) {
		return "Unknown comparator"
	}
	if cond.ThresholdValue == "" {
		return "Threshold value is required"
	}
	if alerting.IsNumericComparator(cond.Comparator) {
		if _, err := strconv.ParseFloat(cond.ThresholdValue, 64); err != nil {
			c.log.Warn("numeric condition has unparsable threshold",
				logger.String("condition", cond.Name),
				logger.String("threshold", cond.ThresholdValue))
		}
	}
	return ""
}

// CreateAlertCondition creates a new condition.
func (c *Controller) CreateAlertCondition(ctx echo.Context) error {
	var cond entities.AlertCondition
	if err := ctx.Bind(&cond); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	if msg := c.validateCondition(&cond); msg != "" {
		return badRequest(ctx, msg)
	}
	cond.ID = 0
	cond.LastTriggeredAt = nil

	if err := c.alerts.CreateCondition(ctx.Request().Context(), &cond); err != nil {
		return c.HandleError(ctx, err, "Failed to create alert condition", http.StatusInternalServerError)
	}
	c.log.Info("alert condition created",
		logger.String("name", cond.Name),
		logger.Uint64("id", uint64(cond.ID)))
	return ctx.JSON(http.StatusCreated, cond)
}

// UpdateAlertCondition replaces an existing condition. The trigger stamp is
// preserved so debounce state survives edits.
func (c *Controller) UpdateAlertCondition(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid condition ID")
	}
	existing, err := c.alerts.GetCondition(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrConditionNotFound) {
			return notFound(ctx, "Alert condition not found")
		}
		return c.HandleError(ctx, err, "Failed to get alert condition", http.StatusInternalServerError)
	}

	var cond entities.AlertCondition
	if err := ctx.Bind(&cond); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	if msg := c.validateCondition(&cond); msg != "" {
		return badRequest(ctx, msg)
	}

	cond.ID = existing.ID
	cond.CreatedAt = existing.CreatedAt
	cond.LastTriggeredAt = existing.LastTriggeredAt

	if err := c.alerts.UpdateCondition(ctx.Request().Context(), &cond); err != nil {
		return c.HandleError(ctx, err, "Failed to update alert condition", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, cond)
}

// ToggleAlertCondition enables or disables a condition.
func (c *Controller) ToggleAlertCondition(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid condition ID")
	}
	var body struct {
		Active bool `json:"active"`
	}
	if err := ctx.Bind(&body); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	if err := c.alerts.ToggleCondition(ctx.Request().Context(), id, body.Active); err != nil {
		if errors.Is(err, repository.ErrConditionNotFound) {
			return notFound(ctx, "Alert condition not found")
		}
		return c.HandleError(ctx, err, "Failed to toggle alert condition", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{"id": id, "active": body.Active})
}

// DeleteAlertCondition deletes a condition and its events.
func (c *Controller) DeleteAlertCondition(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid condition ID")
	}
	if err := c.alerts.DeleteCondition(ctx.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrConditionNotFound) {
			return notFound(ctx, "Alert condition not found")
		}
		return c.HandleError(ctx, err, "Failed to delete alert condition", http.StatusInternalServerError)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// RunAlertConditions evaluates every active condition once.
func (c *Controller) RunAlertConditions(ctx echo.Context) error {
	results, err := c.engine.RunAll(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to run alert evaluation", http.StatusInternalServerError)
	}
	triggered := 0
	for i := range results {
		if results[i].Triggered {
			triggered++
		}
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"results":   results,
		"evaluated": len(results),
		"triggered": triggered,
	})
}

// RunAlertCondition evaluates a single condition by ID.
func (c *Controller) RunAlertCondition(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid condition ID")
	}
	result, err := c.engine.RunCondition(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrConditionNotFound) {
			return notFound(ctx, "Alert condition not found")
		}
		return c.HandleError(ctx, err, "Failed to run alert condition", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, result)
}

// ListAlertEvents returns paginated alert events.
func (c *Controller) ListAlertEvents(ctx echo.Context) error {
	filter := repository.EventFilter{Limit: 50}

	if conditionParam := ctx.QueryParam("condition_id"); conditionParam != "" {
		v, err := strconv.ParseUint(conditionParam, 10, 64)
		if err != nil {
			return badRequest(ctx, "Invalid condition_id")
		}
		filter.ConditionID = uint(v)
	}
	if resolvedParam := ctx.QueryParam("resolved"); resolvedParam != "" {
		v := resolvedParam == QueryValueTrue
		filter.Resolved = &v
	}
	if limitParam := ctx.QueryParam("limit"); limitParam != "" {
		v, err := strconv.Atoi(limitParam)
		if err == nil && v > 0 {
			if v > maxEventLimit {
				v = maxEventLimit
			}
			filter.Limit = v
		}
	}
	if offsetParam := ctx.QueryParam("offset"); offsetParam != "" {
		v, err := strconv.Atoi(offsetParam)
		if err == nil && v >= 0 {
			filter.Offset = v
		}
	}

	events, total, err := c.alerts.ListEvents(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alert events", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"events": events,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// GetAlertEvent returns a single event by ID.
func (c *Controller) GetAlertEvent(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid event ID")
	}
	event, err := c.alerts.GetEvent(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return notFound(ctx, "Alert event not found")
		}
		return c.HandleError(ctx, err, "Failed to get alert event", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, event)
}

// ResolveAlertEvent resolves one event for the requesting actor.
func (c *Controller) ResolveAlertEvent(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid event ID")
	}
	var body struct {
		Notes string `json:"notes"`
	}
	if err := ctx.Bind(&body); err != nil {
		return badRequest(ctx, "Invalid request body")
	}

	event, err := c.resolver.ResolveEvent(ctx.Request().Context(), actorID(ctx), id, body.Notes)
	if err != nil {
		switch {
		case errors.Is(err, alerting.ErrUnauthorized):
			return unauthorized(ctx)
		case errors.Is(err, repository.ErrEventNotFound):
			return notFound(ctx, "Alert event not found")
		default:
			return c.HandleError(ctx, err, "Failed to resolve alert event", http.StatusInternalServerError)
		}
	}
	return ctx.JSON(http.StatusOK, event)
}

// ResolveAllAlertEvents resolves every unresolved event.
func (c *Controller) ResolveAllAlertEvents(ctx echo.Context) error {
	var body struct {
		Notes string `json:"notes"`
	}
	if err := ctx.Bind(&body); err != nil {
		return badRequest(ctx, "Invalid request body")
	}

	count, err := c.resolver.ResolveAll(ctx.Request().Context(), actorID(ctx), body.Notes)
	if err != nil {
		if errors.Is(err, alerting.ErrUnauthorized) {
			return unauthorized(ctx)
		}
		return c.HandleError(ctx, err, "Failed to resolve alert events", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{"resolved": count})
}

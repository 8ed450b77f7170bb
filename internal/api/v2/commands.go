package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/opsdeck/opsdeck/internal/command"
	"github.com/opsdeck/opsdeck/internal/datastore/entities"
	"github.com/opsdeck/opsdeck/internal/datastore/repository"
	"github.com/opsdeck/opsdeck/internal/logger"
)

const maxMatchLimit = 200

// initCommandRoutes registers command group/rule/match endpoints.
func (c *Controller) initCommandRoutes() {
	commands := c.Group.Group("/commands")

	commands.GET("/groups", c.ListCommandGroups)
	commands.POST("/groups", c.CreateCommandGroup)
	commands.DELETE("/groups/:id", c.DeleteCommandGroup)

	commands.GET("/rules/:id", c.GetCommandRule)
	commands.POST("/rules", c.CreateCommandRule)
	commands.DELETE("/rules/:id", c.DeleteCommandRule)

	commands.GET("/matches", c.ListCommandMatches)
	commands.GET("/matches/unaddressed-count", c.CountUnaddressedMatches)
	commands.POST("/matches/:id/address", c.AddressCommandMatch)
	commands.POST("/matches/:id/unaddress", c.UnaddressCommandMatch)
	commands.POST("/matches/address-all", c.AddressAllCommandMatches)

	commands.POST("/check", c.CheckCommandLogs)
}

// ListCommandGroups returns all groups with rules and patterns.
func (c *Controller) ListCommandGroups(ctx echo.Context) error {
	groups, err := c.commands.ListGroups(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list command groups", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"groups": groups,
		"count":  len(groups),
	})
}

// CreateCommandGroup creates a command group.
func (c *Controller) CreateCommandGroup(ctx echo.Context) error {
	var group entities.CommandGroup
	if err := ctx.Bind(&group); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	if group.Name == "" {
		return badRequest(ctx, "Group name is required")
	}
	group.ID = 0

	if err := c.commands.CreateGroup(ctx.Request().Context(), &group); err != nil {
		return c.HandleError(ctx, err, "Failed to create command group", http.StatusInternalServerError)
	}
	c.matcher.InvalidateCache()
	return ctx.JSON(http.StatusCreated, group)
}

// DeleteCommandGroup deletes a group with its rules and patterns.
func (c *Controller) DeleteCommandGroup(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid group ID")
	}
	if err := c.commands.DeleteGroup(ctx.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			return notFound(ctx, "Command group not found")
		}
		return c.HandleError(ctx, err, "Failed to delete command group", http.StatusInternalServerError)
	}
	c.matcher.InvalidateCache()
	return ctx.NoContent(http.StatusNoContent)
}

// GetCommandRule returns a rule with its patterns and group.
func (c *Controller) GetCommandRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid rule ID")
	}
	rule, err := c.commands.GetRule(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrRuleNotFound) {
			return notFound(ctx, "Command rule not found")
		}
		return c.HandleError(ctx, err, "Failed to get command rule", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, rule)
}

// CreateCommandRule creates a rule along with its patterns.
func (c *Controller) CreateCommandRule(ctx echo.Context) error {
	var rule entities.CommandRule
	if err := ctx.Bind(&rule); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	if rule.Name == "" {
		return badRequest(ctx, "Rule name is required")
	}
	rule.ID = 0
	for i := range rule.Patterns {
		rule.Patterns[i].ID = 0
		rule.Patterns[i].RuleID = 0
	}

	if err := c.commands.CreateRule(ctx.Request().Context(), &rule); err != nil {
		return c.HandleError(ctx, err, "Failed to create command rule", http.StatusInternalServerError)
	}
	c.matcher.InvalidateCache()
	c.log.Info("command rule created",
		logger.String("name", rule.Name),
		logger.Uint64("id", uint64(rule.ID)),
		logger.Int("patterns", len(rule.Patterns)))
	return ctx.JSON(http.StatusCreated, rule)
}

// DeleteCommandRule deletes a rule and its patterns.
func (c *Controller) DeleteCommandRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid rule ID")
	}
	if err := c.commands.DeleteRule(ctx.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrRuleNotFound) {
			return notFound(ctx, "Command rule not found")
		}
		return c.HandleError(ctx, err, "Failed to delete command rule", http.StatusInternalServerError)
	}
	c.matcher.InvalidateCache()
	return ctx.NoContent(http.StatusNoContent)
}

// ListCommandMatches returns paginated matches.
func (c *Controller) ListCommandMatches(ctx echo.Context) error {
	filter := repository.MatchFilter{
		Search: ctx.QueryParam("search"),
		Limit:  50,
	}
	if addressedParam := ctx.QueryParam("addressed"); addressedParam != "" {
		v := addressedParam == QueryValueTrue
		filter.Addressed = &v
	}
	if ruleParam := ctx.QueryParam("rule_id"); ruleParam != "" {
		v, err := strconv.ParseUint(ruleParam, 10, 64)
		if err != nil {
			return badRequest(ctx, "Invalid rule_id")
		}
		filter.RuleID = uint(v)
	}
	if limitParam := ctx.QueryParam("limit"); limitParam != "" {
		v, err := strconv.Atoi(limitParam)
		if err == nil && v > 0 {
			if v > maxMatchLimit {
				v = maxMatchLimit
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

	matches, total, err := c.commands.ListMatches(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list command matches", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"matches": matches,
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// CountUnaddressedMatches returns the open match count for badges.
func (c *Controller) CountUnaddressedMatches(ctx echo.Context) error {
	count, err := c.commands.CountUnaddressed(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to count command matches", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{"count": count})
}

// AddressCommandMatch closes a match for the requesting actor.
func (c *Controller) AddressCommandMatch(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid match ID")
	}
	var body struct {
		Notes *string `json:"notes"`
	}
	if err := ctx.Bind(&body); err != nil {
		return badRequest(ctx, "Invalid request body")
	}

	match, err := c.matcher.MarkAddressed(ctx.Request().Context(), actorID(ctx), id, body.Notes)
	if err != nil {
		switch {
		case errors.Is(err, command.ErrUnauthorized):
			return unauthorized(ctx)
		case errors.Is(err, repository.ErrMatchNotFound):
			return notFound(ctx, "Command match not found")
		default:
			return c.HandleError(ctx, err, "Failed to address command match", http.StatusInternalServerError)
		}
	}
	return ctx.JSON(http.StatusOK, match)
}

// UnaddressCommandMatch reopens a match.
func (c *Controller) UnaddressCommandMatch(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid match ID")
	}
	match, err := c.matcher.UnmarkAddressed(ctx.Request().Context(), actorID(ctx), id)
	if err != nil {
		switch {
		case errors.Is(err, command.ErrUnauthorized):
			return unauthorized(ctx)
		case errors.Is(err, repository.ErrMatchNotFound):
			return notFound(ctx, "Command match not found")
		default:
			return c.HandleError(ctx, err, "Failed to unaddress command match", http.StatusInternalServerError)
		}
	}
	return ctx.JSON(http.StatusOK, match)
}

// AddressAllCommandMatches closes every open match.
func (c *Controller) AddressAllCommandMatches(ctx echo.Context) error {
	count, err := c.matcher.AddressAll(ctx.Request().Context(), actorID(ctx))
	if err != nil {
		if errors.Is(err, command.ErrUnauthorized) {
			return unauthorized(ctx)
		}
		return c.HandleError(ctx, err, "Failed to address command matches", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{"addressed": count})
}

// CheckCommandLogs runs a batch of ingested log lines through the matcher.
func (c *Controller) CheckCommandLogs(ctx echo.Context) error {
	var body struct {
		Logs []command.IngestedLog `json:"logs"`
	}
	if err := ctx.Bind(&body); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	if len(body.Logs) == 0 {
		return badRequest(ctx, "At least one log line is required")
	}

	matches, err := c.matcher.CheckBatch(ctx.Request().Context(), body.Logs)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to check command logs", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"matches": matches,
		"count":   len(matches),
		"checked": len(body.Logs),
	})
}

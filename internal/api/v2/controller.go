// Package api implements the v2 HTTP API.
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opsdeck/opsdeck/internal/alerting"
	"github.com/opsdeck/opsdeck/internal/command"
	"github.com/opsdeck/opsdeck/internal/datastore/repository"
	"github.com/opsdeck/opsdeck/internal/logger"
)

// QueryValueTrue is the accepted truthy value for boolean query parameters.
const QueryValueTrue = "true"

// actorHeader carries the authenticated user id set by the fronting proxy.
const actorHeader = "X-Actor-Id"

// Controller wires the engine, matcher, and repositories to echo routes.
type Controller struct {
	Group *echo.Group

	alerts    repository.AlertRepository
	commands  repository.CommandRepository
	templates repository.TemplateRepository

	engine   *alerting.Engine
	resolver *alerting.Resolver
	matcher  *command.Matcher

	log logger.Logger
}

// New registers all v2 routes on e and returns the controller.
func New(e *echo.Echo,
	alerts repository.AlertRepository,
	commands repository.CommandRepository,
	templates repository.TemplateRepository,
	engine *alerting.Engine,
	resolver *alerting.Resolver,
	matcher *command.Matcher,
	log logger.Logger,
) *Controller {
	c := &Controller{
		Group:     e.Group("/api/v2"),
		alerts:    alerts,
		commands:  commands,
		templates: templates,
		engine:    engine,
		resolver:  resolver,
		matcher:   matcher,
		log:       log,
	}
	c.initAlertRoutes()
	c.initCommandRoutes()
	c.initTemplateRoutes()
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return c
}

// HandleError logs err and answers with a stable JSON error body.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	c.log.Error(message, logger.Error(err), logger.String("path", ctx.Path()))
	return ctx.JSON(code, map[string]string{"error": message})
}

// actorID returns the authenticated user id from the request, or 0 when the
// request carries no identity.
func actorID(ctx echo.Context) uint {
	v, err := strconv.ParseUint(ctx.Request().Header.Get(actorHeader), 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}

// parseUintParam parses a uint route parameter.
func parseUintParam(ctx echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}

func badRequest(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusBadRequest, map[string]string{"error": message})
}

func unauthorized(ctx echo.Context) error {
	return ctx.JSON(http.StatusUnauthorized, map[string]string{"error": "Actor identity required"})
}

func notFound(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusNotFound, map[string]string{"error": message})
}

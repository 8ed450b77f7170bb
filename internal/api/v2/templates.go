package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/opsdeck/opsdeck/internal/datastore/entities"
	"github.com/opsdeck/opsdeck/internal/datastore/repository"
)

// initTemplateRoutes registers notification template endpoints.
func (c *Controller) initTemplateRoutes() {
	templates := c.Group.Group("/templates")

	templates.GET("", c.ListTemplates)
	templates.GET("/:id", c.GetTemplate)
	templates.POST("", c.CreateTemplate)
	templates.PUT("/:id", c.UpdateTemplate)
	templates.DELETE("/:id", c.DeleteTemplate)

	templates.POST("/:id/recipients", c.AssignTemplateRecipients)
	templates.DELETE("/:id/recipients", c.RemoveTemplateRecipients)
}

// ListTemplates returns all templates with recipients.
func (c *Controller) ListTemplates(ctx echo.Context) error {
	templates, err := c.templates.ListTemplates(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list templates", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"templates": templates,
		"count":     len(templates),
	})
}

// GetTemplate returns a single template by ID.
func (c *Controller) GetTemplate(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid template ID")
	}
	tmpl, err := c.templates.GetTemplate(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return notFound(ctx, "Template not found")
		}
		return c.HandleError(ctx, err, "Failed to get template", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, tmpl)
}

// CreateTemplate creates a notification template.
func (c *Controller) CreateTemplate(ctx echo.Context) error {
	var tmpl entities.NotificationTemplate
	if err := ctx.Bind(&tmpl); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	if tmpl.Name == "" || tmpl.Subject == "" {
		return badRequest(ctx, "Template name and subject are required")
	}
	tmpl.ID = 0

	if err := c.templates.CreateTemplate(ctx.Request().Context(), &tmpl); err != nil {
		return c.HandleError(ctx, err, "Failed to create template", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusCreated, tmpl)
}

// UpdateTemplate updates a template's name, subject, and body.
func (c *Controller) UpdateTemplate(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid template ID")
	}
	var tmpl entities.NotificationTemplate
	if err := ctx.Bind(&tmpl); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	if tmpl.Name == "" || tmpl.Subject == "" {
		return badRequest(ctx, "Template name and subject are required")
	}
	tmpl.ID = id

	if err := c.templates.UpdateTemplate(ctx.Request().Context(), &tmpl); err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return notFound(ctx, "Template not found")
		}
		return c.HandleError(ctx, err, "Failed to update template", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, tmpl)
}

// DeleteTemplate deletes a template and its recipient links.
func (c *Controller) DeleteTemplate(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid template ID")
	}
	if err := c.templates.DeleteTemplate(ctx.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return notFound(ctx, "Template not found")
		}
		return c.HandleError(ctx, err, "Failed to delete template", http.StatusInternalServerError)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// AssignTemplateRecipients links users to a template.
func (c *Controller) AssignTemplateRecipients(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid template ID")
	}
	var body struct {
		UserIDs []uint `json:"user_ids"`
	}
	if err := ctx.Bind(&body); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	if len(body.UserIDs) == 0 {
		return badRequest(ctx, "At least one user ID is required")
	}

	if err := c.templates.AssignRecipients(ctx.Request().Context(), id, body.UserIDs); err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return notFound(ctx, "Template not found")
		}
		return c.HandleError(ctx, err, "Failed to assign recipients", http.StatusInternalServerError)
	}

	tmpl, err := c.templates.GetTemplate(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get template", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, tmpl)
}

// RemoveTemplateRecipients unlinks users from a template.
func (c *Controller) RemoveTemplateRecipients(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid template ID")
	}
	var body struct {
		UserIDs []uint `json:"user_ids"`
	}
	if err := ctx.Bind(&body); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	if len(body.UserIDs) == 0 {
		return badRequest(ctx, "At least one user ID is required")
	}

	if err := c.templates.RemoveRecipients(ctx.Request().Context(), id, body.UserIDs); err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return notFound(ctx, "Template not found")
		}
		return c.HandleError(ctx, err, "Failed to remove recipients", http.StatusInternalServerError)
	}

	tmpl, err := c.templates.GetTemplate(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get template", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, tmpl)
}

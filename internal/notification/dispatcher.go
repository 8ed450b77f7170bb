// Package notification renders templates and fans them out to recipients.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opsdeck/opsdeck/internal/datastore/entities"
	"github.com/opsdeck/opsdeck/internal/datastore/repository"
	"github.com/opsdeck/opsdeck/internal/logger"
	"github.com/opsdeck/opsdeck/internal/observability"
)

// RecipientResult is the per-recipient outcome of a dispatch.
type RecipientResult struct {
	Email     string `json:"email"`
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Transport delivers one rendered message and returns a delivery message id.
type Transport interface {
	Send(ctx context.Context, to, subject, htmlBody string) (string, error)
}

// Dispatcher renders a template against substitution data and sends it to the
// template's recipients. One recipient failing never stops the others.
type Dispatcher struct {
	templates   repository.TemplateRepository
	transport   Transport
	log         logger.Logger
	sendTimeout time.Duration
}

// NewDispatcher creates a Dispatcher. sendTimeout bounds each per-recipient
// send; zero means no bound.
func NewDispatcher(templates repository.TemplateRepository, transport Transport, log logger.Logger, sendTimeout time.Duration) *Dispatcher {
	return &Dispatcher{templates: templates, transport: transport, log: log, sendTimeout: sendTimeout}
}

// Dispatch sends templateID to its recipients. Recipients are the users
// assigned to the template, or every known user when none are assigned.
// Failures are reported per recipient; the returned error is reserved for
// not being able to attempt delivery at all.
func (d *Dispatcher) Dispatch(ctx context.Context, templateID uint, data map[string]string) ([]RecipientResult, error) {
	tmpl, err := d.templates.GetTemplate(ctx, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return []RecipientResult{{
				Success: false,
				Error:   fmt.Sprintf("notification template %d not found", templateID),
			}}, nil
		}
		return nil, err
	}

	recipients, err := d.resolveRecipients(ctx, tmpl)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return []RecipientResult{{
			Success: false,
			Error:   "no valid recipients",
		}}, nil
	}

	results := make([]RecipientResult, 0, len(recipients))
	for i := range recipients {
		results = append(results, d.sendOne(ctx, tmpl, &recipients[i], data))
	}
	return results, nil
}

func (d *Dispatcher) resolveRecipients(ctx context.Context, tmpl *entities.NotificationTemplate) ([]entities.User, error) {
	if len(tmpl.Recipients) > 0 {
		return tmpl.Recipients, nil
	}
	users, err := d.templates.ResolveRecipients(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipients for template %d: %w", tmpl.ID, err)
	}
	return users, nil
}

func (d *Dispatcher) sendOne(ctx context.Context, tmpl *entities.NotificationTemplate, user *entities.User, data map[string]string) RecipientResult {
	result := RecipientResult{Email: user.Email}
	if user.Email == "" {
		result.Error = fmt.Sprintf("user %d has no email address", user.ID)
		observability.NotificationSends.WithLabelValues("failure").Inc()
		return result
	}

	subject := renderTemplate(tmpl.Subject, user.Username, data)
	body := renderTemplate(tmpl.Body, user.Username, data)

	sendCtx := ctx
	if d.sendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
	}

	messageID, err := d.transport.Send(sendCtx, user.Email, subject, body)
	if err != nil {
		result.Error = err.Error()
		observability.NotificationSends.WithLabelValues("failure").Inc()
		d.log.Warn("notification delivery failed",
			logger.Uint64("template_id", uint64(tmpl.ID)),
			logger.String("recipient", user.Email),
			logger.Error(err))
		return result
	}

	result.Success = true
	result.MessageID = messageID
	observability.NotificationSends.WithLabelValues("success").Inc()
	return result
}

// renderTemplate substitutes {{key}} placeholders. {{username}} is always the
// recipient's username, even when the data map carries its own entry.
func renderTemplate(text, username string, data map[string]string) string {
	pairs := make([]string, 0, (len(data)+1)*2)
	pairs = append(pairs, "{{username}}", username)
	for k, v := range data {
		if k == "username" {
			continue
		}
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

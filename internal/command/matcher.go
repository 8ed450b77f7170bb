// Package command matches ingested log lines against literal command
// patterns and manages the lifecycle of the resulting matches.
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/opsdeck/opsdeck/internal/datastore/entities"
	"github.com/opsdeck/opsdeck/internal/datastore/repository"
	"github.com/opsdeck/opsdeck/internal/logger"
	"github.com/opsdeck/opsdeck/internal/notification"
	"github.com/opsdeck/opsdeck/internal/observability"
)

// ErrUnauthorized is returned when a mutation requires an identified actor.
var ErrUnauthorized = errors.New("actor identity required")

const patternCacheKey = "command_patterns"

// bulkAddressNote is stored on matches closed through AddressAll.
const bulkAddressNote = "Bulk addressed by user"

// Notifier delivers a rendered template to its recipients.
type Notifier interface {
	Dispatch(ctx context.Context, templateID uint, data map[string]string) ([]notification.RecipientResult, error)
}

// IngestedLog is one log line submitted for pattern checking.
type IngestedLog struct {
	ID     uint   `json:"id"`
	Source string `json:"source"`
	Entry  string `json:"entry"`
}

// Matcher checks log lines against the configured command patterns. The
// pattern set is cached briefly so batch ingestion does not hammer the
// database.
type Matcher struct {
	commands repository.CommandRepository
	activity repository.ActivityRepository
	notifier Notifier
	log      logger.Logger
	cache    *gocache.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

// NewMatcher creates a Matcher. notifier may be nil to disable notifications.
func NewMatcher(commands repository.CommandRepository, activity repository.ActivityRepository, notifier Notifier, log logger.Logger, cacheTTL time.Duration) *Matcher {
	return &Matcher{
		commands: commands,
		activity: activity,
		notifier: notifier,
		log:      log,
		cache:    gocache.New(cacheTTL, 2*cacheTTL),
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// CheckMatches runs one log line against every pattern. Matching is literal
// and case-sensitive. A pattern that already has an unaddressed match for
// this log line is skipped, so re-ingesting a line never duplicates open
// matches. Returns the matches created by this call.
func (m *Matcher) CheckMatches(ctx context.Context, logID uint, logSource, logEntry string) ([]entities.CommandMatch, error) {
	if logSource != entities.LogSourceSystem && logSource != entities.LogSourceAuth {
		return nil, fmt.Errorf("unknown log source %q", logSource)
	}

	patterns, err := m.loadPatterns(ctx)
	if err != nil {
		return nil, err
	}

	var created []entities.CommandMatch
	for i := range patterns {
		p := &patterns[i]
		needle := strings.TrimSpace(p.Pattern)
		if needle == "" {
			continue
		}
		if !strings.Contains(logEntry, needle) {
			continue
		}

		existing, err := m.commands.FindOpenMatch(ctx, logID, logSource, p.ID, p.RuleID)
		if err != nil {
			return created, err
		}
		if existing != nil {
			continue
		}

		match := entities.CommandMatch{
			LogID:       logID,
			LogSource:   logSource,
			PatternID:   p.ID,
			RuleID:      p.RuleID,
			MatchedText: p.Pattern,
			LogEntry:    logEntry,
		}
		if err := m.commands.CreateMatch(ctx, &match); err != nil {
			return created, err
		}
		observability.CommandMatches.Inc()
		m.log.Info("command pattern matched",
			logger.Uint64("pattern_id", uint64(p.ID)),
			logger.Uint64("rule_id", uint64(p.RuleID)),
			logger.Uint64("log_id", uint64(logID)),
			logger.String("log_source", logSource))

		m.notify(ctx, p, &match)
		created = append(created, match)
	}
	return created, nil
}

// CheckBatch runs CheckMatches for each ingested line. A failing line is
// logged and skipped; the rest of the batch still runs.
func (m *Matcher) CheckBatch(ctx context.Context, logs []IngestedLog) ([]entities.CommandMatch, error) {
	var all []entities.CommandMatch
	for i := range logs {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		matches, err := m.CheckMatches(ctx, logs[i].ID, logs[i].Source, logs[i].Entry)
		if err != nil {
			m.log.Error("command check failed for log line",
				logger.Uint64("log_id", uint64(logs[i].ID)),
				logger.Error(err))
			continue
		}
		all = append(all, matches...)
	}
	return all, nil
}

// loadPatterns returns the cached pattern set, refreshing it when expired.
func (m *Matcher) loadPatterns(ctx context.Context) ([]entities.CommandPattern, error) {
	if cached, ok := m.cache.Get(patternCacheKey); ok {
		if patterns, ok := cached.([]entities.CommandPattern); ok {
			return patterns, nil
		}
	}
	patterns, err := m.commands.ListPatterns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load command patterns: %w", err)
	}
	m.cache.Set(patternCacheKey, patterns, m.cacheTTL)
	return patterns, nil
}

// InvalidateCache drops the cached pattern set. Called after pattern
// mutations so the next check sees them immediately.
func (m *Matcher) InvalidateCache() {
	m.cache.Delete(patternCacheKey)
}

// notify dispatches the match's effective template. Delivery failures are
// logged only; the match itself is already recorded.
func (m *Matcher) notify(ctx context.Context, pattern *entities.CommandPattern, match *entities.CommandMatch) {
	if m.notifier == nil {
		return
	}
	templateID := effectiveTemplate(pattern)
	if templateID == nil {
		return
	}

	ruleName := ""
	groupName := ""
	if pattern.Rule != nil {
		ruleName = pattern.Rule.Name
		if pattern.Rule.Group != nil {
			groupName = pattern.Rule.Group.Name
		}
	}
	data := map[string]string{
		"command":   match.MatchedText,
		"logEntry":  match.LogEntry,
		"ruleName":  ruleName,
		"groupName": groupName,
		"timestamp": m.now().Format(time.RFC3339),
		"logId":     fmt.Sprintf("%d", match.LogID),
		"logType":   match.LogSource,
	}

	results, err := m.notifier.Dispatch(ctx, *templateID, data)
	if err != nil {
		m.log.Error("command notification dispatch failed",
			logger.Uint64("match_id", uint64(match.ID)),
			logger.Error(err))
		return
	}
	sent := false
	for i := range results {
		if results[i].Success {
			sent = true
		} else {
			m.log.Warn("command notification delivery failed",
				logger.Uint64("match_id", uint64(match.ID)),
				logger.String("recipient", results[i].Email),
				logger.String("error", results[i].Error))
		}
	}
	if sent {
		if err := m.commands.MarkNotified(ctx, match.ID); err != nil {
			m.log.Warn("failed to mark match notified",
				logger.Uint64("match_id", uint64(match.ID)),
				logger.Error(err))
			return
		}
		match.NotificationSent = true
	}
}

// effectiveTemplate picks the template for a match: pattern first, then
// rule, then group.
func effectiveTemplate(pattern *entities.CommandPattern) *uint {
	if pattern.TemplateID != nil {
		return pattern.TemplateID
	}
	if pattern.Rule != nil {
		if pattern.Rule.TemplateID != nil {
			return pattern.Rule.TemplateID
		}
		if pattern.Rule.Group != nil && pattern.Rule.Group.TemplateID != nil {
			return pattern.Rule.Group.TemplateID
		}
	}
	return nil
}

// MarkAddressed closes a match on behalf of the actor, replacing its notes.
func (m *Matcher) MarkAddressed(ctx context.Context, actorID, matchID uint, notes *string) (*entities.CommandMatch, error) {
	if actorID == 0 {
		return nil, ErrUnauthorized
	}
	match, err := m.commands.MarkAddressed(ctx, matchID, actorID, m.now(), notes)
	if err != nil {
		return nil, err
	}
	m.record(ctx, actorID, "address_command_match", matchID, fmt.Sprintf("Addressed command match %d", matchID))
	return match, nil
}

// UnmarkAddressed reopens a match. Attribution is cleared but the previous
// addressed_at and notes remain as history.
func (m *Matcher) UnmarkAddressed(ctx context.Context, actorID, matchID uint) (*entities.CommandMatch, error) {
	if actorID == 0 {
		return nil, ErrUnauthorized
	}
	match, err := m.commands.UnmarkAddressed(ctx, matchID)
	if err != nil {
		return nil, err
	}
	m.record(ctx, actorID, "unaddress_command_match", matchID, fmt.Sprintf("Reopened command match %d", matchID))
	return match, nil
}

// AddressAll closes every open match on behalf of the actor.
func (m *Matcher) AddressAll(ctx context.Context, actorID uint) (int64, error) {
	if actorID == 0 {
		return 0, ErrUnauthorized
	}
	count, err := m.commands.AddressAll(ctx, actorID, m.now(), bulkAddressNote)
	if err != nil {
		return 0, err
	}
	m.record(ctx, actorID, "address_all_command_matches", 0, fmt.Sprintf("Addressed %d command matches", count))
	return count, nil
}

func (m *Matcher) record(ctx context.Context, actorID uint, actionType string, targetID uint, details string) {
	if m.activity == nil {
		return
	}
	if err := m.activity.Record(ctx, &actorID, actionType, "command_match", targetID, details); err != nil {
		m.log.Warn("failed to record activity", logger.String("action", actionType), logger.Error(err))
	}
}

package repository

import (
	"context"
	"time"

	"github.com/opsdeck/opsdeck/internal/datastore/entities"
)

// CommandRepository handles command groups, rules, patterns, and matches.
type CommandRepository interface {
	// Pattern loading for the matcher. Patterns come preloaded with their
	// rule and the rule's group so template fallback needs no extra queries.
	ListPatterns(ctx context.Context) ([]entities.CommandPattern, error)

	// Group/rule CRUD
	ListGroups(ctx context.Context) ([]entities.CommandGroup, error)
	CreateGroup(ctx context.Context, group *entities.CommandGroup) error
	DeleteGroup(ctx context.Context, id uint) error
	GetRule(ctx context.Context, id uint) (*entities.CommandRule, error)
	CreateRule(ctx context.Context, rule *entities.CommandRule) error
	DeleteRule(ctx context.Context, id uint) error

	// Matches
	// FindOpenMatch returns the unaddressed match for the given triple, or
	// nil when none exists.
	FindOpenMatch(ctx context.Context, logID uint, logSource string, patternID, ruleID uint) (*entities.CommandMatch, error)
	CreateMatch(ctx context.Context, match *entities.CommandMatch) error
	MarkNotified(ctx context.Context, matchID uint) error
	GetMatch(ctx context.Context, id uint) (*entities.CommandMatch, error)
	ListMatches(ctx context.Context, filter MatchFilter) ([]entities.CommandMatch, int64, error)
	CountUnaddressed(ctx context.Context) (int64, error)

	// MarkAddressed records who addressed the match and when, replacing notes.
	MarkAddressed(ctx context.Context, id, actorID uint, now time.Time, notes *string) (*entities.CommandMatch, error)
	// UnmarkAddressed flips the flag and clears attribution only; the
	// addressed_at timestamp and notes are left as history.
	UnmarkAddressed(ctx context.Context, id uint) (*entities.CommandMatch, error)
	// AddressAll marks every unaddressed match addressed by the actor.
	AddressAll(ctx context.Context, actorID uint, now time.Time, notes string) (int64, error)
}

// MatchFilter controls match listing queries.
type MatchFilter struct {
	Addressed *bool
	RuleID    uint
	Search    string
	Limit     int
	Offset    int
}

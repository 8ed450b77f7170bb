package repository

import "errors"

// Sentinel errors surfaced to callers; API handlers map these to 404s.
var (
	ErrConditionNotFound = errors.New("alert condition not found")
	ErrEventNotFound     = errors.New("alert event not found")
	ErrMatchNotFound     = errors.New("command match not found")
	ErrRuleNotFound      = errors.New("command rule not found")
	ErrGroupNotFound     = errors.New("command group not found")
	ErrTemplateNotFound  = errors.New("notification template not found")
)

package entities

import "time"

// CommandGroup bundles command rules and can carry a group-level notification
// template used when neither the pattern nor the rule overrides it.
type CommandGroup struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	TemplateID *uint     `gorm:"index" json:"template_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Rules []CommandRule `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"rules,omitempty"`
}

// TableName returns the table name for GORM.
func (CommandGroup) TableName() string {
	return "command_groups"
}

// CommandRule groups one or more literal command patterns.
type CommandRule struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"size:1000;default:''" json:"description"`
	GroupID     *uint     `gorm:"index" json:"group_id"`
	TemplateID  *uint     `gorm:"index" json:"template_id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Group    *CommandGroup    `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	Patterns []CommandPattern `gorm:"foreignKey:RuleID;constraint:OnDelete:CASCADE" json:"patterns,omitempty"`
}

// TableName returns the table name for GORM.
func (CommandRule) TableName() string {
	return "command_rules"
}

// CommandPattern holds one literal string scanned for inside ingested log
// entries. A pattern-level template overrides the rule's and group's.
type CommandPattern struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	RuleID     uint   `gorm:"not null;index" json:"rule_id"`
	Pattern    string `gorm:"size:500;not null" json:"pattern"`
	TemplateID *uint  `gorm:"index" json:"template_id"`

	Rule *CommandRule `gorm:"foreignKey:RuleID" json:"rule,omitempty"`
}

// TableName returns the table name for GORM.
func (CommandPattern) TableName() string {
	return "command_patterns"
}

// Log source types for command matches.
const (
	LogSourceSystem = "system"
	LogSourceAuth   = "auth"
)

// CommandMatch records one pattern hit against one log record. At most one
// unaddressed match may exist per (LogID, PatternID, RuleID); re-scanning the
// same line must not duplicate an open match.
type CommandMatch struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	LogID            uint       `gorm:"not null;index:idx_command_match_open,priority:1" json:"log_id"`
	LogSource        string     `gorm:"size:10;not null" json:"log_source"`
	PatternID        uint       `gorm:"not null;index:idx_command_match_open,priority:2" json:"pattern_id"`
	RuleID           uint       `gorm:"not null;index:idx_command_match_open,priority:3" json:"rule_id"`
	MatchedText      string     `gorm:"size:500;not null" json:"matched_text"`
	LogEntry         string     `gorm:"type:text;default:''" json:"log_entry"`
	Timestamp        time.Time  `gorm:"autoCreateTime;index" json:"timestamp"`
	Addressed        bool       `gorm:"not null;default:false;index" json:"addressed"`
	AddressedBy      *uint      `json:"addressed_by"`
	AddressedAt      *time.Time `json:"addressed_at"`
	Notes            *string    `gorm:"type:text" json:"notes"`
	NotificationSent bool       `gorm:"not null;default:false" json:"notification_sent"`

	Rule *CommandRule `gorm:"foreignKey:RuleID" json:"rule,omitempty"`
}

// TableName returns the table name for GORM.
func (CommandMatch) TableName() string {
	return "command_matches"
}

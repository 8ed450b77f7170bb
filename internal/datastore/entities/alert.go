package entities

import "time"

// AlertCondition is a persisted detection rule: which stream to watch, how to
// compare records against the threshold, and how often to re-alert.
type AlertCondition struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Name              string     `gorm:"size:255;not null" json:"name"`
	SourceTable       string     `gorm:"size:50;not null;index" json:"source_table"`
	FieldName         string     `gorm:"size:100;not null" json:"field_name"`
	Comparator        string     `gorm:"size:20;not null" json:"comparator"`
	ThresholdValue    string     `gorm:"size:500;not null" json:"threshold_value"`
	TimeWindowMin     *int       `json:"time_window_min"`
	RepeatIntervalMin *int       `json:"repeat_interval_min"`
	CountThreshold    *int       `json:"count_threshold"`
	Active            bool       `gorm:"not null;index" json:"active"`
	LastTriggeredAt   *time.Time `json:"last_triggered_at"`
	TemplateID        *uint      `gorm:"index" json:"template_id"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Events []AlertEvent `gorm:"foreignKey:ConditionID;constraint:OnDelete:CASCADE" json:"events,omitempty"`
}

// TableName returns the table name for GORM.
func (AlertCondition) TableName() string {
	return "alert_conditions"
}

// AlertEvent is one materialized occurrence of a condition having been met.
// Notes are an append-only history: every resolution appends another block.
type AlertEvent struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ConditionID uint       `gorm:"not null;index" json:"condition_id"`
	TriggeredAt time.Time  `gorm:"not null;index" json:"triggered_at"`
	Resolved    bool       `gorm:"not null;default:false;index" json:"resolved"`
	ResolvedAt  *time.Time `json:"resolved_at"`
	Notes       string     `gorm:"type:text;default:''" json:"notes"`

	Condition *AlertCondition `gorm:"foreignKey:ConditionID" json:"condition,omitempty"`
}

// TableName returns the table name for GORM.
func (AlertEvent) TableName() string {
	return "alert_events"
}

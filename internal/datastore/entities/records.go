package entities

import "time"

// Watchable source streams for alert conditions.
const (
	SourceMetrics      = "system_metrics"
	SourceAuthLogs     = "auth_logs"
	SourceSystemLogs   = "system_logs"
	SourceActivityLogs = "activity_logs"
)

// KnownSource reports whether s names one of the watchable streams.
func KnownSource(s string) bool {
	switch s {
	case SourceMetrics, SourceAuthLogs, SourceSystemLogs, SourceActivityLogs:
		return true
	}
	return false
}

// SystemMetric is one sensor sample (temperature, fan speed, load, ...).
type SystemMetric struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Timestamp  time.Time `gorm:"not null;index" json:"timestamp"`
	SensorName string    `gorm:"size:100;not null;index" json:"sensor_name"`
	ValueType  string    `gorm:"size:50;default:''" json:"value_type"`
	Value      float64   `gorm:"not null" json:"value"`
	Host       string    `gorm:"size:100;default:''" json:"host"`
}

// TableName returns the table name for GORM.
func (SystemMetric) TableName() string {
	return "system_metrics"
}

// AuthLog is one authentication log line ingested from monitored hosts.
type AuthLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	Username  string    `gorm:"size:100;default:''" json:"username"`
	LogEntry  string    `gorm:"type:text;not null" json:"log_entry"`
}

// TableName returns the table name for GORM.
func (AuthLog) TableName() string {
	return "auth_logs"
}

// SystemLog is one process-activity record from a monitored host.
// CPU and Mem are nullable: not every collector reports them.
type SystemLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Host      string    `gorm:"size:100;default:''" json:"host"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	PID       int       `gorm:"default:0" json:"pid"`
	Action    string    `gorm:"size:100;default:''" json:"action"`
	CPU       *float64  `json:"cpu"`
	Mem       *float64  `json:"mem"`
	Command   string    `gorm:"type:text;default:''" json:"command"`
	Port      int       `gorm:"default:0" json:"port"`
	IPAddress string    `gorm:"size:45;default:''" json:"ip_address"`
}

// TableName returns the table name for GORM.
func (SystemLog) TableName() string {
	return "system_logs"
}

// ActivityLog is the application audit trail; it is both written by this
// service on mutations and watchable as an alert source stream.
type ActivityLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     *uint     `gorm:"index" json:"user_id"`
	ActionType string    `gorm:"size:100;not null" json:"action_type"`
	TargetType string    `gorm:"size:100;not null" json:"target_type"`
	TargetID   uint      `gorm:"default:0" json:"target_id"`
	Details    string    `gorm:"type:text;default:''" json:"details"`
	Timestamp  time.Time `gorm:"autoCreateTime;index" json:"timestamp"`
}

// TableName returns the table name for GORM.
func (ActivityLog) TableName() string {
	return "activity_logs"
}

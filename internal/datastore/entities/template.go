package entities

import "time"

// NotificationTemplate is a reusable subject/body pair with {{key}}
// placeholders, shared by alert conditions, command rules, and patterns.
type NotificationTemplate struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Subject   string    `gorm:"size:500;not null" json:"subject"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Recipients []User `gorm:"many2many:template_recipients" json:"recipients,omitempty"`
}

// TableName returns the table name for GORM.
func (NotificationTemplate) TableName() string {
	return "notification_templates"
}

// User is a notification recipient. Account management lives outside this
// service; only the fields needed for delivery are stored here.
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"size:100;not null" json:"username"`
	Email    string `gorm:"size:255;not null" json:"email"`
}

// TableName returns the table name for GORM.
func (User) TableName() string {
	return "users"
}

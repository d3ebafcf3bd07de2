package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification types raised by the mentorship lifecycle.
const (
	NotificationTypeRequestCreated      = "mentorship.request.created"
	NotificationTypeRequestAccepted     = "mentorship.request.accepted"
	NotificationTypeRequestRejected     = "mentorship.request.rejected"
	NotificationTypeConnectionCompleted = "mentorship.connection.completed"
	NotificationTypeConnectionDetached  = "mentorship.connection.detached"
)

// Notification represents an in-app notification for a user.
type Notification struct {
	BaseModel

	UserID    string         `gorm:"type:varchar(36);index" json:"user_id"`
	Type      string         `gorm:"type:varchar(64);not null" json:"type"`
	Title     string         `gorm:"type:varchar(255);not null" json:"title"`
	Message   string         `gorm:"type:text" json:"message"`
	Severity  string         `gorm:"type:varchar(32);default:'info'" json:"severity"`
	ActionURL string         `gorm:"type:text" json:"action_url"`
	Metadata  datatypes.JSON `json:"metadata"`

	IsRead bool       `gorm:"index" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}

// NotificationSetting stores a user's delivery preferences. Absence means email is enabled.
type NotificationSetting struct {
	UserID       string    `gorm:"primaryKey;type:varchar(36)" json:"user_id"`
	EmailEnabled bool      `gorm:"not null" json:"email_enabled"`
	UpdatedAt    time.Time `json:"updated_at"`
}

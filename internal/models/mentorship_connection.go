package models

import "time"

// ConnectionStatus enumerates the states of a mentorship connection.
type ConnectionStatus string

const (
	ConnectionStatusActive   ConnectionStatus = "ACTIVE"
	ConnectionStatusDetached ConnectionStatus = "DETACHED"
)

// MentorshipConnection is the durable relationship produced by an accepted request.
// One row exists per (mentor, mentee) pair and is reused on reactivation.
type MentorshipConnection struct {
	BaseModel

	MentorID    string             `gorm:"type:varchar(36);not null;uniqueIndex:idx_mentorship_connections_pair,priority:1" json:"mentor_id"`
	Mentor      *MentorProfile     `gorm:"foreignKey:MentorID" json:"mentor,omitempty"`
	MenteeID    string             `gorm:"type:varchar(36);not null;uniqueIndex:idx_mentorship_connections_pair,priority:2;index" json:"mentee_id"`
	Mentee      *MenteeProfile     `gorm:"foreignKey:MenteeID" json:"mentee,omitempty"`
	RequestID   string             `gorm:"type:varchar(36);not null;index" json:"request_id"`
	Request     *MentorshipRequest `gorm:"foreignKey:RequestID" json:"request,omitempty"`
	Status      ConnectionStatus   `gorm:"type:varchar(16);not null;index" json:"status"`
	CompletedAt *time.Time         `json:"completed_at"`
	DetachedAt  *time.Time         `json:"detached_at"`
	Reason      *string            `gorm:"type:varchar(500)" json:"reason"`
}

// TableName pins the table name used by raw index statements.
func (MentorshipConnection) TableName() string {
	return "mentorship_connections"
}

// IsCompleted reports whether the completion timestamp has been set.
func (c MentorshipConnection) IsCompleted() bool {
	return c.CompletedAt != nil
}

// IsParticipant reports whether either profile id belongs to this connection.
func (c MentorshipConnection) IsParticipant(mentorProfileID, menteeProfileID string) bool {
	return (mentorProfileID != "" && c.MentorID == mentorProfileID) ||
		(menteeProfileID != "" && c.MenteeID == menteeProfileID)
}

// CountsTowardCapacity reports whether the connection occupies one of the mentor's slots.
func (c MentorshipConnection) CountsTowardCapacity() bool {
	return c.Status == ConnectionStatusActive && c.CompletedAt == nil
}

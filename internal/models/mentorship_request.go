package models

// RequestStatus enumerates the lifecycle states of a mentorship request.
type RequestStatus string

const (
	RequestStatusSent      RequestStatus = "SENT"
	RequestStatusAccepted  RequestStatus = "ACCEPTED"
	RequestStatusRejected  RequestStatus = "REJECTED"
	RequestStatusCompleted RequestStatus = "COMPLETED"
)

// MentorshipRequest is a mentee's proposal to a specific mentor.
// At most one SENT row exists per (mentee, mentor) pair.
type MentorshipRequest struct {
	BaseModel

	MenteeID string         `gorm:"type:varchar(36);not null;index:idx_mentorship_requests_pair,priority:1" json:"mentee_id"`
	Mentee   *MenteeProfile `gorm:"foreignKey:MenteeID" json:"mentee,omitempty"`
	MentorID string         `gorm:"type:varchar(36);not null;index:idx_mentorship_requests_pair,priority:2;index" json:"mentor_id"`
	Mentor   *MentorProfile `gorm:"foreignKey:MentorID" json:"mentor,omitempty"`
	Message  string         `gorm:"type:text;not null" json:"message"`
	Status   RequestStatus  `gorm:"type:varchar(16);not null;index" json:"status"`
}

// TableName pins the table name used by raw index statements.
func (MentorshipRequest) TableName() string {
	return "mentorship_requests"
}

// IsTerminal reports whether no further transition can leave the current status.
func (r MentorshipRequest) IsTerminal() bool {
	return r.Status == RequestStatusRejected || r.Status == RequestStatusCompleted
}

// CanTransitionTo reports whether moving to next is a legal request transition.
func (r MentorshipRequest) CanTransitionTo(next RequestStatus) bool {
	switch r.Status {
	case RequestStatusSent:
		return next == RequestStatusAccepted || next == RequestStatusRejected
	case RequestStatusAccepted:
		return next == RequestStatusCompleted
	default:
		return false
	}
}

package services

import (
	"time"

	"github.com/charlesng35/mentorhub/internal/models"
)

// ProfileSummary is the public display data of a mentor or mentee.
type ProfileSummary struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Specialty string `json:"specialty,omitempty"`
}

// ContactDTO carries contact details revealed only inside an active mentorship.
type ContactDTO struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// RequestDTO is the API view of a mentorship request.
type RequestDTO struct {
	ID          string          `json:"id"`
	MenteeID    string          `json:"mentee_id"`
	MentorID    string          `json:"mentor_id"`
	Message     string          `json:"message"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Mentee      *ProfileSummary `json:"mentee,omitempty"`
	Mentor      *ProfileSummary `json:"mentor,omitempty"`
}

// ConnectionDTO is the API view of a mentorship connection from one participant's side.
type ConnectionDTO struct {
	ID          string          `json:"id"`
	MentorID    string          `json:"mentor_id"`
	MenteeID    string          `json:"mentee_id"`
	RequestID   string          `json:"request_id"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at"`
	DetachedAt  *time.Time      `json:"detached_at"`
	Reason      *string         `json:"reason"`
	Mentor      *ProfileSummary `json:"mentor,omitempty"`
	Mentee      *ProfileSummary `json:"mentee,omitempty"`
	Contact     *ContactDTO     `json:"contact,omitempty"`
}

// AcceptResult is returned by AcceptRequest. MenteeContact is set while the connection is active.
type AcceptResult struct {
	Request       RequestDTO     `json:"request"`
	Connection    *ConnectionDTO `json:"connection,omitempty"`
	MenteeContact *ContactDTO    `json:"mentee_contact,omitempty"`
}

func mapRequest(row models.MentorshipRequest) RequestDTO {
	return RequestDTO{
		ID:        row.ID,
		MenteeID:  row.MenteeID,
		MentorID:  row.MentorID,
		Message:   row.Message,
		Status:    string(row.Status),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		Mentee:    summariseMentee(row.Mentee),
		Mentor:    summariseMentor(row.Mentor),
	}
}

// mapConnection renders a connection for the caller. Contact details of the counterpart are
// only attached while the connection is ACTIVE and the caller takes part in it.
func mapConnection(row models.MentorshipConnection, caller Participant) ConnectionDTO {
	dto := ConnectionDTO{
		ID:          row.ID,
		MentorID:    row.MentorID,
		MenteeID:    row.MenteeID,
		RequestID:   row.RequestID,
		Status:      string(row.Status),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		CompletedAt: row.CompletedAt,
		DetachedAt:  row.DetachedAt,
		Reason:      row.Reason,
		Mentor:      summariseMentor(row.Mentor),
		Mentee:      summariseMentee(row.Mentee),
	}

	if row.Status != models.ConnectionStatusActive || !row.IsParticipant(caller.MentorProfileID, caller.MenteeProfileID) {
		return dto
	}

	if caller.MentorProfileID != "" && row.MentorID == caller.MentorProfileID {
		if row.Mentee != nil {
			dto.Contact = contactOf(row.Mentee.User)
		}
	} else if row.Mentor != nil {
		dto.Contact = contactOf(row.Mentor.User)
	}
	return dto
}

func summariseMentor(profile *models.MentorProfile) *ProfileSummary {
	if profile == nil {
		return nil
	}
	summary := &ProfileSummary{ID: profile.ID, UserID: profile.UserID, Specialty: profile.Specialty}
	if profile.User != nil {
		summary.FirstName = profile.User.FirstName
		summary.LastName = profile.User.LastName
	}
	return summary
}

func summariseMentee(profile *models.MenteeProfile) *ProfileSummary {
	if profile == nil {
		return nil
	}
	summary := &ProfileSummary{ID: profile.ID, UserID: profile.UserID, Specialty: profile.Specialty}
	if profile.User != nil {
		summary.FirstName = profile.User.FirstName
		summary.LastName = profile.User.LastName
	}
	return summary
}

func contactOf(user *models.User) *ContactDTO {
	if user == nil || user.Email == "" {
		return nil
	}
	return &ContactDTO{
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
}

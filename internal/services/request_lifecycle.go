package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/mentorhub/internal/models"
)

// RequestLifecycle owns persistence and state transitions of mentorship requests.
// Every method runs against the handle it is given, normally an open transaction.
type RequestLifecycle struct {
	now func() time.Time
}

// NewRequestLifecycle constructs a RequestLifecycle using clock for timestamps.
func NewRequestLifecycle(clock func() time.Time) RequestLifecycle {
	if clock == nil {
		clock = time.Now
	}
	return RequestLifecycle{now: clock}
}

// HasPending reports whether a SENT request exists for the pair.
func (l RequestLifecycle) HasPending(tx *gorm.DB, menteeID, mentorID string) (bool, error) {
	var count int64
	if err := tx.Model(&models.MentorshipRequest{}).
		Where("mentee_id = ? AND mentor_id = ? AND status = ?", menteeID, mentorID, models.RequestStatusSent).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("request lifecycle: count pending: %w", err)
	}
	return count > 0, nil
}

// Create inserts a SENT request. A concurrent duplicate surfaces as ErrDuplicateRequest.
func (l RequestLifecycle) Create(tx *gorm.DB, menteeID, mentorID, message string) (*models.MentorshipRequest, error) {
	now := l.now().UTC()
	request := models.MentorshipRequest{
		BaseModel: models.BaseModel{CreatedAt: now, UpdatedAt: now},
		MenteeID:  menteeID,
		MentorID:  mentorID,
		Message:   message,
		Status:    models.RequestStatusSent,
	}
	if err := tx.Create(&request).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrDuplicateRequest.WithInternal(err)
		}
		return nil, fmt.Errorf("request lifecycle: create request: %w", err)
	}
	return &request, nil
}

// LoadForMentor fetches a request addressed to mentorID. Requests addressed to other
// mentors are reported as ErrRequestNotFound. With lock set the row is locked for update.
func (l RequestLifecycle) LoadForMentor(tx *gorm.DB, requestID, mentorID string, lock bool) (*models.MentorshipRequest, error) {
	query := tx
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var request models.MentorshipRequest
	if err := query.Take(&request, "id = ? AND mentor_id = ?", requestID, mentorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("request lifecycle: load request: %w", err)
	}
	return &request, nil
}

// Transition moves request to next with a compare-and-swap on its current status.
func (l RequestLifecycle) Transition(tx *gorm.DB, request *models.MentorshipRequest, next models.RequestStatus) error {
	if !request.CanTransitionTo(next) {
		return ErrAlreadyProcessed
	}

	now := l.now().UTC()
	result := tx.Model(&models.MentorshipRequest{}).
		Where("id = ? AND status = ?", request.ID, request.Status).
		Updates(map[string]any{
			"status":     next,
			"updated_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("request lifecycle: update status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyProcessed
	}

	request.Status = next
	request.UpdatedAt = now
	return nil
}

// MarkCompleted mirrors a completed connection onto its ACCEPTED request. Requests in any
// other state are left untouched.
func (l RequestLifecycle) MarkCompleted(tx *gorm.DB, requestID string) error {
	if err := tx.Model(&models.MentorshipRequest{}).
		Where("id = ? AND status = ?", requestID, models.RequestStatusAccepted).
		Updates(map[string]any{
			"status":     models.RequestStatusCompleted,
			"updated_at": l.now().UTC(),
		}).Error; err != nil {
		return fmt.Errorf("request lifecycle: mark completed: %w", err)
	}
	return nil
}

// ListForMentor returns requests addressed to mentorID, newest first, with mentee profiles.
func (l RequestLifecycle) ListForMentor(tx *gorm.DB, mentorID string) ([]models.MentorshipRequest, error) {
	var rows []models.MentorshipRequest
	if err := tx.
		Preload("Mentee.User").
		Where("mentor_id = ?", mentorID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("request lifecycle: list incoming: %w", err)
	}
	return rows, nil
}

// ListForMentee returns requests sent by menteeID, newest first, with mentor profiles.
func (l RequestLifecycle) ListForMentee(tx *gorm.DB, menteeID string) ([]models.MentorshipRequest, error) {
	var rows []models.MentorshipRequest
	if err := tx.
		Preload("Mentor.User").
		Where("mentee_id = ?", menteeID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("request lifecycle: list outgoing: %w", err)
	}
	return rows, nil
}

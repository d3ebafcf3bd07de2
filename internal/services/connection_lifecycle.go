package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/mentorhub/internal/models"
)

// ConnectionLifecycle owns persistence and transitions of mentorship connections.
// Every method runs against the handle it is given, normally an open transaction.
type ConnectionLifecycle struct {
	now func() time.Time
}

// NewConnectionLifecycle constructs a ConnectionLifecycle using clock for timestamps.
func NewConnectionLifecycle(clock func() time.Time) ConnectionLifecycle {
	if clock == nil {
		clock = time.Now
	}
	return ConnectionLifecycle{now: clock}
}

// CountActive counts the connections occupying mentorID's capacity.
func (l ConnectionLifecycle) CountActive(tx *gorm.DB, mentorID string) (int64, error) {
	var count int64
	if err := tx.Model(&models.MentorshipConnection{}).
		Where("mentor_id = ? AND status = ? AND completed_at IS NULL", mentorID, models.ConnectionStatusActive).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("connection lifecycle: count active: %w", err)
	}
	return count, nil
}

// CountActiveTotal counts every connection occupying a capacity slot across all mentors.
func (l ConnectionLifecycle) CountActiveTotal(tx *gorm.DB) (int64, error) {
	var count int64
	if err := tx.Model(&models.MentorshipConnection{}).
		Where("status = ? AND completed_at IS NULL", models.ConnectionStatusActive).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("connection lifecycle: count active total: %w", err)
	}
	return count, nil
}

// FindByPair returns the connection row for the pair, or nil when none exists.
func (l ConnectionLifecycle) FindByPair(tx *gorm.DB, mentorID, menteeID string) (*models.MentorshipConnection, error) {
	var conn models.MentorshipConnection
	err := tx.Take(&conn, "mentor_id = ? AND mentee_id = ?", mentorID, menteeID).Error
	if err == nil {
		return &conn, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("connection lifecycle: load pair: %w", err)
}

// Activate inserts the pair's connection for an accepted request, or refreshes the existing
// row: status back to ACTIVE, detach fields cleared and requestId repointed. completedAt is
// never touched.
func (l ConnectionLifecycle) Activate(tx *gorm.DB, request *models.MentorshipRequest) (*models.MentorshipConnection, error) {
	now := l.now().UTC()
	candidate := models.MentorshipConnection{
		BaseModel: models.BaseModel{CreatedAt: now, UpdatedAt: now},
		MentorID:  request.MentorID,
		MenteeID:  request.MenteeID,
		RequestID: request.ID,
		Status:    models.ConnectionStatusActive,
	}

	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "mentor_id"}, {Name: "mentee_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":      models.ConnectionStatusActive,
			"request_id":  request.ID,
			"detached_at": nil,
			"reason":      nil,
			"updated_at":  now,
		}),
	}).Create(&candidate).Error; err != nil {
		return nil, fmt.Errorf("connection lifecycle: upsert connection: %w", err)
	}

	// The conflict branch keeps the existing primary key, so read the row back by pair.
	conn, err := l.FindByPair(tx, request.MentorID, request.MenteeID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, errors.New("connection lifecycle: upserted connection not found")
	}
	return conn, nil
}

// LoadForParticipant fetches a connection the caller takes part in. Other connections are
// reported as ErrConnectionNotFound.
func (l ConnectionLifecycle) LoadForParticipant(tx *gorm.DB, connectionID string, caller Participant, lock bool) (*models.MentorshipConnection, error) {
	if !caller.IsMentor() && !caller.IsMentee() {
		return nil, ErrConnectionNotFound
	}

	query := tx
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var conn models.MentorshipConnection
	if err := query.Take(&conn, "id = ?", connectionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConnectionNotFound
		}
		return nil, fmt.Errorf("connection lifecycle: load connection: %w", err)
	}
	if !conn.IsParticipant(caller.MentorProfileID, caller.MenteeProfileID) {
		return nil, ErrConnectionNotFound
	}
	return &conn, nil
}

// Complete stamps completedAt on an ACTIVE, uncompleted connection.
func (l ConnectionLifecycle) Complete(tx *gorm.DB, conn *models.MentorshipConnection) error {
	if conn.Status != models.ConnectionStatusActive {
		return ErrNotActive
	}
	if conn.IsCompleted() {
		return ErrAlreadyCompleted
	}

	now := l.now().UTC()
	result := tx.Model(&models.MentorshipConnection{}).
		Where("id = ? AND status = ? AND completed_at IS NULL", conn.ID, models.ConnectionStatusActive).
		Updates(map[string]any{
			"completed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return fmt.Errorf("connection lifecycle: complete connection: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyCompleted
	}

	conn.CompletedAt = &now
	conn.UpdatedAt = now
	return nil
}

// Detach moves an ACTIVE connection to DETACHED, recording when and why. completedAt is kept.
func (l ConnectionLifecycle) Detach(tx *gorm.DB, conn *models.MentorshipConnection, reason *string) error {
	if conn.Status == models.ConnectionStatusDetached {
		return ErrAlreadyDetached
	}

	now := l.now().UTC()
	result := tx.Model(&models.MentorshipConnection{}).
		Where("id = ? AND status = ?", conn.ID, models.ConnectionStatusActive).
		Updates(map[string]any{
			"status":      models.ConnectionStatusDetached,
			"detached_at": now,
			"reason":      reason,
			"updated_at":  now,
		})
	if result.Error != nil {
		return fmt.Errorf("connection lifecycle: detach connection: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyDetached
	}

	conn.Status = models.ConnectionStatusDetached
	conn.DetachedAt = &now
	conn.Reason = reason
	conn.UpdatedAt = now
	return nil
}

// ListForParticipant returns the caller's connections, newest first, with both profiles loaded.
func (l ConnectionLifecycle) ListForParticipant(tx *gorm.DB, caller Participant) ([]models.MentorshipConnection, error) {
	if !caller.IsMentor() && !caller.IsMentee() {
		return []models.MentorshipConnection{}, nil
	}

	query := tx.Preload("Mentor.User").Preload("Mentee.User")
	switch {
	case caller.IsMentor() && caller.IsMentee():
		query = query.Where("mentor_id = ? OR mentee_id = ?", caller.MentorProfileID, caller.MenteeProfileID)
	case caller.IsMentor():
		query = query.Where("mentor_id = ?", caller.MentorProfileID)
	default:
		query = query.Where("mentee_id = ?", caller.MenteeProfileID)
	}

	var rows []models.MentorshipConnection
	if err := query.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("connection lifecycle: list connections: %w", err)
	}
	return rows, nil
}

// CompletionByRequest maps request ids to the completedAt of the connection they produced.
func (l ConnectionLifecycle) CompletionByRequest(tx *gorm.DB, requestIDs []string) (map[string]*time.Time, error) {
	out := make(map[string]*time.Time, len(requestIDs))
	if len(requestIDs) == 0 {
		return out, nil
	}

	var rows []models.MentorshipConnection
	if err := tx.Select("request_id", "completed_at").
		Where("request_id IN ?", requestIDs).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("connection lifecycle: load completions: %w", err)
	}
	for _, row := range rows {
		out[row.RequestID] = row.CompletedAt
	}
	return out, nil
}

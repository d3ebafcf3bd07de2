package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/charlesng35/mentorhub/internal/models"
	apperrors "github.com/charlesng35/mentorhub/pkg/errors"
)

const (
	dashboardWidgetLimit  = 10
	dashboardPreviewRunes = 120
)

// DashboardCounts summarises request and connection totals for one side of the relationship.
type DashboardCounts struct {
	PendingRequests   int64 `json:"pending_requests"`
	ActiveConnections int64 `json:"active_connections"`
	CompletedCount    int64 `json:"completed_connections"`
}

// MentorDashboard is the mentor-side summary.
type MentorDashboard struct {
	DashboardCounts
	MaxMentees        int             `json:"max_mentees"`
	CapacityRemaining int64           `json:"capacity_remaining"`
	AcceptsRequests   bool            `json:"accepts_requests"`
	RecentRequests    []RequestDTO    `json:"recent_requests"`
	ActiveList        []ConnectionDTO `json:"active_connections_list"`
}

// MenteeDashboard is the mentee-side summary.
type MenteeDashboard struct {
	DashboardCounts
	RecentRequests []RequestDTO    `json:"recent_requests"`
	ActiveList     []ConnectionDTO `json:"active_connections_list"`
}

// DashboardDTO bundles the summaries applicable to the caller.
type DashboardDTO struct {
	Mentor *MentorDashboard `json:"mentor,omitempty"`
	Mentee *MenteeDashboard `json:"mentee,omitempty"`
}

// Dashboard builds the caller's summary. Callers with neither profile are forbidden.
func (e *MatchingEngine) Dashboard(ctx context.Context, userID string) (dto *DashboardDTO, err error) {
	ctx, span := e.startSpan(ensureContext(ctx), "matching.Dashboard")
	defer func() { finishSpan(span, err) }()

	caller, err := e.profiles.ResolveParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !caller.IsMentor() && !caller.IsMentee() {
		return nil, apperrors.ErrForbidden.WithMessage("Only mentors and mentees have a dashboard")
	}

	dto = &DashboardDTO{}
	if caller.IsMentor() {
		if dto.Mentor, err = e.mentorDashboard(ctx, caller); err != nil {
			return nil, err
		}
	}
	if caller.IsMentee() {
		if dto.Mentee, err = e.menteeDashboard(ctx, caller); err != nil {
			return nil, err
		}
	}
	return dto, nil
}

func (e *MatchingEngine) mentorDashboard(ctx context.Context, caller Participant) (*MentorDashboard, error) {
	var (
		out     MentorDashboard
		mentor  models.MentorProfile
		pending []models.MentorshipRequest
		active  []models.MentorshipConnection
	)

	g, gctx := errgroup.WithContext(ctx)
	db := func() *gorm.DB { return e.db.WithContext(gctx) }

	g.Go(func() error {
		if err := db().Take(&mentor, "id = ?", caller.MentorProfileID).Error; err != nil {
			return fmt.Errorf("dashboard: load mentor: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return countRequests(db(), &out.PendingRequests, "mentor_id = ? AND status = ?", caller.MentorProfileID, models.RequestStatusSent)
	})
	g.Go(func() error {
		var err error
		out.ActiveConnections, err = e.connections.CountActive(db(), caller.MentorProfileID)
		return err
	})
	g.Go(func() error {
		return countConnections(db(), &out.CompletedCount, "mentor_id = ? AND completed_at IS NOT NULL", caller.MentorProfileID)
	})
	g.Go(func() error {
		return db().Preload("Mentee.User").
			Where("mentor_id = ? AND status = ?", caller.MentorProfileID, models.RequestStatusSent).
			Order("created_at DESC").
			Limit(dashboardWidgetLimit).
			Find(&pending).Error
	})
	g.Go(func() error {
		return db().Preload("Mentor.User").Preload("Mentee.User").
			Where("mentor_id = ? AND status = ? AND completed_at IS NULL", caller.MentorProfileID, models.ConnectionStatusActive).
			Order("updated_at DESC").
			Limit(dashboardWidgetLimit).
			Find(&active).Error
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.MaxMentees = mentor.MaxMentees
	out.AcceptsRequests = mentor.AcceptsRequests
	out.CapacityRemaining = int64(mentor.MaxMentees) - out.ActiveConnections
	if out.CapacityRemaining < 0 {
		out.CapacityRemaining = 0
	}
	out.RecentRequests = previewRequests(pending)
	out.ActiveList = mapConnections(active, caller)
	return &out, nil
}

func (e *MatchingEngine) menteeDashboard(ctx context.Context, caller Participant) (*MenteeDashboard, error) {
	var (
		out    MenteeDashboard
		recent []models.MentorshipRequest
		active []models.MentorshipConnection
	)

	g, gctx := errgroup.WithContext(ctx)
	db := func() *gorm.DB { return e.db.WithContext(gctx) }

	g.Go(func() error {
		return countRequests(db(), &out.PendingRequests, "mentee_id = ? AND status = ?", caller.MenteeProfileID, models.RequestStatusSent)
	})
	g.Go(func() error {
		return countConnections(db(), &out.ActiveConnections,
			"mentee_id = ? AND status = ? AND completed_at IS NULL", caller.MenteeProfileID, models.ConnectionStatusActive)
	})
	g.Go(func() error {
		return countConnections(db(), &out.CompletedCount, "mentee_id = ? AND completed_at IS NOT NULL", caller.MenteeProfileID)
	})
	g.Go(func() error {
		return db().Preload("Mentor.User").
			Where("mentee_id = ?", caller.MenteeProfileID).
			Order("created_at DESC").
			Limit(dashboardWidgetLimit).
			Find(&recent).Error
	})
	g.Go(func() error {
		return db().Preload("Mentor.User").Preload("Mentee.User").
			Where("mentee_id = ? AND status = ?", caller.MenteeProfileID, models.ConnectionStatusActive).
			Order("updated_at DESC").
			Limit(dashboardWidgetLimit).
			Find(&active).Error
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.RecentRequests = previewRequests(recent)
	out.ActiveList = mapConnections(active, caller)
	return &out, nil
}

func countRequests(db *gorm.DB, dest *int64, query string, args ...any) error {
	if err := db.Model(&models.MentorshipRequest{}).Where(query, args...).Count(dest).Error; err != nil {
		return fmt.Errorf("dashboard: count requests: %w", err)
	}
	return nil
}

func countConnections(db *gorm.DB, dest *int64, query string, args ...any) error {
	if err := db.Model(&models.MentorshipConnection{}).Where(query, args...).Count(dest).Error; err != nil {
		return fmt.Errorf("dashboard: count connections: %w", err)
	}
	return nil
}

func previewRequests(rows []models.MentorshipRequest) []RequestDTO {
	items := make([]RequestDTO, 0, len(rows))
	for _, row := range rows {
		dto := mapRequest(row)
		dto.Message = truncateRunes(dto.Message, dashboardPreviewRunes)
		items = append(items, dto)
	}
	return items
}

func mapConnections(rows []models.MentorshipConnection, caller Participant) []ConnectionDTO {
	items := make([]ConnectionDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapConnection(row, caller))
	}
	return items
}

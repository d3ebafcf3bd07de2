package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/mentorhub/internal/models"
	apperrors "github.com/charlesng35/mentorhub/pkg/errors"
	"github.com/charlesng35/mentorhub/pkg/logger"
)

// Participant is a caller resolved to the profiles it may act through.
type Participant struct {
	UserID          string
	MentorProfileID string
	MenteeProfileID string
}

// IsMentor reports whether the caller owns a mentor profile.
func (p Participant) IsMentor() bool { return p.MentorProfileID != "" }

// IsMentee reports whether the caller owns a mentee profile.
func (p Participant) IsMentee() bool { return p.MenteeProfileID != "" }

// Contact identifies a notification recipient.
type Contact struct {
	UserID    string
	Email     string
	FirstName string
	LastName  string
}

// Name returns the display name, falling back to the email address.
func (c Contact) Name() string {
	return models.User{Email: c.Email, FirstName: c.FirstName, LastName: c.LastName}.DisplayName()
}

// NotificationSettingsDTO exposes a user's delivery preferences.
type NotificationSettingsDTO struct {
	EmailEnabled bool       `json:"email_enabled"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// ProfileService resolves callers to mentor/mentee profiles and owns notification preferences.
type ProfileService struct {
	db *gorm.DB
}

// NewProfileService constructs a ProfileService.
func NewProfileService(db *gorm.DB) (*ProfileService, error) {
	if db == nil {
		return nil, errors.New("profile service: db is required")
	}
	return &ProfileService{db: db}, nil
}

// ResolveParticipant looks up the mentor and mentee profiles owned by userID.
func (s *ProfileService) ResolveParticipant(ctx context.Context, userID string) (Participant, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Participant{}, apperrors.ErrUnauthorized
	}

	participant := Participant{UserID: userID}

	var mentorIDs []string
	if err := s.db.WithContext(ctx).
		Model(&models.MentorProfile{}).
		Where("user_id = ?", userID).
		Limit(1).
		Pluck("id", &mentorIDs).Error; err != nil {
		return Participant{}, fmt.Errorf("profile service: resolve mentor profile: %w", err)
	}
	if len(mentorIDs) > 0 {
		participant.MentorProfileID = mentorIDs[0]
	}

	var menteeIDs []string
	if err := s.db.WithContext(ctx).
		Model(&models.MenteeProfile{}).
		Where("user_id = ?", userID).
		Limit(1).
		Pluck("id", &menteeIDs).Error; err != nil {
		return Participant{}, fmt.Errorf("profile service: resolve mentee profile: %w", err)
	}
	if len(menteeIDs) > 0 {
		participant.MenteeProfileID = menteeIDs[0]
	}

	return participant, nil
}

// MentorContact returns the contact of the user owning the mentor profile.
func (s *ProfileService) MentorContact(ctx context.Context, mentorProfileID string) (Contact, error) {
	var profile models.MentorProfile
	if err := s.db.WithContext(ensureContext(ctx)).
		Preload("User").
		Take(&profile, "id = ?", mentorProfileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Contact{}, ErrMentorNotFound
		}
		return Contact{}, fmt.Errorf("profile service: load mentor contact: %w", err)
	}
	return contactFromUser(profile.UserID, profile.User), nil
}

// MenteeContact returns the contact of the user owning the mentee profile.
func (s *ProfileService) MenteeContact(ctx context.Context, menteeProfileID string) (Contact, error) {
	var profile models.MenteeProfile
	if err := s.db.WithContext(ensureContext(ctx)).
		Preload("User").
		Take(&profile, "id = ?", menteeProfileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Contact{}, apperrors.ErrNotFound
		}
		return Contact{}, fmt.Errorf("profile service: load mentee contact: %w", err)
	}
	return contactFromUser(profile.UserID, profile.User), nil
}

// EmailEnabled reports whether the user wants lifecycle emails. Missing settings mean yes;
// a failed lookup means no.
func (s *ProfileService) EmailEnabled(ctx context.Context, userID string) bool {
	var setting models.NotificationSetting
	err := s.db.WithContext(ensureContext(ctx)).Take(&setting, "user_id = ?", userID).Error
	if err == nil {
		return setting.EmailEnabled
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true
	}
	logger.WithModule("profiles").Warn("failed to load notification settings",
		zap.String("user_id", userID),
		zap.Error(err),
	)
	return false
}

// NotificationSettings returns the effective notification settings for userID.
func (s *ProfileService) NotificationSettings(ctx context.Context, userID string) (NotificationSettingsDTO, error) {
	var setting models.NotificationSetting
	err := s.db.WithContext(ensureContext(ctx)).Take(&setting, "user_id = ?", userID).Error
	switch {
	case err == nil:
		updated := setting.UpdatedAt
		return NotificationSettingsDTO{EmailEnabled: setting.EmailEnabled, UpdatedAt: &updated}, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NotificationSettingsDTO{EmailEnabled: true}, nil
	default:
		return NotificationSettingsDTO{}, fmt.Errorf("profile service: load notification settings: %w", err)
	}
}

// UpdateNotificationSettings upserts the user's email preference.
func (s *ProfileService) UpdateNotificationSettings(ctx context.Context, userID string, emailEnabled bool) (NotificationSettingsDTO, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return NotificationSettingsDTO{}, apperrors.ErrUnauthorized
	}

	setting := models.NotificationSetting{
		UserID:       userID,
		EmailEnabled: emailEnabled,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := s.db.WithContext(ensureContext(ctx)).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"email_enabled", "updated_at"}),
		}).
		Create(&setting).Error; err != nil {
		return NotificationSettingsDTO{}, fmt.Errorf("profile service: update notification settings: %w", err)
	}

	updated := setting.UpdatedAt
	return NotificationSettingsDTO{EmailEnabled: setting.EmailEnabled, UpdatedAt: &updated}, nil
}

func contactFromUser(userID string, user *models.User) Contact {
	contact := Contact{UserID: userID}
	if user != nil {
		contact.Email = user.Email
		contact.FirstName = user.FirstName
		contact.LastName = user.LastName
	}
	return contact
}

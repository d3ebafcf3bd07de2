package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/mentorhub/internal/models"
)

// pendingPairIndex keeps at most one SENT request per (mentee, mentor) pair.
const pendingPairIndex = "idx_mentorship_requests_pending_pair"

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.MentorProfile{},
		&models.MenteeProfile{},
		&models.MentorshipRequest{},
		&models.MentorshipConnection{},
		&models.Notification{},
		&models.NotificationSetting{},
	)
}

// EnsureConstraints installs indexes gorm tags cannot express. MySQL has no partial indexes;
// there the pending-pair rule is upheld by the row lock taken during request creation.
func EnsureConstraints(db *gorm.DB) error {
	switch db.Dialector.Name() {
	case "sqlite", "postgres":
		return db.Exec(
			"CREATE UNIQUE INDEX IF NOT EXISTS " + pendingPairIndex +
				" ON mentorship_requests (mentee_id, mentor_id) WHERE status = 'SENT'",
		).Error
	default:
		return nil
	}
}

package maintenance

import (
	"context"
	"fmt"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	testutil "github.com/charlesng35/mentorhub/internal/database/testutil"
	"github.com/charlesng35/mentorhub/internal/models"
	"github.com/charlesng35/mentorhub/internal/monitoring"
	"github.com/charlesng35/mentorhub/internal/services"
	"github.com/charlesng35/mentorhub/pkg/metrics"
)

func seedConnection(t *testing.T, db *gorm.DB, seq int, status models.ConnectionStatus, completed bool) {
	t.Helper()

	mentorUser := models.User{Email: fmt.Sprintf("mentor-%d@example.com", seq), Role: models.UserRoleMentor, IsActive: true}
	require.NoError(t, db.Create(&mentorUser).Error)
	mentor := models.MentorProfile{UserID: mentorUser.ID, AcceptsRequests: true, MaxMentees: 3}
	require.NoError(t, db.Create(&mentor).Error)

	menteeUser := models.User{Email: fmt.Sprintf("mentee-%d@example.com", seq), Role: models.UserRoleMentee, IsActive: true}
	require.NoError(t, db.Create(&menteeUser).Error)
	mentee := models.MenteeProfile{UserID: menteeUser.ID}
	require.NoError(t, db.Create(&mentee).Error)

	request := models.MentorshipRequest{
		MenteeID: mentee.ID,
		MentorID: mentor.ID,
		Message:  "Please help me grow as a backend engineer.",
		Status:   models.RequestStatusAccepted,
	}
	require.NoError(t, db.Create(&request).Error)

	conn := models.MentorshipConnection{
		MentorID:  mentor.ID,
		MenteeID:  mentee.ID,
		RequestID: request.ID,
		Status:    status,
	}
	if completed {
		now := time.Now()
		conn.CompletedAt = &now
	}
	require.NoError(t, db.Create(&conn).Error)
}

func TestRefreshActiveMentorships(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSchema())
	seedConnection(t, db, 1, models.ConnectionStatusActive, false)
	seedConnection(t, db, 2, models.ConnectionStatusActive, false)
	seedConnection(t, db, 3, models.ConnectionStatusActive, true)
	seedConnection(t, db, 4, models.ConnectionStatusDetached, false)

	count, err := RefreshActiveMentorships(context.Background(), db, services.NewConnectionLifecycle(nil))
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.Equal(t, float64(2), promtestutil.ToFloat64(metrics.ActiveMentorships))

	_, err = RefreshActiveMentorships(context.Background(), nil, services.NewConnectionLifecycle(nil))
	require.Error(t, err)
}

func TestCleanerRunOncePrunesAndRecords(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSchema())
	seedConnection(t, db, 1, models.ConnectionStatusActive, false)

	notifications, err := services.NewNotificationService(db, nil)
	require.NoError(t, err)

	ctx := context.Background()
	userID := "7d5c1c1e-52b4-4f2b-9d0c-1f0e7c4d9a11"
	_, err = notifications.Create(ctx, services.CreateNotificationInput{UserID: userID, Type: "t", Title: "read", IsRead: true})
	require.NoError(t, err)
	_, err = notifications.Create(ctx, services.CreateNotificationInput{UserID: userID, Type: "t", Title: "unread"})
	require.NoError(t, err)

	tracker := monitoring.NewJobTracker()
	future := time.Now().Add(31 * 24 * time.Hour)
	cleaner := NewCleaner(db, notifications,
		WithNow(func() time.Time { return future }),
		WithRetention(30*24*time.Hour),
		WithTracker(tracker),
	)

	require.NoError(t, cleaner.RunOnce(ctx))

	var remaining []models.Notification
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, "unread", remaining[0].Title)
	require.Equal(t, float64(1), promtestutil.ToFloat64(metrics.ActiveMentorships))

	jobs := tracker.Snapshot()
	require.Len(t, jobs, 2)
	require.Equal(t, JobActiveMentorships, jobs[0].Job)
	require.Equal(t, JobNotificationRetention, jobs[1].Job)
	for _, job := range jobs {
		require.Equal(t, "success", job.LastStatus)
	}
}

func TestCleanerRunOnceKeepsRecentNotifications(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSchema())
	notifications, err := services.NewNotificationService(db, nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = notifications.Create(ctx, services.CreateNotificationInput{
		UserID: "7d5c1c1e-52b4-4f2b-9d0c-1f0e7c4d9a11",
		Type:   "t",
		Title:  "fresh",
		IsRead: true,
	})
	require.NoError(t, err)

	require.NoError(t, NewCleaner(db, notifications).RunOnce(ctx))

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestCleanerRunOnceCombinesFailures(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSchema())
	notifications, err := services.NewNotificationService(db, nil)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	tracker := monitoring.NewJobTracker()
	err = NewCleaner(db, notifications, WithTracker(tracker)).RunOnce(context.Background())
	require.Error(t, err)

	for _, job := range tracker.Snapshot() {
		require.Equal(t, "failure", job.LastStatus)
		require.EqualValues(t, 1, job.ConsecutiveFailures)
	}
	require.Len(t, tracker.Snapshot(), 2)
}

func TestCleanerStartValidatesSchedules(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSchema())
	notifications, err := services.NewNotificationService(db, nil)
	require.NoError(t, err)

	cleaner := NewCleaner(db, notifications, WithPruneSchedule("not a schedule"))
	require.Error(t, cleaner.Start())

	cleaner = NewCleaner(db, notifications, WithGaugeSchedule("@every 1h"))
	require.NoError(t, cleaner.Start())
	<-cleaner.Stop().Done()
}

func TestCleanerWithoutDependenciesIsNoop(t *testing.T) {
	cleaner := NewCleaner(nil, nil)
	require.NoError(t, cleaner.Start())
	require.NoError(t, cleaner.RunOnce(context.Background()))
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/mentorhub/internal/database/testutil"
	"github.com/charlesng35/mentorhub/internal/models"
	"github.com/charlesng35/mentorhub/internal/realtime"
	apperrors "github.com/charlesng35/mentorhub/pkg/errors"
)

func seedNotificationUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()
	user := models.User{Email: email, FirstName: "Ada", Role: models.UserRoleMentee, IsActive: true}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func TestNotificationServiceCreateAndList(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSchema())
	user := seedNotificationUser(t, db, "alice@example.com")

	svc, err := NewNotificationService(db, realtime.NewHub())
	require.NoError(t, err)

	ctx := context.Background()
	dto, err := svc.Create(ctx, CreateNotificationInput{
		UserID:   user.ID,
		Type:     models.NotificationTypeRequestCreated,
		Title:    "New mentorship request",
		Message:  "Bob sent you a mentorship request.",
		Metadata: map[string]any{"request_id": "req-1"},
	})
	require.NoError(t, err)
	require.Equal(t, models.NotificationTypeRequestCreated, dto.Type)
	require.Equal(t, "info", dto.Severity)
	require.Equal(t, "req-1", dto.Metadata["request_id"])

	items, err := svc.ListForUser(ctx, ListNotificationsInput{UserID: user.ID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, dto.ID, items[0].ID)
	require.False(t, items[0].IsRead)

	unread, err := svc.CountUnread(ctx, user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, unread)
}

func TestNotificationServiceRequiresUserAndType(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSchema())
	svc, err := NewNotificationService(db, nil)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateNotificationInput{Type: "x"})
	require.Error(t, err)
	_, err = svc.Create(context.Background(), CreateNotificationInput{UserID: "u"})
	require.Error(t, err)
	_, err = svc.ListForUser(context.Background(), ListNotificationsInput{})
	require.Error(t, err)
}

func TestNotificationServiceMarkReadAndUnread(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSchema())
	user := seedNotificationUser(t, db, "bob@example.com")

	svc, err := NewNotificationService(db, realtime.NewHub())
	require.NoError(t, err)

	ctx := context.Background()
	dto, err := svc.Create(ctx, CreateNotificationInput{
		UserID:  user.ID,
		Type:    models.NotificationTypeRequestAccepted,
		Title:   "Request accepted",
		Message: "Carol accepted your mentorship request.",
	})
	require.NoError(t, err)

	read, err := svc.MarkRead(ctx, user.ID, dto.ID)
	require.NoError(t, err)
	require.True(t, read.IsRead)
	require.NotNil(t, read.ReadAt)

	unread, err := svc.MarkUnread(ctx, user.ID, dto.ID)
	require.NoError(t, err)
	require.False(t, unread.IsRead)
	require.Nil(t, unread.ReadAt)

	_, err = svc.MarkRead(ctx, "someone-else", dto.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestNotificationServiceDeleteAndMarkAll(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSchema())
	user := seedNotificationUser(t, db, "charlie@example.com")

	svc, err := NewNotificationService(db, realtime.NewHub())
	require.NoError(t, err)

	ctx := context.Background()
	first, err := svc.Create(ctx, CreateNotificationInput{
		UserID:  user.ID,
		Type:    models.NotificationTypeConnectionCompleted,
		Title:   "Mentorship completed",
		Message: "Dana marked your mentorship as complete.",
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateNotificationInput{
		UserID:  user.ID,
		Type:    models.NotificationTypeConnectionDetached,
		Title:   "Mentorship ended",
		Message: "Dana ended your mentorship connection.",
	})
	require.NoError(t, err)

	require.NoError(t, svc.MarkAllRead(ctx, user.ID))

	items, err := svc.ListForUser(ctx, ListNotificationsInput{UserID: user.ID})
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		require.True(t, item.IsRead)
	}

	require.NoError(t, svc.Delete(ctx, user.ID, first.ID))
	require.ErrorIs(t, svc.Delete(ctx, user.ID, first.ID), apperrors.ErrNotFound)

	items, err = svc.ListForUser(ctx, ListNotificationsInput{UserID: user.ID})
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestNotificationServicePruneRead(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSchema())
	user := seedNotificationUser(t, db, "dave@example.com")

	svc, err := NewNotificationService(db, nil)
	require.NoError(t, err)

	ctx := context.Background()
	read, err := svc.Create(ctx, CreateNotificationInput{UserID: user.ID, Type: "t", Title: "old read", IsRead: true})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateNotificationInput{UserID: user.ID, Type: "t", Title: "old unread"})
	require.NoError(t, err)

	removed, err := svc.PruneRead(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var remaining []models.Notification
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.NotEqual(t, read.ID, remaining[0].ID)

	removed, err = svc.PruneRead(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Zero(t, removed)
}

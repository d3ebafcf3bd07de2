package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/charlesng35/mentorhub/pkg/errors"
)

func TestResolveParticipant(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	mentor := f.mentor(t, 2, true)
	mentee := f.mentee(t)

	p, err := f.profiles.ResolveParticipant(ctx, mentor.UserID)
	require.NoError(t, err)
	require.True(t, p.IsMentor())
	require.False(t, p.IsMentee())
	require.Equal(t, mentor.ProfileID, p.MentorProfileID)

	p, err = f.profiles.ResolveParticipant(ctx, mentee.UserID)
	require.NoError(t, err)
	require.True(t, p.IsMentee())
	require.Equal(t, mentee.ProfileID, p.MenteeProfileID)

	_, err = f.profiles.ResolveParticipant(ctx, "  ")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestProfileContacts(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	mentor := f.mentor(t, 2, true)
	mentee := f.mentee(t)

	contact, err := f.profiles.MentorContact(ctx, mentor.ProfileID)
	require.NoError(t, err)
	require.Equal(t, mentor.Email, contact.Email)
	require.Equal(t, mentor.UserID, contact.UserID)
	require.Contains(t, contact.Name(), "Mentor")

	contact, err = f.profiles.MenteeContact(ctx, mentee.ProfileID)
	require.NoError(t, err)
	require.Equal(t, mentee.Email, contact.Email)

	_, err = f.profiles.MentorContact(ctx, "missing")
	require.ErrorIs(t, err, ErrMentorNotFound)
	_, err = f.profiles.MenteeContact(ctx, "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestNotificationSettingsDefaultAndUpdate(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	mentee := f.mentee(t)

	settings, err := f.profiles.NotificationSettings(ctx, mentee.UserID)
	require.NoError(t, err)
	require.True(t, settings.EmailEnabled)
	require.Nil(t, settings.UpdatedAt)
	require.True(t, f.profiles.EmailEnabled(ctx, mentee.UserID))

	settings, err = f.profiles.UpdateNotificationSettings(ctx, mentee.UserID, false)
	require.NoError(t, err)
	require.False(t, settings.EmailEnabled)
	require.NotNil(t, settings.UpdatedAt)
	require.False(t, f.profiles.EmailEnabled(ctx, mentee.UserID))

	_, err = f.profiles.UpdateNotificationSettings(ctx, mentee.UserID, true)
	require.NoError(t, err)
	settings, err = f.profiles.NotificationSettings(ctx, mentee.UserID)
	require.NoError(t, err)
	require.True(t, settings.EmailEnabled)

	_, err = f.profiles.UpdateNotificationSettings(ctx, "", true)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

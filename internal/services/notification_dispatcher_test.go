package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/mentorhub/internal/models"
	"github.com/charlesng35/mentorhub/internal/notifications"
	"github.com/charlesng35/mentorhub/pkg/mail"
)

type recordingEmail struct {
	mu   sync.Mutex
	sent []notifications.Envelope
	err  error
}

func (r *recordingEmail) Send(_ context.Context, env notifications.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, env)
	return r.err
}

func (r *recordingEmail) envelopes() []notifications.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifications.Envelope(nil), r.sent...)
}

type dispatcherFixture struct {
	*engineFixture
	dispatcher *NotificationDispatcher
	inbox      *NotificationService
	email      *recordingEmail
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()
	base := newEngineFixture(t)

	inbox, err := NewNotificationService(base.db, nil)
	require.NoError(t, err)
	email := &recordingEmail{}
	dispatcher, err := NewNotificationDispatcher(base.profiles, inbox,
		WithDispatchEmail(email),
		WithDispatchBaseURL("https://mentorhub.test/"),
	)
	require.NoError(t, err)

	// Route engine events through the dispatcher while still recording them.
	base.engine.events = EventDispatcherFunc(func(ctx context.Context, event LifecycleEvent) {
		base.events.Dispatch(ctx, event)
		dispatcher.Dispatch(ctx, event)
	})

	return &dispatcherFixture{engineFixture: base, dispatcher: dispatcher, inbox: inbox, email: email}
}

func (f *dispatcherFixture) notificationsFor(t *testing.T, userID string) []models.Notification {
	t.Helper()
	var rows []models.Notification
	require.NoError(t, f.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&rows).Error)
	return rows
}

func TestDispatcherNotifiesMentorOfNewRequest(t *testing.T) {
	f := newDispatcherFixture(t)
	mentor := f.mentor(t, 2, true)
	mentee := f.mentee(t)

	f.request(t, mentee, mentor)
	f.dispatcher.Wait()

	rows := f.notificationsFor(t, mentor.UserID)
	require.Len(t, rows, 1)
	require.Equal(t, models.NotificationTypeRequestCreated, rows[0].Type)
	require.Equal(t, "https://mentorhub.test/requests/incoming", rows[0].ActionURL)
	require.Empty(t, f.notificationsFor(t, mentee.UserID))

	sent := f.email.envelopes()
	require.Len(t, sent, 1)
	require.Equal(t, mentor.Email, sent[0].ToAddress)
	require.Equal(t, notifications.TemplateRequestCreated, sent[0].Template)
	require.Equal(t, validMessage, sent[0].Payload.MessagePreview)
}

func TestDispatcherSharesMentorEmailOnAccept(t *testing.T) {
	f := newDispatcherFixture(t)
	mentor := f.mentor(t, 2, true)
	mentee := f.mentee(t)

	req := f.request(t, mentee, mentor)
	_, err := f.engine.AcceptRequest(context.Background(), mentor.UserID, req.ID)
	require.NoError(t, err)
	f.dispatcher.Wait()

	rows := f.notificationsFor(t, mentee.UserID)
	require.Len(t, rows, 1)
	require.Equal(t, models.NotificationTypeRequestAccepted, rows[0].Type)

	var accepted *notifications.Envelope
	for _, env := range f.email.envelopes() {
		if env.Template == notifications.TemplateRequestAccepted {
			env := env
			accepted = &env
		}
	}
	require.NotNil(t, accepted)
	require.Equal(t, mentee.Email, accepted.ToAddress)
	require.Equal(t, mentor.Email, accepted.Payload.ContactEmail)
}

func TestDispatcherTargetsCounterpartOfConnectionActor(t *testing.T) {
	f := newDispatcherFixture(t)
	ctx := context.Background()
	mentor := f.mentor(t, 2, true)
	mentee := f.mentee(t)

	req := f.request(t, mentee, mentor)
	f.dispatcher.Wait()
	accepted, err := f.engine.AcceptRequest(ctx, mentor.UserID, req.ID)
	require.NoError(t, err)
	f.dispatcher.Wait()

	reason := "Moving teams"
	_, err = f.engine.DetachConnection(ctx, mentee.UserID, accepted.Connection.ID, &reason)
	require.NoError(t, err)
	f.dispatcher.Wait()

	mentorRows := f.notificationsFor(t, mentor.UserID)
	require.Len(t, mentorRows, 2)
	require.Equal(t, models.NotificationTypeConnectionDetached, mentorRows[1].Type)
	require.Contains(t, string(mentorRows[1].Metadata), "Moving teams")

	var detached *notifications.Envelope
	for _, env := range f.email.envelopes() {
		if env.Template == notifications.TemplateConnectionDetached {
			env := env
			detached = &env
		}
	}
	require.NotNil(t, detached)
	require.Equal(t, mentor.Email, detached.ToAddress)
	require.Equal(t, "Moving teams", detached.Payload.Reason)
}

func TestDispatcherRespectsEmailOptOut(t *testing.T) {
	f := newDispatcherFixture(t)
	mentor := f.mentor(t, 2, true)
	mentee := f.mentee(t)

	_, err := f.profiles.UpdateNotificationSettings(context.Background(), mentor.UserID, false)
	require.NoError(t, err)

	f.request(t, mentee, mentor)
	f.dispatcher.Wait()

	require.Empty(t, f.email.envelopes())
	require.Len(t, f.notificationsFor(t, mentor.UserID), 1)
}

func TestDispatcherSwallowsDeliveryFailures(t *testing.T) {
	for _, sendErr := range []error{mail.ErrSMTPDisabled, errors.New("smtp down")} {
		f := newDispatcherFixture(t)
		f.email.err = sendErr
		mentor := f.mentor(t, 2, true)

		req := f.request(t, f.mentee(t), mentor)
		f.dispatcher.Wait()

		require.NotEmpty(t, req.ID)
		require.Len(t, f.notificationsFor(t, mentor.UserID), 1)
	}
}

func TestDispatcherIgnoresUnknownParticipants(t *testing.T) {
	f := newDispatcherFixture(t)

	f.dispatcher.Dispatch(context.Background(), LifecycleEvent{
		Kind:     EventRequestCreated,
		MentorID: "missing",
		MenteeID: "missing",
	})
	f.dispatcher.Wait()

	require.Empty(t, f.email.envelopes())
	var count int64
	require.NoError(t, f.db.Model(&models.Notification{}).Count(&count).Error)
	require.Zero(t, count)
}

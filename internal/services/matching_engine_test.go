package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/mentorhub/internal/models"
	apperrors "github.com/charlesng35/mentorhub/pkg/errors"
)

func TestCreateRequestStoresTrimmedMessage(t *testing.T) {
	f := newEngineFixture(t)
	mentor := f.mentor(t, 2, true)
	mentee := f.mentee(t)

	req, err := f.engine.CreateRequest(context.Background(), mentee.UserID, CreateRequestInput{
		MentorID: mentor.ProfileID,
		Message:  "   " + validMessage + "\n",
	})
	require.NoError(t, err)
	require.Equal(t, string(models.RequestStatusSent), req.Status)
	require.Equal(t, validMessage, req.Message)
	require.Equal(t, mentee.ProfileID, req.MenteeID)
	require.Equal(t, mentor.ProfileID, req.MentorID)

	require.Equal(t, []EventKind{EventRequestCreated}, f.events.kinds())
	require.Equal(t, validMessage, f.events.last().Message)
}

func TestCreateRequestFailures(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	open := f.mentor(t, 1, true)
	closed := f.mentor(t, 3, false)
	mentee := f.mentee(t)

	_, err := f.engine.CreateRequest(ctx, open.UserID, CreateRequestInput{MentorID: open.ProfileID, Message: validMessage})
	require.ErrorIs(t, err, ErrMenteeRoleRequired)

	_, err = f.engine.CreateRequest(ctx, mentee.UserID, CreateRequestInput{MentorID: open.ProfileID, Message: "   short   "})
	require.ErrorIs(t, err, ErrInvalidMessage)

	_, err = f.engine.CreateRequest(ctx, mentee.UserID, CreateRequestInput{MentorID: open.ProfileID, Message: strings.Repeat("x", 2001)})
	require.ErrorIs(t, err, ErrInvalidMessage)

	_, err = f.engine.CreateRequest(ctx, mentee.UserID, CreateRequestInput{MentorID: "missing", Message: validMessage})
	require.ErrorIs(t, err, ErrMentorNotFound)

	_, err = f.engine.CreateRequest(ctx, mentee.UserID, CreateRequestInput{MentorID: closed.ProfileID, Message: validMessage})
	require.ErrorIs(t, err, ErrMentorNotAccepting)

	f.request(t, mentee, open)
	_, err = f.engine.CreateRequest(ctx, mentee.UserID, CreateRequestInput{MentorID: open.ProfileID, Message: validMessage})
	require.ErrorIs(t, err, ErrDuplicateRequest)

	other := f.mentee(t)
	first := f.request(t, other, open)
	_, err = f.engine.AcceptRequest(ctx, open.UserID, first.ID)
	require.NoError(t, err)

	late := f.mentee(t)
	_, err = f.engine.CreateRequest(ctx, late.UserID, CreateRequestInput{MentorID: open.ProfileID, Message: validMessage})
	require.ErrorIs(t, err, ErrCapacityExceeded)

	appErr := apperrors.FromError(err)
	require.Equal(t, "LIMIT_REACHED", appErr.Code)
}

func TestCreateRequestAllowsMessageAtBounds(t *testing.T) {
	f := newEngineFixture(t)
	mentor := f.mentor(t, 5, true)

	for _, message := range []string{strings.Repeat("a", 10), strings.Repeat("é", 2000)} {
		mentee := f.mentee(t)
		_, err := f.engine.CreateRequest(context.Background(), mentee.UserID, CreateRequestInput{
			MentorID: mentor.ProfileID,
			Message:  message,
		})
		require.NoError(t, err)
	}
}

func TestAcceptSecondRequestExceedsCapacity(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	mentor := f.mentor(t, 1, true)
	first := f.request(t, f.mentee(t), mentor)
	second := f.request(t, f.mentee(t), mentor)

	result, err := f.engine.AcceptRequest(ctx, mentor.UserID, first.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.RequestStatusAccepted), result.Request.Status)
	require.NotNil(t, result.Connection)
	require.Equal(t, string(models.ConnectionStatusActive), result.Connection.Status)

	_, err = f.engine.AcceptRequest(ctx, mentor.UserID, second.ID)
	require.ErrorIs(t, err, ErrCapacityExceeded)

	var stored models.MentorshipRequest
	require.NoError(t, f.db.Take(&stored, "id = ?", second.ID).Error)
	require.Equal(t, models.RequestStatusSent, stored.Status)
}

func TestAcceptReturnsMenteeContact(t *testing.T) {
	f := newEngineFixture(t)
	mentor := f.mentor(t, 2, true)
	mentee := f.mentee(t)
	req := f.request(t, mentee, mentor)

	result, err := f.engine.AcceptRequest(context.Background(), mentor.UserID, req.ID)
	require.NoError(t, err)
	require.NotNil(t, result.MenteeContact)
	require.Equal(t, mentee.Email, result.MenteeContact.Email)
	require.Equal(t, EventRequestAccepted, f.events.last().Kind)
}

func TestAcceptIsIdempotent(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	mentor := f.mentor(t, 2, true)
	mentee := f.mentee(t)
	req := f.request(t, mentee, mentor)

	first, err := f.engine.AcceptRequest(ctx, mentor.UserID, req.ID)
	require.NoError(t, err)
	second, err := f.engine.AcceptRequest(ctx, mentor.UserID, req.ID)
	require.NoError(t, err)

	require.Equal(t, first.Request.ID, second.Request.ID)
	require.Equal(t, first.Request.Status, second.Request.Status)
	require.Equal(t, first.Connection.ID, second.Connection.ID)
	require.Equal(t, first.Connection.Status, second.Connection.Status)
	require.Equal(t, first.MenteeContact, second.MenteeContact)

	require.Len(t, f.connectionRows(t, mentor, mentee), 1)
	require.Equal(t, []EventKind{EventRequestCreated, EventRequestAccepted}, f.events.kinds())
}

func TestAcceptRejectedRequestIsAlreadyProcessed(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	mentor := f.mentor(t, 2, true)
	req := f.request(t, f.mentee(t), mentor)

	_, err := f.engine.RejectRequest(ctx, mentor.UserID, req.ID)
	require.NoError(t, err)

	_, err = f.engine.AcceptRequest(ctx, mentor.UserID, req.ID)
	require.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestAcceptHidesOtherMentorsRequests(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	owner := f.mentor(t, 2, true)
	intruder := f.mentor(t, 2, true)
	req := f.request(t, f.mentee(t), owner)

	_, err := f.engine.AcceptRequest(ctx, intruder.UserID, req.ID)
	require.ErrorIs(t, err, ErrRequestNotFound)

	_, err = f.engine.RejectRequest(ctx, intruder.UserID, req.ID)
	require.ErrorIs(t, err, ErrRequestNotFound)

	mentee := f.mentee(t)
	_, err = f.engine.AcceptRequest(ctx, mentee.UserID, req.ID)
	require.ErrorIs(t, err, ErrMentorRoleRequired)
}

func TestConcurrentAcceptsNeverExceedCapacity(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	const maxMentees = 2
	mentor := f.mentor(t, maxMentees, true)

	requests := make([]*RequestDTO, 0, 8)
	for i := 0; i < 8; i++ {
		requests = append(requests, f.request(t, f.mentee(t), mentor))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		accepted  int
		rejected  int
		unexpects []error
	)
	for _, req := range requests {
		wg.Add(1)
		go func(requestID string) {
			defer wg.Done()
			_, err := f.engine.AcceptRequest(ctx, mentor.UserID, requestID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, ErrCapacityExceeded):
				rejected++
			default:
				unexpects = append(unexpects, err)
			}
		}(req.ID)
	}
	wg.Wait()

	require.Empty(t, unexpects)
	require.Equal(t, maxMentees, accepted)
	require.Equal(t, len(requests)-maxMentees, rejected)

	var active int64
	require.NoError(t, f.db.Model(&models.MentorshipConnection{}).
		Where("mentor_id = ? AND status = ? AND completed_at IS NULL", mentor.ProfileID, models.ConnectionStatusActive).
		Count(&active).Error)
	require.EqualValues(t, maxMentees, active)
}

func TestRejectScenario(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	mentor := f.mentor(t, 2, true)
	mentee := f.mentee(t)
	req := f.request(t, mentee, mentor)

	rejected, err := f.engine.RejectRequest(ctx, mentor.UserID, req.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.RequestStatusRejected), rejected.Status)
	require.Empty(t, f.connectionRows(t, mentor, mentee))

	again, err := f.engine.RejectRequest(ctx, mentor.UserID, req.ID)
	require.NoError(t, err)
	require.Equal(t, rejected.Status, again.Status)
	require.Equal(t, rejected.ID, again.ID)

	require.Equal(t, []EventKind{EventRequestCreated, EventRequestRejected}, f.events.kinds())

	// A rejected pair may ask again.
	f.request(t, mentee, mentor)
}

func TestRejectLeavesAcceptedRequestUnchanged(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	mentor := f.mentor(t, 2, true)
	req := f.request(t, f.mentee(t), mentor)

	_, err := f.engine.AcceptRequest(ctx, mentor.UserID, req.ID)
	require.NoError(t, err)

	out, err := f.engine.RejectRequest(ctx, mentor.UserID, req.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.RequestStatusAccepted), out.Status)
}

func TestCompleteThenDetachKeepsCompletedAt(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	mentor := f.mentor(t, 1, true)
	mentee := f.mentee(t)
	req := f.request(t, mentee, mentor)

	accepted, err := f.engine.AcceptRequest(ctx, mentor.UserID, req.ID)
	require.NoError(t, err)
	connID := accepted.Connection.ID

	completed, err := f.engine.CompleteConnection(ctx, mentor.UserID, connID)
	require.NoError(t, err)
	require.NotNil(t, completed.CompletedAt)
	require.Equal(t, string(models.ConnectionStatusActive), completed.Status)

	var mirrored models.MentorshipRequest
	require.NoError(t, f.db.Take(&mirrored, "id = ?", req.ID).Error)
	require.Equal(t, models.RequestStatusCompleted, mirrored.Status)

	reason := "  Goals reached  "
	detached, err := f.engine.DetachConnection(ctx, mentee.UserID, connID, &reason)
	require.NoError(t, err)
	require.Equal(t, string(models.ConnectionStatusDetached), detached.Status)
	require.NotNil(t, detached.DetachedAt)
	require.NotNil(t, detached.CompletedAt)
	require.True(t, completed.CompletedAt.Equal(*detached.CompletedAt))
	require.NotNil(t, detached.Reason)
	require.Equal(t, "Goals reached", *detached.Reason)
	require.Nil(t, detached.Contact)

	kinds := f.events.kinds()
	require.Equal(t, EventConnectionDetached, kinds[len(kinds)-1])
	require.Equal(t, "Goals reached", f.events.last().Reason)

	// Completion frees the slot for another mentee.
	next := f.request(t, f.mentee(t), mentor)
	_, err = f.engine.AcceptRequest(ctx, mentor.UserID, next.ID)
	require.NoError(t, err)
}

func TestCompleteFailures(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	mentor := f.mentor(t, 2, true)
	mentee := f.mentee(t)
	stranger := f.mentee(t)
	req := f.request(t, mentee, mentor)

	accepted, err := f.engine.AcceptRequest(ctx, mentor.UserID, req.ID)
	require.NoError(t, err)
	connID := accepted.Connection.ID

	_, err = f.engine.CompleteConnection(ctx, stranger.UserID, connID)
	require.ErrorIs(t, err, ErrConnectionNotFound)

	_, err = f.engine.CompleteConnection(ctx, mentee.UserID, "missing")
	require.ErrorIs(t, err, ErrConnectionNotFound)

	_, err = f.engine.CompleteConnection(ctx, mentee.UserID, connID)
	require.NoError(t, err)

	_, err = f.engine.CompleteConnection(ctx, mentor.UserID, connID)
	require.ErrorIs(t, err, ErrAlreadyCompleted)

	_, err = f.engine.DetachConnection(ctx, mentor.UserID, connID, nil)
	require.NoError(t, err)

	_, err = f.engine.CompleteConnection(ctx, mentor.UserID, connID)
	require.ErrorIs(t, err, ErrNotActive)
}

func TestDetachFailuresAndReason(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	mentor := f.mentor(t, 2, true)
	mentee := f.mentee(t)
	req := f.request(t, mentee, mentor)

	accepted, err := f.engine.AcceptRequest(ctx, mentor.UserID, req.ID)
	require.NoError(t, err)
	connID := accepted.Connection.ID

	tooLong := strings.Repeat("r", 501)
	_, err = f.engine.DetachConnection(ctx, mentor.UserID, connID, &tooLong)
	require.ErrorIs(t, err, ErrInvalidReason)

	_, err = f.engine.DetachConnection(ctx, f.mentee(t).UserID, connID, nil)
	require.ErrorIs(t, err, ErrConnectionNotFound)

	blank := "   "
	detached, err := f.engine.DetachConnection(ctx, mentor.UserID, connID, &blank)
	require.NoError(t, err)
	require.Nil(t, detached.Reason)
	require.Nil(t, detached.CompletedAt)

	_, err = f.engine.DetachConnection(ctx, mentee.UserID, connID, nil)
	require.ErrorIs(t, err, ErrAlreadyDetached)
}

func TestReactivationReusesConnectionRow(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	mentor := f.mentor(t, 1, true)
	mentee := f.mentee(t)

	first := f.request(t, mentee, mentor)
	accepted, err := f.engine.AcceptRequest(ctx, mentor.UserID, first.ID)
	require.NoError(t, err)
	originalID := accepted.Connection.ID

	reason := "Taking a break"
	_, err = f.engine.DetachConnection(ctx, mentee.UserID, originalID, &reason)
	require.NoError(t, err)

	second := f.request(t, mentee, mentor)
	reaccepted, err := f.engine.AcceptRequest(ctx, mentor.UserID, second.ID)
	require.NoError(t, err)

	rows := f.connectionRows(t, mentor, mentee)
	require.Len(t, rows, 1)
	row := rows[0]
	require.Equal(t, originalID, row.ID)
	require.Equal(t, originalID, reaccepted.Connection.ID)
	require.Equal(t, models.ConnectionStatusActive, row.Status)
	require.Nil(t, row.DetachedAt)
	require.Nil(t, row.Reason)
	require.Equal(t, second.ID, row.RequestID)
	require.NotNil(t, reaccepted.MenteeContact)
}

func TestListIncomingAndOutgoing(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	mentor := f.mentor(t, 5, true)
	otherMentor := f.mentor(t, 5, true)
	mentee := f.mentee(t)

	older := f.request(t, mentee, mentor)
	newer := f.request(t, f.mentee(t), mentor)
	outgoing := f.request(t, mentee, otherMentor)

	incoming, err := f.engine.ListIncoming(ctx, mentor.UserID)
	require.NoError(t, err)
	require.Len(t, incoming, 2)
	require.Equal(t, newer.ID, incoming[0].ID)
	require.Equal(t, older.ID, incoming[1].ID)
	require.NotNil(t, incoming[1].Mentee)
	require.Equal(t, "Mentee", incoming[1].Mentee.FirstName)

	sent, err := f.engine.ListOutgoing(ctx, mentee.UserID)
	require.NoError(t, err)
	require.Len(t, sent, 2)
	require.Equal(t, outgoing.ID, sent[0].ID)
	require.NotNil(t, sent[0].Mentor)
	require.Equal(t, "Go", sent[0].Mentor.Specialty)

	_, err = f.engine.ListIncoming(ctx, mentee.UserID)
	require.ErrorIs(t, err, ErrMentorRoleRequired)

	_, err = f.engine.ListOutgoing(ctx, mentor.UserID)
	require.ErrorIs(t, err, ErrMenteeRoleRequired)
}

func TestRequestViewsCarryCompletion(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	mentor := f.mentor(t, 2, true)
	mentee := f.mentee(t)
	req := f.request(t, mentee, mentor)

	accepted, err := f.engine.AcceptRequest(ctx, mentor.UserID, req.ID)
	require.NoError(t, err)
	_, err = f.engine.CompleteConnection(ctx, mentor.UserID, accepted.Connection.ID)
	require.NoError(t, err)

	sent, err := f.engine.ListOutgoing(ctx, mentee.UserID)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	require.Equal(t, string(models.RequestStatusCompleted), sent[0].Status)
	require.NotNil(t, sent[0].CompletedAt)
}

func TestListConnectionsRedactsContact(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	mentor := f.mentor(t, 3, true)
	activeMentee := f.mentee(t)
	detachedMentee := f.mentee(t)

	activeReq := f.request(t, activeMentee, mentor)
	detachedReq := f.request(t, detachedMentee, mentor)
	_, err := f.engine.AcceptRequest(ctx, mentor.UserID, activeReq.ID)
	require.NoError(t, err)
	toDetach, err := f.engine.AcceptRequest(ctx, mentor.UserID, detachedReq.ID)
	require.NoError(t, err)
	_, err = f.engine.DetachConnection(ctx, mentor.UserID, toDetach.Connection.ID, nil)
	require.NoError(t, err)

	items, err := f.engine.ListConnections(ctx, mentor.UserID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	byMentee := map[string]ConnectionDTO{}
	for _, item := range items {
		byMentee[item.MenteeID] = item
	}
	require.NotNil(t, byMentee[activeMentee.ProfileID].Contact)
	require.Equal(t, activeMentee.Email, byMentee[activeMentee.ProfileID].Contact.Email)
	require.Nil(t, byMentee[detachedMentee.ProfileID].Contact)

	menteeView, err := f.engine.ListConnections(ctx, activeMentee.UserID)
	require.NoError(t, err)
	require.Len(t, menteeView, 1)
	require.NotNil(t, menteeView[0].Contact)
	require.Equal(t, mentor.Email, menteeView[0].Contact.Email)

	outsider := models.User{Email: "outsider@example.com", Role: models.UserRoleAdmin, IsActive: true}
	require.NoError(t, f.db.Create(&outsider).Error)
	none, err := f.engine.ListConnections(ctx, outsider.ID)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestDashboardSummaries(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	mentor := f.mentor(t, 3, true)
	mentee := f.mentee(t)

	accepted := f.request(t, mentee, mentor)
	_, err := f.engine.AcceptRequest(ctx, mentor.UserID, accepted.ID)
	require.NoError(t, err)

	longMessage := strings.Repeat("m", 300)
	other := f.mentee(t)
	_, err = f.engine.CreateRequest(ctx, other.UserID, CreateRequestInput{MentorID: mentor.ProfileID, Message: longMessage})
	require.NoError(t, err)

	dash, err := f.engine.Dashboard(ctx, mentor.UserID)
	require.NoError(t, err)
	require.NotNil(t, dash.Mentor)
	require.Nil(t, dash.Mentee)
	require.EqualValues(t, 1, dash.Mentor.PendingRequests)
	require.EqualValues(t, 1, dash.Mentor.ActiveConnections)
	require.EqualValues(t, 2, dash.Mentor.CapacityRemaining)
	require.Len(t, dash.Mentor.RecentRequests, 1)
	require.Less(t, len([]rune(dash.Mentor.RecentRequests[0].Message)), 300)
	require.Len(t, dash.Mentor.ActiveList, 1)

	menteeDash, err := f.engine.Dashboard(ctx, mentee.UserID)
	require.NoError(t, err)
	require.NotNil(t, menteeDash.Mentee)
	require.EqualValues(t, 0, menteeDash.Mentee.PendingRequests)
	require.EqualValues(t, 1, menteeDash.Mentee.ActiveConnections)
	require.Len(t, menteeDash.Mentee.RecentRequests, 1)

	admin := models.User{Email: "admin@example.com", Role: models.UserRoleAdmin, IsActive: true}
	require.NoError(t, f.db.Create(&admin).Error)
	_, err = f.engine.Dashboard(ctx, admin.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestMatchingLimitsOverride(t *testing.T) {
	f := newEngineFixture(t, WithMatchingLimits(MatchingLimits{MessageMin: 3, ReasonMax: 5}))
	ctx := context.Background()
	mentor := f.mentor(t, 2, true)
	mentee := f.mentee(t)

	req, err := f.engine.CreateRequest(ctx, mentee.UserID, CreateRequestInput{MentorID: mentor.ProfileID, Message: "hey"})
	require.NoError(t, err)

	accepted, err := f.engine.AcceptRequest(ctx, mentor.UserID, req.ID)
	require.NoError(t, err)

	reason := "too long"
	_, err = f.engine.DetachConnection(ctx, mentor.UserID, accepted.Connection.ID, &reason)
	require.ErrorIs(t, err, ErrInvalidReason)
	require.Contains(t, apperrors.FromError(err).Message, "5")
}

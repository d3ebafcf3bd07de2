package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/mentorhub/internal/database/testutil"
	"github.com/charlesng35/mentorhub/internal/models"
)

const validMessage = "I would love your guidance on backend engineering."

type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func newSteppingClock() *steppingClock {
	return &steppingClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

// Now advances one second per call so ordering by timestamp is deterministic.
func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type recordedEvents struct {
	mu     sync.Mutex
	events []LifecycleEvent
}

func (r *recordedEvents) Dispatch(_ context.Context, event LifecycleEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordedEvents) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recordedEvents) last() LifecycleEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type engineFixture struct {
	db       *gorm.DB
	engine   *MatchingEngine
	profiles *ProfileService
	events   *recordedEvents
	seq      int
}

func newEngineFixture(t *testing.T, opts ...MatchingOption) *engineFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithSchema())
	profiles, err := NewProfileService(db)
	require.NoError(t, err)

	events := &recordedEvents{}
	clock := newSteppingClock()
	base := []MatchingOption{WithEventDispatcher(events), WithMatchingClock(clock.Now)}
	engine, err := NewMatchingEngine(db, profiles, append(base, opts...)...)
	require.NoError(t, err)

	return &engineFixture{db: db, engine: engine, profiles: profiles, events: events}
}

type seededMentor struct {
	UserID    string
	ProfileID string
	Email     string
}

type seededMentee struct {
	UserID    string
	ProfileID string
	Email     string
}

func (f *engineFixture) nextEmail(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d@example.com", prefix, f.seq)
}

func (f *engineFixture) mentor(t *testing.T, maxMentees int, accepts bool) seededMentor {
	t.Helper()
	email := f.nextEmail("mentor")
	user := models.User{Email: email, FirstName: "Mentor", LastName: fmt.Sprint(f.seq), Role: models.UserRoleMentor, IsActive: true}
	require.NoError(t, f.db.Create(&user).Error)
	profile := models.MentorProfile{UserID: user.ID, Specialty: "Go", AcceptsRequests: accepts, MaxMentees: maxMentees}
	require.NoError(t, f.db.Create(&profile).Error)
	return seededMentor{UserID: user.ID, ProfileID: profile.ID, Email: email}
}

func (f *engineFixture) mentee(t *testing.T) seededMentee {
	t.Helper()
	email := f.nextEmail("mentee")
	user := models.User{Email: email, FirstName: "Mentee", LastName: fmt.Sprint(f.seq), Role: models.UserRoleMentee, IsActive: true}
	require.NoError(t, f.db.Create(&user).Error)
	profile := models.MenteeProfile{UserID: user.ID, Goal: "Learn Go"}
	require.NoError(t, f.db.Create(&profile).Error)
	return seededMentee{UserID: user.ID, ProfileID: profile.ID, Email: email}
}

func (f *engineFixture) request(t *testing.T, mentee seededMentee, mentor seededMentor) *RequestDTO {
	t.Helper()
	req, err := f.engine.CreateRequest(context.Background(), mentee.UserID, CreateRequestInput{
		MentorID: mentor.ProfileID,
		Message:  validMessage,
	})
	require.NoError(t, err)
	return req
}

func (f *engineFixture) connectionRows(t *testing.T, mentor seededMentor, mentee seededMentee) []models.MentorshipConnection {
	t.Helper()
	var rows []models.MentorshipConnection
	require.NoError(t, f.db.Where("mentor_id = ? AND mentee_id = ?", mentor.ProfileID, mentee.ProfileID).Find(&rows).Error)
	return rows
}

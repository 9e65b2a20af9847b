package meeting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursekit/meetingd/internal/calendar"
	"github.com/coursekit/meetingd/internal/token"
)

type fakeCreds struct {
	rec *token.Record
	err error
}

func (f *fakeCreds) Credential(ctx context.Context) (*token.Record, error) {
	return f.rec, f.err
}

type fakeCalendar struct {
	created   []calendar.EventInput
	deleted   []string
	event     *calendar.MeetEvent
	createErr error
	deleteErr error
}

func (f *fakeCalendar) CreateMeetEvent(ctx context.Context, input calendar.EventInput) (*calendar.MeetEvent, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, input)
	return f.event, nil
}

func (f *fakeCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	f.deleted = append(f.deleted, eventID)
	return f.deleteErr
}

func factoryFor(c *fakeCalendar) ClientFactory {
	return func(ctx context.Context, rec *token.Record) (CalendarAPI, error) {
		return c, nil
	}
}

func authedCreds() *fakeCreds {
	return &fakeCreds{rec: &token.Record{
		PrincipalID:    token.DefaultPrincipal,
		AccessToken:    "at",
		RefreshToken:   "rt",
		ProviderExpiry: time.Now().Add(time.Hour).UnixMilli(),
		CreatedAt:      time.Now(),
	}}
}

func validInput() CreateInput {
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	return CreateInput{
		Subject:   "Algebra II",
		CourseID:  "course-1",
		Start:     start,
		End:       start.Add(time.Hour),
		Attendees: []string{"a@example.com", "b@example.com"},
	}
}

func TestServiceCreate(t *testing.T) {
	cal := &fakeCalendar{event: &calendar.MeetEvent{
		ID:          "evt-1",
		HangoutLink: "https://meet.google.com/abc-defg-hij",
	}}
	svc := NewService(NewMemoryStore(), authedCreds(), factoryFor(cal))

	m, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "https://meet.google.com/abc-defg-hij", m.Link)
	assert.Equal(t, "evt-1", m.GoogleEventID)
	assert.Equal(t, 2, m.Participants)
	assert.NotEmpty(t, m.RoomNumber, "room number should be defaulted")
	assert.NotEmpty(t, m.Color, "color should be defaulted")
	require.Len(t, cal.created, 1)
	assert.Equal(t, "Algebra II", cal.created[0].Summary)
}

func TestServiceCreateValidatesInput(t *testing.T) {
	cal := &fakeCalendar{event: &calendar.MeetEvent{ID: "evt-1"}}
	svc := NewService(NewMemoryStore(), authedCreds(), factoryFor(cal))

	_, err := svc.Create(context.Background(), CreateInput{Subject: "only a subject"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Missing, "startTime")
	assert.Contains(t, verr.Missing, "courseId")
	assert.Empty(t, cal.created, "no calendar call for invalid input")
}

func TestServiceCreateUnauthenticated(t *testing.T) {
	cal := &fakeCalendar{}
	store := NewMemoryStore()
	svc := NewService(store, &fakeCreds{err: token.ErrNotAuthenticated}, factoryFor(cal))

	_, err := svc.Create(context.Background(), validInput())

	require.ErrorIs(t, err, token.ErrNotAuthenticated)
	assert.Empty(t, cal.created)
	meetings, _ := store.List(context.Background(), "")
	assert.Empty(t, meetings)
}

func TestServiceCreateDuplicateCleansUpEvent(t *testing.T) {
	cal := &fakeCalendar{event: &calendar.MeetEvent{ID: "evt-dup"}}
	svc := NewService(NewMemoryStore(), authedCreds(), factoryFor(cal))

	_, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), validInput())
	require.ErrorIs(t, err, ErrDuplicate)
	assert.Contains(t, cal.deleted, "evt-dup", "second event should be cleaned up")
}

func TestServiceDelete(t *testing.T) {
	cal := &fakeCalendar{event: &calendar.MeetEvent{ID: "evt-1"}}
	svc := NewService(NewMemoryStore(), authedCreds(), factoryFor(cal))

	m, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), m.ID))
	assert.Contains(t, cal.deleted, "evt-1")

	_, err = svc.Get(context.Background(), m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceDeleteSurvivesCalendarFailure(t *testing.T) {
	cal := &fakeCalendar{event: &calendar.MeetEvent{ID: "evt-1"}}
	svc := NewService(NewMemoryStore(), authedCreds(), factoryFor(cal))

	m, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	cal.deleteErr = errors.New("google is down")
	require.NoError(t, svc.Delete(context.Background(), m.ID),
		"local delete is authoritative even when calendar cleanup fails")

	_, err = svc.Get(context.Background(), m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceDeleteNotFound(t *testing.T) {
	svc := NewService(NewMemoryStore(), authedCreds(), factoryFor(&fakeCalendar{}))
	err := svc.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceUpdate(t *testing.T) {
	cal := &fakeCalendar{event: &calendar.MeetEvent{ID: "evt-1"}}
	svc := NewService(NewMemoryStore(), authedCreds(), factoryFor(cal))

	m, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), m.ID, UpdateInput{Subject: "Geometry"})
	require.NoError(t, err)
	assert.Equal(t, "Geometry", updated.Subject)
	assert.Equal(t, m.Link, updated.Link, "link is immutable")
}

func TestMemoryStoreListSortedAndFiltered(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	for i, courseID := range []string{"b", "a", "b"} {
		_, err := store.Insert(context.Background(), &Meeting{
			Subject:  "m",
			CourseID: courseID,
			Start:    base.Add(time.Duration(3-i) * time.Hour),
		})
		require.NoError(t, err)
	}

	all, err := store.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].Start.Before(all[1].Start))
	assert.True(t, all[1].Start.Before(all[2].Start))

	filtered, err := store.List(context.Background(), "b")
	require.NoError(t, err)
	assert.Len(t, filtered, 2)
}

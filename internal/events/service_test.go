package events

import (
	"context"
	"testing"
	"time"

	"eventsbga/internal/availability"
	"eventsbga/internal/identity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	venueID      = "3a1f2b4c-5d6e-4f70-8a9b-0c1d2e3f4a5b"
	venueSubject = "auth0|venue-owner"
	artist       = "auth0|artist-7"
	eventID      = "9e8d7c6b-5a4f-4e3d-2c1b-0a9f8e7d6c5b"
)

var eventDate = time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

type MockRepo struct{ mock.Mock }

func (m *MockRepo) eventResult(args mock.Arguments) (*Event, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Event), args.Error(1)
}

func (m *MockRepo) Create(ctx context.Context, e *Event) (*Event, error) {
	return m.eventResult(m.Called(ctx, e))
}

func (m *MockRepo) GetByID(ctx context.Context, id string) (*Event, error) {
	return m.eventResult(m.Called(ctx, id))
}

func (m *MockRepo) ListByArtist(ctx context.Context, subject string) ([]Event, error) {
	args := m.Called(ctx, subject)
	return args.Get(0).([]Event), args.Error(1)
}

func (m *MockRepo) ListByManager(ctx context.Context, managerID, status string) ([]Event, error) {
	args := m.Called(ctx, managerID, status)
	return args.Get(0).([]Event), args.Error(1)
}

func (m *MockRepo) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]UpcomingEvent, error) {
	args := m.Called(ctx, from, limit)
	return args.Get(0).([]UpcomingEvent), args.Error(1)
}

func (m *MockRepo) HasApproved(ctx context.Context, managerID string, date time.Time, hour int) (bool, error) {
	args := m.Called(ctx, managerID, date, hour)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepo) Approve(ctx context.Context, id string) (*Event, error) {
	return m.eventResult(m.Called(ctx, id))
}

func (m *MockRepo) Reject(ctx context.Context, id, reason string) (*Event, error) {
	return m.eventResult(m.Called(ctx, id, reason))
}

func (m *MockRepo) Cancel(ctx context.Context, id string) (*Event, error) {
	return m.eventResult(m.Called(ctx, id))
}

func (m *MockRepo) AddAttendee(ctx context.Context, eventID, subject string) (bool, error) {
	args := m.Called(ctx, eventID, subject)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepo) ListAttendees(ctx context.Context, eventID string) ([]Attendee, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).([]Attendee), args.Error(1)
}

type fakeVenues struct {
	profile *identity.Profile
}

func (f *fakeVenues) Resolve(_ context.Context, ref string) (*identity.Profile, error) {
	if f.profile != nil && (ref == f.profile.ID || ref == f.profile.SubjectID) {
		return f.profile, nil
	}
	return nil, identity.ErrProfileNotFound
}

func (f *fakeVenues) GetBySubject(_ context.Context, subject string) (*identity.Profile, error) {
	if f.profile != nil && subject == f.profile.SubjectID {
		return f.profile, nil
	}
	return nil, identity.ErrProfileNotFound
}

type fakeSlots struct {
	open map[int]bool
}

func (f *fakeSlots) IsOpen(_ context.Context, _ string, _ time.Time, hour int) (bool, error) {
	return f.open[hour], nil
}

type sentMail struct {
	kind, to, venue string
	status          string
}

type fakeNotifier struct {
	sent []sentMail
}

func (f *fakeNotifier) SendEventRequested(_ context.Context, to, venueName string, e *Event) error {
	f.sent = append(f.sent, sentMail{kind: "requested", to: to, venue: venueName, status: e.Status})
	return nil
}

func (f *fakeNotifier) SendEventDecision(_ context.Context, to, venueName string, e *Event) error {
	f.sent = append(f.sent, sentMail{kind: "decision", to: to, venue: venueName, status: e.Status})
	return nil
}

type fixture struct {
	svc      *service
	repo     *MockRepo
	notifier *fakeNotifier
}

func newFixture() *fixture {
	repo := new(MockRepo)
	notifier := &fakeNotifier{}
	venues := &fakeVenues{profile: &identity.Profile{
		ID:        venueID,
		SubjectID: venueSubject,
		Email:     "venue@example.com",
		VenueName: "Teatro Santander",
	}}
	slots := &fakeSlots{open: map[int]bool{18: true, 19: true}}

	svc := NewService(repo, venues, slots, notifier, nil).(*service)
	svc.now = func() time.Time { return time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC) }
	return &fixture{svc: svc, repo: repo, notifier: notifier}
}

func intPtr(v int) *int { return &v }

func pendingEvent() *Event {
	return &Event{
		ID:            eventID,
		ArtistSubject: artist,
		ArtistEmail:   "artist@example.com",
		ManagerID:     venueID,
		Title:         "Jazz night",
		EventDate:     eventDate,
		Hour:          18,
		Status:        StatusPending,
	}
}

func withStatus(e *Event, status string) *Event {
	e.Status = status
	return e
}

func TestRequestEvent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.repo.On("HasApproved", ctx, venueID, eventDate, 18).Return(false, nil)
	f.repo.On("Create", ctx, mock.MatchedBy(func(e *Event) bool {
		return e.ManagerID == venueID && e.ArtistSubject == artist && e.Hour == 18 &&
			e.EventDate.Equal(eventDate) && e.Title == "Jazz night" && e.ID != ""
	})).Return(pendingEvent(), nil)

	e, err := f.svc.RequestEvent(ctx, artist, "artist@example.com", CreateRequest{
		ManagerRef: venueSubject,
		Title:      "  Jazz night ",
		Date:       "2025-03-14",
		Hour:       intPtr(18),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, e.Status)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, sentMail{kind: "requested", to: "venue@example.com", venue: "Teatro Santander", status: StatusPending}, f.notifier.sent[0])
	f.repo.AssertExpectations(t)
}

func TestRequestEvent_Rejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		req     CreateRequest
		taken   bool
		wantErr error
	}{
		{"bad date", CreateRequest{ManagerRef: venueID, Date: "14/03/2025", Hour: intPtr(18)}, false, availability.ErrInvalidDate},
		{"bad hour", CreateRequest{ManagerRef: venueID, Date: "2025-03-14", Hour: intPtr(24)}, false, availability.ErrInvalidHour},
		{"past date", CreateRequest{ManagerRef: venueID, Date: "2025-03-09", Hour: intPtr(18)}, false, ErrPastDate},
		{"unknown venue", CreateRequest{ManagerRef: "nobody", Date: "2025-03-14", Hour: intPtr(18)}, false, ErrVenueNotFound},
		{"closed hour", CreateRequest{ManagerRef: venueID, Date: "2025-03-14", Hour: intPtr(7)}, false, ErrSlotUnavailable},
		{"already booked", CreateRequest{ManagerRef: venueID, Date: "2025-03-14", Hour: intPtr(19)}, true, ErrSlotTaken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.repo.On("HasApproved", ctx, venueID, mock.Anything, mock.Anything).Return(tt.taken, nil).Maybe()

			_, err := f.svc.RequestEvent(ctx, artist, "", tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestRequestEvent_TodayIsAllowed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	f.repo.On("HasApproved", ctx, venueID, today, 18).Return(false, nil)
	f.repo.On("Create", ctx, mock.Anything).Return(pendingEvent(), nil)

	_, err := f.svc.RequestEvent(ctx, artist, "", CreateRequest{ManagerRef: venueID, Title: "Jazz night", Date: "2025-03-10", Hour: intPtr(18)})
	assert.NoError(t, err)
}

func TestApprove(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.repo.On("GetByID", ctx, eventID).Return(pendingEvent(), nil)
	f.repo.On("HasApproved", ctx, venueID, eventDate, 18).Return(false, nil)
	f.repo.On("Approve", ctx, eventID).Return(withStatus(pendingEvent(), StatusApproved), nil)

	e, err := f.svc.Approve(ctx, venueSubject, eventID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, e.Status)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "artist@example.com", f.notifier.sent[0].to)
	assert.Equal(t, StatusApproved, f.notifier.sent[0].status)
}

func TestApprove_Guards(t *testing.T) {
	ctx := context.Background()

	t.Run("other manager", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetByID", ctx, eventID).Return(pendingEvent(), nil)

		_, err := f.svc.Approve(ctx, "auth0|someone-else", eventID)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("not pending", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetByID", ctx, eventID).Return(withStatus(pendingEvent(), StatusRejected), nil)

		_, err := f.svc.Approve(ctx, venueSubject, eventID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("slot taken meanwhile", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetByID", ctx, eventID).Return(pendingEvent(), nil)
		f.repo.On("HasApproved", ctx, venueID, eventDate, 18).Return(true, nil)

		_, err := f.svc.Approve(ctx, venueSubject, eventID)
		assert.ErrorIs(t, err, ErrSlotTaken)
		f.repo.AssertNotCalled(t, "Approve", mock.Anything, mock.Anything)
	})

	t.Run("unknown event", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetByID", ctx, "missing").Return(nil, ErrEventNotFound)

		_, err := f.svc.Approve(ctx, venueSubject, "missing")
		assert.ErrorIs(t, err, ErrEventNotFound)
	})
}

func TestReject(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	rejected := withStatus(pendingEvent(), StatusRejected)
	rejected.RejectionReason = "closed for works"

	f.repo.On("GetByID", ctx, eventID).Return(pendingEvent(), nil)
	f.repo.On("Reject", ctx, eventID, "closed for works").Return(rejected, nil)

	e, err := f.svc.Reject(ctx, venueSubject, eventID, " closed for works ")
	require.NoError(t, err)
	assert.Equal(t, "closed for works", e.RejectionReason)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, StatusRejected, f.notifier.sent[0].status)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("artist cancels approved", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetByID", ctx, eventID).Return(withStatus(pendingEvent(), StatusApproved), nil)
		f.repo.On("Cancel", ctx, eventID).Return(withStatus(pendingEvent(), StatusCancelled), nil)

		e, err := f.svc.Cancel(ctx, artist, eventID)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, e.Status)
	})

	t.Run("someone else", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetByID", ctx, eventID).Return(pendingEvent(), nil)

		_, err := f.svc.Cancel(ctx, "auth0|other", eventID)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("already rejected", func(t *testing.T) {
		f := newFixture()
		f.repo.On("GetByID", ctx, eventID).Return(withStatus(pendingEvent(), StatusRejected), nil)

		_, err := f.svc.Cancel(ctx, artist, eventID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestConfirmAttendance(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.repo.On("GetByID", ctx, eventID).Return(withStatus(pendingEvent(), StatusApproved), nil)
	f.repo.On("AddAttendee", ctx, eventID, "auth0|fan").Return(true, nil).Once()
	f.repo.On("AddAttendee", ctx, eventID, "auth0|fan").Return(false, nil).Once()

	added, err := f.svc.ConfirmAttendance(ctx, "auth0|fan", eventID)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = f.svc.ConfirmAttendance(ctx, "auth0|fan", eventID)
	require.NoError(t, err)
	assert.False(t, added)

	f2 := newFixture()
	f2.repo.On("GetByID", ctx, eventID).Return(pendingEvent(), nil)
	_, err = f2.svc.ConfirmAttendance(ctx, "auth0|fan", eventID)
	assert.ErrorIs(t, err, ErrNotApproved)
}

func TestListAttendees_Access(t *testing.T) {
	ctx := context.Background()
	attendees := []Attendee{{EventID: eventID, UserSubject: "auth0|fan"}}

	for _, caller := range []string{artist, venueSubject} {
		f := newFixture()
		f.repo.On("GetByID", ctx, eventID).Return(pendingEvent(), nil)
		f.repo.On("ListAttendees", ctx, eventID).Return(attendees, nil)

		list, err := f.svc.ListAttendees(ctx, caller, false, eventID)
		require.NoError(t, err, caller)
		assert.Len(t, list, 1)
	}

	f := newFixture()
	f.repo.On("GetByID", ctx, eventID).Return(pendingEvent(), nil)
	_, err := f.svc.ListAttendees(ctx, "auth0|fan", false, eventID)
	assert.ErrorIs(t, err, ErrForbidden)

	f.repo.On("ListAttendees", ctx, eventID).Return(attendees, nil)
	_, err = f.svc.ListAttendees(ctx, "auth0|admin", true, eventID)
	assert.NoError(t, err)
}

func TestListVenueRequests(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.repo.On("ListByManager", ctx, venueID, StatusPending).Return([]Event{*pendingEvent()}, nil)

	list, err := f.svc.ListVenueRequests(ctx, venueSubject, StatusPending)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.svc.ListVenueRequests(ctx, venueSubject, "archived")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.svc.ListVenueRequests(ctx, artist, "")
	assert.ErrorIs(t, err, ErrVenueNotFound)
}

func TestListUpcoming_FromToday(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.repo.On("ListUpcoming", ctx, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), upcomingLimit).
		Return([]UpcomingEvent{}, nil)

	_, err := f.svc.ListUpcoming(ctx)
	assert.NoError(t, err)
	f.repo.AssertExpectations(t)
}

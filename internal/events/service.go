package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"eventsbga/internal/availability"
	"eventsbga/internal/identity"
	"eventsbga/internal/logger"
	"eventsbga/internal/metrics"
)

const upcomingLimit = 100

// Venues looks up manager profiles.
type Venues interface {
	Resolve(ctx context.Context, ref string) (*identity.Profile, error)
	GetBySubject(ctx context.Context, subject string) (*identity.Profile, error)
}

// SlotChecker answers whether a venue is open at a date and hour.
type SlotChecker interface {
	IsOpen(ctx context.Context, managerRef string, date time.Time, hour int) (bool, error)
}

type Notifier interface {
	SendEventRequested(ctx context.Context, to, venueName string, e *Event) error
	SendEventDecision(ctx context.Context, to, venueName string, e *Event) error
}

type Service interface {
	RequestEvent(ctx context.Context, subject, email string, req CreateRequest) (*Event, error)
	ListMine(ctx context.Context, subject string) ([]Event, error)
	ListVenueRequests(ctx context.Context, managerSubject, status string) ([]Event, error)
	Approve(ctx context.Context, managerSubject, eventID string) (*Event, error)
	Reject(ctx context.Context, managerSubject, eventID, reason string) (*Event, error)
	Cancel(ctx context.Context, subject, eventID string) (*Event, error)
	ConfirmAttendance(ctx context.Context, subject, eventID string) (bool, error)
	ListAttendees(ctx context.Context, subject string, isAdmin bool, eventID string) ([]Attendee, error)
	ListUpcoming(ctx context.Context) ([]UpcomingEvent, error)
}

type service struct {
	repo     Repository
	venues   Venues
	slots    SlotChecker
	notifier Notifier
	cache    *availability.Cache
	now      func() time.Time
}

// NewService wires the event service. notifier may be nil.
func NewService(repo Repository, venues Venues, slots SlotChecker, notifier Notifier, cache *availability.Cache) Service {
	return &service{
		repo:     repo,
		venues:   venues,
		slots:    slots,
		notifier: notifier,
		cache:    cache,
		now:      time.Now,
	}
}

func (s *service) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *service) venue(ctx context.Context, ref string) (*identity.Profile, error) {
	p, err := s.venues.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, identity.ErrProfileNotFound) {
			return nil, ErrVenueNotFound
		}
		return nil, err
	}
	return p, nil
}

// checkSlot fails unless the venue is open and has no approved event at date/hour.
func (s *service) checkSlot(ctx context.Context, venueID string, date time.Time, hour int) error {
	open, err := s.slots.IsOpen(ctx, venueID, date, hour)
	if err != nil {
		return err
	}
	if !open {
		return ErrSlotUnavailable
	}

	taken, err := s.repo.HasApproved(ctx, venueID, date, hour)
	if err != nil {
		return err
	}
	if taken {
		return ErrSlotTaken
	}
	return nil
}

func (s *service) RequestEvent(ctx context.Context, subject, email string, req CreateRequest) (*Event, error) {
	date, err := availability.ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if req.Hour == nil || !availability.ValidHour(*req.Hour) {
		return nil, availability.ErrInvalidHour
	}
	if date.Before(s.today()) {
		return nil, ErrPastDate
	}

	venue, err := s.venue(ctx, req.ManagerRef)
	if err != nil {
		return nil, err
	}

	if err := s.checkSlot(ctx, venue.ID, date, *req.Hour); err != nil {
		return nil, err
	}

	e, err := s.repo.Create(ctx, &Event{
		ID:            uuid.NewString(),
		ArtistSubject: subject,
		ArtistEmail:   email,
		ManagerID:     venue.ID,
		Title:         strings.TrimSpace(req.Title),
		Description:   req.Description,
		Category:      req.Category,
		EventDate:     date,
		Hour:          *req.Hour,
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordEventTransition(StatusPending)
	logger.Info("event requested", "event", e.ID, "venue", venue.ID, "date", req.Date, "hour", e.Hour)

	if s.notifier != nil && venue.Email != "" {
		if err := s.notifier.SendEventRequested(ctx, venue.Email, venue.VenueName, e); err != nil {
			logger.Warn("failed to queue event request email", "event", e.ID, "error", err)
		}
	}

	return e, nil
}

func (s *service) ListMine(ctx context.Context, subject string) ([]Event, error) {
	return s.repo.ListByArtist(ctx, subject)
}

func (s *service) ListVenueRequests(ctx context.Context, managerSubject, status string) ([]Event, error) {
	if status != "" && !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}

	venue, err := s.venues.GetBySubject(ctx, managerSubject)
	if err != nil {
		if errors.Is(err, identity.ErrProfileNotFound) {
			return nil, ErrVenueNotFound
		}
		return nil, err
	}
	return s.repo.ListByManager(ctx, venue.ID, status)
}

// ownedEvent loads an event and the caller's venue, failing unless the venue hosts it.
func (s *service) ownedEvent(ctx context.Context, managerSubject, eventID string) (*Event, *identity.Profile, error) {
	e, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}

	venue, err := s.venues.GetBySubject(ctx, managerSubject)
	if err != nil {
		if errors.Is(err, identity.ErrProfileNotFound) {
			return nil, nil, ErrForbidden
		}
		return nil, nil, err
	}
	if venue.ID != e.ManagerID {
		return nil, nil, ErrForbidden
	}
	return e, venue, nil
}

func (s *service) Approve(ctx context.Context, managerSubject, eventID string) (*Event, error) {
	e, venue, err := s.ownedEvent(ctx, managerSubject, eventID)
	if err != nil {
		return nil, err
	}
	if e.Status != StatusPending {
		return nil, ErrInvalidTransition
	}
	if err := s.checkSlot(ctx, venue.ID, e.EventDate, e.Hour); err != nil {
		return nil, err
	}

	approved, err := s.repo.Approve(ctx, e.ID)
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, venue.Refs()...)
	metrics.RecordEventTransition(StatusApproved)
	logger.Info("event approved", "event", e.ID, "venue", venue.ID)

	s.notifyDecision(ctx, venue, approved)
	return approved, nil
}

func (s *service) Reject(ctx context.Context, managerSubject, eventID, reason string) (*Event, error) {
	e, venue, err := s.ownedEvent(ctx, managerSubject, eventID)
	if err != nil {
		return nil, err
	}
	if e.Status != StatusPending {
		return nil, ErrInvalidTransition
	}

	rejected, err := s.repo.Reject(ctx, e.ID, strings.TrimSpace(reason))
	if err != nil {
		return nil, err
	}

	metrics.RecordEventTransition(StatusRejected)
	logger.Info("event rejected", "event", e.ID, "venue", venue.ID)

	s.notifyDecision(ctx, venue, rejected)
	return rejected, nil
}

func (s *service) notifyDecision(ctx context.Context, venue *identity.Profile, e *Event) {
	if s.notifier == nil || e.ArtistEmail == "" {
		return
	}
	if err := s.notifier.SendEventDecision(ctx, e.ArtistEmail, venue.VenueName, e); err != nil {
		logger.Warn("failed to queue event decision email", "event", e.ID, "error", err)
	}
}

func (s *service) Cancel(ctx context.Context, subject, eventID string) (*Event, error) {
	e, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.ArtistSubject != subject {
		return nil, ErrForbidden
	}
	if e.Status != StatusPending && e.Status != StatusApproved {
		return nil, ErrInvalidTransition
	}

	cancelled, err := s.repo.Cancel(ctx, e.ID)
	if err != nil {
		return nil, err
	}

	if e.Status == StatusApproved {
		if venue, err := s.venues.Resolve(ctx, e.ManagerID); err == nil {
			s.cache.Invalidate(ctx, venue.Refs()...)
		} else {
			s.cache.Invalidate(ctx, e.ManagerID)
		}
	}

	metrics.RecordEventTransition(StatusCancelled)
	logger.Info("event cancelled", "event", e.ID, "previous_status", e.Status)
	return cancelled, nil
}

// ConfirmAttendance reports false when the user had already confirmed.
func (s *service) ConfirmAttendance(ctx context.Context, subject, eventID string) (bool, error) {
	e, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		return false, err
	}
	if e.Status != StatusApproved {
		return false, ErrNotApproved
	}

	added, err := s.repo.AddAttendee(ctx, e.ID, subject)
	if err != nil {
		return false, err
	}
	if added {
		metrics.RecordAttendance()
	}
	return added, nil
}

func (s *service) ListAttendees(ctx context.Context, subject string, isAdmin bool, eventID string) ([]Attendee, error) {
	e, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if !isAdmin && e.ArtistSubject != subject {
		venue, err := s.venues.GetBySubject(ctx, subject)
		if err != nil || venue.ID != e.ManagerID {
			return nil, ErrForbidden
		}
	}

	return s.repo.ListAttendees(ctx, e.ID)
}

func (s *service) ListUpcoming(ctx context.Context) ([]UpcomingEvent, error) {
	return s.repo.ListUpcoming(ctx, s.today(), upcomingLimit)
}

package events

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, e *Event) (*Event, error)
	GetByID(ctx context.Context, id string) (*Event, error)
	ListByArtist(ctx context.Context, subject string) ([]Event, error)
	ListByManager(ctx context.Context, managerID, status string) ([]Event, error)
	ListUpcoming(ctx context.Context, from time.Time, limit int) ([]UpcomingEvent, error)
	HasApproved(ctx context.Context, managerID string, date time.Time, hour int) (bool, error)
	// Approve flips a pending event to approved and blocks its date and hour
	// for the venue in the same transaction.
	Approve(ctx context.Context, id string) (*Event, error)
	Reject(ctx context.Context, id, reason string) (*Event, error)
	// Cancel releases the date block when the event had been approved.
	Cancel(ctx context.Context, id string) (*Event, error)
	AddAttendee(ctx context.Context, eventID, subject string) (bool, error)
	ListAttendees(ctx context.Context, eventID string) ([]Attendee, error)
}

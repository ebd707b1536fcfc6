package events

import (
	"errors"
	"time"
)

const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrVenueNotFound     = errors.New("venue not found")
	ErrForbidden         = errors.New("not allowed to act on this event")
	ErrInvalidTransition = errors.New("event status does not allow this action")
	ErrPastDate          = errors.New("event date is in the past")
	ErrSlotUnavailable   = errors.New("venue is not open at that hour")
	ErrSlotTaken         = errors.New("venue already has an approved event at that hour")
	ErrNotApproved       = errors.New("event is not approved")
	ErrInvalidStatus     = errors.New("unknown event status")
)

type Event struct {
	ID              string    `db:"id" json:"id"`
	ArtistSubject   string    `db:"artist_subject" json:"artistSubject"`
	ArtistEmail     string    `db:"artist_email" json:"-"`
	ManagerID       string    `db:"manager_id" json:"managerId"`
	Title           string    `db:"title" json:"title"`
	Description     string    `db:"description" json:"description"`
	Category        string    `db:"category" json:"category"`
	EventDate       time.Time `db:"event_date" json:"eventDate"`
	Hour            int       `db:"hour" json:"hour"`
	Status          string    `db:"status" json:"status"`
	RejectionReason string    `db:"rejection_reason" json:"rejectionReason,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// UpcomingEvent is an approved event joined with its venue name.
type UpcomingEvent struct {
	Event
	VenueName string `db:"venue_name" json:"venueName"`
	Attendees int    `db:"attendees" json:"attendees"`
}

type Attendee struct {
	EventID     string    `db:"event_id" json:"eventId"`
	UserSubject string    `db:"user_subject" json:"userSubject"`
	ConfirmedAt time.Time `db:"confirmed_at" json:"confirmedAt"`
}

type CreateRequest struct {
	ManagerRef  string `json:"managerRef" binding:"required"`
	Title       string `json:"title" binding:"required,min=3,max=160"`
	Description string `json:"description" binding:"max=2000"`
	Category    string `json:"category" binding:"max=60"`
	Date        string `json:"date" binding:"required"`
	Hour        *int   `json:"hour" binding:"required,min=0,max=23"`
}

type RejectRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

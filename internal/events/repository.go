package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"eventsbga/internal/availability"
	"eventsbga/internal/db"
)

const eventColumns = `id, artist_subject, artist_email, manager_id, title, description, category,
	event_date, hour, status, rejection_reason, created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, e *Event) (*Event, error) {
	query := `
		INSERT INTO events (id, artist_subject, artist_email, manager_id, title, description, category, event_date, hour, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + eventColumns

	var created Event
	err := r.db.GetContext(ctx, &created, query,
		e.ID, e.ArtistSubject, e.ArtistEmail, e.ManagerID, e.Title, e.Description, e.Category,
		e.EventDate.Format(availability.DateLayout), e.Hour, StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return &created, nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Event, error) {
	var e Event
	err := r.db.GetContext(ctx, &e, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *repository) ListByArtist(ctx context.Context, subject string) ([]Event, error) {
	var list []Event
	query := `SELECT ` + eventColumns + ` FROM events WHERE artist_subject = $1 ORDER BY event_date DESC, hour DESC`
	if err := r.db.SelectContext(ctx, &list, query, subject); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *repository) ListByManager(ctx context.Context, managerID, status string) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE manager_id = $1`
	args := []interface{}{managerID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY event_date, hour`

	var list []Event
	if err := r.db.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *repository) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]UpcomingEvent, error) {
	query := `
		SELECT e.id, e.artist_subject, e.artist_email, e.manager_id, e.title, e.description, e.category,
		       e.event_date, e.hour, e.status, e.rejection_reason, e.created_at, e.updated_at,
		       p.venue_name,
		       (SELECT COUNT(*) FROM event_attendees a WHERE a.event_id = e.id) AS attendees
		FROM events e
		JOIN manager_profiles p ON p.id = e.manager_id
		WHERE e.status = 'approved' AND e.event_date >= $1
		ORDER BY e.event_date, e.hour
		LIMIT $2
	`

	var list []UpcomingEvent
	if err := r.db.SelectContext(ctx, &list, query, from.Format(availability.DateLayout), limit); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *repository) HasApproved(ctx context.Context, managerID string, date time.Time, hour int) (bool, error) {
	return db.Exists(ctx, r.db, `
		SELECT EXISTS(
			SELECT 1 FROM events
			WHERE manager_id = $1 AND event_date = $2 AND hour = $3 AND status = 'approved'
		)`, managerID, date.Format(availability.DateLayout), hour)
}

func (r *repository) Approve(ctx context.Context, id string) (*Event, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var e Event
	err = tx.GetContext(ctx, &e, `
		UPDATE events SET status = 'approved', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+eventColumns, id)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrInvalidTransition
		case db.IsUniqueViolation(err):
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("approve event: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO blocked_slots (manager_ref, hour, specific_date, is_recurring, scope_key, origin)
		VALUES ($1, $2, $3, FALSE, $4, $5)
		ON CONFLICT (manager_ref, hour, scope_key) DO NOTHING
	`, e.ManagerID, e.Hour, e.EventDate.Format(availability.DateLayout), availability.DateScope(e.EventDate), availability.OriginEvent)
	if err != nil {
		return nil, fmt.Errorf("block event slot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repository) Reject(ctx context.Context, id, reason string) (*Event, error) {
	var e Event
	err := r.db.GetContext(ctx, &e, `
		UPDATE events SET status = 'rejected', rejection_reason = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+eventColumns, id, reason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	return &e, nil
}

func (r *repository) Cancel(ctx context.Context, id string) (*Event, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var prev string
	if err := tx.GetContext(ctx, &prev, `SELECT status FROM events WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	if prev != StatusPending && prev != StatusApproved {
		return nil, ErrInvalidTransition
	}

	var e Event
	err = tx.GetContext(ctx, &e, `
		UPDATE events SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1
		RETURNING `+eventColumns, id)
	if err != nil {
		return nil, fmt.Errorf("cancel event: %w", err)
	}

	// Blocks the manager placed or claimed at the same hour stay.
	if prev == StatusApproved {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM blocked_slots WHERE manager_ref = $1 AND hour = $2 AND scope_key = $3 AND origin = $4`,
			e.ManagerID, e.Hour, availability.DateScope(e.EventDate), availability.OriginEvent,
		)
		if err != nil {
			return nil, fmt.Errorf("release event slot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &e, nil
}

// AddAttendee reports false when the user had already confirmed.
func (r *repository) AddAttendee(ctx context.Context, eventID, subject string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO event_attendees (event_id, user_subject)
		VALUES ($1, $2)
		ON CONFLICT (event_id, user_subject) DO NOTHING
	`, eventID, subject)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *repository) ListAttendees(ctx context.Context, eventID string) ([]Attendee, error) {
	var list []Attendee
	err := r.db.SelectContext(ctx, &list, `
		SELECT event_id, user_subject, confirmed_at
		FROM event_attendees
		WHERE event_id = $1
		ORDER BY confirmed_at
	`, eventID)
	if err != nil {
		return nil, err
	}
	return list, nil
}

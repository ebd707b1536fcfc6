package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"eventsbga/internal/availability"
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Stats(ctx context.Context) (*Stats, error) {
	var totals struct {
		Managers    int64 `db:"managers"`
		Attendances int64 `db:"attendances"`
		Blocks      int64 `db:"blocks"`
		Rules       int64 `db:"rules"`
	}
	err := r.db.GetContext(ctx, &totals, `
		SELECT
			(SELECT COUNT(*) FROM manager_profiles)   AS managers,
			(SELECT COUNT(*) FROM event_attendees)    AS attendances,
			(SELECT COUNT(*) FROM blocked_slots)      AS blocks,
			(SELECT COUNT(*) FROM availability_rules) AS rules
	`)
	if err != nil {
		return nil, fmt.Errorf("count totals: %w", err)
	}

	var counts []statusCount
	err = r.db.SelectContext(ctx, &counts, `SELECT status, COUNT(*) AS count FROM events GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	stats := &Stats{
		Managers:          totals.Managers,
		Attendances:       totals.Attendances,
		BlockedSlots:      totals.Blocks,
		AvailabilityRules: totals.Rules,
		EventsByStatus:    make(map[string]int64, len(counts)),
		GeneratedAt:       time.Now().UTC(),
	}
	for _, c := range counts {
		stats.EventsByStatus[c.Status] = c.Count
		stats.Events += c.Count
	}
	return stats, nil
}

const activityColumns = `
	COUNT(*) AS requested,
	COUNT(*) FILTER (WHERE e.status = 'approved')  AS approved,
	COUNT(*) FILTER (WHERE e.status = 'rejected')  AS rejected,
	COUNT(*) FILTER (WHERE e.status = 'cancelled') AS cancelled`

func (r *repository) ActivityByDay(ctx context.Context, from, to time.Time) ([]ActivityRow, error) {
	query := `
		SELECT to_char(e.event_date, 'YYYY-MM-DD') AS key, '' AS label,` + activityColumns + `
		FROM events e
		WHERE e.event_date BETWEEN $1 AND $2
		GROUP BY e.event_date
		ORDER BY e.event_date`

	var rows []ActivityRow
	err := r.db.SelectContext(ctx, &rows, query, from.Format(availability.DateLayout), to.Format(availability.DateLayout))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ActivityByVenue(ctx context.Context, from, to time.Time) ([]ActivityRow, error) {
	query := `
		SELECT p.id::text AS key, p.venue_name AS label,` + activityColumns + `
		FROM events e
		JOIN manager_profiles p ON p.id = e.manager_id
		WHERE e.event_date BETWEEN $1 AND $2
		GROUP BY p.id, p.venue_name
		ORDER BY requested DESC, p.venue_name`

	var rows []ActivityRow
	err := r.db.SelectContext(ctx, &rows, query, from.Format(availability.DateLayout), to.Format(availability.DateLayout))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

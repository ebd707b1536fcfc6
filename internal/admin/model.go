package admin

import (
	"errors"
	"time"
)

const (
	GroupByDay   = "day"
	GroupByVenue = "venue"
)

var (
	ErrInvalidRange   = errors.New("from must be before to")
	ErrInvalidGroupBy = errors.New("group_by must be 'day' or 'venue'")
)

type Stats struct {
	Managers          int64            `json:"managers"`
	Events            int64            `json:"events"`
	EventsByStatus    map[string]int64 `json:"eventsByStatus"`
	Attendances       int64            `json:"attendances"`
	BlockedSlots      int64            `json:"blockedSlots"`
	AvailabilityRules int64            `json:"availabilityRules"`
	GeneratedAt       time.Time        `json:"generatedAt"`
}

// ActivityRow is one bucket of event requests, keyed by day or by venue.
type ActivityRow struct {
	Key       string `db:"key" json:"key"`
	Label     string `db:"label" json:"label,omitempty"`
	Requested int64  `db:"requested" json:"requested"`
	Approved  int64  `db:"approved" json:"approved"`
	Rejected  int64  `db:"rejected" json:"rejected"`
	Cancelled int64  `db:"cancelled" json:"cancelled"`
}

type statusCount struct {
	Status string `db:"status"`
	Count  int64  `db:"count"`
}

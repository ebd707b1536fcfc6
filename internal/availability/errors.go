package availability

import "errors"

var (
	ErrManagerNotFound     = errors.New("manager not found")
	ErrRuleNotFound        = errors.New("availability rule not found")
	ErrBlockNotFound       = errors.New("blocked slot not found")
	ErrInvalidHour         = errors.New("hour must be between 0 and 23")
	ErrInvalidDay          = errors.New("day of week must be between 0 and 6")
	ErrInvalidDate         = errors.New("date must be formatted as YYYY-MM-DD")
	ErrMissingScope        = errors.New("either date or day is required")
	ErrOneOffWeekday       = errors.New("weekday blocks always recur, use date for a one-off block")
	ErrInvalidAvailability = errors.New("no valid day in availability")
	ErrMissingAvailability = errors.New("availability is required, send {} to clear")
	ErrAmbiguousDateEntry  = errors.New("date-specific availability needs exactly one hour list")
)

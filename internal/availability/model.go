package availability

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/lib/pq"
)

const (
	DateLayout = "2006-01-02"

	DefaultOpenHour  = 8
	DefaultCloseHour = 20

	SourceDate      = "date"
	SourceRecurring = "recurring"
	SourceDefault   = "default"

	// OriginEvent marks a block held by an approved event.
	OriginManager = "manager"
	OriginEvent   = "event"
)

// Rule is the set of open hours for a manager on a weekday, or on one
// calendar date when SpecificDate is set. For date rules DayOfWeek mirrors
// the date's weekday and is informational only.
type Rule struct {
	ID           int           `db:"id"`
	ManagerRef   string        `db:"manager_ref"`
	DayOfWeek    int           `db:"day_of_week"`
	SpecificDate *time.Time    `db:"specific_date"`
	Hours        pq.Int64Array `db:"hours"`
	CreatedAt    time.Time     `db:"created_at"`
}

func (r Rule) HourList() []int {
	out := make([]int, 0, len(r.Hours))
	for _, h := range r.Hours {
		out = append(out, int(h))
	}
	return out
}

// BlockedSlot removes one hour from otherwise open availability, either on a
// weekday or on one calendar date.
type BlockedSlot struct {
	ID           int        `db:"id"`
	ManagerRef   string     `db:"manager_ref"`
	Hour         int        `db:"hour"`
	DayOfWeek    *int       `db:"day_of_week"`
	SpecificDate *time.Time `db:"specific_date"`
	IsRecurring  bool       `db:"is_recurring"`
	ScopeKey     string     `db:"scope_key"`
	CreatedAt    time.Time  `db:"created_at"`
}

func (b BlockedSlot) View() BlockedSlotView {
	v := BlockedSlotView{
		ID:          b.ID,
		Hour:        b.Hour,
		Day:         b.DayOfWeek,
		IsRecurring: b.IsRecurring,
	}
	switch {
	case b.SpecificDate != nil:
		v.Date = b.SpecificDate.Format(DateLayout)
		v.DayLabel = b.SpecificDate.Weekday().String()
	case b.DayOfWeek != nil:
		v.DayLabel = time.Weekday(*b.DayOfWeek).String()
	}
	return v
}

type BlockedSlotView struct {
	ID          int    `json:"id"`
	Hour        int    `json:"hour"`
	Day         *int   `json:"day,omitempty"`
	Date        string `json:"date,omitempty"`
	DayLabel    string `json:"dayLabel"`
	IsRecurring bool   `json:"isRecurring"`
}

// Resolution is the effective open hours keyed by day of week.
type Resolution struct {
	Availability   map[int][]int `json:"availability"`
	IsSpecificDate bool          `json:"isSpecificDate"`
	Date           string        `json:"date,omitempty"`
	Source         string        `json:"source"`
}

func (r *Resolution) IsOpen(day, hour int) bool {
	for _, h := range r.Availability[day] {
		if h == hour {
			return true
		}
	}
	return false
}

type ReplaceRequest struct {
	Availability map[string]json.RawMessage `json:"availability"`
	Date         string                     `json:"date"`
}

type ReplaceResult struct {
	DaysWritten int               `json:"daysWritten"`
	Rejected    map[string]string `json:"rejected,omitempty"`
	Date        string            `json:"date,omitempty"`
}

type BlockRequest struct {
	Hour        *int   `json:"hour" binding:"required"`
	Date        string `json:"date"`
	Day         *int   `json:"day"`
	IsRecurring *bool  `json:"isRecurring"`
}

type UnblockRequest struct {
	Hour *int   `json:"hour" binding:"required"`
	Date string `json:"date"`
	Day  *int   `json:"day"`
}

type BlockResult struct {
	Slot           BlockedSlotView `json:"slot"`
	AlreadyBlocked bool            `json:"alreadyBlocked"`
}

type ResetResult struct {
	DeletedBlocks int64         `json:"deletedBlocks"`
	DeletedRules  int64         `json:"deletedRules"`
	Defaults      map[int][]int `json:"defaults"`
}

// DefaultHours returns the baseline open hours, 8 through 20 inclusive.
func DefaultHours() []int {
	hours := make([]int, 0, DefaultCloseHour-DefaultOpenHour+1)
	for h := DefaultOpenHour; h <= DefaultCloseHour; h++ {
		hours = append(hours, h)
	}
	return hours
}

// DefaultWeek returns the baseline for all seven days.
func DefaultWeek() map[int][]int {
	week := make(map[int][]int, 7)
	for d := 0; d <= 6; d++ {
		week[d] = DefaultHours()
	}
	return week
}

func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

func DateScope(d time.Time) string {
	return "d:" + d.Format(DateLayout)
}

func DayScope(day int) string {
	return "w:" + strconv.Itoa(day)
}

func ValidHour(h int) bool {
	return h >= 0 && h <= 23
}

func ValidDay(d int) bool {
	return d >= 0 && d <= 6
}

func toInt64Array(hours []int) pq.Int64Array {
	out := make(pq.Int64Array, len(hours))
	for i, h := range hours {
		out[i] = int64(h)
	}
	return out
}

// normalizeHours sorts and de-duplicates.
func normalizeHours(hours []int) []int {
	if len(hours) == 0 {
		return []int{}
	}
	sorted := append([]int(nil), hours...)
	sort.Ints(sorted)
	out := sorted[:1]
	for _, h := range sorted[1:] {
		if h != out[len(out)-1] {
			out = append(out, h)
		}
	}
	return out
}

func rulesToWeek(rules []Rule) map[int][]int {
	week := make(map[int][]int, len(rules))
	for _, r := range rules {
		if _, seen := week[r.DayOfWeek]; seen {
			continue
		}
		week[r.DayOfWeek] = normalizeHours(r.HourList())
	}
	return week
}

package availability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"time"

	"eventsbga/internal/logger"
	"eventsbga/internal/metrics"
)

// ManagerResolver maps a manager reference in either addressing scheme to
// every reference its rows may be stored under, canonical form first.
type ManagerResolver interface {
	// ManagerRefs fails with an error wrapping ErrManagerNotFound when no
	// profile matches.
	ManagerRefs(ctx context.Context, ref string) ([]string, error)
	// WriteRefs never fails on an unknown manager; it falls back to the
	// literal reference.
	WriteRefs(ctx context.Context, ref string) ([]string, error)
}

type Service interface {
	ResolveAvailability(ctx context.Context, managerRef string, date *time.Time) (*Resolution, error)
	ReplaceAvailability(ctx context.Context, managerRef string, req ReplaceRequest) (*ReplaceResult, error)
	BlockSlot(ctx context.Context, managerRef string, req BlockRequest) (*BlockResult, error)
	UnblockSlot(ctx context.Context, managerRef string, req UnblockRequest) (int64, error)
	UnblockByID(ctx context.Context, managerRef string, id int) error
	GetBlockedSlots(ctx context.Context, managerRef string) ([]BlockedSlotView, error)
	ResetAll(ctx context.Context, managerRef string) (*ResetResult, error)
	IsOpen(ctx context.Context, managerRef string, date time.Time, hour int) (bool, error)
}

type service struct {
	repo     Repository
	managers ManagerResolver
	cache    *Cache
}

func NewService(repo Repository, managers ManagerResolver, cache *Cache) Service {
	return &service{
		repo:     repo,
		managers: managers,
		cache:    cache,
	}
}

func (s *service) ResolveAvailability(ctx context.Context, managerRef string, date *time.Time) (*Resolution, error) {
	refs, err := s.managers.ManagerRefs(ctx, managerRef)
	if err != nil {
		return nil, err
	}
	canonical := refs[0]

	gen, cached := s.cache.Generation(ctx, canonical)
	if cached {
		if res, ok := s.cache.Get(ctx, canonical, gen, date); ok {
			return res, nil
		}
	}

	res, err := s.effective(ctx, refs, date)
	if err != nil {
		return nil, err
	}

	if cached {
		s.cache.Set(ctx, canonical, gen, date, res)
	}
	return res, nil
}

// effective resolves the rules for refs from storage and subtracts blocks.
func (s *service) effective(ctx context.Context, refs []string, date *time.Time) (*Resolution, error) {
	res, err := s.resolve(ctx, refs[0], refs, date)
	if err != nil {
		return nil, err
	}

	blocks, err := s.repo.ListBlocks(ctx, refs)
	if err != nil {
		return nil, err
	}
	subtractBlocks(res, blocks, date)

	metrics.RecordResolution(res.Source)
	return res, nil
}

func (s *service) resolve(ctx context.Context, canonical string, refs []string, date *time.Time) (*Resolution, error) {
	if date != nil {
		rule, err := s.repo.GetDateRule(ctx, refs, *date)
		switch {
		case err == nil:
			return &Resolution{
				Availability:   map[int][]int{int(date.Weekday()): normalizeHours(rule.HourList())},
				IsSpecificDate: true,
				Date:           date.Format(DateLayout),
				Source:         SourceDate,
			}, nil
		case !errors.Is(err, ErrRuleNotFound):
			return nil, err
		}
	}

	res := &Resolution{Source: SourceRecurring}
	if date != nil {
		res.Date = date.Format(DateLayout)
	}

	rules, err := s.repo.ListRecurringRules(ctx, refs)
	if err != nil {
		return nil, err
	}

	if len(rules) == 0 {
		rules, err = s.repo.ProvisionDefaults(ctx, canonical, DefaultHours())
		if err != nil {
			return nil, err
		}
		res.Source = SourceDefault
		metrics.RecordDefaultsProvisioned()
		logger.Info("default availability provisioned", "manager", canonical)
	}

	res.Availability = rulesToWeek(rules)
	for d := 0; d <= 6; d++ {
		if _, ok := res.Availability[d]; !ok {
			res.Availability[d] = []int{}
		}
	}

	return res, nil
}

// subtractBlocks removes blocked hours from res. Date-specific answers only
// lose the blocks placed on that date; recurring answers lose every weekday
// block plus the date blocks of the target date.
func subtractBlocks(res *Resolution, blocks []BlockedSlot, date *time.Time) {
	blocked := make(map[int]map[int]bool)
	mark := func(day, hour int) {
		if blocked[day] == nil {
			blocked[day] = make(map[int]bool)
		}
		blocked[day][hour] = true
	}

	for _, b := range blocks {
		switch {
		case b.SpecificDate != nil:
			if date != nil && b.SpecificDate.Format(DateLayout) == date.Format(DateLayout) {
				mark(int(date.Weekday()), b.Hour)
			}
		case b.DayOfWeek != nil && !res.IsSpecificDate:
			mark(*b.DayOfWeek, b.Hour)
		}
	}

	for day, hours := range res.Availability {
		if len(blocked[day]) == 0 {
			continue
		}
		open := make([]int, 0, len(hours))
		for _, h := range hours {
			if !blocked[day][h] {
				open = append(open, h)
			}
		}
		res.Availability[day] = open
	}
}

func (s *service) ReplaceAvailability(ctx context.Context, managerRef string, req ReplaceRequest) (*ReplaceResult, error) {
	if req.Availability == nil {
		return nil, ErrMissingAvailability
	}

	refs, err := s.managers.WriteRefs(ctx, managerRef)
	if err != nil {
		return nil, err
	}
	canonical := refs[0]

	if req.Date != "" {
		return s.replaceDate(ctx, canonical, refs, req)
	}

	week, rejected := parseWeek(req.Availability)
	result := &ReplaceResult{DaysWritten: len(week), Rejected: rejected}
	if len(req.Availability) > 0 && len(week) == 0 {
		return result, ErrInvalidAvailability
	}

	full := make(map[int][]int, 7)
	for d := 0; d <= 6; d++ {
		if hours, ok := week[d]; ok {
			full[d] = hours
		} else {
			full[d] = []int{}
		}
	}

	if err := s.repo.ReplaceRecurring(ctx, canonical, refs, full); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, refs...)

	logger.Info("recurring availability replaced",
		"manager", canonical,
		"days_written", result.DaysWritten,
		"days_rejected", len(rejected),
	)
	return result, nil
}

func (s *service) replaceDate(ctx context.Context, canonical string, refs []string, req ReplaceRequest) (*ReplaceResult, error) {
	date, err := ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	result := &ReplaceResult{Date: date.Format(DateLayout)}

	if len(req.Availability) == 0 {
		if _, err := s.repo.ClearDate(ctx, refs, date); err != nil {
			return nil, err
		}
		s.cache.Invalidate(ctx, refs...)
		logger.Info("date availability cleared", "manager", canonical, "date", result.Date)
		return result, nil
	}

	raw, ok := req.Availability[strconv.Itoa(int(date.Weekday()))]
	if !ok {
		if len(req.Availability) != 1 {
			return nil, ErrAmbiguousDateEntry
		}
		for _, v := range req.Availability {
			raw = v
		}
	}

	hours, reason := parseHours(raw)
	if reason != "" {
		result.Rejected = map[string]string{result.Date: reason}
		return result, ErrInvalidAvailability
	}

	if err := s.repo.ReplaceDate(ctx, canonical, refs, date, hours); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, refs...)

	result.DaysWritten = 1
	logger.Info("date availability replaced", "manager", canonical, "date", result.Date, "hours", len(hours))
	return result, nil
}

// parseWeek validates each day independently. Invalid days are reported in
// the second return value and left out of the first.
func parseWeek(in map[string]json.RawMessage) (map[int][]int, map[string]string) {
	week := make(map[int][]int, len(in))
	var rejected map[string]string
	reject := func(key, reason string) {
		if rejected == nil {
			rejected = make(map[string]string)
		}
		rejected[key] = reason
	}

	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		day, err := strconv.Atoi(key)
		if err != nil || !ValidDay(day) {
			reject(key, ErrInvalidDay.Error())
			continue
		}
		if _, dup := week[day]; dup {
			reject(key, "duplicate day of week")
			continue
		}
		hours, reason := parseHours(in[key])
		if reason != "" {
			reject(key, reason)
			continue
		}
		week[day] = hours
	}

	return week, rejected
}

func parseHours(raw json.RawMessage) ([]int, string) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, "hours must be an array of integers"
	}

	var hours []int
	if err := json.Unmarshal(trimmed, &hours); err != nil {
		return nil, "hours must be an array of integers"
	}
	for _, h := range hours {
		if !ValidHour(h) {
			return nil, ErrInvalidHour.Error()
		}
	}

	return normalizeHours(hours), ""
}

func (s *service) BlockSlot(ctx context.Context, managerRef string, req BlockRequest) (*BlockResult, error) {
	if req.Hour == nil || !ValidHour(*req.Hour) {
		return nil, ErrInvalidHour
	}

	refs, err := s.managers.WriteRefs(ctx, managerRef)
	if err != nil {
		return nil, err
	}

	slot := &BlockedSlot{ManagerRef: refs[0], Hour: *req.Hour}
	switch {
	case req.Date != "":
		date, err := ParseDate(req.Date)
		if err != nil {
			return nil, err
		}
		slot.SpecificDate = &date
		slot.IsRecurring = false
		slot.ScopeKey = DateScope(date)
	case req.Day != nil:
		if !ValidDay(*req.Day) {
			return nil, ErrInvalidDay
		}
		if req.IsRecurring != nil && !*req.IsRecurring {
			return nil, ErrOneOffWeekday
		}
		day := *req.Day
		slot.DayOfWeek = &day
		slot.IsRecurring = true
		slot.ScopeKey = DayScope(day)
	default:
		return nil, ErrMissingScope
	}

	existing, err := s.repo.FindBlock(ctx, refs, slot.Hour, slot.ScopeKey)
	if err == nil {
		return s.alreadyBlocked(ctx, existing)
	}
	if !errors.Is(err, ErrBlockNotFound) {
		return nil, err
	}

	created, err := s.repo.InsertBlock(ctx, slot)
	if errors.Is(err, errBlockConflict) {
		// lost a race with a concurrent block of the same slot
		existing, err = s.repo.FindBlock(ctx, refs, slot.Hour, slot.ScopeKey)
		if err != nil {
			return nil, err
		}
		return s.alreadyBlocked(ctx, existing)
	}
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, refs...)
	metrics.RecordBlock(false)
	logger.Info("slot blocked", "manager", slot.ManagerRef, "hour", slot.Hour, "scope", slot.ScopeKey)

	return &BlockResult{Slot: created.View()}, nil
}

// alreadyBlocked answers a repeated block. The manager takes ownership of the
// row in case an approved event placed it.
func (s *service) alreadyBlocked(ctx context.Context, existing *BlockedSlot) (*BlockResult, error) {
	if err := s.repo.ClaimBlock(ctx, existing.ID); err != nil {
		return nil, err
	}
	metrics.RecordBlock(true)
	return &BlockResult{Slot: existing.View(), AlreadyBlocked: true}, nil
}

func (s *service) UnblockSlot(ctx context.Context, managerRef string, req UnblockRequest) (int64, error) {
	if req.Hour == nil || !ValidHour(*req.Hour) {
		return 0, ErrInvalidHour
	}

	var scope string
	switch {
	case req.Date != "":
		date, err := ParseDate(req.Date)
		if err != nil {
			return 0, err
		}
		scope = DateScope(date)
	case req.Day != nil:
		if !ValidDay(*req.Day) {
			return 0, ErrInvalidDay
		}
		scope = DayScope(*req.Day)
	}

	refs, err := s.managers.WriteRefs(ctx, managerRef)
	if err != nil {
		return 0, err
	}

	removed, err := s.repo.DeleteBlocks(ctx, refs, *req.Hour, scope)
	if err != nil {
		return 0, err
	}
	if removed == 0 {
		return 0, ErrBlockNotFound
	}

	s.cache.Invalidate(ctx, refs...)
	logger.Info("slot unblocked", "manager", refs[0], "hour", *req.Hour, "scope", scope, "removed", removed)

	return removed, nil
}

func (s *service) UnblockByID(ctx context.Context, managerRef string, id int) error {
	refs, err := s.managers.WriteRefs(ctx, managerRef)
	if err != nil {
		return err
	}

	removed, err := s.repo.DeleteBlockByID(ctx, refs, id)
	if err != nil {
		return err
	}
	if removed == 0 {
		return ErrBlockNotFound
	}

	s.cache.Invalidate(ctx, refs...)
	return nil
}

func (s *service) GetBlockedSlots(ctx context.Context, managerRef string) ([]BlockedSlotView, error) {
	refs, err := s.managers.WriteRefs(ctx, managerRef)
	if err != nil {
		return nil, err
	}

	blocks, err := s.repo.ListBlocks(ctx, refs)
	if err != nil {
		return nil, err
	}

	type slotKey struct {
		scope string
		hour  int
	}
	seen := make(map[slotKey]bool, len(blocks))
	unique := make([]BlockedSlot, 0, len(blocks))
	for _, b := range blocks {
		k := slotKey{scope: b.ScopeKey, hour: b.Hour}
		if seen[k] {
			continue
		}
		seen[k] = true
		unique = append(unique, b)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		if unique[i].ScopeKey != unique[j].ScopeKey {
			return unique[i].ScopeKey < unique[j].ScopeKey
		}
		return unique[i].Hour < unique[j].Hour
	})

	views := make([]BlockedSlotView, 0, len(unique))
	for _, b := range unique {
		views = append(views, b.View())
	}
	return views, nil
}

func (s *service) ResetAll(ctx context.Context, managerRef string) (*ResetResult, error) {
	refs, err := s.managers.WriteRefs(ctx, managerRef)
	if err != nil {
		return nil, err
	}

	result, err := s.repo.ResetAll(ctx, refs[0], refs, DefaultHours())
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, refs...)
	metrics.RecordDefaultsProvisioned()
	logger.Info("availability reset",
		"manager", refs[0],
		"deleted_blocks", result.DeletedBlocks,
		"deleted_rules", result.DeletedRules,
	)

	return result, nil
}

// IsOpen reports whether hour is open on date once blocks are applied. It
// always reads storage since callers act on the answer.
func (s *service) IsOpen(ctx context.Context, managerRef string, date time.Time, hour int) (bool, error) {
	refs, err := s.managers.ManagerRefs(ctx, managerRef)
	if err != nil {
		return false, err
	}

	res, err := s.effective(ctx, refs, &date)
	if err != nil {
		return false, err
	}
	return res.IsOpen(int(date.Weekday()), hour), nil
}

package availability

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// errBlockConflict is returned by InsertBlock when the unique constraint
// swallowed the insert.
var errBlockConflict = errors.New("blocked slot already exists")

const (
	ruleColumns  = `id, manager_ref, day_of_week, specific_date, hours, created_at`
	blockColumns = `id, manager_ref, hour, day_of_week, specific_date, is_recurring, scope_key, created_at`
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetDateRule(ctx context.Context, refs []string, date time.Time) (*Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM availability_rules
		WHERE manager_ref = ANY($1) AND specific_date = $2
		ORDER BY array_position($1::text[], manager_ref)
		LIMIT 1
	`

	var rule Rule
	err := r.db.GetContext(ctx, &rule, query, pq.Array(refs), date.Format(DateLayout))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}

	return &rule, nil
}

func (r *repository) ListRecurringRules(ctx context.Context, refs []string) ([]Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM availability_rules
		WHERE manager_ref = ANY($1) AND specific_date IS NULL
		ORDER BY array_position($1::text[], manager_ref), day_of_week
	`

	var rules []Rule
	if err := r.db.SelectContext(ctx, &rules, query, pq.Array(refs)); err != nil {
		return nil, err
	}

	return rules, nil
}

// ProvisionDefaults writes the baseline for every weekday that has no
// recurring rule yet. Concurrent callers converge on the same seven rows.
func (r *repository) ProvisionDefaults(ctx context.Context, managerRef string, hours []int) ([]Rule, error) {
	insert := `
		INSERT INTO availability_rules (manager_ref, day_of_week, hours)
		SELECT $1, d, $2::int[]
		FROM generate_series(0, 6) AS d
		ON CONFLICT (manager_ref, day_of_week) WHERE specific_date IS NULL DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, insert, managerRef, toInt64Array(hours)); err != nil {
		return nil, fmt.Errorf("provision defaults: %w", err)
	}

	return r.ListRecurringRules(ctx, []string{managerRef})
}

func (r *repository) ReplaceRecurring(ctx context.Context, managerRef string, refs []string, week map[int][]int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM availability_rules WHERE manager_ref = ANY($1) AND specific_date IS NULL`,
		pq.Array(refs),
	)
	if err != nil {
		return fmt.Errorf("clear recurring rules: %w", err)
	}

	days := make([]int, 0, len(week))
	for d := range week {
		days = append(days, d)
	}
	sort.Ints(days)

	for _, d := range days {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO availability_rules (manager_ref, day_of_week, hours) VALUES ($1, $2, $3)`,
			managerRef, d, toInt64Array(week[d]),
		)
		if err != nil {
			return fmt.Errorf("insert rule for day %d: %w", d, err)
		}
	}

	return tx.Commit()
}

func (r *repository) ReplaceDate(ctx context.Context, managerRef string, refs []string, date time.Time, hours []int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	day := date.Format(DateLayout)

	_, err = tx.ExecContext(ctx,
		`DELETE FROM availability_rules WHERE manager_ref = ANY($1) AND specific_date = $2`,
		pq.Array(refs), day,
	)
	if err != nil {
		return fmt.Errorf("clear date rule: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO availability_rules (manager_ref, day_of_week, specific_date, hours) VALUES ($1, $2, $3, $4)`,
		managerRef, int(date.Weekday()), day, toInt64Array(hours),
	)
	if err != nil {
		return fmt.Errorf("insert date rule: %w", err)
	}

	return tx.Commit()
}

func (r *repository) ClearDate(ctx context.Context, refs []string, date time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM availability_rules WHERE manager_ref = ANY($1) AND specific_date = $2`,
		pq.Array(refs), date.Format(DateLayout),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *repository) FindBlock(ctx context.Context, refs []string, hour int, scopeKey string) (*BlockedSlot, error) {
	query := `
		SELECT ` + blockColumns + `
		FROM blocked_slots
		WHERE manager_ref = ANY($1) AND hour = $2 AND scope_key = $3
		ORDER BY array_position($1::text[], manager_ref)
		LIMIT 1
	`

	var slot BlockedSlot
	err := r.db.GetContext(ctx, &slot, query, pq.Array(refs), hour, scopeKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}

	return &slot, nil
}

func (r *repository) InsertBlock(ctx context.Context, slot *BlockedSlot) (*BlockedSlot, error) {
	query := `
		INSERT INTO blocked_slots (manager_ref, hour, day_of_week, specific_date, is_recurring, scope_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (manager_ref, hour, scope_key) DO NOTHING
		RETURNING ` + blockColumns

	var date interface{}
	if slot.SpecificDate != nil {
		date = slot.SpecificDate.Format(DateLayout)
	}

	var created BlockedSlot
	err := r.db.GetContext(ctx, &created, query,
		slot.ManagerRef, slot.Hour, slot.DayOfWeek, date, slot.IsRecurring, slot.ScopeKey,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errBlockConflict
		}
		return nil, err
	}

	return &created, nil
}

// ClaimBlock hands a block held by an approved event over to the manager, so
// cancelling the event no longer releases it.
func (r *repository) ClaimBlock(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE blocked_slots SET origin = $2 WHERE id = $1 AND origin = $3`,
		id, OriginManager, OriginEvent,
	)
	if err != nil {
		return fmt.Errorf("claim blocked slot: %w", err)
	}
	return nil
}

// DeleteBlocks removes blocks at hour. An empty scopeKey matches every
// weekday-scoped block at that hour.
func (r *repository) DeleteBlocks(ctx context.Context, refs []string, hour int, scopeKey string) (int64, error) {
	query := `DELETE FROM blocked_slots WHERE manager_ref = ANY($1) AND hour = $2`
	args := []interface{}{pq.Array(refs), hour}

	if scopeKey == "" {
		query += ` AND day_of_week IS NOT NULL`
	} else {
		query += ` AND scope_key = $3`
		args = append(args, scopeKey)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *repository) DeleteBlockByID(ctx context.Context, refs []string, id int) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM blocked_slots WHERE id = $1 AND manager_ref = ANY($2)`,
		id, pq.Array(refs),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *repository) ListBlocks(ctx context.Context, refs []string) ([]BlockedSlot, error) {
	query := `
		SELECT ` + blockColumns + `
		FROM blocked_slots
		WHERE manager_ref = ANY($1)
		ORDER BY array_position($1::text[], manager_ref), scope_key, hour
	`

	var slots []BlockedSlot
	if err := r.db.SelectContext(ctx, &slots, query, pq.Array(refs)); err != nil {
		return nil, err
	}

	return slots, nil
}

func (r *repository) ResetAll(ctx context.Context, managerRef string, refs []string, hours []int) (*ResetResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	blocks, err := tx.ExecContext(ctx, `DELETE FROM blocked_slots WHERE manager_ref = ANY($1)`, pq.Array(refs))
	if err != nil {
		return nil, fmt.Errorf("delete blocked slots: %w", err)
	}
	deletedBlocks, err := blocks.RowsAffected()
	if err != nil {
		return nil, err
	}

	rules, err := tx.ExecContext(ctx, `DELETE FROM availability_rules WHERE manager_ref = ANY($1)`, pq.Array(refs))
	if err != nil {
		return nil, fmt.Errorf("delete availability rules: %w", err)
	}
	deletedRules, err := rules.RowsAffected()
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO availability_rules (manager_ref, day_of_week, hours)
		SELECT $1, d, $2::int[]
		FROM generate_series(0, 6) AS d
	`, managerRef, toInt64Array(hours))
	if err != nil {
		return nil, fmt.Errorf("provision defaults: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &ResetResult{
		DeletedBlocks: deletedBlocks,
		DeletedRules:  deletedRules,
		Defaults:      DefaultWeek(),
	}, nil
}

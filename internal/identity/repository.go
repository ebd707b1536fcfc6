package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"eventsbga/internal/db"
)

const profileColumns = `id, subject_id, email, venue_name, description, address, capacity, image_url, created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, p *Profile, defaultHours []int) (*Profile, *ReconcileResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO manager_profiles (id, subject_id, email, venue_name, description, address, capacity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + profileColumns

	var created Profile
	err = tx.GetContext(ctx, &created, query,
		p.ID, p.SubjectID, p.Email, p.VenueName, p.Description, p.Address, p.Capacity,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, nil, ErrProfileExists
		}
		return nil, nil, fmt.Errorf("insert profile: %w", err)
	}

	moved, err := reconcileTx(ctx, tx, created.ID, created.SubjectID)
	if err != nil {
		return nil, nil, err
	}

	hours := make(pq.Int64Array, len(defaultHours))
	for i, h := range defaultHours {
		hours[i] = int64(h)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO availability_rules (manager_ref, day_of_week, hours)
		SELECT $1, d, $2::int[]
		FROM generate_series(0, 6) AS d
		ON CONFLICT (manager_ref, day_of_week) WHERE specific_date IS NULL DO NOTHING
	`, created.ID, hours)
	if err != nil {
		return nil, nil, fmt.Errorf("provision defaults: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}

	return &created, moved, nil
}

func (r *repository) getOne(ctx context.Context, where string, arg interface{}) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM manager_profiles WHERE ` + where

	var p Profile
	if err := r.db.GetContext(ctx, &p, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) GetBySubject(ctx context.Context, subject string) (*Profile, error) {
	return r.getOne(ctx, `subject_id = $1`, subject)
}

func (r *repository) GetByID(ctx context.Context, id string) (*Profile, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *repository) Update(ctx context.Context, p *Profile) (*Profile, error) {
	query := `
		UPDATE manager_profiles
		SET email = $2, venue_name = $3, description = $4, address = $5, capacity = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + profileColumns

	var updated Profile
	err := r.db.GetContext(ctx, &updated, query,
		p.ID, p.Email, p.VenueName, p.Description, p.Address, p.Capacity,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &updated, nil
}

func (r *repository) SetImageURL(ctx context.Context, id, url string) (*Profile, error) {
	query := `
		UPDATE manager_profiles SET image_url = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + profileColumns

	var updated Profile
	if err := r.db.GetContext(ctx, &updated, query, id, url); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &updated, nil
}

// Delete removes the profile together with every rule and block stored under
// either of its references. Events cascade through the foreign key.
func (r *repository) Delete(ctx context.Context, p *Profile) (*DeleteResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	refs := pq.Array(p.Refs())
	result := &DeleteResult{}

	res, err := tx.ExecContext(ctx, `DELETE FROM blocked_slots WHERE manager_ref = ANY($1)`, refs)
	if err != nil {
		return nil, fmt.Errorf("delete blocked slots: %w", err)
	}
	if result.DeletedBlocks, err = res.RowsAffected(); err != nil {
		return nil, err
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM availability_rules WHERE manager_ref = ANY($1)`, refs)
	if err != nil {
		return nil, fmt.Errorf("delete availability rules: %w", err)
	}
	if result.DeletedRules, err = res.RowsAffected(); err != nil {
		return nil, err
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM manager_profiles WHERE id = $1`, p.ID)
	if err != nil {
		return nil, fmt.Errorf("delete profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrProfileNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *repository) Reconcile(ctx context.Context, p *Profile) (*ReconcileResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := reconcileTx(ctx, tx, p.ID, p.SubjectID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

// reconcileTx rewrites rows stored under subject to id. Legacy rows that
// would collide with an existing canonical row are dropped first; the
// canonical row wins.
func reconcileTx(ctx context.Context, tx *sqlx.Tx, id, subject string) (*ReconcileResult, error) {
	result := &ReconcileResult{}

	steps := []struct {
		query string
		dest  *int64
		what  string
	}{
		{
			query: `
				DELETE FROM availability_rules l
				USING availability_rules c
				WHERE l.manager_ref = $2 AND c.manager_ref = $1
				  AND ((l.specific_date IS NULL AND c.specific_date IS NULL AND l.day_of_week = c.day_of_week)
				    OR (l.specific_date IS NOT NULL AND l.specific_date = c.specific_date))`,
			dest: &result.RulesDropped,
			what: "drop colliding rules",
		},
		{
			query: `UPDATE availability_rules SET manager_ref = $1 WHERE manager_ref = $2`,
			dest:  &result.RulesMoved,
			what:  "move rules",
		},
		{
			query: `
				DELETE FROM blocked_slots l
				USING blocked_slots c
				WHERE l.manager_ref = $2 AND c.manager_ref = $1
				  AND l.hour = c.hour AND l.scope_key = c.scope_key`,
			dest: &result.BlocksDropped,
			what: "drop colliding blocks",
		},
		{
			query: `UPDATE blocked_slots SET manager_ref = $1 WHERE manager_ref = $2`,
			dest:  &result.BlocksMoved,
			what:  "move blocks",
		},
	}

	for _, step := range steps {
		res, err := tx.ExecContext(ctx, step.query, id, subject)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.what, err)
		}
		if *step.dest, err = res.RowsAffected(); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (r *repository) List(ctx context.Context) ([]Profile, error) {
	var profiles []Profile
	query := `SELECT ` + profileColumns + ` FROM manager_profiles ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &profiles, query); err != nil {
		return nil, err
	}
	return profiles, nil
}

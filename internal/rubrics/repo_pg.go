package rubrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a rubric and its items in one transaction.
func (r *PGRepo) Create(ctx context.Context, rubric Rubric) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insertRubric = `
INSERT INTO rubrics (id, user_id, name, description, is_template, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)`
	if _, err := tx.ExecContext(ctx, insertRubric,
		rubric.ID, rubric.UserID, rubric.Name, rubric.Description, rubric.IsTemplate, rubric.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert rubric: %w", err)
	}

	if err := insertItems(ctx, tx, rubric.ID, rubric.Items); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByID returns a rubric with its items ordered by position.
func (r *PGRepo) GetByID(ctx context.Context, rubricID string) (Rubric, error) {
	const query = `
SELECT id, user_id, name, description, is_template, created_at, updated_at
FROM rubrics
WHERE id = $1 AND deleted_at IS NULL
LIMIT 1`
	var rubric Rubric
	err := r.DB.QueryRowContext(ctx, query, rubricID).Scan(
		&rubric.ID, &rubric.UserID, &rubric.Name, &rubric.Description,
		&rubric.IsTemplate, &rubric.CreatedAt, &rubric.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Rubric{}, ErrNotFound
		}
		return Rubric{}, err
	}

	items, err := r.listItems(ctx, rubricID)
	if err != nil {
		return Rubric{}, err
	}
	rubric.Items = items
	return rubric, nil
}

// ListByUser returns the user's rubrics plus shared templates, newest first,
// without item bodies.
func (r *PGRepo) ListByUser(ctx context.Context, userID string) ([]Rubric, error) {
	const query = `
SELECT id, user_id, name, description, is_template, created_at, updated_at
FROM rubrics
WHERE (user_id = $1 OR is_template) AND deleted_at IS NULL
ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rubric
	for rows.Next() {
		var rubric Rubric
		if err := rows.Scan(
			&rubric.ID, &rubric.UserID, &rubric.Name, &rubric.Description,
			&rubric.IsTemplate, &rubric.CreatedAt, &rubric.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rubric)
	}
	return out, rows.Err()
}

// Update replaces a rubric's fields and items.
func (r *PGRepo) Update(ctx context.Context, rubric Rubric) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const updateRubric = `
UPDATE rubrics
SET name = $1, description = $2, updated_at = now()
WHERE id = $3 AND deleted_at IS NULL`
	res, err := tx.ExecContext(ctx, updateRubric, rubric.Name, rubric.Description, rubric.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM rubric_items WHERE rubric_id = $1`, rubric.ID); err != nil {
		return fmt.Errorf("clear rubric items: %w", err)
	}
	if err := insertItems(ctx, tx, rubric.ID, rubric.Items); err != nil {
		return err
	}
	return tx.Commit()
}

// SoftDelete marks a rubric deleted; historical analyses keep their snapshots.
func (r *PGRepo) SoftDelete(ctx context.Context, userID, rubricID string) error {
	const query = `
UPDATE rubrics
SET deleted_at = now(), updated_at = now()
WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`
	res, err := r.DB.ExecContext(ctx, query, rubricID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) listItems(ctx context.Context, rubricID string) ([]Item, error) {
	const query = `
SELECT id, rubric_id, position, name, description, evaluation_kind, config, created_at, updated_at
FROM rubric_items
WHERE rubric_id = $1
ORDER BY position ASC`
	rows, err := r.DB.QueryContext(ctx, query, rubricID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		var configRaw []byte
		if err := rows.Scan(
			&item.ID, &item.RubricID, &item.Position, &item.Name, &item.Description,
			&item.EvaluationKind, &configRaw, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if len(configRaw) > 0 {
			if err := json.Unmarshal(configRaw, &item.Config); err != nil {
				return nil, fmt.Errorf("decode item config %s: %w", item.ID, err)
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func insertItems(ctx context.Context, tx *sql.Tx, rubricID string, items []Item) error {
	const insertItem = `
INSERT INTO rubric_items (id, rubric_id, position, name, description, evaluation_kind, config, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())`
	for _, item := range items {
		configPayload, err := json.Marshal(item.Config)
		if err != nil {
			return fmt.Errorf("encode item config: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insertItem,
			item.ID, rubricID, item.Position, item.Name, item.Description,
			item.EvaluationKind, configPayload,
		); err != nil {
			return fmt.Errorf("insert rubric item: %w", err)
		}
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)

package repositories

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new repository reference.
func (r *PGRepo) Create(ctx context.Context, repo Repository) error {
	const query = `
INSERT INTO repositories (id, user_id, owner, name, default_branch, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)`
	_, err := r.DB.ExecContext(ctx, query,
		repo.ID, repo.UserID, repo.Owner, repo.Name, repo.DefaultBranch, repo.CreatedAt,
	)
	return err
}

// GetByID returns a repository by ID.
func (r *PGRepo) GetByID(ctx context.Context, repositoryID string) (Repository, error) {
	const query = `
SELECT id, user_id, owner, name, default_branch, created_at, updated_at
FROM repositories
WHERE id = $1 AND deleted_at IS NULL
LIMIT 1`
	var repo Repository
	err := r.DB.QueryRowContext(ctx, query, repositoryID).Scan(
		&repo.ID, &repo.UserID, &repo.Owner, &repo.Name, &repo.DefaultBranch,
		&repo.CreatedAt, &repo.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Repository{}, ErrNotFound
		}
		return Repository{}, err
	}
	return repo, nil
}

// ListByUser returns the user's repositories, newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string) ([]Repository, error) {
	const query = `
SELECT id, user_id, owner, name, default_branch, created_at, updated_at
FROM repositories
WHERE user_id = $1 AND deleted_at IS NULL
ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Repository
	for rows.Next() {
		var repo Repository
		if err := rows.Scan(
			&repo.ID, &repo.UserID, &repo.Owner, &repo.Name, &repo.DefaultBranch,
			&repo.CreatedAt, &repo.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, repo)
	}
	return out, rows.Err()
}

// SoftDelete marks a repository deleted.
func (r *PGRepo) SoftDelete(ctx context.Context, userID, repositoryID string) error {
	const query = `
UPDATE repositories
SET deleted_at = now(), updated_at = now()
WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`
	res, err := r.DB.ExecContext(ctx, query, repositoryID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)

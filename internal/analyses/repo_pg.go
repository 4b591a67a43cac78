package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HugoCL/mlh-code-check-sub000/internal/rubrics"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const analysisColumns = `id, user_id, repository_id, rubric_id, status, total_items, completed_items, failed_items,
       error_message, snapshot_key, created_at, started_at, completed_at, updated_at`

// Create inserts the analysis and its placeholder item rows in one
// transaction so a run can never exist without its item rows.
func (r *PGRepo) Create(ctx context.Context, analysis Analysis, items []ItemResult) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insertAnalysis = `
INSERT INTO analyses (id, user_id, repository_id, rubric_id, status, total_items, completed_items, failed_items, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 0, 0, $7, $7)`
	if _, err := tx.ExecContext(ctx, insertAnalysis,
		analysis.ID,
		analysis.UserID,
		analysis.RepositoryID,
		analysis.RubricID,
		analysis.Status,
		analysis.TotalItems,
		analysis.CreatedAt,
	); err != nil {
		return err
	}

	const insertItem = `
INSERT INTO analysis_results (analysis_id, rubric_item_id, item_name, item_description, evaluation_kind, config, status, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for _, item := range items {
		cfg, err := json.Marshal(item.Config)
		if err != nil {
			return fmt.Errorf("encode item config: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insertItem,
			analysis.ID,
			item.RubricItemID,
			item.ItemName,
			item.ItemDescription,
			item.EvaluationKind,
			cfg,
			ItemStatusPending,
			analysis.CreatedAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByID returns an analysis by ID.
func (r *PGRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE id = $1 LIMIT 1`
	row := r.DB.QueryRowContext(ctx, query, analysisID)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, ErrNotFound
	}
	return a, err
}

// ListByUser returns a user's analyses matching the filters, newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, filters ListFilters, limit, offset int) ([]Analysis, error) {
	var (
		where = []string{"user_id = $1"}
		args  = []any{userID}
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filters.RepositoryID != "" {
		add("repository_id = $%d", filters.RepositoryID)
	}
	if filters.RubricID != "" {
		add("rubric_id = $%d", filters.RubricID)
	}
	if filters.Status != "" {
		add("status = $%d", filters.Status)
	}
	if filters.DateFrom != nil {
		add("created_at >= $%d", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		add("created_at <= $%d", *filters.DateTo)
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(`SELECT %s FROM analyses WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		analysisColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListResults returns the item rows for an analysis in rubric order.
func (r *PGRepo) ListResults(ctx context.Context, analysisID string) ([]ItemResult, error) {
	const query = `
SELECT analysis_id, rubric_item_id, item_name, item_description, evaluation_kind, config, status, result, error, completed_at, updated_at
FROM analysis_results
WHERE analysis_id = $1
ORDER BY rubric_item_id`
	rows, err := r.DB.QueryContext(ctx, query, analysisID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ItemResult
	for rows.Next() {
		var (
			item        ItemResult
			cfg         []byte
			result      sql.NullString
			errMsg      sql.NullString
			completedAt sql.NullTime
		)
		if err := rows.Scan(&item.AnalysisID, &item.RubricItemID, &item.ItemName, &item.ItemDescription,
			&item.EvaluationKind, &cfg, &item.Status, &result, &errMsg, &completedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		if len(cfg) > 0 {
			var decoded rubrics.ItemConfig
			if err := json.Unmarshal(cfg, &decoded); err != nil {
				return nil, fmt.Errorf("decode item config: %w", err)
			}
			item.Config = decoded
		}
		if result.Valid && result.String != "" {
			var decoded map[string]any
			if err := json.Unmarshal([]byte(result.String), &decoded); err != nil {
				return nil, fmt.Errorf("decode item result: %w", err)
			}
			item.Result = decoded
		}
		if errMsg.Valid {
			item.Error = errMsg.String
		}
		if completedAt.Valid {
			t := completedAt.Time
			item.CompletedAt = &t
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// MarkProcessing moves a pending item row to processing. The completed_at
// guard keeps sealed rows immutable.
func (r *PGRepo) MarkProcessing(ctx context.Context, analysisID, rubricItemID string) error {
	const query = `
UPDATE analysis_results
SET status = $3, updated_at = now()
WHERE analysis_id = $1 AND rubric_item_id = $2 AND completed_at IS NULL`
	res, err := r.DB.ExecContext(ctx, query, analysisID, rubricItemID, ItemStatusProcessing)
	if err != nil {
		return err
	}
	return r.checkItemWrite(ctx, res, analysisID, rubricItemID)
}

// SealResult writes an item row's terminal outcome exactly once.
func (r *PGRepo) SealResult(ctx context.Context, analysisID, rubricItemID, status string, result map[string]any, errMsg string, completedAt time.Time) error {
	if status != ItemStatusCompleted && status != ItemStatusFailed {
		return ErrInvalidTransition
	}
	var payload any
	if result != nil {
		encoded, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encode item result: %w", err)
		}
		payload = encoded
	}
	var errValue any
	if errMsg != "" {
		errValue = errMsg
	}

	const query = `
UPDATE analysis_results
SET status = $3, result = $4, error = $5, completed_at = $6, updated_at = now()
WHERE analysis_id = $1 AND rubric_item_id = $2 AND completed_at IS NULL`
	res, err := r.DB.ExecContext(ctx, query, analysisID, rubricItemID, status, payload, errValue, completedAt)
	if err != nil {
		return err
	}
	return r.checkItemWrite(ctx, res, analysisID, rubricItemID)
}

// checkItemWrite distinguishes a missing row from a sealed one after a
// guarded update touched nothing.
func (r *PGRepo) checkItemWrite(ctx context.Context, res sql.Result, analysisID, rubricItemID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	var exists bool
	err = r.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM analysis_results WHERE analysis_id = $1 AND rubric_item_id = $2)`,
		analysisID, rubricItemID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return ErrResultSealed
	}
	return ErrNotFound
}

// CountResults recounts completed and failed rows from storage.
func (r *PGRepo) CountResults(ctx context.Context, analysisID string) (int, int, error) {
	const query = `
SELECT
	COUNT(*) FILTER (WHERE status = 'completed'),
	COUNT(*) FILTER (WHERE status = 'failed')
FROM analysis_results
WHERE analysis_id = $1`
	var completed, failed int
	if err := r.DB.QueryRowContext(ctx, query, analysisID).Scan(&completed, &failed); err != nil {
		return 0, 0, err
	}
	return completed, failed, nil
}

// UpdateCounters overwrites the denormalized counters with recounted values.
func (r *PGRepo) UpdateCounters(ctx context.Context, analysisID string, completed, failed int) error {
	const query = `UPDATE analyses SET completed_items = $2, failed_items = $3, updated_at = now() WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, analysisID, completed, failed)
	if err != nil {
		return err
	}
	return checkAnalysisWrite(res)
}

// MarkRunning transitions a pending analysis to running.
func (r *PGRepo) MarkRunning(ctx context.Context, analysisID string, startedAt time.Time) error {
	const query = `
UPDATE analyses
SET status = $2, started_at = $3, updated_at = now()
WHERE id = $1 AND status = $4`
	res, err := r.DB.ExecContext(ctx, query, analysisID, StatusRunning, startedAt, StatusPending)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// SetSnapshotKey records the archived snapshot location.
func (r *PGRepo) SetSnapshotKey(ctx context.Context, analysisID, key string) error {
	const query = `UPDATE analyses SET snapshot_key = $2, updated_at = now() WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, analysisID, key)
	if err != nil {
		return err
	}
	return checkAnalysisWrite(res)
}

// Complete seals the analysis as completed. The completed_at guard makes the
// terminal write idempotent against duplicate deliveries.
func (r *PGRepo) Complete(ctx context.Context, analysisID string, completedAt time.Time) error {
	const query = `
UPDATE analyses
SET status = $2, completed_at = $3, updated_at = now()
WHERE id = $1 AND completed_at IS NULL`
	res, err := r.DB.ExecContext(ctx, query, analysisID, StatusCompleted, completedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// Fail seals the analysis as failed with a message.
func (r *PGRepo) Fail(ctx context.Context, analysisID, message string, completedAt time.Time) error {
	const query = `
UPDATE analyses
SET status = $2, error_message = $3, completed_at = $4, updated_at = now()
WHERE id = $1 AND completed_at IS NULL`
	res, err := r.DB.ExecContext(ctx, query, analysisID, StatusFailed, message, completedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func checkAnalysisWrite(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var (
		a            Analysis
		errorMessage sql.NullString
		snapshotKey  sql.NullString
		startedAt    sql.NullTime
		completedAt  sql.NullTime
	)
	err := row.Scan(&a.ID, &a.UserID, &a.RepositoryID, &a.RubricID, &a.Status,
		&a.TotalItems, &a.CompletedItems, &a.FailedItems,
		&errorMessage, &snapshotKey, &a.CreatedAt, &startedAt, &completedAt, &a.UpdatedAt)
	if err != nil {
		return Analysis{}, err
	}
	if errorMessage.Valid {
		a.ErrorMessage = errorMessage.String
	}
	if snapshotKey.Valid {
		a.SnapshotKey = snapshotKey.String
	}
	if startedAt.Valid {
		t := startedAt.Time
		a.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	return a, nil
}

var _ Repo = (*PGRepo)(nil)

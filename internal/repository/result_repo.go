// Package repository persists bulk verification jobs and their
// per-address results. The store is append-only: results are written
// once and never updated.
package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salmanbareesh039/check-if-email-exists/internal/model"
	"github.com/salmanbareesh039/check-if-email-exists/pkg/metrics"
	"github.com/salmanbareesh039/check-if-email-exists/pkg/otel"
)

type ResultRepository struct {
	db *pgxpool.Pool
}

func NewResultRepository(db *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{db: db}
}

// SaveResult writes the verdict row for one task. The unique key on
// (job_id, email) absorbs message redeliveries: the second insert is a
// no-op and inserted reports false.
func (r *ResultRepository) SaveResult(ctx context.Context, jobID int64, email, backendName string, result json.RawMessage) (bool, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("insert", "v1_task_result", time.Since(start)) }()

	query := `
        INSERT INTO v1_task_result (job_id, email, backend_name, result, created_at)
        VALUES ($1, $2, $3, $4, NOW())
        ON CONFLICT (job_id, email) DO NOTHING
    `
	var inserted bool
	err := otel.DB(ctx, "insert", "v1_task_result", func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, query, jobID, email, backendName, result)
		if err != nil {
			return err
		}
		inserted = tag.RowsAffected() > 0
		return nil
	})
	return inserted, err
}

// SaveError records a task that terminated without a verdict, so the
// job still converges to total_records rows.
func (r *ResultRepository) SaveError(ctx context.Context, jobID int64, email, backendName, taskErr string) (bool, error) {
	query := `
        INSERT INTO v1_task_result (job_id, email, backend_name, error, created_at)
        VALUES ($1, $2, $3, $4, NOW())
        ON CONFLICT (job_id, email) DO NOTHING
    `
	var inserted bool
	err := otel.DB(ctx, "insert", "v1_task_result", func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, query, jobID, email, backendName, taskErr)
		if err != nil {
			return err
		}
		inserted = tag.RowsAffected() > 0
		return nil
	})
	return inserted, err
}

// ListByJob returns the persisted results of one job, oldest first.
func (r *ResultRepository) ListByJob(ctx context.Context, jobID int64, limit, offset int) ([]model.TaskResult, error) {
	query := `
        SELECT id, job_id, email, result, error, backend_name, created_at
        FROM v1_task_result
        WHERE job_id = $1
        ORDER BY id ASC
        LIMIT $2 OFFSET $3
    `
	var results []model.TaskResult
	err := otel.DB(ctx, "select", "v1_task_result", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query, jobID, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var tr model.TaskResult
			if err := rows.Scan(
				&tr.ID,
				&tr.JobID,
				&tr.Email,
				&tr.Result,
				&tr.Error,
				&tr.BackendName,
				&tr.CreatedAt,
			); err != nil {
				return err
			}
			results = append(results, tr)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// CountByJob reports how many tasks of a job have a persisted row.
func (r *ResultRepository) CountByJob(ctx context.Context, jobID int64) (int, error) {
	var count int
	err := otel.DB(ctx, "count", "v1_task_result", func(ctx context.Context) error {
		return r.db.QueryRow(ctx,
			`SELECT COUNT(*) FROM v1_task_result WHERE job_id = $1`, jobID,
		).Scan(&count)
	})
	return count, err
}

// Package outbox persists job lifecycle events in the same database as
// the results they describe, then delivers them asynchronously. The
// write is cheap and idempotent; delivery failures never block the
// worker loop.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Event kinds.
const (
	KindJobCompleted = "job_completed"
)

// Event is one notification row.
type Event struct {
	ID            int64
	JobID         int64
	Kind          string
	Payload       json.RawMessage
	Status        string
	Attempts      int
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// JobCompletedPayload is the body posted when the last result row of a
// bulk job lands.
type JobCompletedPayload struct {
	JobID        int64     `json:"job_id"`
	TotalRecords int       `json:"total_records"`
	BackendName  string    `json:"backend_name"`
	CompletedAt  time.Time `json:"completed_at"`
}

// Repository stores and claims events in v1_outbox.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// RecordJobCompleted inserts a completion event for a job. The unique
// key on (job_id, kind) makes the insert idempotent: when several
// workers finish the last rows of the same job concurrently, only one
// notification survives.
func (r *Repository) RecordJobCompleted(ctx context.Context, payload JobCompletedPayload) (bool, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshal payload: %w", err)
	}

	tag, err := r.db.Exec(ctx, `
        INSERT INTO v1_outbox (job_id, kind, payload, status)
        VALUES ($1, $2, $3, 'pending')
        ON CONFLICT (job_id, kind) DO NOTHING
    `, payload.JobID, KindJobCompleted, body)
	if err != nil {
		return false, fmt.Errorf("insert outbox event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// PendingEvents returns the events due for delivery, oldest first.
func (r *Repository) PendingEvents(ctx context.Context, limit int) ([]*Event, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, job_id, kind, payload, status, attempts, next_attempt_at, created_at, updated_at
        FROM v1_outbox
        WHERE status = 'pending'
          AND (next_attempt_at IS NULL OR next_attempt_at <= NOW())
        ORDER BY created_at ASC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// MarkDelivered closes out a successfully posted event.
func (r *Repository) MarkDelivered(ctx context.Context, eventID int64) error {
	_, err := r.db.Exec(ctx, `
        UPDATE v1_outbox
        SET status = 'delivered', updated_at = NOW()
        WHERE id = $1
    `, eventID)
	if err != nil {
		return fmt.Errorf("mark event delivered: %w", err)
	}
	return nil
}

// MarkFailed bumps the attempt counter and schedules the next try with
// a linear backoff; past maxAttempts the event is parked as failed and
// left to Replay.
func (r *Repository) MarkFailed(ctx context.Context, eventID int64, maxAttempts int) error {
	var attempts int
	err := r.db.QueryRow(ctx,
		`SELECT attempts FROM v1_outbox WHERE id = $1`, eventID,
	).Scan(&attempts)
	if err != nil {
		return fmt.Errorf("get attempt count: %w", err)
	}

	attempts++
	status := "pending"
	var nextAttemptAt *time.Time
	if attempts >= maxAttempts {
		status = "failed"
	} else {
		next := time.Now().Add(time.Duration(attempts) * 5 * time.Second)
		nextAttemptAt = &next
	}

	_, err = r.db.Exec(ctx, `
        UPDATE v1_outbox
        SET status = $1, attempts = $2, next_attempt_at = $3, updated_at = NOW()
        WHERE id = $4
    `, status, attempts, nextAttemptAt, eventID)
	if err != nil {
		return fmt.Errorf("mark event failed: %w", err)
	}
	return nil
}

// FailedEvents lists the events that exhausted their delivery budget.
func (r *Repository) FailedEvents(ctx context.Context, limit int) ([]*Event, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, job_id, kind, payload, status, attempts, next_attempt_at, created_at, updated_at
        FROM v1_outbox
        WHERE status = 'failed'
        ORDER BY created_at DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Replay resets a parked event so the dispatcher picks it up again.
func (r *Repository) Replay(ctx context.Context, eventID int64) error {
	_, err := r.db.Exec(ctx, `
        UPDATE v1_outbox
        SET status = 'pending', attempts = 0, next_attempt_at = NULL, updated_at = NOW()
        WHERE id = $1
    `, eventID)
	if err != nil {
		return fmt.Errorf("replay event: %w", err)
	}
	return nil
}

func scanEvents(rows pgx.Rows) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.ID,
			&e.JobID,
			&e.Kind,
			&e.Payload,
			&e.Status,
			&e.Attempts,
			&e.NextAttemptAt,
			&e.CreatedAt,
			&e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

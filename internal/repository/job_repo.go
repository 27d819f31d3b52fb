package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salmanbareesh039/check-if-email-exists/internal/model"
	"github.com/salmanbareesh039/check-if-email-exists/pkg/otel"
)

type JobRepository struct {
	db *pgxpool.Pool
}

func NewJobRepository(db *pgxpool.Pool) *JobRepository {
	return &JobRepository{db: db}
}

// CreateJob opens a bulk job covering totalRecords addresses and
// returns its id.
func (r *JobRepository) CreateJob(ctx context.Context, totalRecords int) (int64, error) {
	var id int64
	err := otel.DB(ctx, "insert", "v1_bulk_job", func(ctx context.Context) error {
		return r.db.QueryRow(ctx, `
            INSERT INTO v1_bulk_job (total_records, created_at)
            VALUES ($1, NOW())
            RETURNING id
        `, totalRecords).Scan(&id)
	})
	return id, err
}

// FindJobByID returns one job.
func (r *JobRepository) FindJobByID(ctx context.Context, id int64) (*model.Job, error) {
	var j model.Job
	err := otel.DB(ctx, "select", "v1_bulk_job", func(ctx context.Context) error {
		return r.db.QueryRow(ctx, `
            SELECT id, created_at, total_records
            FROM v1_bulk_job
            WHERE id = $1
        `, id).Scan(&j.ID, &j.CreatedAt, &j.TotalRecords)
	})
	if err != nil {
		return nil, err
	}
	return &j, nil
}

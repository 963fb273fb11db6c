package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jespen/studioclay-sub001/internal/job/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Enqueue(ctx context.Context, conn *gorm.DB, job *domain.BackgroundJob) error {
	if len(job.JobData) == 0 {
		job.JobData = datatypes.JSON([]byte("{}"))
	}
	if job.Status == "" {
		job.Status = domain.StatusPending
	}
	return conn.WithContext(ctx).Exec(
		`INSERT INTO background_jobs (id, job_type, job_data, status, result, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.JobType,
		job.JobData,
		job.Status,
		job.Result,
		job.CreatedAt,
		job.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.BackgroundJob, error) {
	var item domain.BackgroundJob
	err := conn.WithContext(ctx).Raw(
		`SELECT id, job_type, job_data, status, result, created_at, updated_at
		 FROM background_jobs
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, domain.ErrNotFound
	}
	return &item, nil
}

func (r *repo) ClaimNext(ctx context.Context, conn *gorm.DB, now time.Time) (*domain.BackgroundJob, error) {
	var claimed *domain.BackgroundJob
	err := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item domain.BackgroundJob
		query := `SELECT id, job_type, job_data, status, result, created_at, updated_at
			 FROM background_jobs
			 WHERE status = ?
			 ORDER BY created_at, id
			 LIMIT 1` + lockClause(tx)
		if err := tx.Raw(query, domain.StatusPending).Scan(&item).Error; err != nil {
			return err
		}
		if item.ID == 0 {
			return nil
		}

		res := tx.Exec(
			`UPDATE background_jobs
			 SET status = ?, updated_at = ?
			 WHERE id = ? AND status = ?`,
			domain.StatusProcessing,
			now,
			item.ID,
			domain.StatusPending,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race on a dialect without row locking.
			return nil
		}
		item.Status = domain.StatusProcessing
		item.UpdatedAt = now
		claimed = &item
		return nil
	})
	return claimed, err
}

func (r *repo) Complete(ctx context.Context, conn *gorm.DB, id snowflake.ID, result domain.Result, now time.Time) error {
	return r.finish(ctx, conn, id, domain.StatusCompleted, result, now)
}

func (r *repo) Fail(ctx context.Context, conn *gorm.DB, id snowflake.ID, result domain.Result, now time.Time) error {
	return r.finish(ctx, conn, id, domain.StatusFailed, result, now)
}

func (r *repo) finish(ctx context.Context, conn *gorm.DB, id snowflake.ID, status domain.JobStatus, result domain.Result, now time.Time) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return err
	}
	res := conn.WithContext(ctx).Exec(
		`UPDATE background_jobs
		 SET status = ?, result = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		status,
		datatypes.JSON(encoded),
		now,
		id,
		domain.StatusProcessing,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) CountByStatus(ctx context.Context, conn *gorm.DB, status domain.JobStatus) (int64, error) {
	var count int64
	err := conn.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM background_jobs WHERE status = ?`,
		status,
	).Scan(&count).Error
	return count, err
}

// lockClause returns the row-locking suffix for the claim query. Row locking
// is only meaningful on postgres; the claim falls back to the conditional
// UPDATE elsewhere.
func lockClause(tx *gorm.DB) string {
	if tx.Dialector.Name() == "postgres" {
		return " FOR UPDATE SKIP LOCKED"
	}
	return ""
}

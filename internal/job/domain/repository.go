package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("job: not found")

// Repository owns the background_jobs table. ClaimNext is a locked
// read-then-flip so that concurrent workers never process the same job.
type Repository interface {
	Enqueue(ctx context.Context, db *gorm.DB, job *BackgroundJob) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*BackgroundJob, error)

	// ClaimNext picks the oldest pending job, flips it to processing and
	// returns it. A nil job with nil error means the queue is empty.
	ClaimNext(ctx context.Context, db *gorm.DB, now time.Time) (*BackgroundJob, error)

	Complete(ctx context.Context, db *gorm.DB, id snowflake.ID, result Result, now time.Time) error
	Fail(ctx context.Context, db *gorm.DB, id snowflake.ID, result Result, now time.Time) error

	CountByStatus(ctx context.Context, db *gorm.DB, status JobStatus) (int64, error)
}

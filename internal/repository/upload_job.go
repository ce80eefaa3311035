package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baechuer/rapidphoto/internal/domain"
)

// UploadJobRepository handles database operations for upload jobs.
type UploadJobRepository struct {
	pool *pgxpool.Pool
}

// NewUploadJobRepository creates a new upload job repository.
func NewUploadJobRepository(pool *pgxpool.Pool) *UploadJobRepository {
	return &UploadJobRepository{pool: pool}
}

const uploadJobColumns = `id, user_id, s3_key, presigned_url, file_name, file_size, mime_type,
	status, etag, expires_at, created_at, updated_at, confirmed_at, error_message`

func scanUploadJob(row pgx.Row) (*domain.UploadJob, error) {
	var j domain.UploadJob
	var etag, errMsg *string
	err := row.Scan(&j.ID, &j.UserID, &j.S3Key, &j.PresignedURL, &j.FileName, &j.FileSize,
		&j.MimeType, &j.Status, &etag, &j.ExpiresAt, &j.CreatedAt, &j.UpdatedAt,
		&j.ConfirmedAt, &errMsg)
	if err != nil {
		return nil, err
	}
	if etag != nil {
		j.ETag = *etag
	}
	if errMsg != nil {
		j.ErrorMessage = *errMsg
	}
	return &j, nil
}

// Create inserts a new upload job record.
func (r *UploadJobRepository) Create(ctx context.Context, job *domain.UploadJob) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO upload_jobs (id, user_id, s3_key, presigned_url, file_name, file_size, mime_type, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, job.ID, job.UserID, job.S3Key, job.PresignedURL, job.FileName, job.FileSize,
		job.MimeType, job.Status, job.ExpiresAt, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create upload job: %w", err)
	}
	return nil
}

// GetByID retrieves an upload job by ID. Returns nil when no row exists.
func (r *UploadJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.UploadJob, error) {
	j, err := scanUploadJob(r.pool.QueryRow(ctx,
		`SELECT `+uploadJobColumns+` FROM upload_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload job: %w", err)
	}
	return j, nil
}

// ListByUser retrieves all upload jobs for a user, newest first.
func (r *UploadJobRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.UploadJob, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+uploadJobColumns+` FROM upload_jobs WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list upload jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.UploadJob
	for rows.Next() {
		j, err := scanUploadJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upload job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// CountActive counts a user's jobs in non-terminal states. Plain count, no
// locking: the upload ceiling is a soft cap.
func (r *UploadJobRepository) CountActive(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM upload_jobs
		WHERE user_id = $1 AND status IN ($2, $3)
	`, userID, domain.JobInitiated, domain.JobUploaded).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active uploads: %w", err)
	}
	return n, nil
}

// Confirm atomically records the ETag, creates the photo row, and moves the
// job to CONFIRMED. The first conditional update takes the row lock, so
// concurrent confirms for the same job serialize here; the loser sees zero
// rows affected and gets ErrAlreadyConfirmed with nothing committed.
//
// The job's CONFIRMED status is the last-committed fact of the unit: a
// CONFIRMED job implies the photo row exists.
func (r *UploadJobRepository) Confirm(ctx context.Context, jobID uuid.UUID, etag string, confirmedAt time.Time, photo *domain.Photo) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE upload_jobs
		SET status = $2, etag = $3, updated_at = $4
		WHERE id = $1 AND status IN ($5, $6, $7)
	`, jobID, domain.JobUploaded, etag, confirmedAt,
		domain.JobInitiated, domain.JobUploading, domain.JobUploaded)
	if err != nil {
		return fmt.Errorf("failed to record etag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyConfirmed
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO photos (id, user_id, upload_job_id, original_s3_key, file_name, file_size, mime_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, photo.ID, photo.UserID, photo.UploadJobID, photo.OriginalS3Key, photo.FileName,
		photo.FileSize, photo.MimeType, photo.Status, photo.CreatedAt, photo.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create photo: %w", err)
	}

	tag, err = tx.Exec(ctx, `
		UPDATE upload_jobs
		SET status = $2, confirmed_at = $3, updated_at = $3
		WHERE id = $1 AND status <> $2
	`, jobID, domain.JobConfirmed, confirmedAt)
	if err != nil {
		return fmt.Errorf("failed to confirm upload job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyConfirmed
	}

	return tx.Commit(ctx)
}

// MarkExpired moves jobs past their grant window out of the active states.
// Used by the background sweeper, never by the confirm path.
func (r *UploadJobRepository) MarkExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE upload_jobs
		SET status = $1, updated_at = $2
		WHERE id IN (
			SELECT id FROM upload_jobs
			WHERE status IN ($3, $4) AND expires_at < $2
			LIMIT $5
		)
	`, domain.JobExpired, now, domain.JobInitiated, domain.JobUploaded, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to expire upload jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

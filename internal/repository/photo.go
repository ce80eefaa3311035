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

// PhotoRepository handles database operations for photos and their children.
type PhotoRepository struct {
	pool *pgxpool.Pool
}

// NewPhotoRepository creates a new photo repository.
func NewPhotoRepository(pool *pgxpool.Pool) *PhotoRepository {
	return &PhotoRepository{pool: pool}
}

const photoColumns = `id, user_id, upload_job_id, original_s3_key, file_name, file_size, mime_type,
	status, width, height, taken_at, camera_make, camera_model, gps_latitude, gps_longitude,
	created_at, updated_at, processed_at, error_message`

func scanPhoto(row pgx.Row) (*domain.Photo, error) {
	var p domain.Photo
	var errMsg *string
	err := row.Scan(&p.ID, &p.UserID, &p.UploadJobID, &p.OriginalS3Key, &p.FileName,
		&p.FileSize, &p.MimeType, &p.Status, &p.Width, &p.Height, &p.TakenAt,
		&p.CameraMake, &p.CameraModel, &p.GPSLatitude, &p.GPSLongitude,
		&p.CreatedAt, &p.UpdatedAt, &p.ProcessedAt, &errMsg)
	if err != nil {
		return nil, err
	}
	if errMsg != nil {
		p.ErrorMessage = *errMsg
	}
	return &p, nil
}

// GetByID retrieves a photo by ID. Returns nil when no row exists.
func (r *PhotoRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Photo, error) {
	p, err := scanPhoto(r.pool.QueryRow(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}
	return p, nil
}

// GetByUploadJobID retrieves the photo created for a job, if any.
// upload_job_id is unique: at most one photo exists per job.
func (r *PhotoRepository) GetByUploadJobID(ctx context.Context, jobID uuid.UUID) (*domain.Photo, error) {
	p, err := scanPhoto(r.pool.QueryRow(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE upload_job_id = $1`, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get photo by upload job: %w", err)
	}
	return p, nil
}

// ListByUser retrieves all photos for a user, newest first.
func (r *PhotoRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Photo, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	var photos []*domain.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// MarkProcessing advances a photo from PENDING_PROCESSING to PROCESSING.
// Conditional on the current status so a late call cannot regress a
// terminal photo.
func (r *PhotoRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE photos SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4
	`, id, domain.PhotoProcessing, time.Now().UTC(), domain.PhotoPendingProcessing)
	return err
}

// ApplyResult applies a pipeline result as one atomic unit: the status and
// dimension update plus all child rows, or nothing. Returns ErrPhotoNotFound
// when no photo row exists; the caller decides whether that is an error.
//
// Versions are upserted by (photo_id, version_type) so a redelivered callback
// cannot accumulate duplicate renditions. Labels are appended as delivered.
func (r *PhotoRepository) ApplyResult(ctx context.Context, photoID uuid.UUID, res domain.ProcessingResult) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current domain.PhotoStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM photos WHERE id = $1 FOR UPDATE`, photoID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrPhotoNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock photo: %w", err)
	}

	now := time.Now().UTC()
	if domain.CanAdvance(current, res.Status) {
		// Dimensions fall back to stored values when the payload omits them.
		_, err = tx.Exec(ctx, `
			UPDATE photos
			SET status = $2,
			    width = COALESCE($3, width),
			    height = COALESCE($4, height),
			    processed_at = $5,
			    error_message = COALESCE(NULLIF($6, ''), error_message),
			    updated_at = $5
			WHERE id = $1
		`, photoID, res.Status, res.Width, res.Height, now, res.Error)
		if err != nil {
			return fmt.Errorf("failed to update photo: %w", err)
		}
	}
	// A repeated terminal status is a duplicate delivery: the row keeps its
	// first result, but child upserts below still run so a partially applied
	// first attempt can be completed.

	for _, v := range res.Versions {
		_, err = tx.Exec(ctx, `
			INSERT INTO photo_versions (id, photo_id, version_type, s3_key, width, height, file_size, mime_type, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (photo_id, version_type) DO UPDATE
			SET s3_key = EXCLUDED.s3_key,
			    width = EXCLUDED.width,
			    height = EXCLUDED.height,
			    file_size = EXCLUDED.file_size,
			    mime_type = EXCLUDED.mime_type
		`, uuid.New(), photoID, v.Kind, v.S3Key, v.Width, v.Height, v.FileSize, v.MimeType, now)
		if err != nil {
			return fmt.Errorf("failed to upsert photo version: %w", err)
		}
	}

	for _, l := range res.Labels {
		_, err = tx.Exec(ctx, `
			INSERT INTO photo_labels (id, photo_id, label_name, confidence, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.New(), photoID, l.Name, l.Confidence, now)
		if err != nil {
			return fmt.Errorf("failed to insert photo label: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ListVersions retrieves the derived renditions of a photo.
func (r *PhotoRepository) ListVersions(ctx context.Context, photoID uuid.UUID) ([]domain.PhotoVersion, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, photo_id, version_type, s3_key, width, height, file_size, mime_type, created_at
		FROM photo_versions WHERE photo_id = $1 ORDER BY version_type
	`, photoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photo versions: %w", err)
	}
	defer rows.Close()

	var versions []domain.PhotoVersion
	for rows.Next() {
		var v domain.PhotoVersion
		if err := rows.Scan(&v.ID, &v.PhotoID, &v.Kind, &v.S3Key, &v.Width, &v.Height,
			&v.FileSize, &v.MimeType, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan photo version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// ListLabels retrieves the detected labels of a photo, highest confidence first.
func (r *PhotoRepository) ListLabels(ctx context.Context, photoID uuid.UUID) ([]domain.PhotoLabel, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, photo_id, label_name, confidence, created_at
		FROM photo_labels WHERE photo_id = $1 ORDER BY confidence DESC
	`, photoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photo labels: %w", err)
	}
	defer rows.Close()

	var labels []domain.PhotoLabel
	for rows.Next() {
		var l domain.PhotoLabel
		if err := rows.Scan(&l.ID, &l.PhotoID, &l.Name, &l.Confidence, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan photo label: %w", err)
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

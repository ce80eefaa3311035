package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/baechuer/rapidphoto/internal/config"
	"github.com/baechuer/rapidphoto/internal/domain"
	"github.com/baechuer/rapidphoto/internal/messaging"
	"github.com/baechuer/rapidphoto/internal/storage"
)

// UploadService orchestrates the grant-confirm workflow across the job store,
// photo store, object storage and the event publisher.
type UploadService struct {
	jobs      UploadJobStore
	photos    PhotoStore
	grants    GrantIssuer
	publisher EventPublisher
	cache     URLCache
	cfg       *config.Config
	log       zerolog.Logger
}

func NewUploadService(jobs UploadJobStore, photos PhotoStore, grants GrantIssuer, publisher EventPublisher, cache URLCache, cfg *config.Config, log zerolog.Logger) *UploadService {
	return &UploadService{
		jobs:      jobs,
		photos:    photos,
		grants:    grants,
		publisher: publisher,
		cache:     cache,
		cfg:       cfg,
		log:       log,
	}
}

// ConfirmResult is the stable outcome of a confirmation: retried confirms for
// the same job return the same pair.
type ConfirmResult struct {
	PhotoID  uuid.UUID
	UploadID uuid.UUID
	Status   domain.PhotoStatus
}

// Initiate checks upload policy, mints a write grant, and persists the job.
// Policy failures happen before any mutation, so they leave no partial state.
func (s *UploadService) Initiate(ctx context.Context, userID uuid.UUID, fileName string, fileSize int64, mimeType string) (*domain.UploadJob, error) {
	active, err := s.jobs.CountActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active >= s.cfg.MaxActiveUploads {
		return nil, fmt.Errorf("%w: %d active uploads (limit %d)",
			domain.ErrUploadLimitExceeded, active, s.cfg.MaxActiveUploads)
	}

	if err := domain.ValidateFile(fileSize, mimeType); err != nil {
		return nil, err
	}

	grant, err := s.grants.PresignPut(ctx, storage.ObjectKey(userID), mimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to issue write grant: %w", err)
	}

	job := domain.NewUploadJob(userID, grant.S3Key, grant.URL, fileName, fileSize, mimeType, grant.ExpiresAt)
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("upload_id", job.ID.String()).
		Str("user_id", userID.String()).
		Str("s3_key", job.S3Key).
		Msg("upload initiated")
	return job, nil
}

// Confirm drives the job to CONFIRMED, creates the photo, and publishes the
// PhotoUploadConfirmed event.
//
// The job's CONFIRMED status is the sole idempotency source of truth: a
// repeated confirm short-circuits before any side effect and returns the
// stored result. Persistence commits before the publish attempt, so a retry
// after a publish failure lands on the idempotency branch instead of creating
// a second photo.
func (s *UploadService) Confirm(ctx context.Context, jobID, userID uuid.UUID, etag string) (ConfirmResult, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return ConfirmResult{}, err
	}
	if job == nil {
		return ConfirmResult{}, domain.ErrJobNotFound
	}

	if job.UserID != userID {
		return ConfirmResult{}, domain.ErrNotOwner
	}

	if job.Status == domain.JobConfirmed {
		return s.confirmedResult(ctx, job)
	}

	now := time.Now().UTC()
	if job.IsExpired(now) {
		// The job row is left for the sweeper; this path never mutates it.
		return ConfirmResult{}, domain.ErrGrantExpired
	}

	photo := domain.PhotoFromJob(job)
	err = s.jobs.Confirm(ctx, job.ID, etag, now, photo)
	if errors.Is(err, domain.ErrAlreadyConfirmed) {
		// Lost a concurrent race; the winner's photo is the result.
		return s.confirmedResult(ctx, job)
	}
	if err != nil {
		return ConfirmResult{}, err
	}

	ev := messaging.PhotoUploadConfirmed{
		PhotoID:     photo.ID,
		UploadID:    job.ID,
		UserID:      job.UserID,
		S3Key:       job.S3Key,
		FileName:    job.FileName,
		FileSize:    job.FileSize,
		MimeType:    job.MimeType,
		ConfirmedAt: now,
	}
	if err := s.publisher.PublishUploadConfirmed(ctx, ev); err != nil {
		// Job and photo are committed; surface a retryable failure and let
		// the client re-confirm into the idempotency branch.
		s.log.Error().Err(err).Str("upload_id", job.ID.String()).Msg("event publish failed after commit")
		return ConfirmResult{}, fmt.Errorf("%w: %v", domain.ErrPublishFailed, err)
	}

	s.log.Info().
		Str("upload_id", job.ID.String()).
		Str("photo_id", photo.ID.String()).
		Msg("upload confirmed")
	return ConfirmResult{PhotoID: photo.ID, UploadID: job.ID, Status: photo.Status}, nil
}

// confirmedResult rebuilds the response for an already-confirmed job. The
// photo must exist: it commits in the same transaction that sets CONFIRMED.
func (s *UploadService) confirmedResult(ctx context.Context, job *domain.UploadJob) (ConfirmResult, error) {
	photo, err := s.photos.GetByUploadJobID(ctx, job.ID)
	if err != nil {
		return ConfirmResult{}, err
	}
	if photo == nil {
		return ConfirmResult{}, fmt.Errorf("confirmed job %s has no photo", job.ID)
	}
	return ConfirmResult{PhotoID: photo.ID, UploadID: job.ID, Status: photo.Status}, nil
}

// UploadStatus is one row of the combined job/photo read view. Photo fields
// are nil until the job is confirmed.
type UploadStatus struct {
	UploadID     uuid.UUID           `json:"upload_id"`
	FileName     string              `json:"file_name"`
	JobStatus    domain.UploadJobStatus `json:"upload_job_status"`
	PhotoID      *uuid.UUID          `json:"photo_id,omitempty"`
	PhotoStatus  *domain.PhotoStatus `json:"photo_status,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	ConfirmedAt  *time.Time          `json:"confirmed_at,omitempty"`
	ProcessedAt  *time.Time          `json:"processed_at,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
}

// BatchStatus joins the user's jobs with their photos by upload job id.
// Read-only projection; no state machine involvement.
func (s *UploadService) BatchStatus(ctx context.Context, userID uuid.UUID) ([]UploadStatus, error) {
	jobs, err := s.jobs.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	photos, err := s.photos.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	byJob := make(map[uuid.UUID]*domain.Photo, len(photos))
	for _, p := range photos {
		byJob[p.UploadJobID] = p
	}

	statuses := make([]UploadStatus, 0, len(jobs))
	for _, j := range jobs {
		row := UploadStatus{
			UploadID:     j.ID,
			FileName:     j.FileName,
			JobStatus:    j.Status,
			CreatedAt:    j.CreatedAt,
			ConfirmedAt:  j.ConfirmedAt,
			ErrorMessage: j.ErrorMessage,
		}
		if p, ok := byJob[j.ID]; ok {
			row.PhotoID = &p.ID
			row.PhotoStatus = &p.Status
			row.ProcessedAt = p.ProcessedAt
			if row.ErrorMessage == "" {
				row.ErrorMessage = p.ErrorMessage
			}
		}
		statuses = append(statuses, row)
	}
	return statuses, nil
}

// DownloadURL returns a presigned read URL for a photo's original, served
// from cache when a grant with remaining validity is available.
func (s *UploadService) DownloadURL(ctx context.Context, userID, photoID uuid.UUID) (string, error) {
	photo, err := s.photos.GetByID(ctx, photoID)
	if err != nil {
		return "", err
	}
	if photo == nil {
		return "", domain.ErrPhotoNotFound
	}
	if photo.UserID != userID {
		return "", domain.ErrNotOwner
	}

	if s.cache != nil {
		if url, err := s.cache.GetDownloadURL(ctx, photo.OriginalS3Key); err == nil {
			return url, nil
		} else if !errors.Is(err, domain.ErrCacheMiss) {
			s.log.Warn().Err(err).Msg("url cache read failed")
		}
	}

	grant, err := s.grants.PresignGet(ctx, photo.OriginalS3Key)
	if err != nil {
		return "", fmt.Errorf("failed to issue read grant: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.SetDownloadURL(ctx, photo.OriginalS3Key, grant.URL, s.cfg.DownloadURLTTL); err != nil {
			s.log.Warn().Err(err).Msg("url cache write failed")
		}
	}
	return grant.URL, nil
}

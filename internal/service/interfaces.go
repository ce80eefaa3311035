package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/baechuer/rapidphoto/internal/domain"
	"github.com/baechuer/rapidphoto/internal/messaging"
	"github.com/baechuer/rapidphoto/internal/storage"
)

// UploadJobStore defines database operations for upload jobs.
type UploadJobStore interface {
	Create(ctx context.Context, job *domain.UploadJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.UploadJob, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.UploadJob, error)
	CountActive(ctx context.Context, userID uuid.UUID) (int, error)
	Confirm(ctx context.Context, jobID uuid.UUID, etag string, confirmedAt time.Time, photo *domain.Photo) error
}

// PhotoStore defines database operations for photos and their children.
type PhotoStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Photo, error)
	GetByUploadJobID(ctx context.Context, jobID uuid.UUID) (*domain.Photo, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Photo, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	ApplyResult(ctx context.Context, photoID uuid.UUID, res domain.ProcessingResult) error
}

// GrantIssuer mints time-limited signed URLs against object storage.
type GrantIssuer interface {
	PresignPut(ctx context.Context, objectKey, contentType string) (storage.Grant, error)
	PresignGet(ctx context.Context, objectKey string) (storage.Grant, error)
}

// EventPublisher emits domain events for the processing pipeline.
type EventPublisher interface {
	PublishUploadConfirmed(ctx context.Context, ev messaging.PhotoUploadConfirmed) error
}

// URLCache caches presigned read URLs keyed by object key.
type URLCache interface {
	GetDownloadURL(ctx context.Context, s3Key string) (string, error)
	SetDownloadURL(ctx context.Context, s3Key, url string, grantTTL time.Duration) error
}

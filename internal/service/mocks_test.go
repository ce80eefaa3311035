package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/baechuer/rapidphoto/internal/domain"
	"github.com/baechuer/rapidphoto/internal/messaging"
	"github.com/baechuer/rapidphoto/internal/storage"
)

type mockJobStore struct{ mock.Mock }

func (m *mockJobStore) Create(ctx context.Context, job *domain.UploadJob) error {
	return m.Called(ctx, job).Error(0)
}

func (m *mockJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.UploadJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UploadJob), args.Error(1)
}

func (m *mockJobStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.UploadJob, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.UploadJob), args.Error(1)
}

func (m *mockJobStore) CountActive(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockJobStore) Confirm(ctx context.Context, jobID uuid.UUID, etag string, confirmedAt time.Time, photo *domain.Photo) error {
	return m.Called(ctx, jobID, etag, confirmedAt, photo).Error(0)
}

type mockPhotoStore struct{ mock.Mock }

func (m *mockPhotoStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Photo, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Photo), args.Error(1)
}

func (m *mockPhotoStore) GetByUploadJobID(ctx context.Context, jobID uuid.UUID) (*domain.Photo, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Photo), args.Error(1)
}

func (m *mockPhotoStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Photo, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Photo), args.Error(1)
}

func (m *mockPhotoStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockPhotoStore) ApplyResult(ctx context.Context, photoID uuid.UUID, res domain.ProcessingResult) error {
	return m.Called(ctx, photoID, res).Error(0)
}

type mockGrantIssuer struct{ mock.Mock }

func (m *mockGrantIssuer) PresignPut(ctx context.Context, objectKey, contentType string) (storage.Grant, error) {
	args := m.Called(ctx, objectKey, contentType)
	return args.Get(0).(storage.Grant), args.Error(1)
}

func (m *mockGrantIssuer) PresignGet(ctx context.Context, objectKey string) (storage.Grant, error) {
	args := m.Called(ctx, objectKey)
	return args.Get(0).(storage.Grant), args.Error(1)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishUploadConfirmed(ctx context.Context, ev messaging.PhotoUploadConfirmed) error {
	return m.Called(ctx, ev).Error(0)
}

type mockURLCache struct{ mock.Mock }

func (m *mockURLCache) GetDownloadURL(ctx context.Context, s3Key string) (string, error) {
	args := m.Called(ctx, s3Key)
	return args.String(0), args.Error(1)
}

func (m *mockURLCache) SetDownloadURL(ctx context.Context, s3Key, url string, grantTTL time.Duration) error {
	return m.Called(ctx, s3Key, url, grantTTL).Error(0)
}

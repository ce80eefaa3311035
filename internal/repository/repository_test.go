package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/rapidphoto/internal/domain"
)

// Integration tests; they need a real Postgres and are skipped otherwise:
//
//	DATABASE_URL=postgres://... go test ./internal/repository/
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../migrations/0001_init.sql")
	require.NoError(t, err)
	_, err = pool.Exec(context.Background(), string(schema))
	require.NoError(t, err)

	_, err = pool.Exec(context.Background(),
		`TRUNCATE photo_labels, photo_versions, photos, upload_jobs`)
	require.NoError(t, err)

	return pool
}

func seedJob(t *testing.T, repo *UploadJobRepository, userID uuid.UUID, expiresIn time.Duration) *domain.UploadJob {
	t.Helper()
	job := domain.NewUploadJob(userID, "originals/"+userID.String()+"/"+uuid.NewString(),
		"https://signed-put", "cat.jpg", 2048, "image/jpeg", time.Now().UTC().Add(expiresIn))
	require.NoError(t, repo.Create(context.Background(), job))
	return job
}

func TestUploadJobRoundtrip(t *testing.T) {
	pool := testPool(t)
	repo := NewUploadJobRepository(pool)
	ctx := context.Background()

	job := seedJob(t, repo, uuid.New(), 15*time.Minute)

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, job.S3Key, got.S3Key)
	assert.Equal(t, job.PresignedURL, got.PresignedURL)
	assert.Equal(t, domain.JobInitiated, got.Status)
	assert.Empty(t, got.ETag)
	assert.Nil(t, got.ConfirmedAt)

	missing, err := repo.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCountActive(t *testing.T) {
	pool := testPool(t)
	repo := NewUploadJobRepository(pool)
	ctx := context.Background()
	userID := uuid.New()

	seedJob(t, repo, userID, 15*time.Minute)
	seedJob(t, repo, userID, 15*time.Minute)
	seedJob(t, repo, uuid.New(), 15*time.Minute) // someone else's

	n, err := repo.CountActive(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestConfirmIsIdempotent(t *testing.T) {
	pool := testPool(t)
	jobs := NewUploadJobRepository(pool)
	photos := NewPhotoRepository(pool)
	ctx := context.Background()
	userID := uuid.New()

	job := seedJob(t, jobs, userID, 15*time.Minute)
	photo := domain.PhotoFromJob(job)
	now := time.Now().UTC()

	require.NoError(t, jobs.Confirm(ctx, job.ID, `"etag-1"`, now, photo))

	got, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobConfirmed, got.Status)
	assert.Equal(t, `"etag-1"`, got.ETag)
	require.NotNil(t, got.ConfirmedAt)

	stored, err := photos.GetByUploadJobID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, photo.ID, stored.ID)
	assert.Equal(t, domain.PhotoPendingProcessing, stored.Status)

	// a second confirm must not create a second photo
	dup := domain.PhotoFromJob(job)
	err = jobs.Confirm(ctx, job.ID, `"etag-2"`, time.Now().UTC(), dup)
	assert.ErrorIs(t, err, domain.ErrAlreadyConfirmed)

	all, err := photos.ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMarkExpired(t *testing.T) {
	pool := testPool(t)
	repo := NewUploadJobRepository(pool)
	ctx := context.Background()
	userID := uuid.New()

	stale := seedJob(t, repo, userID, -time.Minute)
	fresh := seedJob(t, repo, userID, 15*time.Minute)

	n, err := repo.MarkExpired(ctx, time.Now().UTC(), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobExpired, got.Status)

	got, err = repo.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobInitiated, got.Status)
}

func confirmedPhoto(t *testing.T, jobs *UploadJobRepository, userID uuid.UUID) *domain.Photo {
	t.Helper()
	job := seedJob(t, jobs, userID, 15*time.Minute)
	photo := domain.PhotoFromJob(job)
	require.NoError(t, jobs.Confirm(context.Background(), job.ID, `"e"`, time.Now().UTC(), photo))
	return photo
}

func TestApplyResultReady(t *testing.T) {
	pool := testPool(t)
	jobs := NewUploadJobRepository(pool)
	photos := NewPhotoRepository(pool)
	ctx := context.Background()

	photo := confirmedPhoto(t, jobs, uuid.New())
	width, height := 4032, 3024
	res := domain.ProcessingResult{
		Status: domain.PhotoReady,
		Width:  &width,
		Height: &height,
		Versions: []domain.PhotoVersion{
			{Kind: domain.VersionThumbnail, S3Key: "thumbs/a", Width: 200, Height: 150, FileSize: 9000, MimeType: "image/webp"},
			{Kind: domain.VersionWebP1280, S3Key: "webp/a", Width: 1280, Height: 960, FileSize: 120000, MimeType: "image/webp"},
		},
		Labels: []domain.PhotoLabel{
			{Name: "cat", Confidence: 97.5},
			{Name: "outdoors", Confidence: 61.2},
		},
	}

	require.NoError(t, photos.ApplyResult(ctx, photo.ID, res))

	got, err := photos.GetByID(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhotoReady, got.Status)
	require.NotNil(t, got.Width)
	assert.Equal(t, 4032, *got.Width)
	require.NotNil(t, got.ProcessedAt)

	versions, err := photos.ListVersions(ctx, photo.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 2)

	labels, err := photos.ListLabels(ctx, photo.ID)
	require.NoError(t, err)
	require.Len(t, labels, 2)
	assert.Equal(t, "cat", labels[0].Name) // highest confidence first
}

func TestApplyResultRedeliveryDoesNotDuplicateVersions(t *testing.T) {
	pool := testPool(t)
	jobs := NewUploadJobRepository(pool)
	photos := NewPhotoRepository(pool)
	ctx := context.Background()

	photo := confirmedPhoto(t, jobs, uuid.New())
	res := domain.ProcessingResult{
		Status: domain.PhotoReady,
		Versions: []domain.PhotoVersion{
			{Kind: domain.VersionThumbnail, S3Key: "thumbs/a", Width: 200, Height: 150, FileSize: 9000, MimeType: "image/webp"},
		},
	}

	require.NoError(t, photos.ApplyResult(ctx, photo.ID, res))
	// same callback delivered again
	require.NoError(t, photos.ApplyResult(ctx, photo.ID, res))

	versions, err := photos.ListVersions(ctx, photo.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1)

	got, err := photos.GetByID(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhotoReady, got.Status)
}

func TestApplyResultCannotRegressTerminalPhoto(t *testing.T) {
	pool := testPool(t)
	jobs := NewUploadJobRepository(pool)
	photos := NewPhotoRepository(pool)
	ctx := context.Background()

	photo := confirmedPhoto(t, jobs, uuid.New())
	require.NoError(t, photos.ApplyResult(ctx, photo.ID, domain.ProcessingResult{Status: domain.PhotoReady}))

	// a late FAILED for an already-READY photo keeps the first result
	require.NoError(t, photos.ApplyResult(ctx, photo.ID, domain.ProcessingResult{
		Status: domain.PhotoFailed, Error: "late duplicate",
	}))

	got, err := photos.GetByID(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhotoReady, got.Status)
	assert.Empty(t, got.ErrorMessage)
}

func TestApplyResultUnknownPhoto(t *testing.T) {
	pool := testPool(t)
	photos := NewPhotoRepository(pool)

	err := photos.ApplyResult(context.Background(), uuid.New(), domain.ProcessingResult{Status: domain.PhotoReady})

	assert.ErrorIs(t, err, domain.ErrPhotoNotFound)
}

func TestMarkProcessing(t *testing.T) {
	pool := testPool(t)
	jobs := NewUploadJobRepository(pool)
	photos := NewPhotoRepository(pool)
	ctx := context.Background()

	photo := confirmedPhoto(t, jobs, uuid.New())

	require.NoError(t, photos.MarkProcessing(ctx, photo.ID))
	got, err := photos.GetByID(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhotoProcessing, got.Status)

	// already past PENDING_PROCESSING: no-op
	require.NoError(t, photos.ApplyResult(ctx, photo.ID, domain.ProcessingResult{Status: domain.PhotoReady}))
	require.NoError(t, photos.MarkProcessing(ctx, photo.ID))
	got, err = photos.GetByID(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhotoReady, got.Status)
}

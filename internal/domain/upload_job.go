package domain

import (
	"time"

	"github.com/google/uuid"
)

// UploadJobStatus represents the lifecycle state of an upload job.
type UploadJobStatus string

const (
	JobInitiated UploadJobStatus = "INITIATED"
	JobUploading UploadJobStatus = "UPLOADING"
	JobUploaded  UploadJobStatus = "UPLOADED"
	JobConfirmed UploadJobStatus = "CONFIRMED"
	JobFailed    UploadJobStatus = "FAILED"
	JobExpired   UploadJobStatus = "EXPIRED"
)

// UploadJob tracks one presigned-URL grant and its upload lifecycle.
// The presigned URL is opaque and cannot be re-derived after issuance.
type UploadJob struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	S3Key        string          `json:"s3_key"`
	PresignedURL string          `json:"-"`
	FileName     string          `json:"file_name"`
	FileSize     int64           `json:"file_size"`
	MimeType     string          `json:"mime_type"`
	Status       UploadJobStatus `json:"status"`
	ETag         string          `json:"etag,omitempty"`
	ExpiresAt    time.Time       `json:"expires_at"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	ConfirmedAt  *time.Time      `json:"confirmed_at,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// NewUploadJob creates a job in INITIATED state for a freshly issued grant.
func NewUploadJob(userID uuid.UUID, s3Key, presignedURL, fileName string, fileSize int64, mimeType string, expiresAt time.Time) *UploadJob {
	now := time.Now().UTC()
	return &UploadJob{
		ID:           uuid.New(),
		UserID:       userID,
		S3Key:        s3Key,
		PresignedURL: presignedURL,
		FileName:     fileName,
		FileSize:     fileSize,
		MimeType:     mimeType,
		Status:       JobInitiated,
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsExpired reports whether the grant window has passed at the given instant.
func (j *UploadJob) IsExpired(now time.Time) bool {
	return now.After(j.ExpiresAt)
}

// IsTerminal reports whether the job can no longer change state.
func (j *UploadJob) IsTerminal() bool {
	return j.Status == JobConfirmed || j.Status == JobFailed || j.Status == JobExpired
}

// IsActive reports whether the job counts against the per-user upload ceiling.
func (j *UploadJob) IsActive() bool {
	return j.Status == JobInitiated || j.Status == JobUploaded
}

// Confirmed returns a copy of the job transitioned to CONFIRMED with the
// client-reported ETag recorded. The receiver is not mutated; persistence is
// the caller's concern.
func (j UploadJob) Confirmed(etag string, at time.Time) UploadJob {
	j.Status = JobConfirmed
	j.ETag = etag
	at = at.UTC()
	j.ConfirmedAt = &at
	j.UpdatedAt = at
	return j
}

// Failed returns a copy of the job transitioned to FAILED.
func (j UploadJob) Failed(reason string, at time.Time) UploadJob {
	j.Status = JobFailed
	j.ErrorMessage = reason
	j.UpdatedAt = at.UTC()
	return j
}

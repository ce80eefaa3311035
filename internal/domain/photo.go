package domain

import (
	"time"

	"github.com/google/uuid"
)

// PhotoStatus represents the processing state of a photo.
// Transitions only ever move forward: PENDING_PROCESSING -> PROCESSING -> READY|FAILED.
type PhotoStatus string

const (
	PhotoPendingProcessing PhotoStatus = "PENDING_PROCESSING"
	PhotoProcessing        PhotoStatus = "PROCESSING"
	PhotoReady             PhotoStatus = "READY"
	PhotoFailed            PhotoStatus = "FAILED"
)

// photoStatusRank orders statuses for the forward-only rule.
var photoStatusRank = map[PhotoStatus]int{
	PhotoPendingProcessing: 0,
	PhotoProcessing:        1,
	PhotoReady:             2,
	PhotoFailed:            2,
}

// CanAdvance reports whether moving from one photo status to another is a
// legal forward transition. A repeated terminal status is not an advance but
// is tolerated by callers as a duplicate delivery.
func CanAdvance(from, to PhotoStatus) bool {
	rf, okF := photoStatusRank[from]
	rt, okT := photoStatusRank[to]
	if !okF || !okT {
		return false
	}
	return rt > rf
}

// Photo exists only after a confirmed upload. At most one Photo per UploadJob.
type Photo struct {
	ID            uuid.UUID   `json:"id"`
	UserID        uuid.UUID   `json:"user_id"`
	UploadJobID   uuid.UUID   `json:"upload_job_id"`
	OriginalS3Key string      `json:"original_s3_key"`
	FileName      string      `json:"file_name"`
	FileSize      int64       `json:"file_size"`
	MimeType      string      `json:"mime_type"`
	Status        PhotoStatus `json:"status"`
	Width         *int        `json:"width,omitempty"`
	Height        *int        `json:"height,omitempty"`
	TakenAt       *time.Time  `json:"taken_at,omitempty"`
	CameraMake    *string     `json:"camera_make,omitempty"`
	CameraModel   *string     `json:"camera_model,omitempty"`
	GPSLatitude   *float64    `json:"gps_latitude,omitempty"`
	GPSLongitude  *float64    `json:"gps_longitude,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	ProcessedAt   *time.Time  `json:"processed_at,omitempty"`
	ErrorMessage  string      `json:"error_message,omitempty"`
}

// PhotoFromJob derives the Photo aggregate from a job being confirmed.
func PhotoFromJob(job *UploadJob) *Photo {
	now := time.Now().UTC()
	return &Photo{
		ID:            uuid.New(),
		UserID:        job.UserID,
		UploadJobID:   job.ID,
		OriginalS3Key: job.S3Key,
		FileName:      job.FileName,
		FileSize:      job.FileSize,
		MimeType:      job.MimeType,
		Status:        PhotoPendingProcessing,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsTerminal reports whether processing has reached a final state.
func (p *Photo) IsTerminal() bool {
	return p.Status == PhotoReady || p.Status == PhotoFailed
}

// VersionKind is the fixed enumeration of derived renditions.
type VersionKind string

const (
	VersionThumbnail VersionKind = "THUMBNAIL"
	VersionWebP640   VersionKind = "WEBP_640"
	VersionWebP1280  VersionKind = "WEBP_1280"
	VersionWebP1920  VersionKind = "WEBP_1920"
	VersionWebP2560  VersionKind = "WEBP_2560"
)

var versionKinds = map[VersionKind]bool{
	VersionThumbnail: true,
	VersionWebP640:   true,
	VersionWebP1280:  true,
	VersionWebP1920:  true,
	VersionWebP2560:  true,
}

// ParseVersionKind validates a rendition kind reported by the pipeline.
func ParseVersionKind(s string) (VersionKind, error) {
	k := VersionKind(s)
	if !versionKinds[k] {
		return "", ErrInvalidVersionKind
	}
	return k, nil
}

// PhotoVersion is a derived rendition owned by its photo.
// At most one row exists per (photo, kind).
type PhotoVersion struct {
	ID        uuid.UUID   `json:"id"`
	PhotoID   uuid.UUID   `json:"photo_id"`
	Kind      VersionKind `json:"version_type"`
	S3Key     string      `json:"s3_key"`
	Width     int         `json:"width"`
	Height    int         `json:"height"`
	FileSize  int64       `json:"file_size"`
	MimeType  string      `json:"mime_type"`
	CreatedAt time.Time   `json:"created_at"`
}

// PhotoLabel is a detected tag with a confidence score in [0,100].
type PhotoLabel struct {
	ID         uuid.UUID `json:"id"`
	PhotoID    uuid.UUID `json:"photo_id"`
	Name       string    `json:"label_name"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// ProcessingResult is the payload absorbed from the external pipeline when it
// finishes (or fails) work on a photo.
type ProcessingResult struct {
	Status   PhotoStatus
	Width    *int
	Height   *int
	Error    string
	Versions []PhotoVersion
	Labels   []PhotoLabel
}

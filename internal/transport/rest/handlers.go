package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/baechuer/rapidphoto/internal/domain"
	appCtx "github.com/baechuer/rapidphoto/internal/pkg/context"
	"github.com/baechuer/rapidphoto/internal/pkg/logger"
	"github.com/baechuer/rapidphoto/internal/service"
	"github.com/baechuer/rapidphoto/internal/transport/rest/response"
)

// Handler exposes the upload workflow over HTTP.
type Handler struct {
	uploads    *service.UploadService
	processing *service.ProcessingService
}

func NewHandler(uploads *service.UploadService, processing *service.ProcessingService) *Handler {
	return &Handler{uploads: uploads, processing: processing}
}

type initiateRequest struct {
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
}

func (r *initiateRequest) Bind(_ *http.Request) error {
	if r.FileName == "" {
		return errors.New("file_name is required")
	}
	if r.MimeType == "" {
		return errors.New("mime_type is required")
	}
	return nil
}

type initiateResponse struct {
	UploadID  uuid.UUID `json:"upload_id"`
	UploadURL string    `json:"upload_url"`
	S3Key     string    `json:"s3_key"`
	FileName  string    `json:"file_name"`
	FileSize  int64     `json:"file_size"`
	MimeType  string    `json:"mime_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Initiate handles POST /api/v1/uploads/initiate.
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	auth, ok := GetAuth(r.Context())
	if !ok {
		h.unauthenticated(w, r)
		return
	}

	var req initiateRequest
	if err := render.Bind(r, &req); err != nil {
		h.badRequest(w, r, err.Error())
		return
	}

	job, err := h.uploads.Initiate(r.Context(), auth.UserID, req.FileName, req.FileSize, req.MimeType)
	if err != nil {
		h.handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusCreated, initiateResponse{
		UploadID:  job.ID,
		UploadURL: job.PresignedURL,
		S3Key:     job.S3Key,
		FileName:  job.FileName,
		FileSize:  job.FileSize,
		MimeType:  job.MimeType,
		ExpiresAt: job.ExpiresAt,
	})
}

type confirmRequest struct {
	ETag string `json:"etag"`
}

func (r *confirmRequest) Bind(_ *http.Request) error { return nil }

type confirmResponse struct {
	PhotoID  uuid.UUID          `json:"photo_id"`
	UploadID uuid.UUID          `json:"upload_id"`
	Status   domain.PhotoStatus `json:"status"`
}

// Confirm handles POST /api/v1/uploads/{uploadID}/confirm.
// Safe to retry: repeats return the same photo/upload pair.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	auth, ok := GetAuth(r.Context())
	if !ok {
		h.unauthenticated(w, r)
		return
	}

	uploadID, err := uuid.Parse(chi.URLParam(r, "uploadID"))
	if err != nil {
		h.badRequest(w, r, "invalid upload id")
		return
	}

	var req confirmRequest
	if err := render.Bind(r, &req); err != nil {
		h.badRequest(w, r, err.Error())
		return
	}

	res, err := h.uploads.Confirm(r.Context(), uploadID, auth.UserID, req.ETag)
	if err != nil {
		h.handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, confirmResponse{
		PhotoID:  res.PhotoID,
		UploadID: res.UploadID,
		Status:   res.Status,
	})
}

// BatchStatus handles GET /api/v1/uploads/batch/status.
func (h *Handler) BatchStatus(w http.ResponseWriter, r *http.Request) {
	auth, ok := GetAuth(r.Context())
	if !ok {
		h.unauthenticated(w, r)
		return
	}

	statuses, err := h.uploads.BatchStatus(r.Context(), auth.UserID)
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, statuses)
}

type downloadURLResponse struct {
	URL string `json:"url"`
}

// DownloadURL handles GET /api/v1/photos/{photoID}/download-url.
func (h *Handler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	auth, ok := GetAuth(r.Context())
	if !ok {
		h.unauthenticated(w, r)
		return
	}

	photoID, err := uuid.Parse(chi.URLParam(r, "photoID"))
	if err != nil {
		h.badRequest(w, r, "invalid photo id")
		return
	}

	url, err := h.uploads.DownloadURL(r.Context(), auth.UserID, photoID)
	if err != nil {
		h.handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, downloadURLResponse{URL: url})
}

type versionPayload struct {
	Kind     string `json:"version_type"`
	S3Key    string `json:"s3_key"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
}

type labelPayload struct {
	Name       string  `json:"label_name"`
	Confidence float64 `json:"confidence"`
}

type processingCompleteRequest struct {
	Status   string           `json:"status"`
	Width    *int             `json:"width"`
	Height   *int             `json:"height"`
	Error    string           `json:"error"`
	Versions []versionPayload `json:"versions"`
	Labels   []labelPayload   `json:"labels"`
}

func (r *processingCompleteRequest) Bind(_ *http.Request) error {
	switch domain.PhotoStatus(r.Status) {
	case domain.PhotoReady, domain.PhotoFailed:
		return nil
	default:
		return errors.New("status must be READY or FAILED")
	}
}

// ProcessingStarted handles POST /api/v1/internal/photos/{photoID}/processing-started.
// The pipeline reports pickup so batch status shows PROCESSING instead of a
// stale PENDING_PROCESSING.
func (h *Handler) ProcessingStarted(w http.ResponseWriter, r *http.Request) {
	photoID, err := uuid.Parse(chi.URLParam(r, "photoID"))
	if err != nil {
		h.badRequest(w, r, "invalid photo id")
		return
	}

	if err := h.processing.MarkStarted(r.Context(), photoID); err != nil {
		h.handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, map[string]string{"result": "accepted"})
}

// ProcessingComplete handles POST /api/v1/internal/photos/{photoID}/processing-complete.
// Called by the processing pipeline; authenticated by shared secret, not JWT.
func (h *Handler) ProcessingComplete(w http.ResponseWriter, r *http.Request) {
	photoID, err := uuid.Parse(chi.URLParam(r, "photoID"))
	if err != nil {
		h.badRequest(w, r, "invalid photo id")
		return
	}

	var req processingCompleteRequest
	if err := render.Bind(r, &req); err != nil {
		h.badRequest(w, r, err.Error())
		return
	}

	res := domain.ProcessingResult{
		Status: domain.PhotoStatus(req.Status),
		Width:  req.Width,
		Height: req.Height,
		Error:  req.Error,
	}
	for _, v := range req.Versions {
		kind, err := domain.ParseVersionKind(v.Kind)
		if err != nil {
			h.handleErr(w, r, err)
			return
		}
		res.Versions = append(res.Versions, domain.PhotoVersion{
			PhotoID:  photoID,
			Kind:     kind,
			S3Key:    v.S3Key,
			Width:    v.Width,
			Height:   v.Height,
			FileSize: v.FileSize,
			MimeType: v.MimeType,
		})
	}
	for _, l := range req.Labels {
		if l.Name == "" || l.Confidence < 0 || l.Confidence > 100 {
			h.badRequest(w, r, "label requires a name and a confidence in [0,100]")
			return
		}
		res.Labels = append(res.Labels, domain.PhotoLabel{
			PhotoID:    photoID,
			Name:       l.Name,
			Confidence: l.Confidence,
		})
	}

	if err := h.processing.ApplyResult(r.Context(), photoID, res); err != nil {
		h.handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, map[string]string{"result": "accepted"})
}

func (h *Handler) unauthenticated(w http.ResponseWriter, r *http.Request) {
	response.Fail(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil, appCtx.GetRequestID(r.Context()))
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	response.Fail(w, http.StatusBadRequest, "BAD_REQUEST", msg, nil, appCtx.GetRequestID(r.Context()))
}

// handleErr maps domain errors to HTTP status codes. Anything unmapped is a
// 500 with the detail kept out of the response body.
func (h *Handler) handleErr(w http.ResponseWriter, r *http.Request, err error) {
	rid := appCtx.GetRequestID(r.Context())

	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		response.Fail(w, http.StatusNotFound, "UPLOAD_NOT_FOUND", "upload job not found", nil, rid)
	case errors.Is(err, domain.ErrPhotoNotFound):
		response.Fail(w, http.StatusNotFound, "PHOTO_NOT_FOUND", "photo not found", nil, rid)
	case errors.Is(err, domain.ErrNotOwner):
		response.Fail(w, http.StatusForbidden, "FORBIDDEN", "resource belongs to another user", nil, rid)
	case errors.Is(err, domain.ErrGrantExpired):
		response.Fail(w, http.StatusGone, "GRANT_EXPIRED", "upload grant has expired, initiate again", nil, rid)
	case errors.Is(err, domain.ErrUploadLimitExceeded):
		response.Fail(w, http.StatusTooManyRequests, "UPLOAD_LIMIT_EXCEEDED", "too many active uploads", nil, rid)
	case errors.Is(err, domain.ErrInvalidFile):
		response.Fail(w, http.StatusBadRequest, "INVALID_FILE", err.Error(), nil, rid)
	case errors.Is(err, domain.ErrInvalidVersionKind):
		response.Fail(w, http.StatusBadRequest, "INVALID_VERSION_TYPE", "unknown version_type", nil, rid)
	case errors.Is(err, domain.ErrPublishFailed):
		l := logger.WithCtx(r.Context())
		l.Error().Err(err).Msg("event publication failed")
		response.Fail(w, http.StatusInternalServerError, "PUBLISH_FAILED", "upload recorded but event publication failed, retry confirm", nil, rid)
	default:
		l := logger.WithCtx(r.Context())
		l.Error().Err(err).Msg("unhandled error")
		response.Fail(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil, rid)
	}
}

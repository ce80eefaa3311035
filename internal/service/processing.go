package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/baechuer/rapidphoto/internal/domain"
)

// ProcessingService absorbs completion callbacks from the external pipeline.
type ProcessingService struct {
	photos PhotoStore
	log    zerolog.Logger
}

func NewProcessingService(photos PhotoStore, log zerolog.Logger) *ProcessingService {
	return &ProcessingService{photos: photos, log: log}
}

// MarkStarted records that the pipeline picked the photo up. The store update
// is conditional on PENDING_PROCESSING, so a late or repeated call is a no-op
// rather than a regression.
func (s *ProcessingService) MarkStarted(ctx context.Context, photoID uuid.UUID) error {
	return s.photos.MarkProcessing(ctx, photoID)
}

// ApplyResult records the pipeline's terminal result for a photo.
//
// A callback for an unknown photo succeeds without writing anything: the
// pipeline has no useful retry action, and failing it would only cause
// pointless redeliveries. Duplicate and late callbacks are tolerated by the
// store layer (forward-only status, version upserts).
func (s *ProcessingService) ApplyResult(ctx context.Context, photoID uuid.UUID, res domain.ProcessingResult) error {
	err := s.photos.ApplyResult(ctx, photoID, res)
	if errors.Is(err, domain.ErrPhotoNotFound) {
		s.log.Warn().
			Str("photo_id", photoID.String()).
			Str("status", string(res.Status)).
			Msg("completion callback for unknown photo, dropping")
		return nil
	}
	if err != nil {
		return err
	}

	s.log.Info().
		Str("photo_id", photoID.String()).
		Str("status", string(res.Status)).
		Int("versions", len(res.Versions)).
		Int("labels", len(res.Labels)).
		Msg("processing result applied")
	return nil
}

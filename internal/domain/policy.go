package domain

import "fmt"

// Upload policy constants. The active-upload ceiling is a soft cap: it is
// enforced by a plain count query, so concurrent initiates may overshoot it
// by a small margin.
const (
	MaxFileSize       int64 = 100_000_000 // bytes
	MaxActiveUploads        = 100
)

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
}

// ValidateFile checks declared size and content type before any state is
// created. Failures wrap ErrInvalidFile with the concrete reason.
func ValidateFile(fileSize int64, mimeType string) error {
	if fileSize <= 0 {
		return fmt.Errorf("%w: file size must be greater than 0", ErrInvalidFile)
	}
	if fileSize > MaxFileSize {
		return fmt.Errorf("%w: file size %d exceeds maximum %d bytes", ErrInvalidFile, fileSize, MaxFileSize)
	}
	if !allowedMIME[mimeType] {
		return fmt.Errorf("%w: unsupported mime type %q", ErrInvalidFile, mimeType)
	}
	return nil
}

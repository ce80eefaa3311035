package domain

import "errors"

var (
	ErrJobNotFound   = errors.New("upload job not found")
	ErrPhotoNotFound = errors.New("photo not found")

	ErrNotOwner         = errors.New("upload job does not belong to user")
	ErrGrantExpired     = errors.New("upload grant has expired")
	ErrAlreadyConfirmed = errors.New("upload job already confirmed")

	ErrUploadLimitExceeded = errors.New("concurrent upload limit exceeded")
	ErrInvalidFile         = errors.New("invalid file")
	ErrInvalidVersionKind  = errors.New("unknown photo version kind")

	ErrPublishFailed = errors.New("failed to publish upload confirmed event")

	ErrCacheMiss = errors.New("cache miss")
)

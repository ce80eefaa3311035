package logger

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	appCtx "github.com/baechuer/rapidphoto/internal/pkg/context"
)

var base = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init replaces the process logger, e.g. to set level from config.
func Init(level zerolog.Level) zerolog.Logger {
	base = zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	return base
}

// L returns the process logger.
func L() zerolog.Logger {
	return base
}

// WithCtx returns the process logger enriched with the request id, when the
// context carries one.
func WithCtx(ctx context.Context) zerolog.Logger {
	if rid := appCtx.GetRequestID(ctx); rid != "" {
		return base.With().Str("request_id", rid).Logger()
	}
	return base
}

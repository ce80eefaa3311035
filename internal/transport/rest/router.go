package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/baechuer/rapidphoto/internal/security"
	"github.com/baechuer/rapidphoto/internal/transport/rest/response"
)

// RouterDeps carries everything the router wires together.
type RouterDeps struct {
	Handler        *Handler
	Verifier       security.AccessTokenVerifier
	Issuer         string
	PipelineSecret string
	Limiter        RequestLimiter
	RateLimit      int
	RateWindow     time.Duration
	Ready          func(ctx context.Context) error
}

// NewRouter builds the chi mux: public health probes, the JWT-guarded API
// group, and the secret-guarded internal callback group.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestID)
	r.Use(HTTPLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		response.Data(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if deps.Ready != nil {
			if err := deps.Ready(req.Context()); err != nil {
				response.Fail(w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), nil, "")
				return
			}
		}
		response.Data(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Route("/api/v1", func(api chi.Router) {
		if deps.Limiter != nil && deps.RateLimit > 0 {
			api.Use(RateLimitMiddleware(deps.Limiter, deps.RateLimit, deps.RateWindow))
		}

		api.Group(func(authed chi.Router) {
			authed.Use(AuthMiddleware(deps.Verifier, deps.Issuer))

			authed.Post("/uploads/initiate", deps.Handler.Initiate)
			authed.Post("/uploads/{uploadID}/confirm", deps.Handler.Confirm)
			authed.Get("/uploads/batch/status", deps.Handler.BatchStatus)
			authed.Get("/photos/{photoID}/download-url", deps.Handler.DownloadURL)
		})

		api.Group(func(internal chi.Router) {
			internal.Use(PipelineSecret(deps.PipelineSecret))

			internal.Post("/internal/photos/{photoID}/processing-started", deps.Handler.ProcessingStarted)
			internal.Post("/internal/photos/{photoID}/processing-complete", deps.Handler.ProcessingComplete)
		})
	})

	return r
}

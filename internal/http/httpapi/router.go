package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"listingshots/internal/http/handlers"
	"listingshots/internal/middleware"
)

// Options configures the router.
type Options struct {
	Logger          zerolog.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
	// StaticDir is served under /static/ when non-empty.
	StaticDir string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/models", app.Models)

	r.Route("/v1/images", func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		r.Post("/generate", app.ImagesGenerate)
		r.Post("/generate/attempt", app.ImagesGenerateAttempt)
	})

	r.Route("/v1/prompts", func(r chi.Router) {
		r.Post("/preview", app.PromptPreview)
		r.Get("/templates", app.PromptTemplates)
	})

	r.Route("/v1/assets", func(r chi.Router) {
		r.Delete("/", app.DeleteAsset)
		r.Post("/archive", app.ArchiveAssets)
	})

	if dir := strings.TrimSpace(opts.StaticDir); dir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(dir)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}

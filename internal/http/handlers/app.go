package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"listingshots/internal/domain"
	"listingshots/internal/imagegen"
	"listingshots/internal/infra"
)

const maxBodyBytes = 16 << 20

// Generator is the generation engine as seen by the HTTP layer.
type Generator interface {
	Generate(ctx context.Context, req imagegen.GenerationRequest) (imagegen.Response, error)
	GenerateAttempt(ctx context.Context, req imagegen.GenerationRequest) (imagegen.Response, error)
	PreviewPrompt(req imagegen.GenerationRequest) string
	Models() []string
	Templates() imagegen.Templates
}

// AssetStore persists, deletes and archives generated images.
type AssetStore interface {
	Save(ctx context.Context, imageURL string, shot imagegen.ShotType) (string, error)
	Delete(ctx context.Context, ref string) error
	Archive(ctx context.Context, refs []string, bucket string) (string, error)
}

// ModelStates reports per-model circuit breaker state.
type ModelStates interface {
	States(models []string) map[string]string
}

// Options configures App.
type Options struct {
	Generator         Generator
	Store             AssetStore
	Breakers          ModelStates
	Logger            *infra.Logger
	PersistOutputs    bool
	GenerationTimeout time.Duration
}

// App holds the dependencies shared by every handler.
type App struct {
	gen               Generator
	store             AssetStore
	breakers          ModelStates
	logger            *infra.Logger
	persistOutputs    bool
	generationTimeout time.Duration
}

func NewApp(opts Options) *App {
	return &App{
		gen:               opts.Generator,
		store:             opts.Store,
		breakers:          opts.Breakers,
		logger:            infra.LoggerOrDiscard(opts.Logger),
		persistOutputs:    opts.PersistOutputs,
		generationTimeout: opts.GenerationTimeout,
	}
}

type errorResponse struct {
	Error        string  `json:"error"`
	SystemPrompt string  `json:"systemPrompt,omitempty"`
	Retryable    *bool   `json:"retryable,omitempty"`
	NextModel    *string `json:"nextModel,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, errorResponse{Error: message})
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		a.error(w, http.StatusBadRequest, "invalid JSON payload")
		return false
	}
	return true
}

// log returns the request-scoped logger installed by middleware.Logger, or
// the application logger when none is present.
func (a *App) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return a.logger
}

// statusFor maps engine and domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrUnknownModel):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAssetResolution):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStorageDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

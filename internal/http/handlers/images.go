package handlers

import (
	"context"
	"errors"
	"net/http"

	"listingshots/internal/imagegen"
	"listingshots/internal/middleware"
)

// ImagesGenerate runs a request through the whole model cascade.
func (a *App) ImagesGenerate(w http.ResponseWriter, r *http.Request) {
	req, ok := a.buildRequest(w, r)
	if !ok {
		return
	}
	ctx, cancel := a.generationContext(r.Context())
	defer cancel()

	resp, err := a.gen.Generate(ctx, req)
	if err != nil {
		body := errorResponse{Error: err.Error()}
		var exhausted *imagegen.ExhaustedError
		if errors.As(err, &exhausted) {
			body.SystemPrompt = exhausted.SystemPrompt
			a.log(ctx).Warn().Err(err).Str("model", exhausted.Model).Int("attempts", len(exhausted.Attempts)).Msg("generation exhausted")
		}
		a.json(w, statusFor(err), body)
		return
	}
	a.respond(ctx, w, resp)
}

// ImagesGenerateAttempt tries a single model and reports which model the
// client should try next on failure.
func (a *App) ImagesGenerateAttempt(w http.ResponseWriter, r *http.Request) {
	req, ok := a.buildRequest(w, r)
	if !ok {
		return
	}
	ctx, cancel := a.generationContext(r.Context())
	defer cancel()

	resp, err := a.gen.GenerateAttempt(ctx, req)
	if err != nil {
		body := errorResponse{Error: err.Error()}
		var signal *imagegen.FallbackSignal
		if errors.As(err, &signal) {
			retryable := signal.Retryable
			next := signal.NextModel
			body.SystemPrompt = signal.SystemPrompt
			body.Retryable = &retryable
			if next != "" {
				body.NextModel = &next
			}
			a.log(ctx).Warn().Err(err).Str("model", signal.FailedModel).Str("next_model", next).Msg("generation attempt failed")
		}
		a.json(w, statusFor(err), body)
		return
	}
	a.respond(ctx, w, resp)
}

// PromptPreview returns the system prompt a request would use without
// calling any provider.
func (a *App) PromptPreview(w http.ResponseWriter, r *http.Request) {
	req, ok := a.buildRequest(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, map[string]string{"systemPrompt": a.gen.PreviewPrompt(req)})
}

// PromptTemplates returns the effective instruction templates.
func (a *App) PromptTemplates(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.gen.Templates())
}

func (a *App) buildRequest(w http.ResponseWriter, r *http.Request) (imagegen.GenerationRequest, bool) {
	var payload imagegen.RequestPayload
	if !a.decode(w, r, &payload) {
		return imagegen.GenerationRequest{}, false
	}
	req, err := payload.Build()
	if err != nil {
		a.error(w, statusFor(err), err.Error())
		return imagegen.GenerationRequest{}, false
	}
	req.RequestID = middleware.RequestIDFromContext(r.Context())
	return req, true
}

func (a *App) generationContext(parent context.Context) (context.Context, context.CancelFunc) {
	if a.generationTimeout > 0 {
		return context.WithTimeout(parent, a.generationTimeout)
	}
	return context.WithCancel(parent)
}

// respond writes a successful generation, first moving outputs into the
// asset store when persistence is enabled. A failed save keeps the provider
// URL.
func (a *App) respond(ctx context.Context, w http.ResponseWriter, resp imagegen.Response) {
	if a.persistOutputs && a.store != nil {
		for i, img := range resp.Images {
			if img.URL == imagegen.PlaceholderImageURL {
				continue
			}
			saved, err := a.store.Save(ctx, img.URL, img.ShotType)
			if err != nil {
				a.log(ctx).Warn().Err(err).Str("shot_type", string(img.ShotType)).Msg("persist output failed")
				continue
			}
			resp.Images[i].URL = saved
		}
	}
	a.json(w, http.StatusOK, resp)
}

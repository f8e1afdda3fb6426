package imagegen

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"listingshots/internal/domain"
	"listingshots/internal/infra"
)

// Attempt records one model's try within a cascade.
type Attempt struct {
	Model        string
	Err          error
	Retryable    bool
	SystemPrompt string
}

// Outcome is what one attempt produced. Transcript is filled even when the
// attempt failed.
type Outcome struct {
	Images     []GeneratedImage
	Transcript Transcript
}

// AttemptFunc runs the whole request against a single model.
type AttemptFunc func(ctx context.Context, model string) (Outcome, error)

// fallbackHook is called between attempts. Returning an error stops the
// cascade.
type fallbackHook func(ctx context.Context, signal FallbackSignal) error

// Cascade tries an ordered list of models until one succeeds.
type Cascade struct {
	models []string
	logger *infra.Logger
}

// NewCascade builds a cascade over models in priority order.
func NewCascade(models []string, logger *infra.Logger) *Cascade {
	cleaned := make([]string, 0, len(models))
	for _, model := range models {
		if model = strings.TrimSpace(model); model != "" && !slices.Contains(cleaned, model) {
			cleaned = append(cleaned, model)
		}
	}
	return &Cascade{models: cleaned, logger: infra.LoggerOrDiscard(logger)}
}

// Models returns the configured priority list.
func (c *Cascade) Models() []string {
	return append([]string(nil), c.models...)
}

// Known reports whether preferred is empty or one of the configured models.
func (c *Cascade) Known(preferred string) bool {
	preferred = strings.TrimSpace(preferred)
	return preferred == "" || slices.Contains(c.models, preferred)
}

// Order returns the models to try for a request. A preferred model starts the
// cascade at its position in the list. An unknown preferred model yields nil.
func (c *Cascade) Order(preferred string) []string {
	preferred = strings.TrimSpace(preferred)
	if preferred == "" {
		return c.Models()
	}
	if idx := slices.Index(c.models, preferred); idx >= 0 {
		return append([]string(nil), c.models[idx:]...)
	}
	return nil
}

// Run cascades through the models starting at preferred.
func (c *Cascade) Run(ctx context.Context, preferred string, fn AttemptFunc) (Outcome, string, error) {
	return c.runStepwise(ctx, preferred, fn, nil)
}

func (c *Cascade) runStepwise(ctx context.Context, preferred string, fn AttemptFunc, hook fallbackHook) (Outcome, string, error) {
	if !c.Known(preferred) {
		return Outcome{}, "", fmt.Errorf("%w: %s", domain.ErrUnknownModel, strings.TrimSpace(preferred))
	}
	order := c.Order(preferred)
	if len(order) == 0 {
		return Outcome{}, "", fmt.Errorf("%w: no models configured", domain.ErrUnknownModel)
	}

	var (
		transcript Transcript
		attempts   []Attempt
	)
	for i, model := range order {
		out, err := fn(ctx, model)
		transcript.Merge(out.Transcript)
		if err == nil {
			out.Transcript = transcript
			if i > 0 {
				c.logger.Info().Str("model", model).Int("attempt", i+1).Msg("imagegen: fallback model succeeded")
			}
			return out, model, nil
		}

		genErr := Classify(err)
		attempts = append(attempts, Attempt{
			Model:        model,
			Err:          genErr,
			Retryable:    genErr.Retryable,
			SystemPrompt: transcript.String(),
		})
		next := ""
		if i+1 < len(order) {
			next = order[i+1]
		}
		c.logger.Warn().
			Err(err).
			Str("model", model).
			Str("next_model", next).
			Int("attempt", i+1).
			Int("status", genErr.Status).
			Bool("retryable", genErr.Retryable).
			Msg("imagegen: model attempt failed")

		if !genErr.Retryable || next == "" || ctx.Err() != nil {
			return Outcome{Transcript: transcript}, model, &ExhaustedError{
				Err:          genErr,
				Model:        model,
				SystemPrompt: transcript.String(),
				Attempts:     attempts,
			}
		}
		if hook != nil {
			signal := FallbackSignal{
				Err:          genErr,
				FailedModel:  model,
				NextModel:    next,
				SystemPrompt: transcript.String(),
				Retryable:    true,
			}
			if hookErr := hook(ctx, signal); hookErr != nil {
				return Outcome{Transcript: transcript}, model, &ExhaustedError{
					Err:          errors.Join(genErr, hookErr),
					Model:        model,
					SystemPrompt: transcript.String(),
					Attempts:     attempts,
				}
			}
		}
	}
	return Outcome{Transcript: transcript}, "", errors.New("imagegen: cascade ended without outcome")
}

// Step performs a single attempt for single-attempt mode. An empty model
// selects the first configured model. On failure a *FallbackSignal names the
// model the caller should try next, if any.
func (c *Cascade) Step(ctx context.Context, model string, fn AttemptFunc) (Outcome, string, error) {
	model = strings.TrimSpace(model)
	if len(c.models) == 0 {
		return Outcome{}, "", fmt.Errorf("%w: no models configured", domain.ErrUnknownModel)
	}
	if model == "" {
		model = c.models[0]
	}
	idx := slices.Index(c.models, model)
	if idx < 0 {
		return Outcome{}, "", fmt.Errorf("%w: %s", domain.ErrUnknownModel, model)
	}

	out, err := fn(ctx, model)
	if err == nil {
		return out, model, nil
	}
	genErr := Classify(err)
	next := ""
	if genErr.Retryable && idx+1 < len(c.models) {
		next = c.models[idx+1]
	}
	c.logger.Warn().
		Err(err).
		Str("model", model).
		Str("next_model", next).
		Bool("retryable", genErr.Retryable).
		Msg("imagegen: single attempt failed")
	return Outcome{Transcript: out.Transcript}, model, &FallbackSignal{
		Err:          genErr,
		FailedModel:  model,
		NextModel:    next,
		SystemPrompt: out.Transcript.String(),
		Retryable:    next != "",
	}
}

package imagegen

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"

	"listingshots/internal/infra"
)

// PlaceholderImageURL is a 1x1 transparent PNG returned when the provider
// answers without an extractable image.
const PlaceholderImageURL = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mP8/x8AAwMB/6X+ZQAAAABJRU5ErkJggg=="

// Job is one image to generate.
type Job struct {
	Shot          ShotType
	Index         int
	Count         int
	ProductImages []SourceImage
	Background    *SourceImage
	CustomContext string
	Edits         []EditSpec
	Model         string
	Seed          *int
	Temperature   *float64
	Instruction   string
	RequestID     string
}

// Invocation is the outcome of a successful Invoke.
type Invocation struct {
	ImageURL    string
	Instruction string
	Seed        *int
}

// Invoker performs one provider call per job with same-model retries.
type Invoker struct {
	provider Provider
	synth    *Synthesizer
	policy   RetryPolicy
	sleep    SleepFunc
	logger   *infra.Logger
}

// InvokerOptions configures an Invoker.
type InvokerOptions struct {
	Policy *RetryPolicy
	Sleep  SleepFunc
	Logger *infra.Logger
}

// NewInvoker wires a provider and synthesizer.
func NewInvoker(provider Provider, synth *Synthesizer, opts InvokerOptions) *Invoker {
	policy := DefaultRetryPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return &Invoker{
		provider: provider,
		synth:    synth,
		policy:   policy,
		sleep:    sleep,
		logger:   infra.LoggerOrDiscard(opts.Logger),
	}
}

// Invoke generates the image for job. Failures are returned as *GenerationError.
func (iv *Invoker) Invoke(ctx context.Context, job Job) (Invocation, error) {
	instruction := job.Instruction
	if strings.TrimSpace(instruction) == "" {
		instruction = iv.synth.Synthesize(job.Shot, job.Count, job.CustomContext, job.Edits)
	}
	req := ProviderRequest{
		Model:             job.Model,
		SystemInstruction: instruction,
		UserText:          defaultUserText,
		ReferenceImages:   job.ProductImages,
		BackgroundImage:   job.Background,
		Seed:              job.Seed,
		Temperature:       job.Temperature,
		RequestID:         job.RequestID,
	}

	var lastErr *GenerationError
	for attempt := 0; attempt <= iv.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := iv.policy.Delay(attempt)
			iv.logger.Debug().
				Str("request_id", job.RequestID).
				Str("model", job.Model).
				Str("shot_type", string(job.Shot)).
				Int("index", job.Index).
				Int("retry", attempt).
				Dur("backoff", delay).
				Msg("imagegen: retrying provider call")
			if err := iv.sleep(ctx, delay); err != nil {
				return Invocation{}, &GenerationError{
					Status:    lastErr.Status,
					Message:   lastErr.Message,
					Retryable: true,
					Err:       errors.Join(lastErr.Err, err),
				}
			}
		}
		result, err := iv.provider.Generate(ctx, req)
		if err == nil {
			url := strings.TrimSpace(result.ImageURL)
			if url == "" {
				iv.logger.Warn().
					Str("request_id", job.RequestID).
					Str("model", job.Model).
					Str("shot_type", string(job.Shot)).
					Msg("imagegen: provider returned no image; using placeholder")
				url = PlaceholderImageURL
			}
			return Invocation{ImageURL: url, Instruction: instruction, Seed: job.Seed}, nil
		}
		lastErr = Classify(err)
		if !lastErr.Retryable {
			break
		}
		iv.logger.Warn().
			Err(err).
			Str("request_id", job.RequestID).
			Str("model", job.Model).
			Str("shot_type", string(job.Shot)).
			Int("status", lastErr.Status).
			Int("attempt", attempt+1).
			Msg("imagegen: transient provider failure")
	}
	return Invocation{}, lastErr
}

// resolveSeed applies the seed policy: an explicit cursor seed wins, then a
// create-similar seed, otherwise no seed.
func resolveSeed(cursor *SeedCursor, similar *int) *int {
	if cursor != nil {
		if seed, ok := cursor.Next(); ok {
			return &seed
		}
	}
	if similar != nil {
		seed := *similar
		return &seed
	}
	return nil
}

// randomSeed draws a non-negative 31-bit seed.
func randomSeed() int {
	return int(rand.Int32N(1<<31 - 1))
}

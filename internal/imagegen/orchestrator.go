package imagegen

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"listingshots/internal/domain"
	"listingshots/internal/infra"
)

// Config wires an Orchestrator.
type Config struct {
	Provider  Provider
	Assets    AssetResolver
	Templates Templates
	Models    []string
	Retry     *RetryPolicy
	Sleep     SleepFunc
	Logger    *infra.Logger
}

// Orchestrator expands a request into shot type runs under the model cascade.
type Orchestrator struct {
	synth     *Synthesizer
	scheduler *Scheduler
	cascade   *Cascade
	assets    AssetResolver
	logger    *infra.Logger
}

// NewOrchestrator builds the generation engine.
func NewOrchestrator(cfg Config) *Orchestrator {
	logger := infra.LoggerOrDiscard(cfg.Logger)
	synth := NewSynthesizer(cfg.Templates)
	invoker := NewInvoker(cfg.Provider, synth, InvokerOptions{Policy: cfg.Retry, Sleep: cfg.Sleep, Logger: logger})
	return &Orchestrator{
		synth:     synth,
		scheduler: NewScheduler(invoker, logger),
		cascade:   NewCascade(cfg.Models, logger),
		assets:    cfg.Assets,
		logger:    logger,
	}
}

// Models returns the fallback order.
func (o *Orchestrator) Models() []string {
	return o.cascade.Models()
}

// Templates returns the effective instruction templates.
func (o *Orchestrator) Templates() Templates {
	return o.synth.Templates()
}

// Generate runs the request through the full cascade. On failure the error is
// an *ExhaustedError carrying the attempted instructions.
func (o *Orchestrator) Generate(ctx context.Context, req GenerationRequest) (Response, error) {
	if err := req.Validate(); err != nil {
		return Response{}, err
	}
	if !o.cascade.Known(req.PreferredModel) {
		return Response{}, fmt.Errorf("%w: %s", domain.ErrUnknownModel, strings.TrimSpace(req.PreferredModel))
	}
	resolved, err := o.resolve(ctx, req)
	if err != nil {
		return Response{}, &ExhaustedError{Err: permanent(err), SystemPrompt: o.PreviewPrompt(req)}
	}
	out, model, err := o.cascade.Run(ctx, req.PreferredModel, o.attemptFunc(req, resolved))
	if err != nil {
		return Response{}, err
	}
	return o.response(out, model), nil
}

// GenerateAttempt tries only req.PreferredModel (or the first model). On
// failure the error is a *FallbackSignal naming the next model.
func (o *Orchestrator) GenerateAttempt(ctx context.Context, req GenerationRequest) (Response, error) {
	if err := req.Validate(); err != nil {
		return Response{}, err
	}
	if !o.cascade.Known(req.PreferredModel) {
		return Response{}, fmt.Errorf("%w: %s", domain.ErrUnknownModel, strings.TrimSpace(req.PreferredModel))
	}
	resolved, err := o.resolve(ctx, req)
	if err != nil {
		return Response{}, &FallbackSignal{Err: permanent(err), FailedModel: req.PreferredModel, SystemPrompt: o.PreviewPrompt(req)}
	}
	out, model, err := o.cascade.Step(ctx, req.PreferredModel, o.attemptFunc(req, resolved))
	if err != nil {
		return Response{}, err
	}
	return o.response(out, model), nil
}

// PreviewPrompt returns the system prompt a generation of req would use,
// without calling the provider. Counts above MaxShotCount are clamped.
func (o *Orchestrator) PreviewPrompt(req GenerationRequest) string {
	plans := o.plan(req.clamped(), resolvedAssets{})
	return o.finalTranscript(transcriptOf(plans))
}

func (o *Orchestrator) response(out Outcome, model string) Response {
	images := out.Images
	if images == nil {
		images = []GeneratedImage{}
	}
	return Response{Images: images, SystemPrompt: o.finalTranscript(out.Transcript), Model: model}
}

func (o *Orchestrator) finalTranscript(t Transcript) string {
	if t.Len() == 0 {
		t.Add(o.synth.Synthesize(shotNone, 0, "", nil))
	}
	return t.String()
}

func (o *Orchestrator) attemptFunc(req GenerationRequest, resolved resolvedAssets) AttemptFunc {
	return func(ctx context.Context, model string) (Outcome, error) {
		plans := o.plan(req, resolved)
		out := Outcome{Transcript: transcriptOf(plans)}

		results := make([]ShotResult, len(plans))
		g, gctx := errgroup.WithContext(ctx)
		for i, plan := range plans {
			g.Go(func() error {
				res, err := o.scheduler.Run(gctx, plan, model)
				results[i] = res
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return out, err
		}
		for _, res := range results {
			out.Images = append(out.Images, res.Images...)
		}
		o.logger.Info().
			Str("request_id", req.RequestID).
			Str("model", model).
			Int("images", len(out.Images)).
			Msg("imagegen: generation succeeded")
		return out, nil
	}
}

// plan builds every shot run for one attempt. Seeds are assigned here, in
// shot order and then job index, before any job is dispatched.
func (o *Orchestrator) plan(req GenerationRequest, resolved resolvedAssets) []ShotPlan {
	cursor := NewSeedCursor(req.Seeds)
	var plans []ShotPlan
	for _, shot := range ShotOrder {
		opts, ok := req.Shots[shot]
		if !ok || opts.Count <= 0 {
			continue
		}
		var similar *int
		if opts.CreateSimilar {
			seed := randomSeed()
			similar = &seed
		}
		products := resolved.products
		if opts.NoReferenceImage {
			products = nil
		}
		var background *SourceImage
		if ref := strings.TrimSpace(opts.BackgroundImage); ref != "" {
			if img, ok := resolved.backgrounds[ref]; ok {
				background = &img
			}
		}
		plan := ShotPlan{Shot: shot, Jobs: make([]Job, 0, opts.Count)}
		for i := 0; i < opts.Count; i++ {
			plan.Jobs = append(plan.Jobs, Job{
				Shot:          shot,
				Index:         i,
				Count:         opts.Count,
				ProductImages: products,
				Background:    background,
				CustomContext: opts.CustomContext,
				Seed:          resolveSeed(cursor, similar),
				Temperature:   req.Temperature,
				Instruction:   o.synth.Synthesize(shot, opts.Count, opts.CustomContext, nil),
				RequestID:     req.RequestID,
			})
		}
		plans = append(plans, plan)
	}

	if req.Edit != nil && req.Edit.Count > 0 {
		plan := ShotPlan{Shot: ShotEdit, Jobs: make([]Job, 0, req.Edit.Count)}
		for i := 0; i < req.Edit.Count; i++ {
			plan.Jobs = append(plan.Jobs, Job{
				Shot:          ShotEdit,
				Index:         i,
				Count:         req.Edit.Count,
				ProductImages: resolved.products,
				Edits:         req.Edit.Specs,
				Seed:          resolveSeed(cursor, nil),
				Temperature:   req.Temperature,
				Instruction:   o.synth.Synthesize(ShotEdit, req.Edit.Count, "", req.Edit.Specs),
				RequestID:     req.RequestID,
			})
		}
		plans = append(plans, plan)
	}
	return plans
}

func transcriptOf(plans []ShotPlan) Transcript {
	var t Transcript
	for _, plan := range plans {
		for _, sample := range plan.Samples() {
			t.Add(sample)
		}
	}
	return t
}

type resolvedAssets struct {
	products    []SourceImage
	backgrounds map[string]SourceImage
}

// resolve turns every product and background reference into provider form
// once per request.
func (o *Orchestrator) resolve(ctx context.Context, req GenerationRequest) (resolvedAssets, error) {
	var refs []string
	seen := make(map[string]bool)
	add := func(ref string) {
		if ref = strings.TrimSpace(ref); ref != "" && !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	for _, ref := range req.ProductImages {
		add(ref)
	}
	for _, shot := range ShotOrder {
		if opts, ok := req.Shots[shot]; ok && opts.Count > 0 {
			add(opts.BackgroundImage)
		}
	}

	images := make([]SourceImage, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		g.Go(func() error {
			img, err := o.resolveOne(gctx, ref)
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		o.logger.Warn().Err(err).Str("request_id", req.RequestID).Msg("imagegen: asset resolution failed")
		return resolvedAssets{}, err
	}

	byRef := make(map[string]SourceImage, len(refs))
	for i, ref := range refs {
		byRef[ref] = images[i]
	}
	out := resolvedAssets{backgrounds: byRef}
	for _, ref := range req.ProductImages {
		if ref = strings.TrimSpace(ref); ref != "" {
			out.products = append(out.products, byRef[ref])
		}
	}
	return out, nil
}

func (o *Orchestrator) resolveOne(ctx context.Context, ref string) (SourceImage, error) {
	if o.assets == nil {
		return SourceImage{URL: ref}, nil
	}
	img, err := o.assets.ResolveLocal(ctx, ref)
	if err != nil {
		return SourceImage{}, fmt.Errorf("%w: %s: %w", domain.ErrAssetResolution, truncateRef(ref), err)
	}
	if img.IsZero() {
		return SourceImage{}, fmt.Errorf("%w: %s: empty image", domain.ErrAssetResolution, truncateRef(ref))
	}
	return img, nil
}

func truncateRef(ref string) string {
	const limit = 64
	if len(ref) <= limit {
		return ref
	}
	return ref[:limit] + "..."
}

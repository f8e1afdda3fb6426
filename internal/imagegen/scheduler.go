package imagegen

import (
	"context"

	"golang.org/x/sync/errgroup"

	"listingshots/internal/infra"
)

// ShotPlan is the fully planned work for one shot type: every job already
// carries its seed and its instruction.
type ShotPlan struct {
	Shot ShotType
	Jobs []Job
}

// Samples returns the planned instruction of every job, in index order.
func (p ShotPlan) Samples() []string {
	samples := make([]string, 0, len(p.Jobs))
	for _, job := range p.Jobs {
		samples = append(samples, job.Instruction)
	}
	return samples
}

// ShotResult is the outcome of one shot type run.
type ShotResult struct {
	Images  []GeneratedImage
	Samples []string
}

// Scheduler fans one shot type out into concurrent invocations.
type Scheduler struct {
	invoker *Invoker
	logger  *infra.Logger
}

// NewScheduler builds a scheduler over invoker.
func NewScheduler(invoker *Invoker, logger *infra.Logger) *Scheduler {
	return &Scheduler{invoker: invoker, logger: infra.LoggerOrDiscard(logger)}
}

// Run invokes every job of plan against model concurrently. Images are
// returned in job index order. The first failure cancels the remaining jobs
// and is returned; Samples is populated either way.
func (s *Scheduler) Run(ctx context.Context, plan ShotPlan, model string) (ShotResult, error) {
	result := ShotResult{Samples: plan.Samples()}
	if len(plan.Jobs) == 0 {
		return result, nil
	}

	slots := make([]GeneratedImage, len(plan.Jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, job := range plan.Jobs {
		job.Model = model
		g.Go(func() error {
			inv, err := s.invoker.Invoke(gctx, job)
			if err != nil {
				return err
			}
			slots[i] = GeneratedImage{URL: inv.ImageURL, ShotType: plan.Shot, Seed: inv.Seed}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn().
			Err(err).
			Str("model", model).
			Str("shot_type", string(plan.Shot)).
			Int("count", len(plan.Jobs)).
			Msg("imagegen: shot type failed")
		return result, err
	}
	result.Images = slots
	return result, nil
}

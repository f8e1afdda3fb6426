package imagegen

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func planFor(synth *Synthesizer, shot ShotType, count int, seeds []int) ShotPlan {
	cursor := NewSeedCursor(seeds)
	plan := ShotPlan{Shot: shot}
	for i := 0; i < count; i++ {
		plan.Jobs = append(plan.Jobs, Job{
			Shot:        shot,
			Index:       i,
			Count:       count,
			Seed:        resolveSeed(cursor, nil),
			Instruction: synth.Synthesize(shot, count, "", nil),
		})
	}
	return plan
}

func TestSchedulerReturnsImagesInIndexOrder(t *testing.T) {
	// later jobs finish first
	provider := &stubProvider{result: func(req ProviderRequest, _ int) ProviderResult {
		time.Sleep(time.Duration(10-*req.Seed) * time.Millisecond)
		return ProviderResult{ImageURL: fmt.Sprintf("seed-%d", *req.Seed)}
	}}
	synth := NewSynthesizer(Templates{})
	sched := NewScheduler(NewInvoker(provider, synth, InvokerOptions{Policy: noRetries()}), nil)

	for run := 0; run < 3; run++ {
		res, err := sched.Run(context.Background(), planFor(synth, ShotHero, 4, []int{1, 2, 3, 4}), "model-a")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Images) != 4 {
			t.Fatalf("expected 4 images, got %d", len(res.Images))
		}
		for i, img := range res.Images {
			if img.ShotType != ShotHero {
				t.Fatalf("image %d tagged %q", i, img.ShotType)
			}
			if want := fmt.Sprintf("seed-%d", i+1); img.URL != want {
				t.Fatalf("run %d: image %d = %q, want %q", run, i, img.URL, want)
			}
			if img.Seed == nil || *img.Seed != i+1 {
				t.Fatalf("image %d lost its seed", i)
			}
		}
		if len(res.Samples) != 4 {
			t.Fatalf("expected one instruction sample per job, got %d", len(res.Samples))
		}
	}
	if provider.callCount() != 12 {
		t.Fatalf("expected 12 provider calls, got %d", provider.callCount())
	}
}

func TestSchedulerZeroCountDoesNothing(t *testing.T) {
	provider := &stubProvider{}
	synth := NewSynthesizer(Templates{})
	sched := NewScheduler(NewInvoker(provider, synth, InvokerOptions{}), nil)

	res, err := sched.Run(context.Background(), ShotPlan{Shot: ShotMacro}, "model-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Images) != 0 || len(res.Samples) != 0 || provider.callCount() != 0 {
		t.Fatalf("expected empty result, got %+v with %d calls", res, provider.callCount())
	}
}

func TestSchedulerPropagatesJobFailureWithSamples(t *testing.T) {
	provider := &stubProvider{fail: func(req ProviderRequest, _ int) error {
		if *req.Seed == 2 {
			return &ProviderError{Status: 400, Message: "rejected"}
		}
		return nil
	}}
	synth := NewSynthesizer(Templates{})
	sched := NewScheduler(NewInvoker(provider, synth, InvokerOptions{Policy: noRetries()}), nil)

	res, err := sched.Run(context.Background(), planFor(synth, ShotLifestyle, 3, []int{1, 2, 3}), "model-a")
	var genErr *GenerationError
	if !errors.As(err, &genErr) || genErr.Message != "rejected" {
		t.Fatalf("expected rejected error, got %v", err)
	}
	if res.Images != nil {
		t.Fatalf("partial images must not be returned on failure")
	}
	if len(res.Samples) != 3 {
		t.Fatalf("expected samples on failure, got %d", len(res.Samples))
	}
}

func TestSeedCursorSequential(t *testing.T) {
	cursor := NewSeedCursor([]int{5, 6})
	a, _ := cursor.Next()
	b, _ := cursor.Next()
	if _, ok := cursor.Next(); ok || a != 5 || b != 6 {
		t.Fatalf("unexpected cursor sequence %d %d", a, b)
	}
	var nilCursor *SeedCursor
	if _, ok := nilCursor.Next(); ok {
		t.Fatalf("nil cursor must be empty")
	}
}

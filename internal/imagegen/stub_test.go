package imagegen

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type stubProvider struct {
	mu       sync.Mutex
	calls    int
	requests []ProviderRequest
	// fail decides, per call, whether to return an error. A nil fail means
	// every call succeeds.
	fail   func(req ProviderRequest, call int) error
	result func(req ProviderRequest, call int) ProviderResult
}

func (s *stubProvider) Generate(ctx context.Context, req ProviderRequest) (ProviderResult, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.fail != nil {
		if err := s.fail(req, call); err != nil {
			return ProviderResult{}, err
		}
	}
	if s.result != nil {
		return s.result(req, call), nil
	}
	return ProviderResult{ImageURL: fmt.Sprintf("https://img.test/%s/%d.png", req.Model, call)}, nil
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubProvider) models() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.requests))
	for _, req := range s.requests {
		out = append(out, req.Model)
	}
	return out
}

type stubAssets struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (s *stubAssets) ResolveLocal(ctx context.Context, ref string) (SourceImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[ref]++
	if s.err != nil {
		return SourceImage{}, s.err
	}
	return SourceImage{Data: []byte(ref), MIMEType: "image/png", Name: ref}, nil
}

type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func noRetries() *RetryPolicy {
	return &RetryPolicy{MaxRetries: 0}
}

var testModels = []string{"model-a", "model-b", "model-c"}

package providers

import (
	"context"
	"errors"
	"testing"

	"listingshots/internal/domain"
	"listingshots/internal/imagegen"
)

type stubProvider struct {
	name  string
	calls int
}

func (s *stubProvider) Generate(ctx context.Context, req imagegen.ProviderRequest) (imagegen.ProviderResult, error) {
	s.calls++
	return imagegen.ProviderResult{ImageURL: s.name}, nil
}

func TestRouterDispatchesByPrefix(t *testing.T) {
	gemini := &stubProvider{name: "gemini"}
	qwen := &stubProvider{name: "qwen"}
	router := NewRouter(gemini).Handle("qwen-", qwen)

	tests := []struct {
		model string
		want  string
	}{
		{"gemini-2.5-flash-image", "gemini"},
		{"Qwen-Image-Edit", "qwen"},
		{"anything-else", "gemini"},
	}
	for _, tt := range tests {
		res, err := router.Generate(context.Background(), imagegen.ProviderRequest{Model: tt.model})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.ImageURL != tt.want {
			t.Fatalf("model %s routed to %s, want %s", tt.model, res.ImageURL, tt.want)
		}
	}
	if gemini.calls != 2 || qwen.calls != 1 {
		t.Fatalf("unexpected call counts gemini=%d qwen=%d", gemini.calls, qwen.calls)
	}
}

func TestRouterWithoutFallbackRejectsUnknownModel(t *testing.T) {
	router := NewRouter(nil).Handle("qwen-", &stubProvider{})

	_, err := router.Generate(context.Background(), imagegen.ProviderRequest{Model: "dall-e"})
	if !errors.Is(err, domain.ErrUnknownModel) || imagegen.IsRetryable(err) {
		t.Fatalf("expected permanent unknown model error, got %v", err)
	}
}

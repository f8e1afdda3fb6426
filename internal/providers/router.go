package providers

import (
	"context"
	"fmt"
	"strings"

	"listingshots/internal/domain"
	"listingshots/internal/imagegen"
)

type route struct {
	prefix   string
	provider imagegen.Provider
}

// Router dispatches provider calls by model name prefix.
type Router struct {
	routes   []route
	fallback imagegen.Provider
}

// NewRouter returns a router that sends unmatched models to fallback.
func NewRouter(fallback imagegen.Provider) *Router {
	return &Router{fallback: fallback}
}

// Handle registers provider for every model starting with prefix. The first
// matching prefix wins.
func (r *Router) Handle(prefix string, provider imagegen.Provider) *Router {
	r.routes = append(r.routes, route{prefix: strings.ToLower(strings.TrimSpace(prefix)), provider: provider})
	return r
}

// Generate implements imagegen.Provider.
func (r *Router) Generate(ctx context.Context, req imagegen.ProviderRequest) (imagegen.ProviderResult, error) {
	provider := r.providerFor(req.Model)
	if provider == nil {
		err := fmt.Errorf("%w: no provider for %q", domain.ErrUnknownModel, req.Model)
		return imagegen.ProviderResult{}, &imagegen.ProviderError{Message: err.Error(), Err: err}
	}
	return provider.Generate(ctx, req)
}

func (r *Router) providerFor(model string) imagegen.Provider {
	name := strings.ToLower(strings.TrimSpace(model))
	for _, rt := range r.routes {
		if strings.HasPrefix(name, rt.prefix) {
			return rt.provider
		}
	}
	return r.fallback
}

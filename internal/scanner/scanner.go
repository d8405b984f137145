package scanner

import (
	"context"
	"fmt"

	"NewsScanner/internal/domain"
)

// Strategy captures the site-specific extraction heuristics for one source
// (cafef, and whatever gets added next).
type Strategy interface {
	Name() string

	// DiscoverLinks lists candidate article URLs found on a source page.
	// Transport errors propagate so the caller can retry the fetch.
	DiscoverLinks(ctx context.Context, sourceURL string) ([]string, error)

	// ExtractContent fetches and parses one article page. A page without a
	// recognizable title or body yields (nil, nil): an expected miss, not a
	// failure.
	ExtractContent(ctx context.Context, articleURL string) (*domain.ArticleDraft, error)
}

// Registry keeps a mapping from strategy names to their implementations.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: map[string]Strategy{}}
}

// Register adds or replaces a strategy implementation.
func (r *Registry) Register(strategy Strategy) {
	if r.strategies == nil {
		r.strategies = map[string]Strategy{}
	}
	r.strategies[strategy.Name()] = strategy
}

// Resolve returns a strategy by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Strategy, error) {
	if strategy, ok := r.strategies[name]; ok {
		return strategy, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}

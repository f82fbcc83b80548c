// Package providers defines the search-provider abstraction and the
// concrete indexer clients behind it. Providers answer title queries with
// candidate download results; they hold no state and are safe for
// concurrent use.
package providers

import (
	"context"
	"time"

	"github.com/newsrack/newsrack/pkg/config"
	"github.com/pkg/errors"
)

// Result is one candidate returned by a provider search.
type Result struct {
	Provider        string
	Title           string
	Description     string
	URL             string
	SizeBytes       int64
	PublicationDate *time.Time
	Language        string
	// Metadata carries provider-specific fields such as olid or
	// edition_id, preserved verbatim for the audit trail.
	Metadata map[string]any
}

// SearchProvider is implemented by each indexer integration.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, query string) ([]Result, error)
}

type factory func(cfg config.ProviderConfig, timeout time.Duration) (SearchProvider, error)

var registry = map[string]factory{
	"newznab": newNewznab,
}

// New builds a provider from its configuration entry.
func New(cfg config.ProviderConfig, timeout time.Duration) (SearchProvider, error) {
	build, ok := registry[cfg.Type]
	if !ok {
		return nil, errors.Errorf("unknown provider type %q", cfg.Type)
	}
	return build(cfg, timeout)
}

// NewAll builds every configured provider. A single bad entry fails the
// whole call so misconfiguration is caught at startup rather than at
// search time.
func NewAll(cfgs []config.ProviderConfig, timeout time.Duration) ([]SearchProvider, error) {
	providers := make([]SearchProvider, 0, len(cfgs))
	for _, cfg := range cfgs {
		p, err := New(cfg, timeout)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}

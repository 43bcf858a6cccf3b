package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/devilmonastery/gatekeeper/internal/config"
)

// ErrUnknownProvider is returned when a provider name is not registered
var ErrUnknownProvider = errors.New("unknown provider")

// Registry holds all configured login providers. It is built once at
// startup and passed explicitly to the handlers and services that need it.
type Registry struct {
	providers map[string]Provider
	order     []string
}

// NewRegistry creates an empty provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// NewRegistryFromConfig constructs providers from configuration and registers
// them in configuration order. publicURL is the externally visible base URL
// used to derive each provider's callback URL.
func NewRegistryFromConfig(ctx context.Context, publicURL string, cfgs []config.ProviderConfig) (*Registry, error) {
	registry := NewRegistry()
	for _, cfg := range cfgs {
		provider, err := newProvider(ctx, publicURL, cfg)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", cfg.Name, err)
		}
		registry.Register(provider)
	}
	return registry, nil
}

// newProvider builds a single provider from its configuration
func newProvider(ctx context.Context, publicURL string, cfg config.ProviderConfig) (Provider, error) {
	switch cfg.Kind {
	case "github":
		return NewGitHub(publicURL, cfg)
	case "twitter":
		return NewTwitter(publicURL, cfg)
	case "oidc":
		return NewOIDC(ctx, publicURL, cfg)
	default:
		return nil, fmt.Errorf("unsupported provider kind: %s", cfg.Kind)
	}
}

// Register adds a provider to the registry. Re-registering a name replaces
// the previous provider but keeps its position.
func (r *Registry) Register(provider Provider) {
	name := provider.Name()
	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = provider
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (Provider, error) {
	provider, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return provider, nil
}

// List returns all registered provider names in registration order,
// which is what the login page renders.
func (r *Registry) List() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

package provider

import (
	"context"
	"fmt"
	"sync"
)

// Factory creates an API client for a provider using the supplied key.
type Factory func(ctx context.Context, apiKey string) (LLMProvider, error)

var (
	factoryMu sync.RWMutex
	factories = make(map[Provider]Factory)
)

// Register installs the factory for a provider. Client packages call this
// from init(); the entry point blank-imports them.
func Register(p Provider, f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[p] = f
}

// New creates an API client for the given provider. CLI providers have no
// API client; they are reached through the PTY registry.
func New(ctx context.Context, p Provider, apiKey string) (LLMProvider, error) {
	if p.IsCLI() {
		return nil, fmt.Errorf("provider %s is a CLI provider, not an API provider", p)
	}
	factoryMu.RLock()
	f, ok := factories[p]
	factoryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", p)
	}
	return f(ctx, apiKey)
}

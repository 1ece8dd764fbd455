package device

import (
	"fmt"
	"sync"
)

// Registry manages device providers and handles provider selection
type Registry struct {
	providers []Provider
	mu        sync.RWMutex
}

var globalRegistry = &Registry{
	providers: make([]Provider, 0),
}

// Register adds a device provider to the global registry. Typically
// called from init() functions in provider-specific packages.
func Register(provider Provider) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.providers = append(globalRegistry.providers, provider)
}

// Detect returns the first available provider. Priority follows
// registration order.
func Detect() (Provider, error) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	for _, p := range globalRegistry.providers {
		if p.IsAvailable() {
			return p, nil
		}
	}

	return nil, fmt.Errorf("no compatible device provider detected (tried %d providers)", len(globalRegistry.providers))
}

// GetProvider returns the provider with the given name, or an error when
// no such provider is registered. An empty name falls back to Detect.
func GetProvider(name string) (Provider, error) {
	if name == "" {
		return Detect()
	}

	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	for _, p := range globalRegistry.providers {
		if p.Info().Name == name {
			return p, nil
		}
	}

	return nil, fmt.Errorf("unknown device provider %q", name)
}

// AllProviders returns a copy of the registered providers
func AllProviders() []Provider {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	providers := make([]Provider, len(globalRegistry.providers))
	copy(providers, globalRegistry.providers)
	return providers
}

// ClearProviders removes all registered providers (primarily for testing)
func ClearProviders() {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.providers = make([]Provider, 0)
}

package extractor

import (
	"fmt"
	"sort"
	"sync"

	"calibra/internal/config"
	"calibra/internal/domain"
	"calibra/internal/port"
)

// ProviderFactory creates a VisionExtractor from the extractor config.
type ProviderFactory func(cfg *config.ExtractorConfig) (port.VisionExtractor, error)

// registry of provider factories, populated by init() in each provider package
// or explicitly via RegisterProvider.
var (
	mu        sync.RWMutex
	providers = map[string]ProviderFactory{}
)

// RegisterProvider registers a provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	mu.Lock()
	defer mu.Unlock()
	providers[name] = factory
}

// Providers lists registered provider names, sorted.
func Providers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewExtractor creates the VisionExtractor named by cfg.Provider.
func NewExtractor(cfg *config.ExtractorConfig) (port.VisionExtractor, error) {
	mu.RLock()
	factory, ok := providers[cfg.Provider]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, cfg.Provider)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key is required for provider %s", domain.ErrExtractorNotConfigured, cfg.Provider)
	}
	return factory(cfg)
}

package llm

import (
	"fmt"

	"go.uber.org/zap"

	"docextract/internal/config"
	"docextract/internal/port"
)

// ProviderFactory creates a VisionModel from a provider config.
type ProviderFactory func(cfg *config.ModelProviderConfig) (port.VisionModel, error)

// registry of provider factories, populated by init() in each provider package.
var providers = map[string]ProviderFactory{}

// RegisterProvider registers a provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providers[name] = factory
}

// NewClient creates a VisionModel from a provider config using the registered factory.
func NewClient(cfg *config.ModelProviderConfig) (port.VisionModel, error) {
	factory, ok := providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown model provider: %s", cfg.Provider)
	}
	return factory(cfg)
}

// NewChain builds a client for every configured provider. A single provider
// is returned as is; several are wrapped in a FallbackClient.
func NewChain(cfg *config.ModelConfig, logger *zap.Logger) (port.VisionModel, error) {
	cfgs := cfg.ProviderConfigs()
	clients := make([]port.VisionModel, 0, len(cfgs))
	names := make([]string, 0, len(cfgs))
	for _, pc := range cfgs {
		c, err := NewClient(pc)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
		names = append(names, pc.Provider)
	}
	if len(clients) == 1 {
		return clients[0], nil
	}
	return NewFallbackClient(clients, names).WithLogger(logger), nil
}

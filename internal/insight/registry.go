package insight

import (
	"go.uber.org/zap"

	"github.com/vnmchuo/insight-gateway/internal/provider"
)

// Factory builds the adapter for one provider config.
type Factory func(cfg provider.Config) provider.Provider

// Registry is the fixed, ordered set of providers that have a credential.
// It is built once at startup and read-only afterwards.
type Registry struct {
	providers []provider.Provider
}

// NewRegistry keeps cfgs order. Configs without a credential or with an
// unknown kind are left out.
func NewRegistry(cfgs []provider.Config, factories map[string]Factory, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}

	var providers []provider.Provider
	for _, cfg := range cfgs {
		if !cfg.Available() {
			logger.Info("provider not configured, skipping", zap.String("provider", cfg.ID))
			continue
		}
		factory, ok := factories[cfg.Kind]
		if !ok {
			logger.Warn("unknown provider kind, skipping",
				zap.String("provider", cfg.ID),
				zap.String("kind", cfg.Kind),
			)
			continue
		}
		providers = append(providers, factory(cfg))
		logger.Info("provider enabled",
			zap.String("provider", cfg.ID),
			zap.String("model", cfg.Model),
			zap.Duration("timeout", cfg.Timeout),
		)
	}

	return &Registry{providers: providers}
}

// NewStaticRegistry wraps already-built providers, in order.
func NewStaticRegistry(providers ...provider.Provider) *Registry {
	return &Registry{providers: append([]provider.Provider(nil), providers...)}
}

// Configured returns the available providers in priority order. The slice is
// a copy.
func (r *Registry) Configured() []provider.Provider {
	if r == nil {
		return nil
	}
	return append([]provider.Provider(nil), r.providers...)
}

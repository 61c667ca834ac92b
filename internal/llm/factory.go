package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/solacrm/backend/internal/model"
)

// Factory builds and caches per-tenant LLM clients. Clients are keyed by
// provider plus credential hash so concurrent tenants never share a client
// constructed from someone else's key.
type Factory struct {
	timeout time.Duration

	mu    sync.Mutex
	cache map[string]Client
}

// NewFactory creates an empty client factory. Every client it builds bounds
// each completion call with the given timeout.
func NewFactory(timeout time.Duration) *Factory {
	return &Factory{timeout: timeout, cache: make(map[string]Client)}
}

// ForTenant returns the client for a tenant's AI configuration. A disabled
// tenant or missing credential yields ErrNotConfigured; there is no shared
// default credential.
func (f *Factory) ForTenant(cfg model.TenantAIConfig) (Client, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("tenant %s: %w", cfg.TenantID, ErrNotConfigured)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("tenant %s has no API credential: %w", cfg.TenantID, ErrNotConfigured)
	}

	key := cacheKey(cfg.Provider, cfg.APIKey)

	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.cache[key]; ok {
		return c, nil
	}

	c, err := NewClient(Provider(cfg.Provider), cfg.APIKey, f.timeout)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", cfg.TenantID, err)
	}
	f.cache[key] = c
	return c, nil
}

func cacheKey(provider, apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return provider + ":" + hex.EncodeToString(sum[:8])
}

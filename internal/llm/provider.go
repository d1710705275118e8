package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kestrelhq/kestrel/internal/config"
)

// Provider is the uniform generation contract implemented by every
// backend adapter. Generate returns the first textual completion, or an
// error classified by the adapter; it never panics and never returns a
// vendor-specific error type.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req *Request) (string, error)
}

// New constructs the adapter selected by the provider kind. The switch
// is exhaustive over config.ProviderKind; an unknown kind is a
// construction-time error.
func New(cfg config.ProviderConfig, timeout time.Duration) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return newAnthropicProvider(cfg, timeout)
	case config.ProviderOpenAI:
		return newOpenAIProvider(cfg, timeout)
	case config.ProviderBedrock:
		return newBedrockProvider(cfg, timeout)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// cacheKey is the value-equality identity of a provider client. Every
// field that affects client behavior participates, so distinct
// credential/model/endpoint/timeout combinations never share a client.
type cacheKey struct {
	Kind            config.ProviderKind
	APIKey          string
	Model           string
	BaseURL         string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SiteURL         string
	SiteName        string
	Timeout         time.Duration
}

func keyFor(cfg config.ProviderConfig, timeout time.Duration) cacheKey {
	return cacheKey{
		Kind:            cfg.Provider,
		APIKey:          cfg.APIKey,
		Model:           cfg.Model,
		BaseURL:         cfg.BaseURL,
		Region:          cfg.Region,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		SiteURL:         cfg.SiteURL,
		SiteName:        cfg.SiteName,
		Timeout:         timeout,
	}
}

// Cache reuses provider clients across requests that share the same
// configuration tuple. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	clients map[cacheKey]Provider
}

// NewCache creates an empty provider cache.
func NewCache() *Cache {
	return &Cache{clients: make(map[cacheKey]Provider)}
}

// Get returns the cached provider for the configuration, constructing
// and caching it on first use.
func (c *Cache) Get(cfg config.ProviderConfig, timeout time.Duration) (Provider, error) {
	key := keyFor(cfg, timeout)

	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.clients[key]; ok {
		return p, nil
	}
	p, err := New(cfg, timeout)
	if err != nil {
		return nil, err
	}
	c.clients[key] = p
	return p, nil
}

// Size returns the number of cached clients.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

package download

import (
	"fmt"
	"log"
	"sync"
	"time"

	"ptbridge/config"
)

// Registry resolves logical client references to live backends. Instances are
// cached per client id and reused across dispatches; Invalidate drops the
// cache when configuration changes.
type Registry struct {
	cfg *config.Manager

	mu      sync.Mutex
	entries map[string]*registryEntry
}

// registryEntry owns one client id's backend. Its mutex serializes the
// connect-or-reuse decision for that id while distinct ids proceed in
// parallel.
type registryEntry struct {
	mu      sync.Mutex
	backend Backend
}

func NewRegistry(cfg *config.Manager) *Registry {
	return &Registry{
		cfg:     cfg,
		entries: make(map[string]*registryEntry),
	}
}

// Resolve returns the backend for an explicit client id. Configuration is
// re-read on every call so reloads take effect immediately.
func (r *Registry) Resolve(clientID string) (Backend, config.ClientConfig, error) {
	settings, err := r.cfg.Load()
	if err != nil {
		return nil, config.ClientConfig{}, err
	}
	return r.resolveWith(settings, clientID)
}

// ResolveForSite resolves via the site's default client, falling back to the
// global default. A nil site goes straight to the global default.
func (r *Registry) ResolveForSite(site *config.SiteConfig) (Backend, config.ClientConfig, error) {
	settings, err := r.cfg.Load()
	if err != nil {
		return nil, config.ClientConfig{}, err
	}

	clientID := ""
	if site != nil {
		clientID = site.DefaultClientID
	}
	if clientID == "" {
		clientID = settings.DefaultClientID
	}
	if clientID == "" {
		return nil, config.ClientConfig{}, ErrNoDefaultClient
	}
	return r.resolveWith(settings, clientID)
}

func (r *Registry) resolveWith(settings config.Settings, clientID string) (Backend, config.ClientConfig, error) {
	clientCfg := settings.FindClient(clientID)
	if clientCfg == nil {
		return nil, config.ClientConfig{}, fmt.Errorf("%w: %q", ErrNoSuchClient, clientID)
	}

	r.mu.Lock()
	entry, ok := r.entries[clientID]
	if !ok {
		entry = &registryEntry{}
		r.entries[clientID] = entry
	}
	r.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.backend == nil {
		backend, err := buildBackend(*clientCfg, settings)
		if err != nil {
			return nil, config.ClientConfig{}, err
		}
		entry.backend = backend
		log.Printf("[download] initialized %s backend for client %q", clientCfg.Type, clientID)
	}
	return entry.backend, *clientCfg, nil
}

// Invalidate drops every cached backend. Called after settings are saved.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	r.entries = make(map[string]*registryEntry)
	r.mu.Unlock()
	log.Printf("[download] backend cache invalidated")
}

func connectTimeout(settings config.Settings) time.Duration {
	sec := settings.ConnectTimeoutSec
	if sec <= 0 {
		sec = 5
	}
	return time.Duration(sec) * time.Second
}

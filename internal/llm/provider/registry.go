package provider

import (
	"fmt"
	"sync"
)

// Registry is the Pipeline's pool of provider clients, keyed by
// catalogue model id. One Client instance per model is reused across
// requests, matching spec.md §5's "one HTTP connection pool per
// provider" resource policy.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

func (r *Registry) Register(modelID string, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[modelID] = c
}

func (r *Registry) Get(modelID string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[modelID]
	if !ok {
		return nil, fmt.Errorf("provider: no client registered for model %q", modelID)
	}
	return c, nil
}

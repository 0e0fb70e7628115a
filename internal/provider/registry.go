package provider

import "sync"

// CatalogEntry tags a model with the plugin that advertises it. A model id
// may legitimately appear under two providers; the catalog never dedups.
type CatalogEntry struct {
	Model
	Provider string `json:"provider"`
}

// Registry holds all registered plugins. It is read-mostly after startup and
// safe for concurrent lookup from many tracking goroutines.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	plugins map[string]Plugin
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register inserts a plugin keyed by its id. Registration is idempotent and
// the last registration for an id wins, which lets tests install doubles
// over production plugins. The original registration slot keeps its position
// in iteration order.
func (r *Registry) Register(p Plugin) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := p.ID()
	if _, exists := r.plugins[id]; !exists {
		r.order = append(r.order, id)
	}
	r.plugins[id] = p
}

// Get looks up a plugin by id. Absence is a normal condition, not an error.
func (r *Registry) Get(id string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[id]
	return p, ok
}

// Enabled returns the plugins currently able to serve requests, in
// registration order. Configuration is re-evaluated on every call.
func (r *Registry) Enabled() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var enabled []Plugin
	for _, id := range r.order {
		p := r.plugins[id]
		if p.Enabled() {
			enabled = append(enabled, p)
		}
	}
	return enabled
}

// AvailableModels flattens the catalogs of all enabled plugins, optionally
// filtered by media type (empty media means all). Order is registration
// order, then provider-internal order. An unconfigured provider simply
// contributes zero models.
func (r *Registry) AvailableModels(media MediaType) []CatalogEntry {
	var entries []CatalogEntry
	for _, p := range r.Enabled() {
		for _, m := range p.Models() {
			if media != "" && m.Media != media {
				continue
			}
			entries = append(entries, CatalogEntry{Model: m, Provider: p.ID()})
		}
	}
	return entries
}

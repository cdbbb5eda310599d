package store

import (
	"context"
	"sync"

	"github.com/vk/snipweave/internal/config"
	"github.com/vk/snipweave/internal/ctxlog"
	"github.com/vk/snipweave/internal/snippet"
)

// Registry is the in-memory store backend, populated from a loaded config
// model. Reads are concurrent; Replace swaps the whole model atomically,
// which is how live reload works.
type Registry struct {
	mu      sync.RWMutex
	ordered []*config.Collection
	byName  map[string]*config.Collection
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*config.Collection),
	}
}

// NewRegistryFromModel creates a registry holding the model's collections.
func NewRegistryFromModel(model *config.Model) *Registry {
	r := NewRegistry()
	r.Populate(model)
	return r
}

// Populate merges the model's collections into the registry. A collection
// with a known name replaces the previous one; new names keep load order,
// so bare-trigger scans stay deterministic.
func (r *Registry) Populate(model *config.Model) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, col := range model.Collections {
		if _, known := r.byName[col.Name]; known {
			for i, existing := range r.ordered {
				if existing.Name == col.Name {
					r.ordered[i] = col
					break
				}
			}
		} else {
			r.ordered = append(r.ordered, col)
		}
		r.byName[col.Name] = col
	}
}

// Replace discards all collections and installs the model's.
func (r *Registry) Replace(model *config.Model) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ordered = nil
	r.byName = make(map[string]*config.Collection)
	for _, col := range model.Collections {
		r.ordered = append(r.ordered, col)
		r.byName[col.Name] = col
	}
}

// Lookup implements Store. Full-form references address one collection
// directly (by snippet id, then by trigger); bare or unparsable references
// scan the reachable collections for a trigger match. A restricted
// collection never leaks through a scan: it is only consulted when
// explicitly requested, and only a full-form reference into it yields a
// PermissionError.
func (r *Registry) Lookup(ctx context.Context, ref string, collections []string) (*snippet.Snippet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	logger := ctxlog.FromContext(ctx)
	parsed := snippet.ParseReference(ref)

	if parsed.Valid && !parsed.Bare {
		col, ok := r.byName[parsed.Collection]
		if !ok {
			logger.Debug("Reference names unknown collection.", "ref", ref, "collection", parsed.Collection)
			return nil, nil
		}
		if col.Restricted && !contains(collections, col.Name) {
			return nil, &PermissionError{Collection: col.Name}
		}
		return findIn(col, parsed), nil
	}

	// Bare shorthand, or an unparsable reference retried as a raw trigger.
	trigger := parsed.Trigger
	if !parsed.Valid {
		trigger = ref
	}
	for _, col := range r.ordered {
		if !reachable(col.Name, col.Restricted, collections) {
			continue
		}
		for _, s := range col.Snippets {
			if s.Trigger == trigger {
				return s, nil
			}
		}
	}

	logger.Debug("Reference not found.", "ref", ref)
	return nil, nil
}

// Collections implements Store, returning names in load order.
func (r *Registry) Collections(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.ordered))
	for _, col := range r.ordered {
		names = append(names, col.Name)
	}
	return names, nil
}

// findIn matches a full-form reference inside one collection: snippet id
// first, trigger as the fallback.
func findIn(col *config.Collection, ref snippet.Reference) *snippet.Snippet {
	for _, s := range col.Snippets {
		if s.ID == ref.ID {
			return s
		}
	}
	for _, s := range col.Snippets {
		if s.Trigger == ref.Trigger {
			return s
		}
	}
	return nil
}

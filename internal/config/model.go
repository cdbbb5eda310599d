package config

import (
	"context"

	"github.com/vk/snipweave/internal/snippet"
)

// Model is the unified, format-agnostic representation of everything a
// configuration source provides: the snippet collections and the engine
// settings.
type Model struct {
	Collections []*Collection
	Settings    Settings
}

// Collection is the format-agnostic representation of one named collection.
type Collection struct {
	Name        string
	Description string
	// Restricted collections resolve only when explicitly named in a
	// request's reachable set.
	Restricted bool
	Snippets   []*snippet.Snippet
}

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads configuration from the given paths and translates it into
	// the format-agnostic model.
	Load(ctx context.Context, paths ...string) (*Model, error)
}

// Snippet returns the snippet with the given ID, or nil.
func (c *Collection) Snippet(id string) *snippet.Snippet {
	for _, s := range c.Snippets {
		if s.ID == id {
			return s
		}
	}
	return nil
}

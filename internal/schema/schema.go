// Package schema defines the HCL shapes of snipweave configuration files:
// `collection` blocks holding snippets and an optional `settings` block
// tuning the engine. The loader decodes into these structs and translates
// them into the format-agnostic config model.
package schema

import (
	"github.com/zclconf/go-cty/cty"
)

// --- Collection File Structures ---

// Variable represents a `variable` block within a snippet. The default is
// kept as a cty value so authors may write numbers or booleans; translation
// converts it to a string.
type Variable struct {
	Name    string     `hcl:"name,label"`
	Prompt  string     `hcl:"prompt,optional"`
	Default *cty.Value `hcl:"default,optional"`
}

// Snippet represents a `snippet` block from a collection file. The label is
// the trigger token (e.g. "/sig").
type Snippet struct {
	Trigger     string      `hcl:"trigger,label"`
	ID          string      `hcl:"id,optional"`
	Body        string      `hcl:"body"`
	Description string      `hcl:"description,optional"`
	DependsOn   []string    `hcl:"depends_on,optional"`
	Variables   []*Variable `hcl:"variable,block"`
}

// Collection represents a top-level `collection` block.
type Collection struct {
	Name        string     `hcl:"name,label"`
	Description string     `hcl:"description,optional"`
	Restricted  bool       `hcl:"restricted,optional"`
	Snippets    []*Snippet `hcl:"snippet,block"`
}

// --- Settings Structures ---

// CacheBlock represents the `cache` block within settings.
type CacheBlock struct {
	Enabled *bool  `hcl:"enabled,optional"`
	TTLMS   int    `hcl:"ttl_ms,optional"`
	MaxSize int    `hcl:"max_size,optional"`
	Policy  string `hcl:"policy,optional"`
}

// OnErrorBlock represents the `on_error` block within settings: strategy
// names for the configurable failure categories plus retry tuning.
type OnErrorBlock struct {
	Missing       string `hcl:"missing,optional"`
	Circular      string `hcl:"circular,optional"`
	Permission    string `hcl:"permission,optional"`
	Network       string `hcl:"network,optional"`
	Timeout       string `hcl:"timeout,optional"`
	RetryAttempts int    `hcl:"retry_attempts,optional"`
	RetryDelayMS  int    `hcl:"retry_delay_ms,optional"`
	FallbackText  string `hcl:"fallback_text,optional"`
}

// Settings represents the top-level `settings` block.
type Settings struct {
	MaxDepth    int           `hcl:"max_depth,optional"`
	MaxParallel int           `hcl:"max_parallel,optional"`
	TimeoutMS   int           `hcl:"timeout_ms,optional"`
	LazyLoad    bool          `hcl:"lazy_load,optional"`
	Cache       *CacheBlock   `hcl:"cache,block"`
	OnError     *OnErrorBlock `hcl:"on_error,block"`
}

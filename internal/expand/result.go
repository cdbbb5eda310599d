package expand

import (
	"time"

	"github.com/vk/snipweave/internal/snippet"
)

// Resolution methods recorded in Meta.Method.
const (
	MethodLookup      = "lookup"
	MethodCache       = "cache"
	MethodPlaceholder = "placeholder"
)

// Meta describes how one dependency was resolved.
type Meta struct {
	Collection string
	Elapsed    time.Duration
	CacheHit   bool
	Variables  int
	Children   int
	Method     string
	Warnings   []string
}

// Resolved is one node of the dependency tree, built bottom-up during
// resolution and immutable once returned.
type Resolved struct {
	// Ref is the reference string as it appeared in the parent.
	Ref     string
	Snippet *snippet.Snippet
	// Content is the fully expanded text: dependencies substituted and
	// variables applied.
	Content  string
	Children []*Resolved
	Depth    int
	Meta     Meta
}

// identity is the dedup key for flattening: the snippet identifier
// when the node resolved to one, otherwise the reference string.
func (r *Resolved) identity() string {
	if r.Snippet != nil {
		return r.Snippet.ID
	}
	return "ref:" + r.Ref
}

// Metrics summarizes one top-level expansion.
type Metrics struct {
	Elapsed      time.Duration
	Dependencies int
	CacheHits    int
	CacheMisses  int
	Variables    int
	MaxDepth     int
}

// Result is the outcome of a top-level expansion. Expand always
// returns one: Success splits usable output from failures, and a
// failed result carries empty output plus a populated error list.
type Result struct {
	Success bool
	Output  string
	Snippet *snippet.Snippet
	// Resolved lists every expanded dependency depth-first in
	// declaration order, first occurrence winning.
	Resolved []*Resolved
	Errors   []*Condition
	Warnings []*Condition
	Metrics  Metrics
	CacheHit bool
}

// Err returns the condition that failed the expansion, or nil.
func (r *Result) Err() error {
	if r.Success || len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

// categories lists every condition category on the result, errors
// first, for the statistics tracker.
func (r *Result) categories() []string {
	out := make([]string, 0, len(r.Errors)+len(r.Warnings))
	for _, c := range r.Errors {
		out = append(out, string(c.Category))
	}
	for _, c := range r.Warnings {
		out = append(out, string(c.Category))
	}
	return out
}

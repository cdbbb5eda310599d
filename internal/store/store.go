// Package store defines the snippet lookup interface consumed by the
// expansion engine and its three backends: the in-memory Registry, a SQLite
// database, and a remote HTTP service. Every backend normalizes its native
// record shape into the canonical snippet.Snippet at this boundary.
package store

import (
	"context"
	"fmt"

	"github.com/vk/snipweave/internal/snippet"
)

// Store resolves reference strings to snippets.
type Store interface {
	// Lookup resolves a reference against the given reachable collections.
	// An empty collections slice means every unrestricted collection is
	// reachable. A nil snippet with a nil error means not found.
	Lookup(ctx context.Context, ref string, collections []string) (*snippet.Snippet, error)

	// Collections lists the names of all known collections.
	Collections(ctx context.Context) ([]string, error)
}

// PermissionError reports a lookup that matched a restricted collection the
// caller did not explicitly name in its reachable set.
type PermissionError struct {
	Collection string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("collection %q is restricted", e.Collection)
}

// NetworkError reports a transport-level failure talking to a remote store.
// It unwraps to the underlying error.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("remote store %s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// reachable reports whether a collection may be searched given the request's
// reachable set. Restricted collections require an explicit mention; others
// are open unless a non-empty set excludes them.
func reachable(name string, restricted bool, requested []string) bool {
	if restricted {
		return contains(requested, name)
	}
	return len(requested) == 0 || contains(requested, name)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

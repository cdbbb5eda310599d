// Package validate checks snippets for structural integrity before
// the engine expands them.
package validate

import (
	"context"
	"fmt"

	"github.com/vk/snipweave/internal/snippet"
)

// Context describes the expansion a snippet is being validated for.
type Context struct {
	// Collections is the reachable collection set of the expansion.
	Collections []string
	// Depth is the recursion depth at which the snippet was found.
	Depth int
}

// Result reports whether a snippet may be expanded.
type Result struct {
	Valid  bool
	Errors []string
}

// Validator vets a snippet after lookup and before recursive
// expansion.
type Validator interface {
	Validate(ctx context.Context, s *snippet.Snippet, vctx Context) Result
}

// Checker is the default Validator. It rejects snippets whose
// identity is broken or whose variable declarations collide; content
// checks are the engine's business.
type Checker struct{}

func (Checker) Validate(_ context.Context, s *snippet.Snippet, _ Context) Result {
	var errs []string
	if s.ID == "" {
		errs = append(errs, "snippet has no identifier")
	}
	if s.Trigger == "" {
		errs = append(errs, "snippet has no trigger")
	}
	seen := make(map[string]struct{}, len(s.Variables))
	for _, v := range s.Variables {
		if v.Name == "" {
			errs = append(errs, "variable declared without a name")
			continue
		}
		if _, dup := seen[v.Name]; dup {
			errs = append(errs, fmt.Sprintf("variable %q declared twice", v.Name))
		}
		seen[v.Name] = struct{}{}
	}
	return Result{Valid: len(errs) == 0, Errors: errs}
}

package expand

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/snipweave/internal/store"
	"github.com/vk/snipweave/internal/vars"
)

// Category classifies a failure raised during expansion.
type Category string

const (
	CategoryMissing        Category = "missing-dependency"
	CategoryCircular       Category = "circular-dependency"
	CategoryPermission     Category = "permission-denied"
	CategoryNetwork        Category = "network-error"
	CategoryTimeout        Category = "timeout"
	CategoryInvalidFormat  Category = "invalid-format"
	CategoryVariable       Category = "variable-resolution-failed"
	CategoryRecursionLimit Category = "recursion-limit-exceeded"
	CategoryCache          Category = "cache-error"
	CategoryUnknown        Category = "unknown"
)

// Condition is a categorized failure. Conditions are raised inside the
// engine, routed through the error policy, and surface in a result's
// error or warning list.
type Condition struct {
	Category    Category
	Message     string
	Ref         string
	Suggestions []string
	Err         error
}

func (c *Condition) Error() string {
	if c.Ref != "" {
		return fmt.Sprintf("%s: %s (ref %q)", c.Category, c.Message, c.Ref)
	}
	return fmt.Sprintf("%s: %s", c.Category, c.Message)
}

func (c *Condition) Unwrap() error { return c.Err }

// suggestions holds the remediation hints attached to conditions of
// each category. Categories without an entry carry none.
var suggestions = map[Category][]string{
	CategoryMissing: {
		"check that the referenced snippet exists in a reachable collection",
		"use the collection:trigger:id form to address a specific collection",
	},
	CategoryCircular: {
		"remove one edge of the reference cycle",
		"set the circular strategy to break to keep the resolvable part",
	},
	CategoryPermission: {
		"name the restricted collection in the expansion's collection list",
	},
	CategoryNetwork: {
		"verify the remote store endpoint is reachable",
		"raise retry_attempts to ride out flaky links",
	},
	CategoryRecursionLimit: {
		"raise max_depth if the reference chain is intentionally deep",
	},
}

func newCondition(cat Category, ref, msg string, err error) *Condition {
	return &Condition{
		Category:    cat,
		Message:     msg,
		Ref:         ref,
		Suggestions: suggestions[cat],
		Err:         err,
	}
}

// Categorize maps an error to a Condition. Errors that already are
// conditions pass through unchanged; store and variable errors map to
// their categories; a dead context maps to timeout, since the only
// way an expansion loses its context is abandonment; everything else
// is unknown.
func Categorize(err error, ref string) *Condition {
	var cond *Condition
	if errors.As(err, &cond) {
		return cond
	}
	var perm *store.PermissionError
	if errors.As(err, &perm) {
		return newCondition(CategoryPermission, ref, perm.Error(), err)
	}
	var netErr *store.NetworkError
	if errors.As(err, &netErr) {
		return newCondition(CategoryNetwork, ref, netErr.Error(), err)
	}
	var vf *vars.Failure
	if errors.As(err, &vf) {
		return newCondition(CategoryVariable, ref, vf.Error(), err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newCondition(CategoryTimeout, ref, "expansion abandoned: "+err.Error(), err)
	}
	return newCondition(CategoryUnknown, ref, err.Error(), err)
}

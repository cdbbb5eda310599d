package vars

import (
	"context"
	"regexp"

	"github.com/vk/snipweave/internal/snippet"
)

// placeholderPattern matches {{name}} tokens. Names start with a word
// character and may continue with word characters, dots, or hyphens;
// surrounding whitespace inside the braces is tolerated.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_][A-Za-z0-9_.-]*)\s*\}\}`)

// Substitute replaces every {{name}} placeholder in body in a single
// left-to-right sweep. Substituted text is never re-scanned, so a
// value containing placeholder syntax cannot trigger further
// substitution. declared maps variable names to their declarations
// from the snippet being expanded; it may be nil.
func Substitute(ctx context.Context, body string, declared map[string]*snippet.Variable, vc *Context) (string, []*Failure) {
	var failures []*Failure
	out := placeholderPattern.ReplaceAllStringFunc(body, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		v, failure := vc.Resolve(ctx, name, declared[name])
		if failure != nil {
			failures = append(failures, failure)
		}
		return v
	})
	return out, failures
}

// Names returns every distinct placeholder name in body, in order of
// first occurrence.
func Names(body string) []string {
	seen := map[string]struct{}{}
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(body, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

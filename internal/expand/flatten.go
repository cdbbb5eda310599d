package expand

import "strings"

// flatten walks the resolved forest depth-first in declaration order
// and returns each distinct node once, first occurrence winning.
func flatten(roots []*Resolved) []*Resolved {
	seen := make(map[string]struct{})
	var out []*Resolved
	var walk func(nodes []*Resolved)
	walk = func(nodes []*Resolved) {
		for _, n := range nodes {
			if n == nil {
				continue
			}
			if _, dup := seen[n.identity()]; dup {
				continue
			}
			seen[n.identity()] = struct{}{}
			out = append(out, n)
			walk(n.Children)
		}
	}
	walk(roots)
	return out
}

// composeBody substitutes the direct children's resolved content into
// body. Children whose reference string occurs in the body replace
// every occurrence in one non-rescanning pass; the rest are appended
// in declaration order on their own lines. A snippet reached through
// two references contributes its content once.
func composeBody(body string, direct []*Resolved) string {
	seenID := make(map[string]struct{})
	seenRef := make(map[string]struct{})

	var pairs []string
	for _, n := range direct {
		if n == nil || n.Ref == "" || !strings.Contains(body, n.Ref) {
			continue
		}
		if _, dup := seenRef[n.Ref]; dup {
			continue
		}
		seenRef[n.Ref] = struct{}{}
		seenID[n.identity()] = struct{}{}
		pairs = append(pairs, n.Ref, n.Content)
	}

	out := body
	if len(pairs) > 0 {
		out = strings.NewReplacer(pairs...).Replace(out)
	}

	for _, n := range direct {
		if n == nil {
			continue
		}
		if _, done := seenID[n.identity()]; done {
			continue
		}
		seenID[n.identity()] = struct{}{}
		if out == "" {
			out = n.Content
			continue
		}
		out += "\n" + n.Content
	}
	return out
}

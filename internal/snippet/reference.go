package snippet

import "strings"

// Reference is the parsed form of a reference string. The full grammar is
// `collection:trigger:identifier`; a token without any colon is the
// bare-trigger shorthand (e.g. "/sig"). Any other colon count is invalid,
// in which case callers fall back to a trigger lookup on the raw string.
type Reference struct {
	// Raw is the reference exactly as written.
	Raw string
	// Collection, Trigger and ID are populated for the full form.
	Collection string
	Trigger    string
	ID         string
	// Bare reports the bare-trigger shorthand form.
	Bare bool
	// Valid is false when the string matches neither form.
	Valid bool
}

// ParseReference parses a reference string into its structured form.
func ParseReference(raw string) Reference {
	ref := Reference{Raw: raw}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ref
	}

	parts := strings.Split(trimmed, ":")
	switch len(parts) {
	case 1:
		ref.Trigger = trimmed
		ref.Bare = true
		ref.Valid = true
	case 3:
		if parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return ref
		}
		ref.Collection = parts[0]
		ref.Trigger = parts[1]
		ref.ID = parts[2]
		ref.Valid = true
	}
	return ref
}

// String returns the reference as written.
func (r Reference) String() string {
	return r.Raw
}

// References returns the snippet's declared dependency references with blank
// entries dropped and surrounding whitespace trimmed, preserving declaration
// order.
func References(s *Snippet) []string {
	if s == nil || len(s.Dependencies) == 0 {
		return nil
	}
	refs := make([]string, 0, len(s.Dependencies))
	for _, dep := range s.Dependencies {
		dep = strings.TrimSpace(dep)
		if dep == "" {
			continue
		}
		refs = append(refs, dep)
	}
	return refs
}

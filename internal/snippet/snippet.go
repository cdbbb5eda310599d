// Package snippet defines the canonical content model shared by every store
// backend and the expansion engine: a Snippet is a named, triggerable text
// template with variable declarations and references to other snippets.
//
// Each backend normalizes its native record shape into this one type at the
// store boundary, so the engine only ever sees a single canonical shape.
package snippet

// Snippet is one expandable unit of content. It is immutable by convention:
// stores hand it out, the engine never mutates it.
type Snippet struct {
	// ID uniquely identifies the snippet across all collections.
	ID string
	// Trigger is the short token a user types to invoke the snippet,
	// conventionally slash-prefixed (e.g. "/sig").
	Trigger string
	// Body is the template text, containing {{variable}} placeholders and,
	// optionally, literal occurrences of dependency references.
	Body string
	// Description is free-form documentation, never expanded.
	Description string
	// Variables declares the placeholders the body may use, in authored order.
	Variables []*Variable
	// Dependencies lists references to other snippets, in declaration order.
	// The order is significant: expanded content preserves it.
	Dependencies []string
	// Collection names the collection this snippet was loaded from.
	Collection string
}

// Variable declares a single {{name}} placeholder.
type Variable struct {
	Name   string
	Prompt string
	// Default is the declared fallback value. HasDefault distinguishes an
	// explicit empty default from no default at all.
	Default    string
	HasDefault bool
}

// Variable returns the declaration for name, or nil if the snippet does not
// declare it.
func (s *Snippet) Variable(name string) *Variable {
	for _, v := range s.Variables {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// VariableMap returns the declared variables keyed by name.
func (s *Snippet) VariableMap() map[string]*Variable {
	m := make(map[string]*Variable, len(s.Variables))
	for _, v := range s.Variables {
		m[v.Name] = v
	}
	return m
}

package vars

import (
	"fmt"
	"sort"
)

// Registry collects variable callbacks and validators contributed by
// modules at startup. Registration is not safe for concurrent use:
// wire every module before serving expansions, then only build
// Contexts from it.
type Registry struct {
	callbacks  map[string]Callback
	prefixes   map[string]Callback
	validators map[string]Validator
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		callbacks:  make(map[string]Callback),
		prefixes:   make(map[string]Callback),
		validators: make(map[string]Validator),
	}
}

// RegisterCallback binds cb to an exact variable name. It panics on a
// duplicate name; two modules claiming the same variable is a wiring
// bug, not a runtime condition.
func (r *Registry) RegisterCallback(name string, cb Callback) {
	if name == "" || cb == nil {
		panic("vars: RegisterCallback requires a name and a callback")
	}
	if _, exists := r.callbacks[name]; exists {
		panic(fmt.Sprintf("vars: callback already registered for %q", name))
	}
	r.callbacks[name] = cb
}

// RegisterPrefixCallback binds cb to every variable name starting with
// prefix (e.g. "env." claims env.HOME, env.PATH, ...). Exact-name
// callbacks win over prefix callbacks; among prefixes the longest
// match wins.
func (r *Registry) RegisterPrefixCallback(prefix string, cb Callback) {
	if prefix == "" || cb == nil {
		panic("vars: RegisterPrefixCallback requires a prefix and a callback")
	}
	if _, exists := r.prefixes[prefix]; exists {
		panic(fmt.Sprintf("vars: prefix callback already registered for %q", prefix))
	}
	r.prefixes[prefix] = cb
}

// RegisterValidator binds v to a variable name. The validator runs on
// callback-produced values for that name before substitution.
func (r *Registry) RegisterValidator(name string, v Validator) {
	if name == "" || v == nil {
		panic("vars: RegisterValidator requires a name and a validator")
	}
	if _, exists := r.validators[name]; exists {
		panic(fmt.Sprintf("vars: validator already registered for %q", name))
	}
	r.validators[name] = v
}

// Context snapshots the registry into a per-expansion Context. The
// returned maps are copies; callers may layer request-scoped
// callbacks and values on top without affecting the registry.
func (r *Registry) Context(mode Mode, values map[string]string) *Context {
	c := &Context{
		Mode:       mode,
		Values:     make(map[string]string, len(values)),
		Defaults:   make(map[string]string),
		Callbacks:  make(map[string]Callback, len(r.callbacks)),
		Validators: make(map[string]Validator, len(r.validators)),
	}
	for k, v := range values {
		c.Values[k] = v
	}
	for k, v := range r.callbacks {
		c.Callbacks[k] = v
	}
	for k, v := range r.validators {
		c.Validators[k] = v
	}
	c.prefixed = make([]prefixCallback, 0, len(r.prefixes))
	for p, cb := range r.prefixes {
		c.prefixed = append(c.prefixed, prefixCallback{prefix: p, fn: cb})
	}
	sort.Slice(c.prefixed, func(i, j int) bool {
		if len(c.prefixed[i].prefix) != len(c.prefixed[j].prefix) {
			return len(c.prefixed[i].prefix) > len(c.prefixed[j].prefix)
		}
		return c.prefixed[i].prefix < c.prefixed[j].prefix
	})
	return c
}

// Module is implemented by packages that contribute variable callbacks
// or validators, mirroring how pluggable units self-register at app
// startup.
type Module interface {
	Register(r *Registry)
}

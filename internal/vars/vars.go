// Package vars resolves {{name}} placeholders in snippet bodies.
//
// Values are looked up in layers, first match wins: an explicit value
// supplied by the caller, a registered callback (optionally gated by a
// validator), the variable's declared default, an ambient default, and
// finally a mode-specific fallback string so substitution always
// produces deterministic output.
package vars

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/snipweave/internal/snippet"
)

// Mode selects the fallback used for variables no layer can produce.
type Mode string

const (
	// ModePrompt emits a deferred-prompt marker, e.g. [prompt:name].
	ModePrompt Mode = "prompt"
	// ModeDefault leaves the literal {{name}} placeholder in place.
	ModeDefault Mode = "default"
	// ModeContext emits a context-derived marker, e.g. [ctx:name].
	ModeContext Mode = "context"
	// ModeInteractive emits an input marker, e.g. [input:name].
	ModeInteractive Mode = "interactive"
)

// ParseMode converts a user-supplied mode name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePrompt:
		return ModePrompt, nil
	case ModeDefault, "":
		return ModeDefault, nil
	case ModeContext:
		return ModeContext, nil
	case ModeInteractive:
		return ModeInteractive, nil
	default:
		return "", fmt.Errorf("unknown variable mode %q (want prompt, default, context, or interactive)", s)
	}
}

// Callback produces a value for a variable name on demand. Callbacks
// may block (environment lookups, clocks, counters), so they receive
// the expansion's context.
type Callback func(ctx context.Context, name string) (string, error)

// Validator vets a callback-produced value before it is substituted.
type Validator func(name, value string) error

// Failure records a variable whose callback or validator failed. The
// substitution pass still emits fallback text for the placeholder; the
// failure is reported alongside so callers can apply their policy.
type Failure struct {
	Name string
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("variable %q: %v", f.Name, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Context carries everything one expansion knows about variables. It
// is built per request and never shared between concurrent expansions.
type Context struct {
	Mode Mode

	// Values are explicit caller-supplied bindings. They win over every
	// other layer and bypass validators.
	Values map[string]string

	// Defaults are ambient values consulted after a variable's own
	// declared default.
	Defaults map[string]string

	Callbacks  map[string]Callback
	Validators map[string]Validator

	// prefixed holds prefix-registered callbacks, longest prefix first.
	prefixed []prefixCallback
}

type prefixCallback struct {
	prefix string
	fn     Callback
}

// callback returns the callback responsible for name: an exact match
// first, then the longest registered prefix.
func (c *Context) callback(name string) (Callback, bool) {
	if cb, ok := c.Callbacks[name]; ok {
		return cb, true
	}
	for _, pc := range c.prefixed {
		if strings.HasPrefix(name, pc.prefix) {
			return pc.fn, true
		}
	}
	return nil, false
}

// Resolve produces the substitution text for a single variable.
// declared may be nil when the snippet does not declare the name. The
// returned Failure is non-nil when a callback or validator failed; the
// returned string is still usable as substitution text.
func (c *Context) Resolve(ctx context.Context, name string, declared *snippet.Variable) (string, *Failure) {
	if v, ok := c.Values[name]; ok {
		return v, nil
	}

	var failure *Failure
	if cb, ok := c.callback(name); ok {
		v, err := cb(ctx, name)
		if err == nil {
			if vf, ok := c.Validators[name]; ok {
				err = vf(name, v)
			}
		}
		if err == nil {
			return v, nil
		}
		failure = &Failure{Name: name, Err: err}
	}

	if declared != nil && declared.HasDefault {
		return declared.Default, failure
	}
	if v, ok := c.Defaults[name]; ok {
		return v, failure
	}
	return c.fallback(name), failure
}

func (c *Context) fallback(name string) string {
	switch c.Mode {
	case ModePrompt:
		return "[prompt:" + name + "]"
	case ModeContext:
		return "[ctx:" + name + "]"
	case ModeInteractive:
		return "[input:" + name + "]"
	default:
		return "{{" + name + "}}"
	}
}

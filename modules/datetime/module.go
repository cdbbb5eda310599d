// Package datetime contributes clock-backed variables: {{date}},
// {{time}}, {{datetime}}, {{timestamp}}, {{year}}, and {{date.<layout>}}
// for custom Go reference layouts.
package datetime

import (
	"context"
	"strconv"
	"time"

	"github.com/vk/snipweave/internal/vars"
)

// Module implements the vars.Module interface for this package.
type Module struct {
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Register binds the date and time callbacks.
func (m *Module) Register(r *vars.Registry) {
	r.RegisterCallback("date", m.layout("2006-01-02"))
	r.RegisterCallback("time", m.layout("15:04:05"))
	r.RegisterCallback("datetime", m.layout(time.RFC3339))
	r.RegisterCallback("year", m.layout("2006"))
	r.RegisterCallback("timestamp", func(context.Context, string) (string, error) {
		return strconv.FormatInt(m.now().Unix(), 10), nil
	})
	// {{date.02.01.2006}} and friends: everything after the prefix is
	// a Go reference layout.
	r.RegisterPrefixCallback("date.", func(_ context.Context, name string) (string, error) {
		return m.now().Format(name[len("date."):]), nil
	})
}

func (m *Module) layout(layout string) vars.Callback {
	return func(context.Context, string) (string, error) {
		return m.now().Format(layout), nil
	}
}

func (m *Module) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

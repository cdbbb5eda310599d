// Package counter provides monotonically increasing per-process
// counters for snippet bodies: {{counter}} and {{counter.<name>}}.
package counter

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/vk/snipweave/internal/vars"
)

// Prefix is the namespace for named counters; the bare {{counter}}
// variable uses the default counter.
const Prefix = "counter."

// Module implements the vars.Module interface for this package.
// Counts live for the lifetime of the process and are shared across
// expansions.
type Module struct {
	mu     sync.Mutex
	counts map[string]int64
}

// Register binds {{counter}} and the counter. namespace.
func (m *Module) Register(r *vars.Registry) {
	r.RegisterCallback("counter", func(context.Context, string) (string, error) {
		return m.next("counter"), nil
	})
	r.RegisterPrefixCallback(Prefix, func(_ context.Context, name string) (string, error) {
		return m.next(strings.TrimPrefix(name, Prefix)), nil
	})
}

func (m *Module) next(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int64)
	}
	m.counts[name]++
	return strconv.FormatInt(m.counts[name], 10)
}

// Package usage reports expansion outcomes to an analytics sink.
package usage

import (
	"context"
	"strings"
	"sync"

	"github.com/vk/snipweave/internal/ctxlog"
)

// Entry describes one completed top-level expansion.
type Entry struct {
	SnippetID string
	Success   bool
	// Chain is the ordered list of triggers traversed, root first. It
	// is empty for expansions that resolved no dependencies.
	Chain []string
}

// Logger receives one Entry per top-level expansion. Implementations
// must be safe for concurrent use; the engine swallows panics so a
// broken sink can never fail an expansion.
type Logger interface {
	Log(ctx context.Context, e Entry)
}

// Slog writes entries to the context logger.
type Slog struct{}

func (Slog) Log(ctx context.Context, e Entry) {
	log := ctxlog.FromContext(ctx)
	args := []any{"snippet_id", e.SnippetID, "success", e.Success}
	if len(e.Chain) > 0 {
		args = append(args, "chain", strings.Join(e.Chain, " → "))
	}
	log.Info("📊 Snippet expanded", args...)
}

// Recorder captures entries in memory for tests.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) Log(_ context.Context, e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

// Entries returns a copy of everything logged so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

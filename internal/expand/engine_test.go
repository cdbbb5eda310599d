package expand

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/snipweave/internal/config"
	"github.com/vk/snipweave/internal/ctxlog"
	"github.com/vk/snipweave/internal/snippet"
	"github.com/vk/snipweave/internal/store"
	"github.com/vk/snipweave/internal/usage"
	"github.com/vk/snipweave/internal/validate"
	"github.com/vk/snipweave/internal/vars"
)

func testCtx() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fakeStore serves snippets keyed by trigger, with per-reference
// delays, injected errors, and call counting.
type fakeStore struct {
	mu       sync.Mutex
	snippets map[string]*snippet.Snippet
	errs     map[string]error
	netFails map[string]int
	delays   map[string]time.Duration
	calls    map[string]int
}

func newFakeStore(snips ...*snippet.Snippet) *fakeStore {
	fs := &fakeStore{
		snippets: make(map[string]*snippet.Snippet),
		errs:     make(map[string]error),
		netFails: make(map[string]int),
		delays:   make(map[string]time.Duration),
		calls:    make(map[string]int),
	}
	for _, s := range snips {
		fs.snippets[s.Trigger] = s
	}
	return fs
}

func (fs *fakeStore) Lookup(ctx context.Context, ref string, _ []string) (*snippet.Snippet, error) {
	fs.mu.Lock()
	fs.calls[ref]++
	delay := fs.delays[ref]
	var err error
	if n := fs.netFails[ref]; n > 0 {
		fs.netFails[ref] = n - 1
		err = &store.NetworkError{Endpoint: "fake", Err: errors.New("link down")}
	} else {
		err = fs.errs[ref]
	}
	found := fs.snippets[ref]
	fs.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (fs *fakeStore) Collections(context.Context) ([]string, error) {
	return nil, nil
}

func (fs *fakeStore) lookups(ref string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.calls[ref]
}

func mkSnip(id, trigger, body string, deps ...string) *snippet.Snippet {
	return &snippet.Snippet{ID: id, Trigger: trigger, Body: body, Dependencies: deps, Collection: "work"}
}

func testSettings() config.Settings {
	s := config.Default()
	s.Timeout = 5 * time.Second
	s.OnError.RetryDelay = time.Millisecond
	return s
}

func newTestEngine(t *testing.T, fs store.Store, edit func(*Options)) *Engine {
	t.Helper()
	opts := Options{Store: fs, Settings: testSettings()}
	if edit != nil {
		edit(&opts)
	}
	e, err := New(opts)
	require.NoError(t, err)
	return e
}

func resolvedIDs(res *Result) []string {
	out := make([]string, 0, len(res.Resolved))
	for _, n := range res.Resolved {
		if n.Snippet != nil {
			out = append(out, n.Snippet.ID)
		} else {
			out = append(out, n.Ref)
		}
	}
	return out
}

func TestExpandPlainBody(t *testing.T) {
	snip := mkSnip("a", "/a", "Hello {{name}}")
	snip.Variables = []*snippet.Variable{{Name: "name", Default: "World", HasDefault: true}}

	e := newTestEngine(t, newFakeStore(), nil)
	res := e.Expand(testCtx(), snip, nil)

	require.True(t, res.Success)
	assert.Equal(t, "Hello World", res.Output)
	assert.Empty(t, res.Resolved)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 1, res.Metrics.Variables)
	assert.Zero(t, res.Metrics.Dependencies)
}

func TestExpandExplicitValueWins(t *testing.T) {
	snip := mkSnip("a", "/a", "Hello {{name}}")
	snip.Variables = []*snippet.Variable{{Name: "name", Default: "World", HasDefault: true}}

	e := newTestEngine(t, newFakeStore(), nil)
	res := e.Expand(testCtx(), snip, &Request{Values: map[string]string{"name": "Gopher"}})

	require.True(t, res.Success)
	assert.Equal(t, "Hello Gopher", res.Output)
}

func TestExpandChainComposition(t *testing.T) {
	fs := newFakeStore(
		mkSnip("a", "/a", "text A"),
		mkSnip("b", "/b", "text B", "/a"),
		mkSnip("c", "/c", "text C", "/b"),
	)
	d := mkSnip("d", "/d", "text D", "/c")

	e := newTestEngine(t, fs, nil)
	res := e.Expand(testCtx(), d, nil)

	require.True(t, res.Success)
	assert.Equal(t, []string{"c", "b", "a"}, resolvedIDs(res))
	assert.Equal(t, "text D\ntext C\ntext B\ntext A", res.Output)
	assert.Equal(t, 3, res.Metrics.Dependencies)
	assert.Equal(t, 3, res.Metrics.MaxDepth)
}

func TestExpandDiamondTerminates(t *testing.T) {
	fs := newFakeStore(
		mkSnip("b", "/b", "B", "/d"),
		mkSnip("c", "/c", "C", "/d"),
		mkSnip("d", "/d", "D"),
	)
	a := mkSnip("a", "/a", "A", "/b", "/c")

	e := newTestEngine(t, fs, nil)
	res := e.Expand(testCtx(), a, nil)

	require.True(t, res.Success)
	assert.Equal(t, []string{"b", "d", "c"}, resolvedIDs(res), "shared node appears once in the flattened list")
	assert.LessOrEqual(t, fs.lookups("/d"), 2, "at most once per distinct path")
	// Both branches embed their own copy of the shared content.
	assert.Equal(t, "A\nB\nD\nC\nD", res.Output)
}

func TestExpandCycle(t *testing.T) {
	a := mkSnip("a", "/a", "A and /b", "/b")
	b := mkSnip("b", "/b", "B and /a", "/a")
	fs := newFakeStore(a, b)

	t.Run("fail aborts the expansion", func(t *testing.T) {
		e := newTestEngine(t, fs, func(o *Options) { o.Settings.OnError.Circular = "fail" })
		res := e.Expand(testCtx(), a, nil)
		require.False(t, res.Success)
		assert.Empty(t, res.Output)
		require.NotEmpty(t, res.Errors)
		assert.Equal(t, CategoryCircular, res.Errors[0].Category)
		assert.NotEmpty(t, res.Errors[0].Suggestions)
	})

	t.Run("warn keeps the acyclic part", func(t *testing.T) {
		e := newTestEngine(t, fs, nil)
		res := e.Expand(testCtx(), a, nil)
		require.True(t, res.Success)
		assert.Equal(t, "A and B and /a", res.Output)
		require.Len(t, res.Warnings, 1)
		assert.Equal(t, CategoryCircular, res.Warnings[0].Category)
		assert.Equal(t, []string{"b"}, resolvedIDs(res))
	})

	t.Run("break cuts the branch silently", func(t *testing.T) {
		e := newTestEngine(t, fs, func(o *Options) { o.Settings.OnError.Circular = "break" })
		res := e.Expand(testCtx(), a, nil)
		require.True(t, res.Success)
		assert.Equal(t, "A and B and /a", res.Output)
		assert.Empty(t, res.Warnings)
	})

	t.Run("self reference", func(t *testing.T) {
		s := mkSnip("s", "/s", "me: /s", "/s")
		e := newTestEngine(t, newFakeStore(s), nil)
		res := e.Expand(testCtx(), s, nil)
		require.True(t, res.Success)
		assert.Equal(t, "me: /s", res.Output)
		require.Len(t, res.Warnings, 1)
		assert.Equal(t, CategoryCircular, res.Warnings[0].Category)
	})
}

func TestExpandDepthCeiling(t *testing.T) {
	fs := newFakeStore(
		mkSnip("b", "/b", "B", "/c"),
		mkSnip("c", "/c", "C", "/d"),
		mkSnip("d", "/d", "D"),
	)
	a := mkSnip("a", "/a", "A", "/b")

	e := newTestEngine(t, fs, func(o *Options) { o.Settings.MaxDepth = 2 })
	res := e.Expand(testCtx(), a, nil)

	require.True(t, res.Success)
	assert.Equal(t, []string{"b", "c"}, resolvedIDs(res))
	assert.Equal(t, "A\nB\nC", res.Output)
	require.NotEmpty(t, res.Warnings)
	assert.Equal(t, CategoryRecursionLimit, res.Warnings[0].Category)
	assert.Zero(t, fs.lookups("/d"), "depth-blocked reference is never looked up")
}

func TestExpandCacheIdempotence(t *testing.T) {
	fs := newFakeStore(mkSnip("b", "/b", "B text"))
	a := mkSnip("a", "/a", "A plus /b", "/b")
	e := newTestEngine(t, fs, nil)

	first := e.Expand(testCtx(), a, nil)
	require.True(t, first.Success)
	assert.False(t, first.CacheHit)
	require.Equal(t, 1, fs.lookups("/b"))

	second := e.Expand(testCtx(), a, nil)
	require.True(t, second.Success)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Output, second.Output)
	assert.Equal(t, 1, fs.lookups("/b"), "a cached expansion does not touch the store")

	t.Run("no-cache bypasses both directions", func(t *testing.T) {
		third := e.Expand(testCtx(), a, &Request{NoCache: true})
		require.True(t, third.Success)
		assert.False(t, third.CacheHit)
		assert.Equal(t, 2, fs.lookups("/b"))
	})

	t.Run("different values resolve separately", func(t *testing.T) {
		res := e.Expand(testCtx(), a, &Request{Values: map[string]string{"x": "1"}})
		require.True(t, res.Success)
		assert.False(t, res.CacheHit)
	})

	t.Run("purge forgets everything", func(t *testing.T) {
		e.PurgeCache()
		res := e.Expand(testCtx(), a, nil)
		require.True(t, res.Success)
		assert.False(t, res.CacheHit)
	})
}

func TestExpandDedupSingleLookup(t *testing.T) {
	fs := newFakeStore(mkSnip("shared", "/shared", "S text"))
	fs.delays["/shared"] = 50 * time.Millisecond

	e := newTestEngine(t, fs, nil)

	const n = 8
	var wg sync.WaitGroup
	results := make([]*Result, n)
	for i := 0; i < n; i++ {
		i := i
		root := mkSnip(fmt.Sprintf("r%d", i), fmt.Sprintf("/r%d", i), "root", "/shared")
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = e.Expand(testCtx(), root, nil)
		}()
	}
	wg.Wait()

	for _, res := range results {
		require.True(t, res.Success)
		assert.Equal(t, "root\nS text", res.Output)
	}
	assert.Equal(t, 1, fs.lookups("/shared"), "concurrent expansions share one store call")
}

func TestExpandOrderingUnderParallel(t *testing.T) {
	fs := newFakeStore(
		mkSnip("x", "/x", "X"),
		mkSnip("y", "/y", "Y"),
		mkSnip("z", "/z", "Z"),
	)
	fs.delays["/x"] = 30 * time.Millisecond
	fs.delays["/y"] = 10 * time.Millisecond
	fs.delays["/z"] = time.Millisecond

	root := mkSnip("r", "/r", "R", "/x", "/y", "/z")
	e := newTestEngine(t, fs, nil)
	res := e.Expand(testCtx(), root, nil)

	require.True(t, res.Success)
	assert.Equal(t, []string{"x", "y", "z"}, resolvedIDs(res), "declaration order, not completion order")
	assert.Equal(t, "R\nX\nY\nZ", res.Output)
}

func TestExpandMissingDependencyStrategies(t *testing.T) {
	root := func() *snippet.Snippet { return mkSnip("r", "/r", "see /ghost here", "/ghost") }

	t.Run("warn records and keeps going", func(t *testing.T) {
		e := newTestEngine(t, newFakeStore(), nil)
		res := e.Expand(testCtx(), root(), nil)
		require.True(t, res.Success)
		assert.Equal(t, "see /ghost here", res.Output)
		require.Len(t, res.Warnings, 1)
		assert.Equal(t, CategoryMissing, res.Warnings[0].Category)
		assert.Equal(t, "/ghost", res.Warnings[0].Ref)
	})

	t.Run("fail aborts", func(t *testing.T) {
		e := newTestEngine(t, newFakeStore(), func(o *Options) { o.Settings.OnError.Missing = "fail" })
		res := e.Expand(testCtx(), root(), nil)
		require.False(t, res.Success)
		assert.Empty(t, res.Output)
		require.NotEmpty(t, res.Errors)
		assert.Equal(t, CategoryMissing, res.Errors[0].Category)
	})

	t.Run("ignore continues silently", func(t *testing.T) {
		e := newTestEngine(t, newFakeStore(), func(o *Options) { o.Settings.OnError.Missing = "ignore" })
		res := e.Expand(testCtx(), root(), nil)
		require.True(t, res.Success)
		assert.Empty(t, res.Warnings)
	})

	t.Run("placeholder substitutes fallback text", func(t *testing.T) {
		e := newTestEngine(t, newFakeStore(), func(o *Options) {
			o.Settings.OnError.Missing = "placeholder"
			o.Settings.OnError.FallbackText = "[missing snippet]"
		})
		res := e.Expand(testCtx(), root(), nil)
		require.True(t, res.Success)
		assert.Equal(t, "see [missing snippet] here", res.Output)
		require.Len(t, res.Resolved, 1)
		assert.Equal(t, MethodPlaceholder, res.Resolved[0].Meta.Method)
	})
}

func TestExpandNetworkRetry(t *testing.T) {
	t.Run("recovers within the budget", func(t *testing.T) {
		fs := newFakeStore(mkSnip("f", "/flaky", "F text"))
		fs.netFails["/flaky"] = 2
		root := mkSnip("r", "/r", "R", "/flaky")

		e := newTestEngine(t, fs, func(o *Options) { o.Settings.OnError.RetryAttempts = 3 })
		res := e.Expand(testCtx(), root, nil)

		require.True(t, res.Success)
		assert.Equal(t, "R\nF text", res.Output)
		assert.Equal(t, 3, fs.lookups("/flaky"))
	})

	t.Run("exhausted retries fall through to fail", func(t *testing.T) {
		fs := newFakeStore(mkSnip("f", "/flaky", "F text"))
		fs.netFails["/flaky"] = 100
		root := mkSnip("r", "/r", "R", "/flaky")

		e := newTestEngine(t, fs, func(o *Options) { o.Settings.OnError.RetryAttempts = 2 })
		res := e.Expand(testCtx(), root, nil)

		require.False(t, res.Success)
		require.NotEmpty(t, res.Errors)
		assert.Equal(t, CategoryNetwork, res.Errors[0].Category)
		assert.Equal(t, 3, fs.lookups("/flaky"), "one call plus two retries")
	})

	t.Run("warn strategy does not retry", func(t *testing.T) {
		fs := newFakeStore()
		fs.netFails["/flaky"] = 100
		root := mkSnip("r", "/r", "R", "/flaky")

		e := newTestEngine(t, fs, func(o *Options) { o.Settings.OnError.Network = "warn" })
		res := e.Expand(testCtx(), root, nil)

		require.True(t, res.Success)
		assert.Equal(t, "R", res.Output)
		require.Len(t, res.Warnings, 1)
		assert.Equal(t, CategoryNetwork, res.Warnings[0].Category)
		assert.Equal(t, 1, fs.lookups("/flaky"))
	})
}

func TestExpandTimeout(t *testing.T) {
	fs := newFakeStore(mkSnip("s", "/slow", "S"))
	fs.delays["/slow"] = 300 * time.Millisecond
	root := mkSnip("r", "/r", "R", "/slow")

	e := newTestEngine(t, fs, func(o *Options) { o.Settings.Timeout = 30 * time.Millisecond })
	res := e.Expand(testCtx(), root, nil)

	require.False(t, res.Success)
	assert.Empty(t, res.Output)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, CategoryTimeout, res.Errors[0].Category)
}

func TestExpandPermissionDenied(t *testing.T) {
	newStore := func() *fakeStore {
		fs := newFakeStore()
		fs.errs["/secret"] = &store.PermissionError{Collection: "legal"}
		return fs
	}
	root := func() *snippet.Snippet { return mkSnip("r", "/r", "R /secret", "/secret") }

	t.Run("warn by default", func(t *testing.T) {
		e := newTestEngine(t, newStore(), nil)
		res := e.Expand(testCtx(), root(), nil)
		require.True(t, res.Success)
		assert.Equal(t, "R /secret", res.Output)
		require.Len(t, res.Warnings, 1)
		assert.Equal(t, CategoryPermission, res.Warnings[0].Category)
	})

	t.Run("fail on request", func(t *testing.T) {
		e := newTestEngine(t, newStore(), func(o *Options) { o.Settings.OnError.Permission = "fail" })
		res := e.Expand(testCtx(), root(), nil)
		require.False(t, res.Success)
		assert.Equal(t, CategoryPermission, res.Errors[0].Category)
	})
}

func TestExpandVariableCallbackFailure(t *testing.T) {
	root := mkSnip("r", "/r", "v: {{svc.token}}")
	e := newTestEngine(t, newFakeStore(), nil)

	res := e.Expand(testCtx(), root, &Request{
		Mode: vars.ModePrompt,
		Callbacks: map[string]vars.Callback{
			"svc.token": func(context.Context, string) (string, error) {
				return "", errors.New("vault sealed")
			},
		},
	})

	require.True(t, res.Success)
	assert.Equal(t, "v: [prompt:svc.token]", res.Output)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, CategoryVariable, res.Warnings[0].Category)
}

func TestExpandModeFallbacks(t *testing.T) {
	root := mkSnip("r", "/r", "Hi {{user}}")
	e := newTestEngine(t, newFakeStore(), nil)

	for mode, want := range map[vars.Mode]string{
		vars.ModeDefault:     "Hi {{user}}",
		vars.ModePrompt:      "Hi [prompt:user]",
		vars.ModeContext:     "Hi [ctx:user]",
		vars.ModeInteractive: "Hi [input:user]",
	} {
		res := e.Expand(testCtx(), root, &Request{Mode: mode, NoCache: true})
		require.True(t, res.Success)
		assert.Equal(t, want, res.Output, "mode %s", mode)
	}
}

func TestExpandValidatorRejects(t *testing.T) {
	bad := mkSnip("bad", "/bad", "bad text")
	bad.Variables = []*snippet.Variable{{Name: "x"}, {Name: "x"}}
	fs := newFakeStore(bad)
	root := mkSnip("r", "/r", "R", "/bad")

	e := newTestEngine(t, fs, func(o *Options) { o.Validator = validate.Checker{} })
	res := e.Expand(testCtx(), root, nil)

	require.False(t, res.Success)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, CategoryInvalidFormat, res.Errors[0].Category)
}

func TestExpandRejectsEmptyInput(t *testing.T) {
	e := newTestEngine(t, newFakeStore(), nil)

	res := e.Expand(testCtx(), mkSnip("r", "/r", "   "), nil)
	require.False(t, res.Success)
	assert.Equal(t, CategoryInvalidFormat, res.Errors[0].Category)

	res = e.Expand(testCtx(), nil, nil)
	require.False(t, res.Success)
	assert.Equal(t, CategoryInvalidFormat, res.Errors[0].Category)
}

type recordingHook struct {
	mu      sync.Mutex
	vetoErr error
	before  int
	after   []*Result
}

func (h *recordingHook) BeforeExpand(context.Context, *snippet.Snippet, *Request) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.before++
	return h.vetoErr
}

func (h *recordingHook) AfterExpand(_ context.Context, _ *snippet.Snippet, res *Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.after = append(h.after, res)
}

func TestExpandHooks(t *testing.T) {
	t.Run("observes expansions", func(t *testing.T) {
		h := &recordingHook{}
		e := newTestEngine(t, newFakeStore(), func(o *Options) { o.Hooks = []Hook{h} })

		res := e.Expand(testCtx(), mkSnip("r", "/r", "text"), nil)
		require.True(t, res.Success)
		assert.Equal(t, 1, h.before)
		require.Len(t, h.after, 1)
		assert.Same(t, res, h.after[0])
	})

	t.Run("veto fails the expansion", func(t *testing.T) {
		h := &recordingHook{vetoErr: errors.New("not during business hours")}
		e := newTestEngine(t, newFakeStore(), func(o *Options) { o.Hooks = []Hook{h} })

		res := e.Expand(testCtx(), mkSnip("r", "/r", "text"), nil)
		require.False(t, res.Success)
		assert.Equal(t, CategoryUnknown, res.Errors[0].Category)
		assert.Empty(t, h.after, "vetoed expansions skip post-hooks")
	})
}

func TestExpandUsageChain(t *testing.T) {
	rec := &usage.Recorder{}
	fs := newFakeStore(
		mkSnip("a", "/a", "text A"),
		mkSnip("b", "/b", "text B", "/a"),
		mkSnip("c", "/c", "text C", "/b"),
	)
	d := mkSnip("d", "/d", "text D", "/c")

	e := newTestEngine(t, fs, func(o *Options) { o.Usage = rec })
	res := e.Expand(testCtx(), d, nil)
	require.True(t, res.Success)

	entries := rec.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "d", entries[0].SnippetID)
	assert.True(t, entries[0].Success)
	assert.Equal(t, []string{"/d", "/c", "/b", "/a"}, entries[0].Chain)

	t.Run("no chain without dependencies", func(t *testing.T) {
		res := e.Expand(testCtx(), mkSnip("p", "/p", "plain"), nil)
		require.True(t, res.Success)
		entries := rec.Entries()
		require.Len(t, entries, 2)
		assert.Empty(t, entries[1].Chain)
	})
}

func TestExpandSubtreeCacheReuse(t *testing.T) {
	fs := newFakeStore(
		mkSnip("b", "/b", "B with /c", "/c"),
		mkSnip("c", "/c", "C text"),
	)
	e := newTestEngine(t, fs, nil)

	first := e.Expand(testCtx(), mkSnip("r1", "/r1", "one /b", "/b"), nil)
	require.True(t, first.Success)
	assert.Equal(t, "one B with C text", first.Output)
	require.Equal(t, 1, fs.lookups("/c"))

	second := e.Expand(testCtx(), mkSnip("r2", "/r2", "two /b", "/b"), nil)
	require.True(t, second.Success)
	assert.Equal(t, "two B with C text", second.Output)

	assert.Equal(t, 2, fs.lookups("/b"), "the reference itself is looked up again")
	assert.Equal(t, 1, fs.lookups("/c"), "the cached subtree spares the nested lookup")
	assert.Equal(t, []string{"b", "c"}, resolvedIDs(second), "cached children stay in the flattened list")

	require.NotEmpty(t, second.Resolved)
	assert.True(t, second.Resolved[0].Meta.CacheHit)
	assert.Equal(t, MethodCache, second.Resolved[0].Meta.Method)
}

func TestExpandSettingsOverride(t *testing.T) {
	fs := newFakeStore(
		mkSnip("b", "/b", "B", "/c"),
		mkSnip("c", "/c", "C"),
	)
	root := mkSnip("r", "/r", "R", "/b")
	e := newTestEngine(t, fs, nil)

	over := testSettings()
	over.MaxDepth = 1
	res := e.Expand(testCtx(), root, &Request{Settings: &over, NoCache: true})

	require.True(t, res.Success)
	assert.Equal(t, []string{"b"}, resolvedIDs(res))
	require.NotEmpty(t, res.Warnings)
	assert.Equal(t, CategoryRecursionLimit, res.Warnings[0].Category)
}

func TestExpandRef(t *testing.T) {
	fs := newFakeStore(mkSnip("a", "/a", "A text"))
	e := newTestEngine(t, fs, nil)

	t.Run("found", func(t *testing.T) {
		res := e.ExpandRef(testCtx(), "/a", nil)
		require.True(t, res.Success)
		assert.Equal(t, "A text", res.Output)
	})

	t.Run("missing", func(t *testing.T) {
		res := e.ExpandRef(testCtx(), "/nope", nil)
		require.False(t, res.Success)
		require.NotEmpty(t, res.Errors)
		assert.Equal(t, CategoryMissing, res.Errors[0].Category)
	})
}

func TestEngineStats(t *testing.T) {
	fs := newFakeStore(mkSnip("a", "/a", "A"))
	e := newTestEngine(t, fs, nil)

	res := e.Expand(testCtx(), mkSnip("r", "/r", "ok"), nil)
	require.True(t, res.Success)
	res = e.ExpandRef(testCtx(), "/gone", nil)
	require.False(t, res.Success)

	snap := e.Stats()
	assert.Equal(t, int64(2), snap.Expansions)
	assert.Equal(t, int64(1), snap.Successes)
	assert.Equal(t, int64(1), snap.Failures)
	assert.Equal(t, int64(1), snap.Categories[string(CategoryMissing)])
}

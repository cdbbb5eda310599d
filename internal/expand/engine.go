package expand

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vk/snipweave/internal/config"
	"github.com/vk/snipweave/internal/ctxlog"
	"github.com/vk/snipweave/internal/gate"
	"github.com/vk/snipweave/internal/snippet"
	"github.com/vk/snipweave/internal/stats"
	"github.com/vk/snipweave/internal/store"
	"github.com/vk/snipweave/internal/usage"
	"github.com/vk/snipweave/internal/validate"
	"github.com/vk/snipweave/internal/vars"
)

// Hook observes the expansion lifecycle. BeforeExpand runs ahead of
// the cache probe and may veto by returning an error; AfterExpand
// runs on every non-vetoed expansion. Hooks must treat the result as
// read-only: it may already sit in the cache.
type Hook interface {
	BeforeExpand(ctx context.Context, s *snippet.Snippet, req *Request) error
	AfterExpand(ctx context.Context, s *snippet.Snippet, res *Result)
}

// Options configures an Engine. Store is required; everything else
// has a working default.
type Options struct {
	Store     store.Store
	Settings  config.Settings
	Validator validate.Validator
	Variables *vars.Registry
	Usage     usage.Logger
	Stats     *stats.Tracker
	Hooks     []Hook
}

// Engine expands snippets: it resolves dependency graphs, substitutes
// variables, caches results, and applies the error policy. Construct
// one at startup and share it; all methods are safe for concurrent
// use.
type Engine struct {
	store     store.Store
	settings  config.Settings
	policy    *Policy
	validator validate.Validator
	varReg    *vars.Registry
	usage     usage.Logger
	stats     *stats.Tracker
	hooks     []Hook
	cache     *Cache
	gate      *gate.Gate
	flight    singleflight.Group
}

// New builds an Engine from opts.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("expand: a store is required")
	}
	settings := opts.Settings.Normalize()
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	policy, err := PolicyFromSettings(settings.OnError)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		store:     opts.Store,
		settings:  settings,
		policy:    policy,
		validator: opts.Validator,
		varReg:    opts.Variables,
		usage:     opts.Usage,
		stats:     opts.Stats,
		hooks:     opts.Hooks,
		gate:      gate.New(settings.MaxParallel),
	}
	if e.varReg == nil {
		e.varReg = vars.NewRegistry()
	}
	if e.stats == nil {
		e.stats = stats.NewTracker()
	}
	if settings.Cache.Enabled() {
		e.cache = NewCache(settings.Cache)
	}
	return e, nil
}

// Request carries the per-expansion context.
type Request struct {
	// Collections narrows the reachable set; empty means every
	// unrestricted collection.
	Collections []string
	// Values are explicit variable bindings. They win over every other
	// resolution layer.
	Values map[string]string
	// Mode picks the fallback for variables no layer can produce.
	Mode vars.Mode
	// NoCache bypasses the cache for this expansion, reads and writes
	// both.
	NoCache bool
	// Settings overrides the engine's settings for this expansion.
	Settings *config.Settings
	// Callbacks and Validators layer request-scoped variable handling
	// over the registered modules.
	Callbacks  map[string]vars.Callback
	Validators map[string]vars.Validator
}

// Expand fully expands snip. It always returns a Result: failures
// surface through Success and Errors, never as a panic or an error
// crossing this boundary.
func (e *Engine) Expand(ctx context.Context, snip *snippet.Snippet, req *Request) *Result {
	log := ctxlog.FromContext(ctx)
	if req == nil {
		req = &Request{}
	}

	start := time.Now()
	InFlightGauge.Inc()
	defer InFlightGauge.Dec()

	res, vetoed := e.expand(ctx, log, snip, req)
	res.Metrics.Elapsed = time.Since(start)

	if !vetoed {
		e.runAfterHooks(ctx, snip, res)
	}
	e.finish(ctx, snip, res)
	return res
}

// ExpandRef looks ref up and expands the match. An unresolvable
// reference yields a failed result; network retries apply to the
// lookup the same way they do during recursion.
func (e *Engine) ExpandRef(ctx context.Context, ref string, req *Request) *Result {
	if req == nil {
		req = &Request{}
	}
	start := time.Now()

	found, err := e.lookupWithRetry(ctx, e.policy, ref, req.Collections)
	if err == nil && found == nil {
		err = newCondition(CategoryMissing, ref, "no snippet matches the reference", nil)
	}
	if err != nil {
		res := e.fail(nil, Categorize(err, ref))
		res.Metrics.Elapsed = time.Since(start)
		e.finish(ctx, nil, res)
		return res
	}
	return e.Expand(ctx, found, req)
}

// Stats returns a snapshot of the running totals.
func (e *Engine) Stats() stats.Snapshot {
	return e.stats.Snapshot()
}

// PurgeCache drops every cached result, e.g. after a live reload of
// the underlying collections.
func (e *Engine) PurgeCache() {
	if e.cache != nil {
		e.cache.Purge()
	}
}

// expand runs the pipeline: input validation, pre-hooks, cache probe,
// resolution, flatten, composition, variable substitution, cache
// write. An internal fault converts into a failed result rather than
// propagating.
func (e *Engine) expand(ctx context.Context, log *slog.Logger, snip *snippet.Snippet, req *Request) (res *Result, vetoed bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Expansion panicked", "panic", r)
			res = e.fail(snip, newCondition(CategoryUnknown, "", fmt.Sprintf("internal fault: %v", r), nil))
			vetoed = false
		}
	}()

	if snip == nil {
		return e.fail(nil, newCondition(CategoryInvalidFormat, "", "no snippet to expand", nil)), false
	}
	if strings.TrimSpace(snip.Body) == "" {
		return e.fail(snip, newCondition(CategoryInvalidFormat, snip.Trigger, "snippet body is empty", nil)), false
	}

	settings := e.settings
	policy := e.policy
	var reqGate *gate.Gate
	if req.Settings != nil {
		s := req.Settings.Normalize()
		if err := s.Validate(); err != nil {
			return e.fail(snip, newCondition(CategoryInvalidFormat, "", "invalid settings override: "+err.Error(), err)), false
		}
		p, err := PolicyFromSettings(s.OnError)
		if err != nil {
			return e.fail(snip, newCondition(CategoryInvalidFormat, "", "invalid settings override: "+err.Error(), err)), false
		}
		settings, policy = s, p
		if s.MaxParallel != e.settings.MaxParallel {
			reqGate = gate.New(s.MaxParallel)
		}
	}

	for _, h := range e.hooks {
		if err := h.BeforeExpand(ctx, snip, req); err != nil {
			log.Debug("Expansion vetoed by hook", "snippet_id", snip.ID, "error", err)
			return e.fail(snip, Categorize(err, "")), true
		}
	}

	mode := req.Mode
	if mode == "" {
		mode = vars.ModeDefault
	}
	vc := e.varReg.Context(mode, req.Values)
	for name, cb := range req.Callbacks {
		vc.Callbacks[name] = cb
	}
	for name, v := range req.Validators {
		vc.Validators[name] = v
	}

	useCache := e.cache != nil && !req.NoCache && settings.Cache.Enabled()
	var key string
	if useCache {
		key = cacheKey(snip.ID, 0, req.Values, mode, settings)
		if cached, ok := e.cache.Get(key); ok {
			CacheEventsTotal.WithLabelValues(CacheEventHit).Inc()
			log.Debug("Expansion served from cache", "snippet_id", snip.ID)
			out := *cached
			out.CacheHit = true
			return &out, false
		}
		CacheEventsTotal.WithLabelValues(CacheEventMiss).Inc()
	}

	rctx := ctx
	if settings.Timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, settings.Timeout)
		defer cancel()
	}

	refs := snippet.References(snip)
	log.Debug("Resolving dependencies", "snippet_id", snip.ID, "refs", len(refs))

	st := state{
		depth:       0,
		ancestors:   []string{snip.ID},
		collections: req.Collections,
		settings:    settings,
		policy:      policy,
		gate:        reqGate,
		vc:          vc,
		noCache:     !useCache,
	}
	children, conds, rerr := e.resolveRefs(rctx, refs, st)
	if rerr != nil {
		var cond *Condition
		if !errors.As(rerr, &cond) {
			cond = Categorize(rerr, "")
			ConditionsTotal.WithLabelValues(string(cond.Category)).Inc()
		}
		return &Result{Snippet: snip, Warnings: conds, Errors: []*Condition{cond}}, false
	}

	flat := flatten(children)
	composed := composeBody(snip.Body, children)
	varNames := vars.Names(composed)
	out, vfails := vars.Substitute(rctx, composed, snip.VariableMap(), vc)
	for _, vf := range vfails {
		recorded, ferr := e.raise(rctx, policy, newCondition(CategoryVariable, "", vf.Error(), vf))
		conds = append(conds, recorded...)
		if ferr != nil {
			fcond := Categorize(ferr, "")
			return &Result{Snippet: snip, Warnings: conds, Errors: []*Condition{fcond}}, false
		}
	}

	res = &Result{
		Success:  true,
		Output:   out,
		Snippet:  snip,
		Resolved: flat,
		Warnings: conds,
	}
	res.Metrics = buildMetrics(flat, len(varNames))

	if useCache {
		if perr := e.cache.Put(key, res, refs); perr != nil {
			recorded, ferr := e.raise(rctx, policy, newCondition(CategoryCache, "", perr.Error(), perr))
			res.Warnings = append(res.Warnings, recorded...)
			if ferr != nil {
				return &Result{Snippet: snip, Warnings: res.Warnings, Errors: []*Condition{Categorize(ferr, "")}}, false
			}
		}
	}
	return res, false
}

// fail builds a failed result from a single condition.
func (e *Engine) fail(snip *snippet.Snippet, cond *Condition) *Result {
	ConditionsTotal.WithLabelValues(string(cond.Category)).Inc()
	return &Result{Snippet: snip, Errors: []*Condition{cond}}
}

// finish records the outcome in metrics, statistics, and the usage
// log.
func (e *Engine) finish(ctx context.Context, snip *snippet.Snippet, res *Result) {
	status := StatusSuccess
	if !res.Success {
		status = StatusFailure
	}
	ExpansionsTotal.WithLabelValues(status).Inc()
	ExpansionDuration.Observe(res.Metrics.Elapsed.Seconds())
	e.stats.Record(res.Success, res.Metrics.Elapsed, res.categories())
	e.reportUsage(ctx, snip, res)
}

// runAfterHooks notifies the hooks, swallowing panics so a broken
// hook cannot fail a finished expansion.
func (e *Engine) runAfterHooks(ctx context.Context, snip *snippet.Snippet, res *Result) {
	defer func() {
		if r := recover(); r != nil {
			ctxlog.FromContext(ctx).Debug("Post-expand hook panicked", "panic", r)
		}
	}()
	for _, h := range e.hooks {
		h.AfterExpand(ctx, snip, res)
	}
}

// reportUsage sends the expansion to the analytics sink. Sink
// failures never affect the expansion result.
func (e *Engine) reportUsage(ctx context.Context, snip *snippet.Snippet, res *Result) {
	if e.usage == nil || snip == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			ctxlog.FromContext(ctx).Debug("Usage logger panicked", "panic", r)
		}
	}()

	entry := usage.Entry{SnippetID: snip.ID, Success: res.Success}
	if len(res.Resolved) > 0 {
		entry.Chain = append(entry.Chain, snip.Trigger)
		for _, n := range res.Resolved {
			if n.Snippet != nil {
				entry.Chain = append(entry.Chain, n.Snippet.Trigger)
			}
		}
	}
	e.usage.Log(ctx, entry)
}

func buildMetrics(flat []*Resolved, varCount int) Metrics {
	m := Metrics{Dependencies: len(flat), Variables: varCount}
	for _, n := range flat {
		if n.Meta.CacheHit {
			m.CacheHits++
		} else {
			m.CacheMisses++
		}
		if n.Depth > m.MaxDepth {
			m.MaxDepth = n.Depth
		}
	}
	return m
}

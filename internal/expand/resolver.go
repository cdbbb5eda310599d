package expand

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vk/snipweave/internal/config"
	"github.com/vk/snipweave/internal/ctxlog"
	"github.com/vk/snipweave/internal/gate"
	"github.com/vk/snipweave/internal/snippet"
	"github.com/vk/snipweave/internal/store"
	"github.com/vk/snipweave/internal/validate"
	"github.com/vk/snipweave/internal/vars"
)

// state carries the per-branch resolution context. It is copied on
// descent, never mutated in place, so sibling branches cannot observe
// each other's depth or ancestry.
type state struct {
	depth       int
	ancestors   []string
	collections []string
	settings    config.Settings
	policy      *Policy
	gate        *gate.Gate
	vc          *vars.Context
	noCache     bool
}

// child derives the state for resolving the children of the snippet
// with the given identifier.
func (s state) child(id string) state {
	s.depth++
	s.ancestors = append(slices.Clone(s.ancestors), id)
	return s
}

// resolveRefs resolves every reference at the current level. The
// returned slice preserves declaration order regardless of completion
// order; skipped branches are simply absent. The error is non-nil
// only for fail-strategy conditions and abandoned contexts.
func (e *Engine) resolveRefs(ctx context.Context, refs []string, st state) ([]*Resolved, []*Condition, error) {
	if len(refs) == 0 {
		return nil, nil, nil
	}
	if len(refs) == 1 || st.settings.MaxParallel == 1 || st.settings.LazyLoad {
		return e.resolveSequential(ctx, refs, st)
	}
	return e.resolveParallel(ctx, refs, st)
}

func (e *Engine) resolveSequential(ctx context.Context, refs []string, st state) ([]*Resolved, []*Condition, error) {
	var nodes []*Resolved
	var conds []*Condition
	for _, ref := range refs {
		node, cs, err := e.resolveOne(ctx, ref, st)
		conds = append(conds, cs...)
		if err != nil {
			return nil, conds, err
		}
		if node != nil {
			nodes = append(nodes, node)
		}
	}
	return nodes, conds, nil
}

func (e *Engine) resolveParallel(ctx context.Context, refs []string, st state) ([]*Resolved, []*Condition, error) {
	results := make([]*Resolved, len(refs))
	raised := make([][]*Condition, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			node, cs, err := e.resolveOne(gctx, ref, st)
			results[i], raised[i] = node, cs
			return err
		})
	}
	err := g.Wait()

	var nodes []*Resolved
	var conds []*Condition
	for i := range refs {
		conds = append(conds, raised[i]...)
		if results[i] != nil {
			nodes = append(nodes, results[i])
		}
	}
	if err != nil {
		return nil, conds, err
	}
	return nodes, conds, nil
}

// resolveOne resolves a single reference one level below st: admit
// through the gate, look the snippet up, route failures through the
// policy, detect cycles against the ancestor path, validate, recurse,
// and assemble the node. A nil node with a nil error means the branch
// was skipped.
func (e *Engine) resolveOne(ctx context.Context, ref string, st state) (*Resolved, []*Condition, error) {
	depth := st.depth + 1
	if depth > st.settings.MaxDepth {
		cond := newCondition(CategoryRecursionLimit, ref,
			fmt.Sprintf("depth %d exceeds the maximum of %d", depth, st.settings.MaxDepth), nil)
		recorded, err := e.raise(ctx, st.policy, cond)
		return nil, recorded, err
	}

	ctx = ctxlog.With(ctx, "ref", ref, "depth", depth)
	log := ctxlog.FromContext(ctx)
	start := time.Now()

	// The slot covers only the lookup; children re-acquire their own,
	// so chains deeper than the gate's limit cannot starve it.
	if err := e.gateFor(st).Acquire(ctx); err != nil {
		return nil, nil, err
	}
	found, lookupErr := e.lookup(ctx, st, ref)
	e.gateFor(st).Release()

	if lookupErr != nil {
		recorded, err := e.raise(ctx, st.policy, Categorize(lookupErr, ref))
		return nil, recorded, err
	}

	if found == nil {
		if st.policy.Strategy(CategoryMissing) == StrategyPlaceholder {
			log.Debug("Substituting fallback text for missing dependency")
			return &Resolved{
				Ref:     ref,
				Content: st.policy.FallbackText,
				Depth:   depth,
				Meta:    Meta{Elapsed: time.Since(start), Method: MethodPlaceholder},
			}, nil, nil
		}
		cond := newCondition(CategoryMissing, ref, "no snippet matches the reference", nil)
		recorded, err := e.raise(ctx, st.policy, cond)
		return nil, recorded, err
	}

	// Ancestor-path membership is the single source of truth for
	// cycles.
	if slices.Contains(st.ancestors, found.ID) {
		cond := newCondition(CategoryCircular, ref,
			fmt.Sprintf("reference cycle: %s → %s", strings.Join(st.ancestors, " → "), found.ID), nil)
		recorded, err := e.raise(ctx, st.policy, cond)
		return nil, recorded, err
	}

	if e.validator != nil {
		vres := e.validator.Validate(ctx, found, validate.Context{Collections: st.collections, Depth: depth})
		if !vres.Valid {
			cond := newCondition(CategoryInvalidFormat, ref,
				"snippet rejected by validator: "+strings.Join(vres.Errors, "; "), nil)
			recorded, err := e.raise(ctx, st.policy, cond)
			return nil, recorded, err
		}
	}

	var key string
	useCache := e.cache != nil && !st.noCache
	if useCache {
		key = cacheKey(found.ID, depth, st.vc.Values, st.vc.Mode, st.settings)
		if cached, ok := e.cache.Get(key); ok {
			CacheEventsTotal.WithLabelValues(CacheEventHit).Inc()
			log.Debug("Dependency served from cache", "snippet_id", found.ID)
			return &Resolved{
				Ref:      ref,
				Snippet:  found,
				Content:  cached.Output,
				Children: cached.Resolved,
				Depth:    depth,
				Meta: Meta{
					Collection: found.Collection,
					Elapsed:    time.Since(start),
					CacheHit:   true,
					Variables:  len(found.Variables),
					Children:   len(cached.Resolved),
					Method:     MethodCache,
				},
			}, nil, nil
		}
		CacheEventsTotal.WithLabelValues(CacheEventMiss).Inc()
	}

	children, conds, err := e.resolveRefs(ctx, snippet.References(found), st.child(found.ID))
	if err != nil {
		return nil, conds, err
	}

	content := composeBody(found.Body, children)
	content, vfails := vars.Substitute(ctx, content, found.VariableMap(), st.vc)
	var metaWarnings []string
	for _, vf := range vfails {
		metaWarnings = append(metaWarnings, vf.Error())
		recorded, ferr := e.raise(ctx, st.policy, newCondition(CategoryVariable, ref, vf.Error(), vf))
		conds = append(conds, recorded...)
		if ferr != nil {
			return nil, conds, ferr
		}
	}

	node := &Resolved{
		Ref:      ref,
		Snippet:  found,
		Content:  content,
		Children: children,
		Depth:    depth,
		Meta: Meta{
			Collection: found.Collection,
			Elapsed:    time.Since(start),
			Variables:  len(found.Variables),
			Children:   len(children),
			Method:     MethodLookup,
			Warnings:   metaWarnings,
		},
	}

	if useCache {
		entry := &Result{Success: true, Output: content, Snippet: found, Resolved: flatten(children)}
		if perr := e.cache.Put(key, entry, snippet.References(found)); perr != nil {
			recorded, ferr := e.raise(ctx, st.policy, newCondition(CategoryCache, ref, perr.Error(), perr))
			conds = append(conds, recorded...)
			if ferr != nil {
				return nil, conds, ferr
			}
		}
	}
	return node, conds, nil
}

// gateFor picks the gate bounding this expansion: the engine-wide one
// unless a settings override replaced it for the request.
func (e *Engine) gateFor(st state) *gate.Gate {
	if st.gate != nil {
		return st.gate
	}
	return e.gate
}

// raise routes a condition through the policy. It returns the
// conditions to record and the error that aborts the expansion.
func (e *Engine) raise(ctx context.Context, p *Policy, cond *Condition) ([]*Condition, error) {
	log := ctxlog.FromContext(ctx)
	ConditionsTotal.WithLabelValues(string(cond.Category)).Inc()

	switch p.Strategy(cond.Category) {
	case StrategyFail, StrategyRetry:
		// A retry-strategy condition reaching this point has spent its
		// attempts and falls through to fail.
		log.Debug("Condition fails expansion", "category", cond.Category, "detail", cond.Message)
		return nil, cond
	case StrategyIgnore:
		return nil, nil
	case StrategyBreak:
		log.Debug("Condition breaks branch", "category", cond.Category, "detail", cond.Message)
		return nil, nil
	default: // warn, and misbound strategies fail safe into the record
		log.Warn("⚠️ Expansion condition recorded", "category", cond.Category, "detail", cond.Message)
		return []*Condition{cond}, nil
	}
}

// lookup finds ref through the store, deduplicating concurrent calls
// for the same reference and reachable set: exactly one caller
// performs the store call, everyone shares its outcome.
func (e *Engine) lookup(ctx context.Context, st state, ref string) (*snippet.Snippet, error) {
	key := ref + "|" + strings.Join(st.collections, ",")
	v, err, shared := e.flight.Do(key, func() (any, error) {
		return e.lookupWithRetry(ctx, st.policy, ref, st.collections)
	})
	if shared {
		CacheEventsTotal.WithLabelValues(CacheEventShare).Inc()
	}
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.(*snippet.Snippet), nil
}

// lookupWithRetry performs the store lookup, retrying network
// failures with linear backoff when the policy says so. Other
// failures return immediately.
func (e *Engine) lookupWithRetry(ctx context.Context, p *Policy, ref string, collections []string) (*snippet.Snippet, error) {
	attempts := 1
	if p.Strategy(CategoryNetwork) == StrategyRetry && p.RetryAttempts > 0 {
		attempts += p.RetryAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			wait := p.retryWait(attempt - 1)
			ctxlog.FromContext(ctx).Debug("Retrying store lookup", "ref", ref, "attempt", attempt, "wait", wait)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
		found, err := e.store.Lookup(ctx, ref, collections)
		if err == nil {
			return found, nil
		}
		lastErr = err
		var netErr *store.NetworkError
		if !errors.As(err, &netErr) {
			return nil, err
		}
	}
	return nil, lastErr
}

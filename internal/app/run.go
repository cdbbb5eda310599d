package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/snipweave/internal/ctxlog"
	"github.com/vk/snipweave/internal/expand"
	"github.com/vk/snipweave/internal/vars"
	"github.com/vk/snipweave/internal/watch"
)

// Run expands the configured reference and prints the result. With watch
// enabled it keeps reloading collections and re-expanding on changes until
// ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.closeFn != nil {
		defer a.closeFn()
	}
	if a.config.OpsPort > 0 {
		a.startOpsServer(ctx, a.config.OpsPort)
	}

	mode, err := vars.ParseMode(a.config.Mode)
	if err != nil {
		return err
	}
	req := &expand.Request{
		Collections: a.config.Collections,
		Values:      a.config.Values,
		Mode:        mode,
	}

	if !a.config.Watch {
		return a.expandOnce(ctx, req)
	}

	// In watch mode a failed expansion is not fatal: the user is about
	// to edit the collections anyway.
	if err := a.expandOnce(ctx, req); err != nil {
		a.logger.Warn("⚠️ Expansion failed, waiting for changes", "error", err)
	}
	return a.watchLoop(ctx, req)
}

// expandOnce runs a single expansion and writes the output.
func (a *App) expandOnce(ctx context.Context, req *expand.Request) error {
	res := a.engine.ExpandRef(ctx, a.config.Reference, req)
	if !res.Success {
		return fmt.Errorf("expansion of %s failed: %w", a.config.Reference, res.Err())
	}
	a.logger.Debug("Expansion succeeded.",
		"dependencies", res.Metrics.Dependencies,
		"elapsed", res.Metrics.Elapsed,
		"cache_hit", res.CacheHit,
	)
	fmt.Fprintln(a.outW, res.Output)
	return nil
}

// watchLoop re-expands the reference every time the collection files
// change. Each batch of changes reloads the whole model and resets the
// expansion cache.
func (a *App) watchLoop(ctx context.Context, req *expand.Request) error {
	if a.registry == nil {
		return errors.New("live reload requires the in-memory registry store")
	}

	w, err := watch.New(watch.DefaultDebounce)
	if err != nil {
		return fmt.Errorf("failed to start collection watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(a.config.CollectionsPath); err != nil {
		return fmt.Errorf("failed to watch %s: %w", a.config.CollectionsPath, err)
	}

	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("Collection watcher stopped", "error", err)
		}
	}()

	a.logger.Info("🔄 Live reload enabled", "path", a.config.CollectionsPath)
	for {
		select {
		case <-ctx.Done():
			a.logger.Debug("Watch loop cancelled.")
			return nil
		case change, ok := <-w.Changes():
			if !ok {
				return nil
			}
			a.logger.Info("🔄 Collections changed, reloading", "files", len(change.Paths))
			if err := a.reload(ctx); err != nil {
				a.logger.Warn("⚠️ Reload failed, keeping previous collections", "error", err)
				continue
			}
			if err := a.expandOnce(ctx, req); err != nil {
				a.logger.Warn("⚠️ Expansion failed", "error", err)
			}
		}
	}
}

// reload re-reads the collection files and swaps them into the registry.
func (a *App) reload(ctx context.Context) error {
	model, err := a.loader.Load(ctx, a.config.CollectionsPath)
	if err != nil {
		return err
	}
	a.registry.Replace(model)
	a.engine.PurgeCache()
	return nil
}

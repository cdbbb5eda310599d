package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/vk/snipweave/internal/config"
	"github.com/vk/snipweave/internal/ctxlog"
	"github.com/vk/snipweave/internal/expand"
	"github.com/vk/snipweave/internal/store"
	"github.com/vk/snipweave/internal/usage"
	"github.com/vk/snipweave/internal/validate"
	"github.com/vk/snipweave/internal/vars"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	loader   config.Loader
	store    store.Store
	registry *store.Registry // set only for the in-memory backend
	closeFn  func() error    // sqlite handle, if any
	engine   *expand.Engine
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger, store, and
// engine. Startup failures are fatal and panic.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, modules ...vars.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	a := &App{outW: outW, logger: logger, config: cfg, loader: loader}

	varReg := vars.NewRegistry()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(varReg)
	}
	logger.Debug("All variable modules registered.", "count", len(modules))

	settings, err := a.initStore(ctx)
	if err != nil {
		panic(fmt.Errorf("failed to initialize snippet store: %w", err))
	}
	settings = applyOverrides(settings, cfg)

	eng, err := expand.New(expand.Options{
		Store:     a.store,
		Settings:  settings,
		Validator: validate.Checker{},
		Variables: varReg,
		Usage:     usage.Slog{},
	})
	if err != nil {
		panic(fmt.Errorf("failed to configure expansion engine: %w", err))
	}
	a.engine = eng
	logger.Debug("Expansion engine ready.")

	return a
}

// Engine returns the application's engine. This is primarily for testing.
func (a *App) Engine() *expand.Engine {
	return a.engine
}

// initStore builds the configured store backend and returns the engine
// settings it came with. The in-memory registry takes its settings from the
// loaded collections; the other backends start from the defaults.
func (a *App) initStore(ctx context.Context) (config.Settings, error) {
	logger := ctxlog.FromContext(ctx)
	settings := config.Default()

	switch a.config.StoreKind {
	case StoreRegistry:
		model, err := a.loader.Load(ctx, a.config.CollectionsPath)
		if err != nil {
			return settings, err
		}
		a.registry = store.NewRegistryFromModel(model)
		a.store = a.registry
		settings = model.Settings
		logger.Debug("In-memory registry store ready.", "collections", len(model.Collections))

	case StoreSQLite:
		db, err := store.NewSQLite(a.config.DBPath)
		if err != nil {
			return settings, err
		}
		if a.config.CollectionsPath != "" {
			model, err := a.loader.Load(ctx, a.config.CollectionsPath)
			if err != nil {
				return settings, err
			}
			if err := db.Import(ctx, model); err != nil {
				return settings, err
			}
			settings = model.Settings
			logger.Debug("Collections imported into SQLite store.", "collections", len(model.Collections))
		}
		a.store = db
		a.closeFn = db.Close
		logger.Debug("SQLite store ready.", "path", a.config.DBPath)

	case StoreRemote:
		a.store = store.NewRemote(a.config.Endpoint, nil, 0)
		logger.Debug("Remote store client ready.", "endpoint", a.config.Endpoint)

	default:
		return settings, fmt.Errorf("unknown store backend %q", a.config.StoreKind)
	}

	return settings, nil
}

// applyOverrides layers CLI tuning flags over the settings a collection
// file provided. Zero values leave the loaded setting in place.
func applyOverrides(s config.Settings, cfg *Config) config.Settings {
	if cfg.MaxDepth > 0 {
		s.MaxDepth = cfg.MaxDepth
	}
	if cfg.MaxParallel > 0 {
		s.MaxParallel = cfg.MaxParallel
	}
	if cfg.TimeoutMS > 0 {
		s.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	if cfg.NoCache {
		s.Cache.Disabled = true
	}
	return s
}

package app

import (
	"errors"
	"fmt"
)

// Store backend names accepted by the --store flag.
const (
	StoreRegistry = "registry"
	StoreSQLite   = "sqlite"
	StoreRemote   = "remote"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	CollectionsPath string // .hcl collection files
	Reference       string // snippet reference to expand

	Collections []string          // reachable collections for restricted lookups
	Values      map[string]string // explicit variable bindings
	Mode        string

	StoreKind string
	DBPath    string // sqlite backend
	Endpoint  string // remote backend

	MaxDepth    int
	MaxParallel int
	TimeoutMS   int
	NoCache     bool

	LogFormat string
	LogLevel  string
	OpsPort   int
	Watch     bool
}

// NewConfig validates cfg and fills backend defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.Reference == "" {
		return nil, errors.New("REFERENCE is a required argument and cannot be empty")
	}

	if cfg.StoreKind == "" {
		cfg.StoreKind = StoreRegistry
	}
	switch cfg.StoreKind {
	case StoreRegistry:
		if cfg.CollectionsPath == "" {
			return nil, errors.New("the registry store requires a collections path")
		}
	case StoreSQLite:
		if cfg.DBPath == "" {
			return nil, errors.New("the sqlite store requires --db")
		}
	case StoreRemote:
		if cfg.Endpoint == "" {
			return nil, errors.New("the remote store requires --endpoint")
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q: must be 'registry', 'sqlite', or 'remote'", cfg.StoreKind)
	}

	if cfg.Watch && cfg.StoreKind != StoreRegistry {
		return nil, errors.New("--watch requires the registry store")
	}

	return &cfg, nil
}

package config

import (
	"fmt"
	"time"
)

// Default tuning values applied by Normalize when a field is unset.
const (
	DefaultMaxDepth    = 50
	DefaultMaxParallel = 10
	DefaultTimeout     = 30 * time.Second
	DefaultCacheTTL    = 5 * time.Minute
	DefaultCacheSize   = 1000

	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 200 * time.Millisecond
)

// Eviction policies for the expansion cache.
const (
	PolicyLRU  = "lru"
	PolicyLFU  = "lfu"
	PolicyFIFO = "fifo"
)

// Settings is the engine configuration. The zero value is not usable
// directly; pass it through Normalize first.
type Settings struct {
	// MaxDepth bounds recursive dependency resolution.
	MaxDepth int
	// MaxParallel bounds how many resolutions run concurrently. A value of
	// 1 forces the sequential strategy.
	MaxParallel int
	// Timeout bounds one top-level expansion end to end.
	Timeout time.Duration
	// LazyLoad disables the parallel strategy so dependencies are only
	// resolved at the moment their branch is reached.
	LazyLoad bool

	Cache   CacheSettings
	OnError ErrorSettings
}

// CacheSettings tune the expansion result cache.
type CacheSettings struct {
	// Disabled turns the cache off entirely. The zero value keeps it on.
	Disabled bool
	// TTL is the per-entry freshness window.
	TTL time.Duration
	// MaxSize is the entry count above which one entry is evicted per insert.
	MaxSize int
	// Policy selects the eviction victim: lru, lfu or fifo.
	Policy string
}

// Enabled reports whether caching is active.
func (c CacheSettings) Enabled() bool { return !c.Disabled }

// ErrorSettings hold the configurable per-category strategies plus retry and
// placeholder tuning. Strategy names are kept as plain strings here; the
// engine parses and validates them.
type ErrorSettings struct {
	// Strategy names for the five configurable categories.
	Missing    string
	Circular   string
	Permission string
	Network    string
	Timeout    string

	// RetryAttempts is the retry budget after a first failed network call.
	RetryAttempts int
	// RetryDelay is the linear backoff base: attempt n waits n × RetryDelay.
	RetryDelay time.Duration
	// FallbackText replaces a missing dependency's content under the
	// placeholder strategy.
	FallbackText string
}

// Default returns the settings used when nothing is configured.
func Default() Settings {
	return Settings{}.Normalize()
}

// Normalize fills unset fields with their defaults and lowercases the cache
// policy. It returns a copy; the receiver is not modified.
func (s Settings) Normalize() Settings {
	if s.MaxDepth <= 0 {
		s.MaxDepth = DefaultMaxDepth
	}
	if s.MaxParallel <= 0 {
		s.MaxParallel = DefaultMaxParallel
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	if s.Cache.TTL <= 0 {
		s.Cache.TTL = DefaultCacheTTL
	}
	if s.Cache.MaxSize <= 0 {
		s.Cache.MaxSize = DefaultCacheSize
	}
	if s.Cache.Policy == "" {
		s.Cache.Policy = PolicyLRU
	}
	if s.OnError.RetryAttempts <= 0 {
		s.OnError.RetryAttempts = DefaultRetryAttempts
	}
	if s.OnError.RetryDelay <= 0 {
		s.OnError.RetryDelay = DefaultRetryDelay
	}
	return s
}

// Validate rejects values Normalize cannot repair.
func (s Settings) Validate() error {
	switch s.Cache.Policy {
	case PolicyLRU, PolicyLFU, PolicyFIFO:
	default:
		return fmt.Errorf("unknown cache policy %q: must be %q, %q or %q", s.Cache.Policy, PolicyLRU, PolicyLFU, PolicyFIFO)
	}
	return nil
}

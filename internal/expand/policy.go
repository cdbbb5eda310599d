package expand

import (
	"fmt"
	"strings"
	"time"

	"github.com/vk/snipweave/internal/config"
)

// Strategy names how a raised condition is handled.
type Strategy string

const (
	// StrategyFail aborts the expansion, surfacing the condition as
	// its error.
	StrategyFail Strategy = "fail"
	// StrategyWarn records the condition and continues.
	StrategyWarn Strategy = "warn"
	// StrategyIgnore continues without recording anything.
	StrategyIgnore Strategy = "ignore"
	// StrategyBreak stops descending the current branch and keeps what
	// already resolved. Valid for circular-dependency only.
	StrategyBreak Strategy = "break"
	// StrategyPlaceholder substitutes configured fallback text for the
	// dependency's content. Valid for missing-dependency only.
	StrategyPlaceholder Strategy = "placeholder"
	// StrategyRetry retries with linear backoff and fails once the
	// attempts are spent. Valid for network-error only.
	StrategyRetry Strategy = "retry"
)

// ParseStrategy converts a configuration string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyFail:
		return StrategyFail, nil
	case StrategyWarn:
		return StrategyWarn, nil
	case StrategyIgnore:
		return StrategyIgnore, nil
	case StrategyBreak:
		return StrategyBreak, nil
	case StrategyPlaceholder:
		return StrategyPlaceholder, nil
	case StrategyRetry:
		return StrategyRetry, nil
	default:
		return "", fmt.Errorf("unknown error strategy %q (want fail, warn, ignore, break, placeholder, or retry)", s)
	}
}

// defaultStrategies is the built-in category table. Only the five
// categories on the configuration surface can deviate from it.
var defaultStrategies = map[Category]Strategy{
	CategoryMissing:        StrategyWarn,
	CategoryCircular:       StrategyWarn,
	CategoryPermission:     StrategyWarn,
	CategoryNetwork:        StrategyRetry,
	CategoryTimeout:        StrategyFail,
	CategoryInvalidFormat:  StrategyFail,
	CategoryVariable:       StrategyWarn,
	CategoryRecursionLimit: StrategyWarn,
	CategoryCache:          StrategyIgnore,
	CategoryUnknown:        StrategyFail,
}

// Policy maps condition categories to strategies and carries the
// retry and placeholder knobs. Immutable once built.
type Policy struct {
	strategies map[Category]Strategy

	RetryAttempts int
	RetryDelay    time.Duration
	FallbackText  string
}

// DefaultPolicy returns the built-in table with default retry knobs.
func DefaultPolicy() *Policy {
	p := &Policy{
		strategies:    make(map[Category]Strategy, len(defaultStrategies)),
		RetryAttempts: config.DefaultRetryAttempts,
		RetryDelay:    config.DefaultRetryDelay,
	}
	for k, v := range defaultStrategies {
		p.strategies[k] = v
	}
	return p
}

// PolicyFromSettings builds a Policy from the configuration surface.
// Unset categories keep their defaults. Strategies bound to the wrong
// category are rejected here rather than surprising at raise time.
func PolicyFromSettings(s config.ErrorSettings) (*Policy, error) {
	p := DefaultPolicy()
	p.RetryAttempts = s.RetryAttempts
	p.RetryDelay = s.RetryDelay
	p.FallbackText = s.FallbackText

	for _, c := range []struct {
		cat Category
		key string
		raw string
	}{
		{CategoryMissing, "missing", s.Missing},
		{CategoryCircular, "circular", s.Circular},
		{CategoryPermission, "permission", s.Permission},
		{CategoryNetwork, "network", s.Network},
		{CategoryTimeout, "timeout", s.Timeout},
	} {
		if c.raw == "" {
			continue
		}
		st, err := ParseStrategy(c.raw)
		if err != nil {
			return nil, fmt.Errorf("on_error.%s: %w", c.key, err)
		}
		if err := checkStrategyFits(c.cat, st); err != nil {
			return nil, fmt.Errorf("on_error.%s: %w", c.key, err)
		}
		p.strategies[c.cat] = st
	}
	return p, nil
}

func checkStrategyFits(cat Category, st Strategy) error {
	switch st {
	case StrategyBreak:
		if cat != CategoryCircular {
			return fmt.Errorf("strategy break only applies to %s", CategoryCircular)
		}
	case StrategyPlaceholder:
		if cat != CategoryMissing {
			return fmt.Errorf("strategy placeholder only applies to %s", CategoryMissing)
		}
	case StrategyRetry:
		if cat != CategoryNetwork {
			return fmt.Errorf("strategy retry only applies to %s", CategoryNetwork)
		}
	}
	return nil
}

// Strategy returns the strategy for cat, failing safe for categories
// the table has never heard of.
func (p *Policy) Strategy(cat Category) Strategy {
	if st, ok := p.strategies[cat]; ok {
		return st
	}
	return StrategyFail
}

// retryWait returns the linear backoff before the given retry,
// counted from 1.
func (p *Policy) retryWait(retry int) time.Duration {
	return p.RetryDelay * time.Duration(retry)
}

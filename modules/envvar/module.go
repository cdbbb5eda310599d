// Package envvar exposes process environment variables to snippet
// bodies through the env. variable namespace.
package envvar

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/vk/snipweave/internal/vars"
)

// Prefix is the variable namespace this module claims.
const Prefix = "env."

// Module implements the vars.Module interface for this package.
type Module struct{}

// Register binds the env. prefix: {{env.HOME}} resolves to $HOME.
// Unset variables resolve with an error so the expansion records the
// failure and falls through to the remaining layers.
func (m *Module) Register(r *vars.Registry) {
	r.RegisterPrefixCallback(Prefix, func(_ context.Context, name string) (string, error) {
		key := strings.TrimPrefix(name, Prefix)
		val, ok := os.LookupEnv(key)
		if !ok {
			return "", fmt.Errorf("environment variable %q is not set", key)
		}
		return val, nil
	})
}

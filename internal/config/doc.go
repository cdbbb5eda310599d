// Package config holds the unified, format-agnostic configuration model:
// engine settings with their defaults, the loaded collection model, and the
// Loader interface a format-specific loader (e.g. HCL) implements.
package config

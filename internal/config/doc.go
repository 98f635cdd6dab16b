// Package config loads, normalizes, and validates mediadedup configuration
// from TOML files with sensible defaults for every value.
package config

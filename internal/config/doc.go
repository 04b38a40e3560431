// Package config loads and validates hushd configuration from TOML.
//
// Configuration is resolved from, in order: an explicit --config path,
// ~/.config/hush/config.toml, then hush.toml in the working directory.
// Missing files fall back to defaults; a present file only needs to set
// the values it wants to override.
package config

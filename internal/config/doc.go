// Package config loads and validates the smart house server configuration.
// Files ending in .toml are decoded as TOML, everything else as YAML. Values
// missing from the file keep the defaults returned by Default.
package config

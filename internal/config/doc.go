// Package config loads braid configuration from YAML files with
// environment variable expansion and sensible defaults.
package config

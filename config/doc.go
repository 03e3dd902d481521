// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including server settings, backend addresses and penalty box backoff tuning.
package config

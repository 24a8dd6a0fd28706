// Package config provides configuration loading and validation for the call
// streaming service. It handles YAML-based configuration with struct validation
// and environment overrides for deployment secrets.
package config

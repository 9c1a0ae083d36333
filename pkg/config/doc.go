// Package config loads application configuration from environment
// variables and validates it at startup.
package config

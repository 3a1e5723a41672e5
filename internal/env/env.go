// Package env provides a small set of typed environment-variable accessors
// for overriding logger setup before internal/config has loaded.
package env

import (
	"os"
	"strconv"
)

// GetEnvOrDefault returns the named environment variable, or fallback if
// it is unset or empty.
func GetEnvOrDefault(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// GetEnvBoolOrDefault parses the named environment variable as a bool, or
// returns fallback if unset or unparsable.
func GetEnvBoolOrDefault(name string, fallback bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// GetEnvIntOrDefault parses the named environment variable as an int, or
// returns fallback if unset or unparsable.
func GetEnvIntOrDefault(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

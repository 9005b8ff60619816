// Package env reads process environment variables with defaults.
package env

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Get returns the value of an environment variable or a default value if not set
func Get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetWithFallback checks a specific variable, then a base one, then the default
func GetWithFallback(specific, base, defaultValue string) string {
	if value := os.Getenv(specific); value != "" {
		return value
	}
	return Get(base, defaultValue)
}

// IsTrue checks if a string represents a true value
func IsTrue(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// Duration parses a duration string, returning defaultVal on failure.
// Accepts Go durations ("10s", "1m") and plain milliseconds ("10000").
func Duration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultVal
}

// Int parses a base-10 integer, returning defaultVal when s is empty or invalid
func Int(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return n
	}
	return defaultVal
}

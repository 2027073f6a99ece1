package config

import (
	"fmt"
	"sort"
	"strings"
)

// Problem is one invalid setting
type Problem struct {
	Key     string
	Message string
}

// ValidationErrors collects all validation errors
type ValidationErrors struct {
	Problems []Problem
}

func (e *ValidationErrors) add(key, format string, args ...any) {
	e.Problems = append(e.Problems, Problem{Key: key, Message: fmt.Sprintf(format, args...)})
}

// HasErrors returns true if any validation errors exist
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Problems) > 0
}

// Keys returns the offending keys, sorted
func (e *ValidationErrors) Keys() []string {
	keys := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		keys = append(keys, p.Key)
	}
	sort.Strings(keys)
	return keys
}

// Error formats all validation errors into a clear message
func (e *ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, p := range e.Problems {
		sb.WriteString(fmt.Sprintf("  - %s: %s\n", p.Key, p.Message))
	}
	sb.WriteString(fmt.Sprintf("\nSettings can be overridden with %s_<SECTION>_<KEY> env vars\n", EnvPrefix))
	return sb.String()
}

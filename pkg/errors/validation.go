package errors

import (
	"math"
	"strings"
	"unicode"
)

// maxNameLength bounds variable and label names accepted from callers.
const maxNameLength = 256

// ValidateVariableName validates a dataset column name supplied by a caller.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters or null bytes
//   - No leading or trailing whitespace
//   - Maximum length of 256 characters
func ValidateVariableName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "variable name cannot be empty")
	}

	if len(name) > maxNameLength {
		return New(ErrCodeInvalidInput, "variable name too long (max %d characters)", maxNameLength)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "variable name %q contains control characters", name)
		}
	}

	if strings.TrimSpace(name) != name {
		return New(ErrCodeInvalidInput, "variable name %q has surrounding whitespace", name)
	}

	return nil
}

// ValidateVariableNames validates every name and rejects duplicates.
func ValidateVariableNames(names []string) error {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if err := ValidateVariableName(n); err != nil {
			return err
		}
		if seen[n] {
			return New(ErrCodeInvalidInput, "variable %q listed twice", n)
		}
		seen[n] = true
	}
	return nil
}

// ValidateConfLevel checks that a confidence level lies strictly inside (0, 1).
func ValidateConfLevel(level float64) error {
	if math.IsNaN(level) || level <= 0 || level >= 1 {
		return Configuration("confidence level must be in (0, 1), got %v", level)
	}
	return nil
}

// ValidatePath validates a relative output path for safety.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No path traversal sequences (..)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	return nil
}

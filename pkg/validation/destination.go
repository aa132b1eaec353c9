// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that are embedded
// in text-generation prompts or forwarded to external provider queries.
// Using these validators prevents prompt-structure injection and malformed
// provider requests.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MinDestinationLen is the minimum destination length in runes.
	MinDestinationLen = 2

	// MaxDestinationLen is the maximum destination length in runes.
	// Long enough for "San Pedro de Atacama, Antofagasta, Chile" with room
	// to spare; short enough to keep prompts bounded.
	MaxDestinationLen = 120
)

// whitespaceRun collapses internal whitespace runs to a single space.
var whitespaceRun = regexp.MustCompile(`\s+`)

// ValidateDestination validates a user-provided destination string before
// it is embedded in a generation prompt or a geocoding query.
//
// Valid destinations:
//   - 2-120 runes after trimming
//   - no control characters (newlines would break the prompt's
//     instruction/data boundary)
//   - at least one letter (pure punctuation/digits is never a place name)
//
// Returns an error describing the first failed check.
//
// Example:
//
//	if err := validation.ValidateDestination(dest); err != nil {
//	    return nil, fmt.Errorf("invalid destination: %w", err)
//	}
func ValidateDestination(destination string) error {
	if strings.TrimSpace(destination) == "" {
		return fmt.Errorf("destination cannot be empty")
	}

	n := utf8.RuneCountInString(destination)
	if n < MinDestinationLen {
		return fmt.Errorf("destination too short: %d runes (minimum %d)", n, MinDestinationLen)
	}
	if n > MaxDestinationLen {
		return fmt.Errorf("destination too long: %d runes (maximum %d)", n, MaxDestinationLen)
	}

	hasLetter := false
	for _, r := range destination {
		if unicode.IsControl(r) {
			return fmt.Errorf("destination contains control character U+%04X", r)
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	if !hasLetter {
		return fmt.Errorf("destination contains no letters: %q", destination)
	}

	return nil
}

// SanitizeDestination normalizes and validates a destination string.
// Returns the trimmed, whitespace-collapsed destination if valid.
//
// Use this at the request boundary so every downstream component sees the
// same canonical form:
//
//	dest, err := validation.SanitizeDestination(userInput)
//	if err != nil {
//	    return err
//	}
func SanitizeDestination(destination string) (string, error) {
	normalized := whitespaceRun.ReplaceAllString(strings.TrimSpace(destination), " ")
	if err := ValidateDestination(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

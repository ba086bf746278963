// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

// Package query contains small helpers for parsing URL query parameters.
package query

import "strconv"

// Int parses an integer query value, returning fallback when the value is
// absent or malformed. Handlers clamp the result to their own bounds.
func Int(val string, fallback int) int {
	if val == "" {
		return fallback
	}
	if n, err := strconv.Atoi(val); err == nil {
		return n
	}
	return fallback
}

// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

/*
Package uuid provides time-ordered unique identifiers for the platform.

It wraps the standard UUID library to specifically generate Version 7 values,
which are optimized for database performance.

Advantages:

  - Sortable: Naturally ordered by creation time (millisecond precision).
  - Friendly: Prevents index fragmentation in PostgreSQL (B-tree optimal).
  - Compact: 128-bit storage, compatible with standard 'uuid' types.

This is the mandatory ID type for all primary keys in the Sentinel ecosystem.
*/
package uuid

import "github.com/google/uuid"

// # Generators

// New generates a new UUIDv7 string.
func New() string {

	// Create a new version 7 UUID (time-sortable)
	id, err := uuid.NewV7()

	// entropy failure is an unrecoverable system-level error
	if err != nil {
		panic("uuidv7: failed to generate UUID: " + err.Error())
	}

	return id.String()
}

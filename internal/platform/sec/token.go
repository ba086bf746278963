// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package sec

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenerateSecureToken returns a hex-encoded, cryptographically random token.
//
// # Usage
//
// Used for the double-submit CSRF token and the OAuth state/intent nonces.
// The hex alphabet keeps tokens cookie- and header-safe without escaping.
func GenerateSecureToken(byteLength int) (string, error) {
	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("sec: failed to generate secure token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashToken returns the hex SHA-256 digest of a token.
//
// Tokens are stored hashed so a database leak never yields usable secrets.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

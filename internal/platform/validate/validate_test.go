// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelhq/sentinel/internal/platform/apperr"
	"github.com/sentinelhq/sentinel/internal/platform/validate"
)

/*
TestValidator_Required tests the mandatory field validation logic.
*/
func TestValidator_Required(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		value    string
		hasError bool
	}{
		{"valid_string", "command", ":announce", false},
		{"empty_string", "command", "", true},
		{"whitespace_only", "command", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			v.Required(tt.field, tt.value)

			if tt.hasError {
				assert.True(t, v.HasErrors())
				err := v.Err()
				require.NotNil(t, err)

				ae := apperr.As(err)
				require.NotNil(t, ae)
				assert.Equal(t, "VALIDATION_ERROR", ae.Code)
				assert.Equal(t, tt.field, ae.Details[0].Field)
			} else {
				assert.False(t, v.HasErrors())
				assert.Nil(t, v.Err())
			}
		})
	}
}

/*
TestValidator_Snowflake checks the Discord ID format rule.
*/
func TestValidator_Snowflake(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		isValid bool
	}{
		{"valid_snowflake", "150379874933349", true},
		{"alphanumeric", "abc123", false},
		{"too_short", "1234", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			v.Snowflake("user_id", tt.value)

			if tt.isValid {
				assert.False(t, v.HasErrors())
			} else {
				assert.True(t, v.HasErrors())
			}
		})
	}
}

/*
TestValidator_Chain tests the fluent API (chaining multiple rules).
*/
func TestValidator_Chain(t *testing.T) {
	v := &validate.Validator{}

	err := v.
		Required("module", "moderation").
		OneOf("module", "moderation", "moderation", "commands", "settings").
		Range("cooldown_seconds", 15, 0, 3600).
		Err()

	assert.NoError(t, err)
	assert.False(t, v.HasErrors())
}

/*
TestValidator_Chain_Failure tests error accumulation in the chain.
*/
func TestValidator_Chain_Failure(t *testing.T) {
	v := &validate.Validator{}

	err := v.
		Required("command", "").          // Fails
		MinLen("command", "a", 2).        // Fails
		Slug("feature", "Not A Slug!!!"). // Fails
		Err()

	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)

	// Should accumulate all 3 errors
	assert.Len(t, ae.Details, 3)
}

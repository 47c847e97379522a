package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      string
		predicate func(error) bool
	}{
		{"not found", NewNotFoundError("lead"), ErrCodeNotFound, IsNotFound},
		{"validation", NewValidationError("bad input"), ErrCodeValidation, IsValidation},
		{"field validation", NewFieldError("phone", "must be 10 digits"), ErrCodeValidation, IsValidation},
		{"duplicate", NewDuplicateError("9876543210"), ErrCodeDuplicate, IsDuplicate},
		{"unauthorized", NewUnauthorizedError(), ErrCodeUnauthorized, IsUnauthorized},
		{"forbidden", NewForbiddenError("admins only"), ErrCodeForbidden, IsForbidden},
		{"internal", NewInternalError(fmt.Errorf("boom")), ErrCodeInternal, IsInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.predicate(tt.err))
			assert.Equal(t, tt.code, GetErrorCode(tt.err))

			wrapped := fmt.Errorf("service layer: %w", tt.err)
			assert.True(t, tt.predicate(wrapped), "predicate should see through wrapping")
			assert.Equal(t, tt.code, GetErrorCode(wrapped))
		})
	}
}

func TestGetField(t *testing.T) {
	assert.Equal(t, "substatus", GetField(NewFieldError("substatus", "not valid for status")))
	assert.Equal(t, "phone", GetField(NewDuplicateError("9876543210")))
	assert.Equal(t, "", GetField(NewNotFoundError("lead")))
	assert.Equal(t, "", GetField(fmt.Errorf("plain")))
}

func TestGetErrorCode_NonDomainError(t *testing.T) {
	assert.Equal(t, ErrCodeInternal, GetErrorCode(fmt.Errorf("connection refused")))
	assert.False(t, IsNotFound(fmt.Errorf("lead not found")))
}

func TestDomainError_Message(t *testing.T) {
	err := NewFieldError("phone", "must be 10 digits")
	assert.Equal(t, "VALIDATION_ERROR: must be 10 digits (phone)", err.Error())

	internal := NewInternalError(fmt.Errorf("pq: connection reset"))
	assert.Contains(t, internal.Error(), "pq: connection reset")
}

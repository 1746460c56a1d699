package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Message(t *testing.T) {
	err := NewUpstreamError("failed to fetch custom values", errors.New("status=401"))
	assert.Equal(t, "UPSTREAM_ERROR: failed to fetch custom values: status=401", err.Error())

	err = NewNotFoundError("crm connection")
	assert.Equal(t, "NOT_FOUND: crm connection not found", err.Error())
}

func TestErrorPredicates_WrappedChain(t *testing.T) {
	base := NewConflictError("push already in progress", nil)
	wrapped := fmt.Errorf("funnel f-1: %w", base)

	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.Equal(t, ErrCodeConflict, GetErrorCode(wrapped))
}

func TestGetErrorCode_PlainError(t *testing.T) {
	assert.Equal(t, ErrCodeInternal, GetErrorCode(errors.New("boom")))
	assert.True(t, IsValidation(NewValidationError("limit must be positive")))
	assert.True(t, IsBadRequest(NewBadRequestError("bad")))
	assert.True(t, IsUpstream(NewUpstreamError("x", nil)))
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewInternalError(cause)
	assert.ErrorIs(t, err, cause)
}

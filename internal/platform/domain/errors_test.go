package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_IsMatchesByCode(t *testing.T) {
	err := NewStorageError("create run record", errors.New("disk full"))

	assert.True(t, errors.Is(err, ErrStorage))
	assert.False(t, errors.Is(err, ErrStorageInit))
	assert.Contains(t, err.Error(), "disk full")
}

func TestAppError_WrappedStillMatches(t *testing.T) {
	inner := NewPermissionDeniedError("location access refused")
	wrapped := fmt.Errorf("start tracking: %w", inner)

	assert.True(t, errors.Is(wrapped, ErrPermissionDenied))
	assert.Equal(t, CodePermissionDenied, CodeOf(wrapped))
}

func TestAppError_UnwrapExposesCause(t *testing.T) {
	cause := errors.New("broker unreachable")
	err := NewSampleSourceError("subscribe", cause)

	assert.ErrorIs(t, err, cause)
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}

func TestNewInvalidStateError_Message(t *testing.T) {
	err := NewInvalidStateError("idle", "stopped")
	assert.Equal(t, "INVALID_STATE: cannot transition from idle to stopped", err.Error())
}

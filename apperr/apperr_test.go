package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindSentinels(t *testing.T) {
	err := Conflict("item %s is no longer available", "abc")
	wrapped := fmt.Errorf("accept: %w", err)

	assert.True(t, errors.Is(wrapped, ErrConflict))
	assert.False(t, errors.Is(wrapped, ErrValidation))
	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.Equal(t, "item abc is no longer available", err.Error())
}

func TestKindOfInfrastructureError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("connection refused")))
	assert.False(t, IsBusiness(errors.New("boom")))
	assert.True(t, IsBusiness(NotFound("contact not found")))
}

func TestPartialFailureKeepsCause(t *testing.T) {
	cause := errors.New("commit: connection reset")
	err := PartialFailure(cause, "lend of %d items", 2)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrPartialFailure))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestSentinelDoesNotMatchAnotherMessageBearingError(t *testing.T) {
	// Only the message-less sentinels act as kind matchers.
	a := Validation("name is required")
	b := Validation("name is required")
	assert.False(t, errors.Is(a, b))
}

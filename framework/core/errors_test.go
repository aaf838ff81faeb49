package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameworkError_Is(t *testing.T) {
	err := Wrap(errors.New("connection reset"), ErrCommitFailed, "commit read models")

	assert.True(t, errors.Is(err, &FrameworkError{Code: ErrCommitFailed}))
	assert.False(t, errors.Is(err, &FrameworkError{Code: ErrNotFound}))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestHasCode_WrappedChain(t *testing.T) {
	inner := NewError(ErrUnknownEventType, "no decoder for Foo")
	outer := fmt.Errorf("decode message: %w", inner)

	assert.True(t, HasCode(outer, ErrUnknownEventType))
	assert.False(t, HasCode(outer, ErrMalformedEvent))
	assert.False(t, HasCode(nil, ErrMalformedEvent))
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCommitFailed, "noop"))
}

func TestWithContext(t *testing.T) {
	err := Errorf(ErrInvalidConfig, "unknown bus %q", "amqp").WithContext("config")
	assert.Equal(t, ErrInvalidConfig, err.Code)
	assert.Equal(t, `config: unknown bus "amqp"`, err.Message)
}

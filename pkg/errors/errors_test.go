package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndWrap(t *testing.T) {
	err := New(ErrorTypeUnknownUid, "uid foo not found").WithDetail("uid", "foo")
	assert.Equal(t, "unknown_uid: uid foo not found", err.Error())
	assert.NotEmpty(t, err.Stack)

	v, ok := err.Detail("uid")
	require.True(t, ok)
	assert.Equal(t, "foo", v)

	wrapped := Wrap(err, ErrorTypeInternal, "delete failed")
	assert.Equal(t, err.Stack, wrapped.Stack, "wrapping keeps the original stack")
	assert.True(t, IsType(wrapped, ErrorTypeInternal))
	assert.False(t, IsType(wrapped, ErrorTypeUnknownUid))
	assert.True(t, HasType(wrapped, ErrorTypeUnknownUid))
	assert.Nil(t, Wrap(nil, ErrorTypeInternal, "nothing"))
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"structured", New(ErrorTypeConfig, "bad"), ErrorTypeConfig},
		{"fmt wrapped", fmt.Errorf("outer: %w", New(ErrorTypeScript, "boom")), ErrorTypeScript},
		{"plain", stderrors.New("plain"), ErrorTypeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeOf(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrorTypeConnection, "down")))
	assert.True(t, IsRetryable(New(ErrorTypeTimeout, "slow")))
	assert.False(t, IsRetryable(New(ErrorTypeUnsupportedObjectClass, "nope")))
	assert.False(t, IsRetryable(stderrors.New("plain")))
}

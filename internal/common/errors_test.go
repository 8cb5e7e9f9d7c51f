package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractionError_Message(t *testing.T) {
	err := NewExtractionError(KindToolFailure, "bad magic", nil)
	assert.Equal(t, "ToolFailure: bad magic", err.Error())

	bare := &ExtractionError{Kind: KindTimeout}
	assert.Equal(t, "Timeout", bare.Error())
}

func TestNewExtractionError_DetailFromCause(t *testing.T) {
	cause := errors.New("zip: not a valid zip file")
	err := NewExtractionError(KindParseFailure, "", cause)
	assert.Equal(t, "zip: not a valid zip file", err.Detail)
	assert.ErrorIs(t, err, cause)
}

func TestAsExtractionError(t *testing.T) {
	assert.Nil(t, AsExtractionError(nil))

	inner := NewExtractionError(KindTimeout, "decoder exceeded 30s", nil)
	wrapped := fmt.Errorf("legacy: %w", inner)
	got := AsExtractionError(wrapped)
	require.NotNil(t, got)
	assert.Same(t, inner, got)

	other := AsExtractionError(errors.New("boom"))
	require.NotNil(t, other)
	assert.Equal(t, KindInternal, other.Kind)
	assert.Equal(t, "boom", other.Detail)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(nil))
	assert.Equal(t, KindToolUnavailable, KindOf(NewExtractionError(KindToolUnavailable, "x", nil)))
}

func TestErrorKind_ClientFault(t *testing.T) {
	assert.True(t, KindInvalidInput.ClientFault())
	assert.True(t, KindUnsupportedFormat.ClientFault())
	for _, k := range []ErrorKind{KindParseFailure, KindToolUnavailable, KindTimeout, KindToolFailure, KindInvocationFailure, KindInternal} {
		assert.False(t, k.ClientFault(), k)
	}
}

func TestAppError(t *testing.T) {
	err := NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	assert.Equal(t, "CONFIG_ERROR: HTTP_ADDR is required: invalid input", err.Error())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

package fwpm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		code NativeCode
		want ErrKind
	}{
		{name: "filter not found", code: CodeFilterNotFound, want: KindNotFound},
		{name: "layer not found", code: CodeLayerNotFound, want: KindNotFound},
		{name: "sublayer not found", code: CodeSubLayerNotFound, want: KindNotFound},
		{name: "callout not found", code: CodeCalloutNotFound, want: KindNotFound},
		{name: "provider not found", code: CodeProviderNotFound, want: KindNotFound},
		{name: "generic not found", code: CodeNotFound, want: KindNotFound},
		{name: "access denied", code: CodeAccessDenied, want: KindAccessDenied},
		{name: "invalid parameter", code: CodeInvalidParameter, want: KindInvalidParameter},
		{name: "insufficient buffer", code: CodeInsufficientBuffer, want: KindBufferTooSmall},
		{name: "not implemented", code: CodeNotImplemented, want: KindNotImplemented},
		{name: "server unavailable", code: CodeServerUnavailable, want: KindTransport},
		{name: "session aborted", code: CodeSessionAborted, want: KindTransport},
		{name: "unrecognized", code: NativeCode(0xdeadbeef), want: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, kindOf(tt.code))
		})
	}
}

func TestOpErrorNativeCode(t *testing.T) {
	err := opError("get filter", CodeFilterNotFound)
	require.Error(t, err)

	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "get filter", ee.Op)
	assert.Equal(t, CodeFilterNotFound, ee.Code)
	assert.Equal(t, KindNotFound, ee.Kind)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrAccessDenied)
}

func TestOpErrorGenericError(t *testing.T) {
	cause := errors.New("connection reset")
	err := opError("enumerate layers", cause)

	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, CodeSuccess, ee.Code)
	assert.Equal(t, KindTransport, ee.Kind)
	assert.ErrorIs(t, err, cause)
}

func TestOpErrorNil(t *testing.T) {
	assert.NoError(t, opError("get filter", nil))
}

func TestOpErrorPassThrough(t *testing.T) {
	// An already-translated error keeps its identity.
	inner := statusError("get layer", KindSessionClosed)
	assert.Equal(t, inner, opError("outer op", inner))
}

func TestStatusError(t *testing.T) {
	err := statusError("set session security", KindNotImplemented)

	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, CodeNotImplemented, ee.Code)
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestEngineErrorMessage(t *testing.T) {
	err := &EngineError{Op: "get layer", Code: CodeLayerNotFound, Kind: KindNotFound}
	msg := err.Error()
	assert.Contains(t, msg, "get layer")
	assert.Contains(t, msg, "0x80320004")
}

func TestMust(t *testing.T) {
	t.Run("success returns value", func(t *testing.T) {
		assert.Equal(t, 42, Must(42, nil))
	})

	t.Run("failure panics with the same error", func(t *testing.T) {
		want := opError("get filter", CodeAccessDenied)
		defer func() {
			got := recover()
			require.NotNil(t, got)
			assert.Equal(t, want, got)
		}()
		Must(0, want)
	})
}

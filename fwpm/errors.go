package fwpm

import (
	"errors"
	"fmt"
)

// NativeCode is a status code in the engine's native domain. Zero is
// success; failure codes follow the engine's HRESULT-style numbering.
// NativeCode implements error so transports can surface codes directly,
// the way syscall.Errno does.
type NativeCode uint32

// Codes the engine is known to return.
const (
	CodeSuccess NativeCode = 0

	// General facility codes.
	CodeNotImplemented     NativeCode = 0x80004001
	CodeAccessDenied       NativeCode = 0x80070005
	CodeInvalidParameter   NativeCode = 0x80070057
	CodeInsufficientBuffer NativeCode = 0x8007007a
	CodeServerUnavailable  NativeCode = 0x800706ba

	// Engine facility codes.
	CodeCalloutNotFound  NativeCode = 0x80320001
	CodeFilterNotFound   NativeCode = 0x80320003
	CodeLayerNotFound    NativeCode = 0x80320004
	CodeProviderNotFound NativeCode = 0x80320005
	CodeSubLayerNotFound NativeCode = 0x80320007
	CodeNotFound         NativeCode = 0x80320008
	CodeSessionAborted   NativeCode = 0x80320010
)

func (c NativeCode) Error() string {
	return c.String()
}

func (c NativeCode) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeNotImplemented:
		return "not implemented"
	case CodeAccessDenied:
		return "access denied"
	case CodeInvalidParameter:
		return "invalid parameter"
	case CodeInsufficientBuffer:
		return "insufficient buffer"
	case CodeServerUnavailable:
		return "engine unavailable"
	case CodeCalloutNotFound:
		return "callout not found"
	case CodeFilterNotFound:
		return "filter not found"
	case CodeLayerNotFound:
		return "layer not found"
	case CodeProviderNotFound:
		return "provider not found"
	case CodeSubLayerNotFound:
		return "sublayer not found"
	case CodeNotFound:
		return "object not found"
	case CodeSessionAborted:
		return "session aborted"
	default:
		return fmt.Sprintf("engine code 0x%08x", uint32(c))
	}
}

// ErrKind categorizes failures into the richer domain used for reporting.
// Several native codes can collapse into one kind; the original code is
// preserved on the EngineError alongside it.
type ErrKind int

const (
	KindUnknown ErrKind = iota
	KindTransport
	KindNotFound
	KindAccessDenied
	KindInvalidParameter
	KindBufferTooSmall
	KindNotImplemented
	KindSessionClosed
)

func (k ErrKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindNotFound:
		return "not_found"
	case KindAccessDenied:
		return "access_denied"
	case KindInvalidParameter:
		return "invalid_parameter"
	case KindBufferTooSmall:
		return "buffer_too_small"
	case KindNotImplemented:
		return "not_implemented"
	case KindSessionClosed:
		return "session_closed"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching. An *EngineError matches the sentinel
// of its kind regardless of which native code produced it.
var (
	ErrNotFound         = errors.New("fwpm: object not found")
	ErrAccessDenied     = errors.New("fwpm: access denied")
	ErrInvalidParameter = errors.New("fwpm: invalid parameter")
	ErrBufferTooSmall   = errors.New("fwpm: buffer too small")
	ErrNotImplemented   = errors.New("fwpm: not implemented")
	ErrSessionClosed    = errors.New("fwpm: session closed")
)

// kindOf bridges the native code domain into the kind domain.
func kindOf(code NativeCode) ErrKind {
	switch code {
	case CodeCalloutNotFound, CodeFilterNotFound, CodeLayerNotFound,
		CodeProviderNotFound, CodeSubLayerNotFound, CodeNotFound:
		return KindNotFound
	case CodeAccessDenied:
		return KindAccessDenied
	case CodeInvalidParameter:
		return KindInvalidParameter
	case CodeInsufficientBuffer:
		return KindBufferTooSmall
	case CodeNotImplemented:
		return KindNotImplemented
	case CodeServerUnavailable, CodeSessionAborted:
		return KindTransport
	default:
		return KindUnknown
	}
}

// codeOf maps a kind back to its canonical native code, for failures
// composed in the kind domain rather than reported by the engine.
func codeOf(kind ErrKind) NativeCode {
	switch kind {
	case KindNotFound:
		return CodeNotFound
	case KindAccessDenied:
		return CodeAccessDenied
	case KindInvalidParameter:
		return CodeInvalidParameter
	case KindBufferTooSmall:
		return CodeInsufficientBuffer
	case KindNotImplemented:
		return CodeNotImplemented
	default:
		return CodeSuccess
	}
}

// EngineError is the failure type every fwpm operation reports. It carries
// the operation name, the native code when one exists, and the kind
// category used for errors.Is matching.
type EngineError struct {
	Op   string     // operation that failed, e.g. "enumerate filters"
	Code NativeCode // native code, CodeSuccess when none applies
	Kind ErrKind
	Err  error // underlying transport error, if any
}

func (e *EngineError) Error() string {
	msg := fmt.Sprintf("fwpm: %s failed", e.Op)
	if e.Code != CodeSuccess {
		msg = fmt.Sprintf("%s: %s (0x%08x)", msg, e.Code, uint32(e.Code))
	} else if e.Kind != KindUnknown {
		msg = fmt.Sprintf("%s: %s", msg, e.Kind)
	}
	if e.Err != nil && !errors.Is(e.Err, e.Code) {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel corresponding to the error's kind.
func (e *EngineError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrAccessDenied:
		return e.Kind == KindAccessDenied
	case ErrInvalidParameter:
		return e.Kind == KindInvalidParameter
	case ErrBufferTooSmall:
		return e.Kind == KindBufferTooSmall
	case ErrNotImplemented:
		return e.Kind == KindNotImplemented
	case ErrSessionClosed:
		return e.Kind == KindSessionClosed
	}
	return false
}

// opError translates a native-call failure into an *EngineError for op.
// Transport errors that already carry a NativeCode keep that code; anything
// else is reported as a transport-kind failure.
func opError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ee *EngineError
	if errors.As(err, &ee) {
		return err
	}
	var code NativeCode
	if errors.As(err, &code) {
		return &EngineError{Op: op, Code: code, Kind: kindOf(code), Err: err}
	}
	return &EngineError{Op: op, Kind: KindTransport, Err: err}
}

// statusError composes a failure directly in the kind domain, for
// conditions the engine's code domain cannot express.
func statusError(op string, kind ErrKind) error {
	return &EngineError{Op: op, Code: codeOf(kind), Kind: kind}
}

// Must unwraps a (value, error) pair, panicking with the error on failure.
// It is the raising form of every query on this package's surface:
//
//	layer := fwpm.Must(sess.GetLayer(ctx, key))
//
// The panic value is the identical *EngineError the error-returning form
// yields, so the two forms never disagree on the cause.
func Must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

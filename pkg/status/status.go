// Package status defines the closed outcome taxonomy every govpl
// operation returns (C1). Grounded on the dispatcher's MFXStatus
// polarity convention (_examples/original_source/api/mfxdefs.h-style
// enum referenced throughout mfx_dispatcher_onevpl.cpp): warnings
// positive, errors negative, OK zero, so callers can test `status >= 0`
// to decide whether to proceed.
package status

import "fmt"

// Code is one outcome kind. The zero value is OK.
type Code int

const (
	// Warnings (positive).
	VideoParamChanged        Code = 1
	IncompatibleVideoParam   Code = 2
	PartialAcceleration      Code = 3

	// OK.
	OK Code = 0

	// Back-pressure, not failures, but negative by the source enum's
	// convention (mirrored here for wire compatibility with the status
	// numbering an application may log).
	MoreData    Code = -1
	MoreSurface Code = -2

	// Errors.
	Unknown               Code = -3
	NullPtr               Code = -4
	Unsupported           Code = -5
	NotInitialized        Code = -6
	InvalidHandle         Code = -7
	MemoryAlloc           Code = -8
	NotEnoughBuffer       Code = -9
	InvalidVideoParam      Code = -10
	UndefinedBehavior      Code = -11
	NotFound               Code = -12
	NotImplemented          Code = -13
	Aborted                 Code = -14
)

// String renders the symbolic name used across the oneVPL-alike surface.
func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case VideoParamChanged:
		return "VIDEO_PARAM_CHANGED"
	case IncompatibleVideoParam:
		return "INCOMPATIBLE_VIDEO_PARAM"
	case PartialAcceleration:
		return "PARTIAL_ACCELERATION"
	case MoreData:
		return "MORE_DATA"
	case MoreSurface:
		return "MORE_SURFACE"
	case Unknown:
		return "UNKNOWN"
	case NullPtr:
		return "NULL_PTR"
	case Unsupported:
		return "UNSUPPORTED"
	case NotInitialized:
		return "NOT_INITIALIZED"
	case InvalidHandle:
		return "INVALID_HANDLE"
	case MemoryAlloc:
		return "MEMORY_ALLOC"
	case NotEnoughBuffer:
		return "NOT_ENOUGH_BUFFER"
	case InvalidVideoParam:
		return "INVALID_VIDEO_PARAM"
	case UndefinedBehavior:
		return "UNDEFINED_BEHAVIOR"
	case NotFound:
		return "NOT_FOUND"
	case NotImplemented:
		return "NOT_IMPLEMENTED"
	case Aborted:
		return "ABORTED"
	default:
		return fmt.Sprintf("status(%d)", int(c))
	}
}

// IsError reports whether c represents a failure (negative, excluding
// the back-pressure kinds which callers must loop on rather than treat
// as fatal).
func (c Code) IsError() bool {
	return c < OK && !c.IsBackpressure()
}

// IsWarning reports whether c is a non-fatal advisory (positive).
func (c Code) IsWarning() bool {
	return c > OK
}

// IsBackpressure reports whether c signals the caller should resubmit
// rather than treat the call as failed.
func (c Code) IsBackpressure() bool {
	return c == MoreData || c == MoreSurface
}

// Proceed mirrors the source's `status >= 0` convention: OK and
// warnings both mean "continue". Every negative code, back-pressure
// (MoreData, MoreSurface) included, makes Proceed false; IsBackpressure
// tells those apart from failures.
func (c Code) Proceed() bool {
	return c >= OK
}

// Error implements error so Code can be returned directly from Go APIs
// that need an error value (e.g. to satisfy an io.Reader-alike
// contract); OK.Error() is still called only by code that mistakenly
// treats a non-error Code as an error, which AsError below guards against.
func (c Code) Error() string {
	return c.String()
}

// Status wraps a Code as a Go error, non-nil only for true failures.
// Use AsError to convert a Code to an idiomatic Go error value — nil
// for OK and warnings, a *Status otherwise.
type Status struct {
	Code Code
}

func (s *Status) Error() string {
	return s.Code.String()
}

// AsError converts c to a Go error: nil when c.Proceed(), a non-nil
// *Status otherwise. Pipelines that want idiomatic Go error returns at
// their outermost boundary (cmd/vpl-info) use this; the
// pipeline internals themselves pass Code directly, matching the
// source's habit of returning the status as the primary value rather
// than wrapping it.
func AsError(c Code) error {
	if c.Proceed() {
		return nil
	}
	return &Status{Code: c}
}

package slab

import (
	"errors"
	"fmt"

	"github.com/fixedalloc/fixedalloc/page"
)

// ErrorCode classifies the ways a slab-layer call can fail.
type ErrorCode int

const (
	// ErrExhausted indicates both the slab layer and the underlying
	// page allocator (even after a reclamation sweep) could not
	// satisfy a request.
	ErrExhausted ErrorCode = iota + 1

	// ErrNotMounted indicates a call was made before Reinit.
	ErrNotMounted

	// ErrNotOwned indicates a pointer passed to Free/Realloc does not
	// belong to this allocator's mounted buffer.
	ErrNotOwned
)

var errorMessages = map[ErrorCode]string{
	ErrExhausted:  "no slab cell or page available for this request",
	ErrNotMounted: "allocator has not been reinitialized with a buffer",
	ErrNotOwned:   "pointer does not belong to this allocator's buffer",
}

// Error is the slab layer's error type: a stable Code plus an optional
// wrapped cause, mirroring the page package's Error.
type Error struct {
	Code ErrorCode
	Err  error
}

func (e *Error) Error() string {
	msg, ok := errorMessages[e.Code]
	if !ok {
		msg = fmt.Sprintf("unknown error code %d", e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("slab: %s: %v", msg, e.Err)
	}
	return fmt.Sprintf("slab: %s", msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an *Error for code with no wrapped cause.
func NewError(code ErrorCode) *Error { return &Error{Code: code} }

// WrapError builds an *Error for code wrapping err.
func WrapError(code ErrorCode, err error) *Error { return &Error{Code: code, Err: err} }

// ErrExhaustedErr is the sentinel returned by Malloc/Realloc on
// exhaustion.
var ErrExhaustedErr = NewError(ErrExhausted)

// Code extracts the ErrorCode from err, or 0 if err is nil or not one
// of ours.
func Code(err error) ErrorCode {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// IsExhausted reports whether err is (or wraps) an exhaustion error,
// whether it originated in this package or was passed through from the
// underlying page allocator.
func IsExhausted(err error) bool {
	return Code(err) == ErrExhausted || page.IsExhausted(err)
}

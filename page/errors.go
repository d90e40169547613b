package page

import (
	"errors"
	"fmt"
)

// ErrorCode classifies the ways a page-layer call can fail.
type ErrorCode int

const (
	// ErrInvalidSize indicates a buffer whose length is outside the
	// legal window or not a page multiple.
	ErrInvalidSize ErrorCode = iota + 1

	// ErrMisaligned indicates a buffer whose address is not
	// page-aligned. A misaligned pointer under guard mode aborts
	// instead of returning this code.
	ErrMisaligned

	// ErrTooManyPages indicates a buffer whose page count exceeds
	// what the single-page metadata table can index.
	ErrTooManyPages

	// ErrExhausted indicates the allocator has no free region (even
	// after flushing pending frees) large enough to satisfy a
	// request. Not a fault — callers are expected to handle it.
	ErrExhausted

	// ErrNotMounted indicates a call was made before Reinit.
	ErrNotMounted
)

var errorMessages = map[ErrorCode]string{
	ErrInvalidSize:   "buffer size outside the legal window or not a page multiple",
	ErrMisaligned:    "buffer or pointer is not page-aligned",
	ErrTooManyPages:  "page count exceeds metadata table capacity",
	ErrExhausted:     "no free region large enough for this request",
	ErrNotMounted:    "allocator has not been reinitialized with a buffer",
}

// Error is the page layer's error type: a stable Code plus an optional
// wrapped cause.
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
		return fmt.Sprintf("page: %s: %v", msg, e.Err)
	}
	return fmt.Sprintf("page: %s", msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an *Error for code with no wrapped cause.
func NewError(code ErrorCode) *Error { return &Error{Code: code} }

// WrapError builds an *Error for code wrapping err.
func WrapError(code ErrorCode, err error) *Error { return &Error{Code: code, Err: err} }

// ErrExhaustedErr is the sentinel returned by Malloc/Realloc on
// exhaustion; compare with errors.Is or use Code(err) == ErrExhausted.
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

// IsExhausted reports whether err is (or wraps) an exhaustion error.
func IsExhausted(err error) bool {
	return Code(err) == ErrExhausted
}

//go:build unix

// Package arena provides a convenience source of page-aligned buffers
// for callers who don't already have a managed region to hand to
// page.Allocator.Reinit or slab.Allocator.Reinit. It is the one
// concrete instance of the "where does the managed buffer come from"
// external collaborator left out of the allocator core's own scope:
// the allocator never imports this package, but most real callers need
// some way to get the bytes in the first place.
//
// Modeled on the teacher repo's own mmap package: an anonymous,
// MAP_PRIVATE mapping plays the role their mmap package fills for a
// file-backed database, just without a file descriptor behind it.
package arena

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/fixedalloc/fixedalloc/page"
)

// DefaultStaticSize is the size used by the staticbuffer build tag's
// package-level arena (see the page package's build configuration in
// SPEC_FULL.md §6).
const DefaultStaticSize = 640 * 1024

// Error reports an arena mapping failure.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("arena: %s: %v", e.Op, e.Err)
	}
	return "arena: " + e.Op
}

func (e *Error) Unwrap() error { return e.Err }

// MapAnonymous reserves size bytes of anonymous, zero-filled, private
// memory, rounded up to a page multiple. The returned slice's address
// is page-aligned, making it usable directly as the buf argument to
// page.Allocator.Reinit or slab.Allocator.Reinit without going through
// page.NewAlignedBuffer's over-allocate-and-slice trick.
func MapAnonymous(size int) ([]byte, error) {
	if size <= 0 {
		return nil, &Error{Op: "MapAnonymous", Err: fmt.Errorf("size must be positive, got %d", size)}
	}
	n := ((size + page.Size - 1) / page.Size) * page.Size

	data, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, &Error{Op: "mmap", Err: err}
	}
	return data, nil
}

// Unmap releases a buffer previously returned by MapAnonymous.
func Unmap(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	if err := unix.Munmap(buf); err != nil {
		return &Error{Op: "munmap", Err: err}
	}
	return nil
}

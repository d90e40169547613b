package fixedalloc

import (
	"sync"
	"unsafe"

	"github.com/fixedalloc/fixedalloc/page"
	"github.com/fixedalloc/fixedalloc/slab"
)

// LockedPage wraps a *page.Allocator with a mutex around every public
// entry point, for the common case of sharing one allocator across
// goroutines without each caller hand-rolling the same lock. The core
// page.Allocator itself never takes a lock (see SPEC_FULL.md §5); this
// type is an optional, separately-used convenience on top of it.
type LockedPage struct {
	mu sync.Mutex
	a  *page.Allocator
}

// NewLockedPage wraps a.
func NewLockedPage(a *page.Allocator) *LockedPage {
	return &LockedPage{a: a}
}

func (l *LockedPage) Reinit(buf []byte, zeroFilled bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Reinit(buf, zeroFilled)
}

func (l *LockedPage) Malloc(n int, hint page.Hint) (unsafe.Pointer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Malloc(n, hint)
}

func (l *LockedPage) Free(ptr unsafe.Pointer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.a.Free(ptr)
}

func (l *LockedPage) Realloc(ptr unsafe.Pointer, n int, hint page.Hint) (unsafe.Pointer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Realloc(ptr, n, hint)
}

// LockedSlab is LockedPage's counterpart for *slab.Allocator.
type LockedSlab struct {
	mu sync.Mutex
	a  *slab.Allocator
}

// NewLockedSlab wraps a.
func NewLockedSlab(a *slab.Allocator) *LockedSlab {
	return &LockedSlab{a: a}
}

func (l *LockedSlab) Reinit(buf []byte, zeroFilled bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Reinit(buf, zeroFilled)
}

func (l *LockedSlab) Malloc(n int) (unsafe.Pointer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Malloc(n)
}

func (l *LockedSlab) Free(ptr unsafe.Pointer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.a.Free(ptr)
}

func (l *LockedSlab) Realloc(ptr unsafe.Pointer, n int) (unsafe.Pointer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Realloc(ptr, n)
}

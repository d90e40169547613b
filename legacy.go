package fixedalloc

import (
	"unsafe"

	"github.com/fixedalloc/fixedalloc/page"
	"github.com/fixedalloc/fixedalloc/slab"
)

// defaultPages and defaultSlabs are the package-wide singletons backing
// the legacy, reference-design-shaped free functions below. Each owns
// its own buffer; mounting one via PageReinit/Reinit has no effect on
// the other.
var (
	defaultPages = page.New()
	defaultSlabs = slab.NewStandalone()
)

// PageReinit mounts buf on the package-level page allocator. See
// page.Allocator.Reinit.
func PageReinit(buf []byte, zeroFilled bool) error {
	return defaultPages.Reinit(buf, zeroFilled)
}

// PageMalloc allocates n bytes (rounded to a page multiple) from the
// package-level page allocator. See page.Allocator.Malloc.
func PageMalloc(n int, hint page.Hint) (unsafe.Pointer, error) {
	return defaultPages.Malloc(n, hint)
}

// PageFree frees ptr on the package-level page allocator. See
// page.Allocator.Free.
func PageFree(ptr unsafe.Pointer) {
	defaultPages.Free(ptr)
}

// PageRealloc resizes ptr on the package-level page allocator. See
// page.Allocator.Realloc.
func PageRealloc(ptr unsafe.Pointer, n int, hint page.Hint) (unsafe.Pointer, error) {
	return defaultPages.Realloc(ptr, n, hint)
}

// SlabReinit mounts buf on the package-level slab allocator (and,
// transitively, its own private page allocator). This is the entry
// point most callers of the legacy surface want: slab.Allocator
// already forwards page-sized-and-larger requests to its page layer,
// so SlabMalloc below serves both small cells and whole-page runs from
// one buffer.
func SlabReinit(buf []byte, zeroFilled bool) error {
	return defaultSlabs.Reinit(buf, zeroFilled)
}

// SlabMalloc allocates n bytes from the package-level slab allocator.
// See slab.Allocator.Malloc.
func SlabMalloc(n int) (unsafe.Pointer, error) {
	return defaultSlabs.Malloc(n)
}

// SlabFree frees ptr on the package-level slab allocator. See
// slab.Allocator.Free.
func SlabFree(ptr unsafe.Pointer) {
	defaultSlabs.Free(ptr)
}

// SlabRealloc resizes ptr on the package-level slab allocator. See
// slab.Allocator.Realloc.
func SlabRealloc(ptr unsafe.Pointer, n int) (unsafe.Pointer, error) {
	return defaultSlabs.Realloc(ptr, n)
}

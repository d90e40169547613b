//go:build staticbuffer && unix

package fixedalloc

import "github.com/fixedalloc/fixedalloc/arena"

// With the staticbuffer build tag, the package-level slab allocator
// (and its underlying page allocator) comes pre-mounted on a
// DefaultStaticSize buffer at package init, matching the reference
// design's embedded-static-buffer mode. Without this tag (the
// default), SlabReinit must be called before any other operation.
//
// Also gated on unix since arena.MapAnonymous is; on other platforms
// this file is left out even when the staticbuffer tag is set, and the
// package-level allocators start unmounted.
func init() {
	buf, err := arena.MapAnonymous(arena.DefaultStaticSize)
	if err != nil {
		panic(err)
	}
	if err := defaultSlabs.Reinit(buf, true); err != nil {
		panic(err)
	}
}

// Package fixedalloc ties the page and slab allocators together and
// offers the classic global-singleton convenience API (one static
// buffer, one default instance, package-level free functions) that the
// reference design this system was distilled from exposes, for callers
// who would rather not thread an *Allocator through their own code.
//
// Callers who want the idiomatic per-instance Go API should import
// page and slab directly instead:
//
//	buf := page.NewAlignedBuffer(128 * 1024)
//	slabs := slab.NewStandalone()
//	if err := slabs.Reinit(buf, true); err != nil {
//	    log.Fatal(err)
//	}
//	ptr, err := slabs.Malloc(64)
//
// This package's legacy surface wraps exactly that pattern behind a
// single package-level instance:
//
//	buf := page.NewAlignedBuffer(128 * 1024)
//	if err := fixedalloc.SlabReinit(buf, true); err != nil {
//	    log.Fatal(err)
//	}
//	ptr, err := fixedalloc.SlabMalloc(64)
//	fixedalloc.SlabFree(ptr)
package fixedalloc

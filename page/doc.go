// Package page implements the page-granularity half of a two-tier fixed
// buffer allocator: it partitions a single caller-supplied byte buffer
// into 4 KiB pages and serves page-multiple allocations from either end
// of the address space according to a lifetime hint.
//
// The buffer's first page is reserved for an in-band metadata table
// recording the page-count of every currently allocated run; the
// free-region list and pending-free list are themselves stored inside
// the very pages they describe, so the allocator needs no bookkeeping
// memory beyond the buffer itself.
//
// Basic usage:
//
//	buf := page.NewAlignedBuffer(128 * 1024)
//	a := page.New()
//	if err := a.Reinit(buf, true); err != nil {
//	    log.Fatal(err)
//	}
//
//	ptr, err := a.Malloc(4096, page.Transient)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	a.Free(ptr)
package page

package slab

import (
	"testing"
	"unsafe"

	"github.com/fixedalloc/fixedalloc/page"
)

// minTestPages keeps every test buffer at or above the page layer's
// 128 KiB minimum (Reinit rejects anything smaller).
const minTestPages = 128*1024/page.Size - 1

func newTestAllocator(t *testing.T, pages int) *Allocator {
	t.Helper()
	if pages < minTestPages {
		pages = minTestPages
	}
	buf := page.NewAlignedBuffer((pages + 1) * page.Size)
	a := NewStandalone()
	if err := a.Reinit(buf, false); err != nil {
		t.Fatalf("Reinit: %v", err)
	}
	return a
}

func TestMallocFreeSmallCell(t *testing.T) {
	a := newTestAllocator(t, 4)

	ptr, err := a.Malloc(20)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	if a.pages.Aligned(ptr) {
		t.Fatalf("a 20-byte request must not land on a page boundary")
	}
	a.Free(ptr)
}

func TestOversizeRequestPromotesToPage(t *testing.T) {
	a := newTestAllocator(t, 4)

	ptr, err := a.Malloc(2000)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	if !a.pages.Aligned(ptr) {
		t.Fatalf("a request above the largest class must forward to the page allocator")
	}
	a.Free(ptr)
}

func TestOversizeReclaimsEmptySlabPages(t *testing.T) {
	a := newTestAllocator(t, minTestPages)

	total := int(a.pages.TotalPages())

	var ptrs []unsafe.Pointer
	for {
		ptr, err := a.Malloc(32)
		if err != nil {
			if IsExhausted(err) {
				break
			}
			t.Fatalf("Malloc: %v", err)
		}
		ptrs = append(ptrs, ptr)
	}
	if len(ptrs) == 0 {
		t.Fatalf("expected to fill at least one slab before exhaustion")
	}

	for _, p := range ptrs {
		a.Free(p)
	}

	big, err := a.Malloc((total / 2) * page.Size)
	if err != nil {
		t.Fatalf("oversize Malloc after freeing every cell should succeed by reclaiming slab pages: %v", err)
	}
	if !a.pages.Aligned(big) {
		t.Fatalf("oversize allocation must land on a page boundary")
	}
	a.Free(big)
}

func TestBitmapTracksOccupancy(t *testing.T) {
	a := newTestAllocator(t, 2)

	ptr, err := a.Malloc(32)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	base := a.pages.PageBase(ptr)
	h := headerAt(base)
	if h.firstFreeBit() != 1 {
		t.Fatalf("want next free bit 1 after first allocation, got %d", h.firstFreeBit())
	}

	a.Free(ptr)
	if h.bitmap[0] != 0 {
		t.Fatalf("freeing the only outstanding cell should leave the bitmap clear")
	}
}

func TestClassFillAndRollover(t *testing.T) {
	a := newTestAllocator(t, 4)

	c, ok := classFor(32)
	if !ok {
		t.Fatalf("expected class 32 to exist")
	}
	count := int(countForClass(c))

	ptrs := make([]unsafe.Pointer, 0, count+1)
	for i := 0; i < count; i++ {
		ptr, err := a.Malloc(32)
		if err != nil {
			t.Fatalf("Malloc %d: %v", i, err)
		}
		ptrs = append(ptrs, ptr)
	}

	// The slab is now full, so it must have unlinked itself from the
	// class list; the next allocation acquires a fresh page.
	if !a.classes[c].Empty() {
		t.Fatalf("class list should be empty once the only slab fills up")
	}

	overflow, err := a.Malloc(32)
	if err != nil {
		t.Fatalf("Malloc overflow: %v", err)
	}
	ptrs = append(ptrs, overflow)

	for _, p := range ptrs {
		a.Free(p)
	}
}

func TestFullSlabRelinksOnFree(t *testing.T) {
	a := newTestAllocator(t, 4)

	c, _ := classFor(32)
	count := int(countForClass(c))

	ptrs := make([]unsafe.Pointer, 0, count)
	for i := 0; i < count; i++ {
		ptr, _ := a.Malloc(32)
		ptrs = append(ptrs, ptr)
	}
	if !a.classes[c].Empty() {
		t.Fatalf("expect the full slab unlinked from the class list")
	}

	a.Free(ptrs[0])
	if a.classes[c].Empty() {
		t.Fatalf("freeing a cell from a full slab must relink it onto the class list")
	}
}

func TestReclaimReturnsEmptySlabToPageAllocator(t *testing.T) {
	a := newTestAllocator(t, 2)

	ptr, err := a.Malloc(32)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	a.Free(ptr)

	if !a.reclaim() {
		t.Fatalf("expected reclaim to find and free the now-empty slab")
	}
}

func TestReallocGrowsAcrossClasses(t *testing.T) {
	a := newTestAllocator(t, 4)

	ptr, err := a.Malloc(32)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	dst := unsafe.Slice((*byte)(ptr), 32)
	for i := range dst {
		dst[i] = 0x5A
	}

	grown, err := a.Realloc(ptr, 100)
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	if grown == ptr {
		t.Fatalf("growing past the current class must relocate")
	}
	if got := unsafe.Slice((*byte)(grown), 1)[0]; got != 0x5A {
		t.Fatalf("realloc lost the original bytes")
	}
}

func TestReallocShrinkWithinClassIsNoop(t *testing.T) {
	a := newTestAllocator(t, 4)

	ptr, err := a.Malloc(60)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	same, err := a.Realloc(ptr, 32)
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	if same != ptr {
		t.Fatalf("shrinking within the same class must return the same pointer")
	}
}

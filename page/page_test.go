package page

import (
	"bytes"
	"testing"
	"unsafe"
)

// minTestPages is the smallest page count that keeps the buffer at or
// above minBufferSize (128 KiB); Reinit rejects anything smaller.
const minTestPages = minBufferSize/Size - 1

func newTestAllocator(t *testing.T, pages int) *Allocator {
	t.Helper()
	if pages < minTestPages {
		pages = minTestPages
	}
	buf := NewAlignedBuffer((pages + 1) * Size)
	a := New()
	if err := a.Reinit(buf, false); err != nil {
		t.Fatalf("Reinit: %v", err)
	}
	return a
}

func TestReinitRejectsUnalignedLength(t *testing.T) {
	a := New()
	buf := NewAlignedBuffer(minBufferSize)
	if err := a.Reinit(buf[:len(buf)-1], false); Code(err) != ErrInvalidSize {
		t.Fatalf("want ErrInvalidSize, got %v", err)
	}
}

func TestReinitRejectsTooSmall(t *testing.T) {
	a := New()
	buf := NewAlignedBuffer(Size * 2)
	if err := a.Reinit(buf, false); Code(err) != ErrInvalidSize {
		t.Fatalf("want ErrInvalidSize, got %v", err)
	}
}

func TestMallocFreeRoundTrip(t *testing.T) {
	a := newTestAllocator(t, 8)

	ptr, err := a.Malloc(Size, Transient)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	if !a.Aligned(ptr) {
		t.Fatalf("returned pointer is not page-aligned")
	}
	a.Free(ptr)
}

func TestTransientAndPersistentCarveOppositeEnds(t *testing.T) {
	a := newTestAllocator(t, 8)

	lo, err := a.Malloc(Size, Transient)
	if err != nil {
		t.Fatalf("Malloc transient: %v", err)
	}
	hi, err := a.Malloc(Size, Persistent)
	if err != nil {
		t.Fatalf("Malloc persistent: %v", err)
	}
	if a.pageOf(lo) >= a.pageOf(hi) {
		t.Fatalf("expected transient page %d < persistent page %d", a.pageOf(lo), a.pageOf(hi))
	}
}

func TestExhaustionReturnsError(t *testing.T) {
	a := newTestAllocator(t, minTestPages)

	if _, err := a.Malloc(int(a.TotalPages()+1)*Size, Transient); Code(err) != ErrExhausted {
		t.Fatalf("want ErrExhausted, got %v", err)
	}
}

func TestFreeIsDeferredUntilExhaustion(t *testing.T) {
	a := newTestAllocator(t, minTestPages)
	total := int(a.TotalPages())

	ptr, err := a.Malloc(total*Size, Transient)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	a.Free(ptr)

	if a.freeHead.Empty() == false {
		t.Fatalf("free-region list should still be empty before any allocation-miss flush")
	}
	if a.pendingHead.Empty() {
		t.Fatalf("pending-free list should hold the just-freed region")
	}

	// Triggers a flush via the retry-after-miss path (findAndCarve fails
	// because all pages are still only pending, not yet coalesced).
	ptr2, err := a.Malloc(total*Size, Transient)
	if err != nil {
		t.Fatalf("Malloc after flush: %v", err)
	}
	if ptr2 != ptr {
		t.Fatalf("expected the reclaimed region to be reused at the same address")
	}
}

func TestCoalesceMergesAdjacentFrees(t *testing.T) {
	a := newTestAllocator(t, minTestPages)
	total := a.TotalPages()

	p1, _ := a.Malloc(Size, Transient)
	p2, _ := a.Malloc(Size, Transient)
	p3, _ := a.Malloc(Size, Transient)

	a.Free(p1)
	a.Free(p2)
	a.Free(p3)
	a.flushPending()

	// The three freed pages abut the untouched remainder of the
	// buffer, so the whole arena should now be one free region.
	count := 0
	var sum uint32
	for n := a.freeHead.Next(); n != &a.freeHead; n = n.Next() {
		count++
		sum += regionFromNode(n).pages
	}
	if count != 1 {
		t.Fatalf("want 1 coalesced region, got %d", count)
	}
	if sum != total {
		t.Fatalf("want %d total free pages, got %d", total, sum)
	}
}

func TestReallocGrowInPlace(t *testing.T) {
	a := newTestAllocator(t, 8)

	ptr, err := a.Malloc(Size, Transient)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	copy(a.bytesAt(ptr, Size), bytes.Repeat([]byte{0xAB}, Size))

	grown, err := a.Realloc(ptr, 3*Size, Transient)
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	if grown != ptr {
		t.Fatalf("expected in-place growth to keep the same address")
	}
	if got := a.bytesAt(grown, 1)[0]; got != 0xAB {
		t.Fatalf("growth clobbered existing data")
	}
}

func TestReallocShrinkIsNoop(t *testing.T) {
	a := newTestAllocator(t, 8)

	ptr, err := a.Malloc(3*Size, Transient)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	same, err := a.Realloc(ptr, Size, Transient)
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	if same != ptr {
		t.Fatalf("shrink must return the original pointer (L1)")
	}
}

func TestReallocRelocatesAndCopies(t *testing.T) {
	a := newTestAllocator(t, 8)

	p1, _ := a.Malloc(Size, Transient)
	p2, _ := a.Malloc(Size, Transient) // blocks in-place growth of p1
	copy(a.bytesAt(p1, Size), bytes.Repeat([]byte{0x7A}, Size))

	moved, err := a.Realloc(p1, 2*Size, Transient)
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	if moved == p1 {
		t.Fatalf("expected relocation since the successor is in use")
	}
	if got := a.bytesAt(moved, 1)[0]; got != 0x7A {
		t.Fatalf("relocation lost the original bytes")
	}
	_ = p2
}

func TestReallocNilActsAsMalloc(t *testing.T) {
	a := newTestAllocator(t, 4)
	ptr, err := a.Realloc(nil, Size, Transient)
	if err != nil {
		t.Fatalf("Realloc(nil): %v", err)
	}
	if ptr == nil {
		t.Fatalf("expected a non-nil pointer")
	}
}

func TestMetadataOverflowEncoding(t *testing.T) {
	a := newTestAllocator(t, 300)

	ptr, err := a.Malloc(260*Size, Transient)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	sp := a.pageOf(ptr)
	if got := a.runLength(sp); got != 260 {
		t.Fatalf("want run length 260, got %d", got)
	}
}

func TestContainsAndAligned(t *testing.T) {
	a := newTestAllocator(t, 4)
	ptr, _ := a.Malloc(Size, Transient)

	if !a.Contains(ptr) {
		t.Fatalf("allocated pointer should be contained")
	}
	mid := unsafe.Pointer(uintptr(ptr) + 10)
	if a.Aligned(mid) {
		t.Fatalf("a non-page-base address must not be reported as aligned")
	}
	if a.PageBase(mid) != ptr {
		t.Fatalf("PageBase should round back down to the page start")
	}
}

func TestNotMountedReturnsError(t *testing.T) {
	a := New()
	if _, err := a.Malloc(Size, Transient); Code(err) != ErrNotMounted {
		t.Fatalf("want ErrNotMounted, got %v", err)
	}
}

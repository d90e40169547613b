package page

import (
	"unsafe"

	"github.com/fixedalloc/fixedalloc/list"
)

// Size is the fixed page size in bytes.
const Size = 4096

// Shift is the page size expressed as a shift amount (1<<Shift == Size).
const Shift = 12

const (
	minBufferSize = 128 * 1024
	maxBufferSize = 4 * 1024 * 1024 * 1024

	// reservedMetaBytes is headroom left at the tail of the one-page
	// metadata table so that the 4-byte overflow length for a run
	// starting near the end of the table never writes past the page.
	// See SPEC_FULL.md §3 for why this resolves the table-sizing open
	// question at exactly one page.
	reservedMetaBytes = 8

	// maxManageablePages is the largest page count (N) the single
	// metadata page can index.
	maxManageablePages = Size - reservedMetaBytes
)

// Hint biases Malloc/Realloc toward the low or high end of the address
// space.
type Hint uint8

const (
	// Transient allocations are served from the low end of the free
	// region list, clustering short-lived allocations at low
	// addresses.
	Transient Hint = 1
	// Persistent allocations are served from the high end, clustering
	// long-lived allocations (e.g. slab pages) at high addresses.
	Persistent Hint = 2
)

// freeRegion is the in-band record describing one maximal run of free
// pages. It is written at buffer_start + startPage*Size — its own
// address doubles as the data it describes (invariant I3) — so every
// freeRegion pointer this package creates is an unsafe.Pointer cast over
// the caller's buffer, never a Go-heap allocation.
type freeRegion struct {
	node      list.Node
	startPage uint32
	pages     uint32
}

// Allocator manages one mounted buffer. The zero value is not ready for
// use; call New.
type Allocator struct {
	buf     []byte
	meta    []byte
	npages  uint32
	mounted bool

	freeHead    list.Node
	pendingHead list.Node
}

// New returns a page allocator with no buffer mounted. Call Reinit
// before any other method.
func New() *Allocator {
	a := &Allocator{}
	a.freeHead.Init()
	a.pendingHead.Init()
	return a
}

// NewAlignedBuffer returns a freshly allocated, page-aligned byte slice
// of at least size bytes, rounded up to a page multiple. make([]byte, n)
// gives no alignment guarantee, so this over-allocates by one page and
// slices to the first page-aligned offset within it; callers that need
// a page-aligned buffer without going through the arena package's
// mmap-backed source can use this instead.
func NewAlignedBuffer(size int) []byte {
	if size <= 0 {
		size = Size
	}
	n := ((size + Size - 1) / Size) * Size
	raw := make([]byte, n+Size)
	off := (-uintptr(unsafe.Pointer(&raw[0]))) & (Size - 1)
	return raw[off : int(off)+n]
}

// Reinit mounts buf as the managed buffer, discarding any previously
// mounted one. buf's address and length must both be page-aligned, its
// length must lie in [128KiB, 4GiB] and its resulting page count must
// fit the metadata table (see maxManageablePages). zeroFilled asserts
// that the metadata page is already all-zero, skipping the clear.
//
// Reinit is the one entry point that validates a caller-supplied
// invariant rather than assuming it already holds, so validation
// failures are returned as an error instead of aborting the process.
func (a *Allocator) Reinit(buf []byte, zeroFilled bool) error {
	if len(buf) == 0 {
		return NewError(ErrInvalidSize)
	}
	if uintptr(unsafe.Pointer(&buf[0]))%Size != 0 {
		return NewError(ErrMisaligned)
	}
	if len(buf)%Size != 0 {
		return NewError(ErrInvalidSize)
	}
	if len(buf) < minBufferSize || int64(len(buf)) > maxBufferSize {
		return NewError(ErrInvalidSize)
	}

	n := len(buf)/Size - 1
	if n <= 0 || n > maxManageablePages {
		return NewError(ErrTooManyPages)
	}

	a.buf = buf
	a.meta = buf[:Size]
	a.npages = uint32(n)
	a.mounted = true

	if !zeroFilled {
		clear(a.meta)
	}

	a.freeHead.Init()
	a.pendingHead.Init()

	rec := a.recordAt(1)
	rec.startPage = 1
	rec.pages = a.npages
	rec.node.LinkBefore(&a.freeHead)

	return nil
}

// Malloc rounds n up to a page multiple and allocates that many
// contiguous pages, biased toward the low (Transient) or high
// (Persistent) end of the address space. Returns ErrExhausted if no
// free region is large enough even after flushing pending frees.
func (a *Allocator) Malloc(n int, hint Hint) (unsafe.Pointer, error) {
	if !a.mounted {
		return nil, NewError(ErrNotMounted)
	}
	k := pagesFor(n)

	sp := a.findAndCarve(k, hint)
	if sp == 0 {
		a.flushPending()
		sp = a.findAndCarve(k, hint)
		if sp == 0 {
			return nil, ErrExhaustedErr
		}
	}

	a.setRunLength(sp, k)
	return a.ptrAt(sp), nil
}

// Free returns the k pages starting at ptr (a page-base address
// previously returned by Malloc or Realloc) to the pending-free list.
// The free-region list and metadata table are not updated until the
// next allocation failure triggers a flush.
func (a *Allocator) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	if !a.mounted {
		fatalf("free: called before Reinit")
	}
	a.checkPointer(ptr, "free")

	sp := a.pageOf(ptr)
	a.checkDoubleFree(sp)
	k := a.runLength(sp)

	rec := a.recordAt(sp)
	rec.startPage = sp
	rec.pages = k
	rec.node.LinkBefore(&a.pendingHead)
}

// Realloc changes the size of the allocation at ptr. A nil ptr behaves
// as Malloc. If the new rounded page count is no larger than the
// current one, ptr is returned unchanged (no shrink). Otherwise Realloc
// first tries to grow in place by claiming the free region immediately
// following the current run; failing that, it allocates a fresh region,
// copies the old run's bytes, and frees the old run.
func (a *Allocator) Realloc(ptr unsafe.Pointer, n int, hint Hint) (unsafe.Pointer, error) {
	if ptr == nil {
		return a.Malloc(n, hint)
	}
	if !a.mounted {
		return nil, NewError(ErrNotMounted)
	}
	a.checkPointer(ptr, "realloc")

	sp := a.pageOf(ptr)
	cur := a.runLength(sp)
	k := pagesFor(n)
	if k <= cur {
		return ptr, nil
	}

	need := k - cur
	target := sp + cur
	if a.claimExact(target, need) {
		a.setRunLength(sp, k)
		return ptr, nil
	}

	newPtr, err := a.Malloc(n, hint)
	if err != nil {
		return nil, err
	}
	copy(a.bytesAt(newPtr, int(cur)*Size), a.bytesAt(ptr, int(cur)*Size))
	a.Free(ptr)
	return newPtr, nil
}

// TotalPages returns the number of manageable pages (N) the mounted
// buffer was sized for.
func (a *Allocator) TotalPages() uint32 { return a.npages }

// PendingCount returns the number of records currently awaiting the
// next coalescing flush. For diagnostics only; calling it does not
// trigger a flush.
func (a *Allocator) PendingCount() int {
	n := 0
	list.Do(&a.pendingHead, func(*list.Node) { n++ })
	return n
}

// WalkFree calls fn once per free region, in ascending start-page
// order. fn must not mutate the allocator.
func (a *Allocator) WalkFree(fn func(startPage, pages uint32)) {
	list.Do(&a.freeHead, func(n *list.Node) {
		r := regionFromNode(n)
		fn(r.startPage, r.pages)
	})
}

// --- address / metadata helpers ---

func pagesFor(n int) uint32 {
	if n <= 0 {
		n = 1
	}
	return uint32((n + Size - 1) / Size)
}

func roundUp4(x uint32) uint32 { return (x + 3) &^ 3 }

func (a *Allocator) recordAt(sp uint32) *freeRegion {
	return (*freeRegion)(unsafe.Pointer(&a.buf[int(sp)*Size]))
}

func regionFromNode(n *list.Node) *freeRegion {
	return (*freeRegion)(unsafe.Pointer(n))
}

func (a *Allocator) ptrAt(sp uint32) unsafe.Pointer {
	return unsafe.Pointer(&a.buf[int(sp)*Size])
}

func (a *Allocator) bytesAt(ptr unsafe.Pointer, n int) []byte {
	return unsafe.Slice((*byte)(ptr), n)
}

func (a *Allocator) pageOf(ptr unsafe.Pointer) uint32 {
	base := uintptr(unsafe.Pointer(&a.buf[0]))
	off := uintptr(ptr) - base
	return uint32(off >> Shift)
}

// Contains reports whether ptr falls within the mounted buffer.
func (a *Allocator) Contains(ptr unsafe.Pointer) bool {
	if !a.mounted || len(a.buf) == 0 {
		return false
	}
	base := uintptr(unsafe.Pointer(&a.buf[0]))
	off := uintptr(ptr)
	return off >= base && off < base+uintptr(len(a.buf))
}

// Aligned reports whether ptr is a page-base address within the
// mounted buffer.
func (a *Allocator) Aligned(ptr unsafe.Pointer) bool {
	if !a.Contains(ptr) {
		return false
	}
	base := uintptr(unsafe.Pointer(&a.buf[0]))
	return (uintptr(ptr)-base)%Size == 0
}

// PageIndex returns ptr's page number within the mounted buffer (the
// same value recorded as a free/allocated run's start_page), for
// diagnostics and logging.
func (a *Allocator) PageIndex(ptr unsafe.Pointer) uint32 { return a.pageOf(ptr) }

// PageBase rounds ptr down to the start of its containing page.
func (a *Allocator) PageBase(ptr unsafe.Pointer) unsafe.Pointer {
	base := uintptr(unsafe.Pointer(&a.buf[0]))
	off := uintptr(ptr) - base
	return unsafe.Pointer(&a.buf[off&^(Size-1)])
}

func (a *Allocator) setRunLength(sp uint32, k uint32) {
	if k < 255 {
		a.meta[sp] = byte(k)
		return
	}
	a.meta[sp] = 0xFF
	off := roundUp4(sp + 1)
	putUint32LE(a.meta[off:], k)
}

func (a *Allocator) runLength(sp uint32) uint32 {
	b := a.meta[sp]
	if b != 0xFF {
		return uint32(b)
	}
	off := roundUp4(sp + 1)
	return getUint32LE(a.meta[off:])
}

// --- allocation search ---

func (a *Allocator) findAndCarve(k uint32, hint Hint) uint32 {
	if hint == Persistent {
		return a.carveReverse(k)
	}
	return a.carveForward(k)
}

// carveForward scans the free list head-to-tail and carves k pages off
// the front of the first region with enough pages, returning the
// region's previous start page. Page 0 is reserved, so 0 doubles as the
// not-found sentinel.
func (a *Allocator) carveForward(k uint32) uint32 {
	for n := a.freeHead.Next(); n != &a.freeHead; n = n.Next() {
		r := regionFromNode(n)
		if r.pages < k {
			continue
		}
		sp := r.startPage
		a.shrinkFront(n, k)
		return sp
	}
	return 0
}

// carveReverse scans the free list tail-to-head and carves k pages off
// the back of the first region with enough pages. The region's base
// page is unchanged, so no record relocation is needed.
func (a *Allocator) carveReverse(k uint32) uint32 {
	for n := a.freeHead.Prev(); n != &a.freeHead; n = n.Prev() {
		r := regionFromNode(n)
		if r.pages < k {
			continue
		}
		sp := r.startPage + r.pages - k
		r.pages -= k
		if r.pages == 0 {
			n.UnlinkInit()
		}
		return sp
	}
	return 0
}

// shrinkFront removes k pages from the front of the region at n,
// relocating its record if it survives (its base address moves) or
// unlinking it if it's now empty.
func (a *Allocator) shrinkFront(n *list.Node, k uint32) {
	r := regionFromNode(n)
	newStart := r.startPage + k
	newPages := r.pages - k
	if newPages == 0 {
		n.UnlinkInit()
		return
	}
	a.relocate(n, newStart, newPages)
}

// relocate bit-copies the free region at n to start at newStart with
// newPages pages, fixing up its neighbors' links to point at the new
// address (I3). n's own neighbors are unchanged; only its address
// moves.
//
// dst is linked in immediately after prev while n is still part of the
// list (so dst.next temporarily aliases n), then n is unlinked; Unlink
// rewrites prev/next via n's own (still-valid) neighbor pointers, which
// leaves dst correctly spliced between prev and next.
func (a *Allocator) relocate(n *list.Node, newStart, newPages uint32) *list.Node {
	prev := n.Prev()
	dst := a.recordAt(newStart)
	dst.startPage = newStart
	dst.pages = newPages
	dst.node = list.Node{}
	dst.node.LinkAfter(prev)
	n.Unlink()
	return &dst.node
}

// claimExact carves need pages from the free region starting exactly at
// target, used by Realloc's in-place grow path. Unlike carveForward,
// this only matches an exact start_page, not a first-fit.
func (a *Allocator) claimExact(target uint32, need uint32) bool {
	for n := a.freeHead.Next(); n != &a.freeHead; n = n.Next() {
		r := regionFromNode(n)
		if r.startPage != target {
			if r.startPage > target {
				return false // list is sorted; no later region can match
			}
			continue
		}
		if r.pages < need {
			return false
		}
		a.shrinkFront(n, need)
		return true
	}
	return false
}

// --- deferred free & coalescing ---

// flushPending drains the pending-free list, reinserting each record
// into the sorted free-region list and running a full coalescing sweep
// after every insertion (see SPEC_FULL.md §9 on why the sweep runs per
// insertion rather than once at the end).
func (a *Allocator) flushPending() {
	for !a.pendingHead.Empty() {
		n := a.pendingHead.Next()
		n.UnlinkInit()
		f := regionFromNode(n)
		a.insertFree(f.startPage, f.pages)
	}
}

// insertFree merges or links a freed region (fsp, fpages) into the
// sorted free-region list, then sweeps for any abutting pair it may
// have bridged.
func (a *Allocator) insertFree(fsp, fpages uint32) {
	predNode := &a.freeHead
	cur := a.freeHead.Next()
	for cur != &a.freeHead {
		if regionFromNode(cur).startPage > fsp {
			break
		}
		predNode = cur
		cur = cur.Next()
	}
	succNode := cur

	var predRegion, succRegion *freeRegion
	if predNode != &a.freeHead {
		predRegion = regionFromNode(predNode)
	}
	if succNode != &a.freeHead {
		succRegion = regionFromNode(succNode)
	}

	switch {
	case predRegion != nil && predRegion.startPage+predRegion.pages == fsp:
		predRegion.pages += fpages
	case succRegion != nil && fsp+fpages == succRegion.startPage:
		a.relocate(succNode, fsp, succRegion.pages+fpages)
	default:
		rec := a.recordAt(fsp)
		rec.startPage = fsp
		rec.pages = fpages
		rec.node = list.Node{}
		rec.node.LinkAfter(predNode)
	}

	a.coalesceSweep()
}

// coalesceSweep merges every adjacent abutting pair of free regions, in
// list order, restoring invariant P2 after an insertion that may have
// bridged two previously-separate regions.
func (a *Allocator) coalesceSweep() {
	n := a.freeHead.Next()
	for n != &a.freeHead && n.Next() != &a.freeHead {
		r := regionFromNode(n)
		next := n.Next()
		rn := regionFromNode(next)
		if r.startPage+r.pages == rn.startPage {
			r.pages += rn.pages
			next.UnlinkInit()
			continue // re-check n against its new successor
		}
		n = next
	}
}

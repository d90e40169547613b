// Package slab implements the cell-granularity half of the two-tier
// allocator: it satisfies sub-page requests from page-sized slabs
// partitioned into fixed-size cells, tracking cell occupancy with a
// pair of bitmap words per slab, and returns empty slabs to the
// underlying page allocator under memory pressure.
package slab

import (
	"math/bits"
	"unsafe"

	"github.com/fixedalloc/fixedalloc/list"
	"github.com/fixedalloc/fixedalloc/page"
)

// classSizes is the cell-size ladder a request is rounded up to. A
// request larger than the last entry is promoted to a page-layer
// allocation entirely (see SPEC_FULL.md §4.3).
var classSizes = [...]uint32{32, 64, 128, 512, 1024}

const numClasses = len(classSizes)

// headerSize is the in-band reservation at the start of every slab
// page; cells begin immediately after it. 64 bytes comfortably holds
// the header fields below with room to spare, matching the reference
// design's fixed per-slab overhead.
const headerSize = 64

// slabHeader is the in-band record describing one slab page: which
// class it belongs to, how many cells it holds, and which are in use.
// Like page's freeRegion, its address is the page's own base address —
// it is never allocated on the Go heap.
type slabHeader struct {
	node    list.Node
	class   uint8
	count   uint8
	_       [6]byte
	bitmap  [2]uint64
}

// Allocator manages slab-granularity allocation on top of an
// underlying page.Allocator.
type Allocator struct {
	pages   *page.Allocator
	ownsPgs bool
	classes [numClasses]list.Node
}

// New returns a slab allocator layered on an already-constructed page
// allocator. This allocator's Reinit mounts the buffer by forwarding to
// pages.Reinit; a caller that has already mounted pages through its own
// Reinit may skip this allocator's Reinit, since New starts every class
// list empty.
func New(pages *page.Allocator) *Allocator {
	a := &Allocator{pages: pages}
	for i := range a.classes {
		a.classes[i].Init()
	}
	return a
}

// NewStandalone returns a slab allocator that owns its own private page
// allocator, for callers who don't need to share the page layer with
// anyone else.
func NewStandalone() *Allocator {
	return New(page.New())
}

// Reinit mounts buf (forwarding to the underlying page allocator) and
// resets every class list to empty.
func (a *Allocator) Reinit(buf []byte, zeroFilled bool) error {
	if err := a.pages.Reinit(buf, zeroFilled); err != nil {
		return err
	}
	for i := range a.classes {
		a.classes[i].Init()
	}
	return nil
}

func classFor(n int) (int, bool) {
	for i, sz := range classSizes {
		if n <= int(sz) {
			return i, true
		}
	}
	return 0, false
}

func countForClass(c int) uint8 {
	n := (page.Size - headerSize) / int(classSizes[c])
	if n > 128 {
		fatalf("slab: class %d cell count %d exceeds 128-bit bitmap capacity", c, n)
	}
	return uint8(n)
}

func headerAt(base unsafe.Pointer) *slabHeader {
	return (*slabHeader)(base)
}

func cellAt(base unsafe.Pointer, idx int, cellSize uint32) unsafe.Pointer {
	return unsafe.Pointer(uintptr(base) + headerSize + uintptr(idx)*uintptr(cellSize))
}

// firstFreeBit returns the lowest-indexed clear bit within the first
// h.count bits, or -1 if all of them are set. Bits at or beyond count
// within a word are masked out of the search so a partially-populated
// high word never reports a phantom free cell past its real capacity.
func (h *slabHeader) firstFreeBit() int {
	count := int(h.count)
	for w := 0; w < 2; w++ {
		wordBase := w * 64
		if wordBase >= count {
			break
		}
		relevant := count - wordBase
		if relevant > 64 {
			relevant = 64
		}
		mask := ^uint64(0)
		if relevant < 64 {
			mask = (uint64(1) << uint(relevant)) - 1
		}
		inv := (^h.bitmap[w]) & mask
		if inv != 0 {
			return wordBase + bits.TrailingZeros64(inv)
		}
	}
	return -1
}

func (h *slabHeader) setBit(idx int)   { h.bitmap[idx/64] |= 1 << uint(idx%64) }
func (h *slabHeader) clearBit(idx int) { h.bitmap[idx/64] &^= 1 << uint(idx%64) }

func (h *slabHeader) isFull() bool  { return h.firstFreeBit() == -1 }
func (h *slabHeader) isEmpty() bool { return h.bitmap[0] == 0 && h.bitmap[1] == 0 }

// Malloc returns a pointer to n bytes. Requests larger than the biggest
// slab class are promoted to a Transient page-layer allocation;
// everything else is served from the smallest class whose cell size
// fits n.
func (a *Allocator) Malloc(n int) (unsafe.Pointer, error) {
	c, ok := classFor(n)
	if !ok {
		return a.mallocOversize(n)
	}

	head := &a.classes[c]
	for node := head.Next(); node != head; node = node.Next() {
		h := (*slabHeader)(unsafe.Pointer(node))
		bit := h.firstFreeBit()
		if bit < 0 {
			continue
		}
		h.setBit(bit)
		if h.isFull() {
			node.UnlinkInit()
		}
		return cellAt(unsafe.Pointer(h), bit, classSizes[c]), nil
	}

	base, err := a.acquireSlabPage()
	if err != nil {
		return nil, err
	}
	h := headerAt(base)
	h.class = uint8(c)
	h.count = countForClass(c)
	h.bitmap[0], h.bitmap[1] = 0, 0
	h.node = list.Node{}
	h.setBit(0)
	if !h.isFull() {
		h.node.LinkAfter(head)
	}
	return cellAt(base, 0, classSizes[c]), nil
}

// mallocOversize forwards a request too large for any slab class
// straight to the page allocator, running a reclamation sweep and
// retrying once on exhaustion exactly like acquireSlabPage does for the
// small-cell path — an oversize request is just as entitled to reclaim
// the space tied up in now-empty slab pages as a small one is.
func (a *Allocator) mallocOversize(n int) (unsafe.Pointer, error) {
	ptr, err := a.pages.Malloc(n, page.Transient)
	if err == nil {
		return ptr, nil
	}
	if !page.IsExhausted(err) {
		return nil, err
	}
	if !a.reclaim() {
		return nil, err
	}
	return a.pages.Malloc(n, page.Transient)
}

// acquireSlabPage gets one fresh page from the page allocator, running
// a reclamation sweep and retrying once on exhaustion.
func (a *Allocator) acquireSlabPage() (unsafe.Pointer, error) {
	ptr, err := a.pages.Malloc(page.Size, page.Persistent)
	if err == nil {
		return ptr, nil
	}
	if !page.IsExhausted(err) {
		return nil, err
	}
	if !a.reclaim() {
		return nil, ErrExhaustedErr
	}
	ptr, err = a.pages.Malloc(page.Size, page.Persistent)
	if err != nil {
		return nil, ErrExhaustedErr
	}
	return ptr, nil
}

// reclaim walks every class list and returns each fully-empty slab's
// page to the underlying page allocator. Reports whether it freed at
// least one page.
func (a *Allocator) reclaim() bool {
	freed := false
	for c := range a.classes {
		head := &a.classes[c]
		node := head.Next()
		for node != head {
			next := node.Next()
			h := (*slabHeader)(unsafe.Pointer(node))
			if h.isEmpty() {
				node.UnlinkInit()
				a.pages.Free(unsafe.Pointer(h))
				freed = true
			}
			node = next
		}
	}
	return freed
}

// Free releases the cell (or page, if ptr is page-aligned) at ptr.
func (a *Allocator) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	if a.pages.Aligned(ptr) {
		a.pages.Free(ptr)
		return
	}

	base := a.pages.PageBase(ptr)
	h := headerAt(base)
	cellSize := classSizes[h.class]
	idx := int((uintptr(ptr) - uintptr(base) - headerSize) / uintptr(cellSize))

	wasFull := h.isFull()
	h.clearBit(idx)
	if wasFull {
		h.node.LinkBefore(&a.classes[h.class])
	}
}

// ClassInfo describes one cell-size class's current occupancy, for
// diagnostics.
type ClassInfo struct {
	CellSize   uint32
	SlabCount  int
	UsedCells  int
	FreeCells  int
}

// WalkClasses calls fn once per cell-size class with its current
// occupancy, computed by walking every slab on that class's list. Full
// slabs are not on the list, so neither they nor their cells are
// counted: WalkClasses reports occupancy of the still-open (partial or
// empty) slabs only.
func (a *Allocator) WalkClasses(fn func(class int, info ClassInfo)) {
	for c := range a.classes {
		info := ClassInfo{CellSize: classSizes[c]}
		head := &a.classes[c]
		for node := head.Next(); node != head; node = node.Next() {
			h := (*slabHeader)(unsafe.Pointer(node))
			info.SlabCount++
			used := 0
			for i := 0; i < int(h.count); i++ {
				if h.bitmap[i/64]&(1<<uint(i%64)) != 0 {
					used++
				}
			}
			info.UsedCells += used
			info.FreeCells += int(h.count) - used
		}
		fn(c, info)
	}
}

// Realloc changes the size of the allocation at ptr, forwarding to the
// page allocator if ptr is a page-layer allocation. A slab cell whose
// class already fits n is returned unchanged; otherwise a new
// allocation is made, the old cell's bytes copied, and the old cell
// freed.
func (a *Allocator) Realloc(ptr unsafe.Pointer, n int) (unsafe.Pointer, error) {
	if ptr == nil {
		return a.Malloc(n)
	}
	if a.pages.Aligned(ptr) {
		return a.pages.Realloc(ptr, n, page.Transient)
	}

	base := a.pages.PageBase(ptr)
	h := headerAt(base)
	cellSize := classSizes[h.class]
	if n <= int(cellSize) {
		return ptr, nil
	}

	newPtr, err := a.Malloc(n)
	if err != nil {
		return nil, err
	}
	src := unsafe.Slice((*byte)(ptr), cellSize)
	dst := unsafe.Slice((*byte)(newPtr), cellSize)
	copy(dst, src)
	a.Free(ptr)
	return newPtr, nil
}

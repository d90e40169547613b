// Package scenario implements the scripted allocate/free workloads
// cmd/allocbench drives. Each scenario mounts its own fresh buffer so
// they can run independently and in any order.
package scenario

import (
	"fmt"
	"unsafe"

	"github.com/fixedalloc/fixedalloc/inspect"
	"github.com/fixedalloc/fixedalloc/page"
	"github.com/fixedalloc/fixedalloc/slab"
)

// Names lists the scenarios in the order cmd/allocbench runs them by
// default.
var Names = []string{
	"both-ends",
	"segregation",
	"pending-flush",
	"slab-bitmap",
	"slab-rollover",
	"reclaim-coalesce",
}

// Run executes the named scenario and returns a short human-readable
// report of what it observed. An unknown name is a programming error
// in the caller (the CLI validates names against Names before calling
// Run), so it panics rather than returning an error.
func Run(name string) string {
	switch name {
	case "both-ends":
		return bothEnds()
	case "segregation":
		return segregation()
	case "pending-flush":
		return pendingFlush()
	case "slab-bitmap":
		return slabBitmap()
	case "slab-rollover":
		return slabRollover()
	case "reclaim-coalesce":
		return reclaimCoalesce()
	default:
		panic("scenario: unknown name " + name)
	}
}

// minPages is the smallest page count whose buffer still meets the
// page layer's 128 KiB minimum.
const minPages = 128*1024/page.Size - 1

func mustMountPage(pages int) *page.Allocator {
	if pages < minPages {
		pages = minPages
	}
	buf := page.NewAlignedBuffer((pages + 1) * page.Size)
	a := page.New()
	if err := a.Reinit(buf, false); err != nil {
		panic(err)
	}
	return a
}

func bothEnds() string {
	a := mustMountPage(31)
	lo, err := a.Malloc(page.Size, page.Transient)
	if err != nil {
		panic(err)
	}
	hi, err := a.Malloc(page.Size, page.Persistent)
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("both-ends: transient at page %d, persistent at page %d (of %d)",
		pageIndex(a, lo), pageIndex(a, hi), a.TotalPages())
}

func segregation() string {
	a := mustMountPage(31)
	var transientPages, persistentPages []uint32
	for i := 0; i < 4; i++ {
		p, err := a.Malloc(page.Size, page.Transient)
		if err != nil {
			panic(err)
		}
		transientPages = append(transientPages, pageIndex(a, p))

		q, err := a.Malloc(page.Size, page.Persistent)
		if err != nil {
			panic(err)
		}
		persistentPages = append(persistentPages, pageIndex(a, q))
	}
	return fmt.Sprintf("segregation: transient pages %v, persistent pages %v", transientPages, persistentPages)
}

func pendingFlush() string {
	a := mustMountPage(minPages)
	total := int(a.TotalPages())
	half := total / 2

	p1, err := a.Malloc(half*page.Size, page.Transient)
	if err != nil {
		panic(err)
	}
	p2, err := a.Malloc((total-half)*page.Size, page.Transient)
	if err != nil {
		panic(err)
	}
	a.Free(p1)
	a.Free(p2)

	before := inspect.Stats(a)
	// The whole arena is now free but only as pending records; a
	// whole-arena request can't be satisfied from the (still empty)
	// free-region list without a flush.
	reused, err := a.Malloc(total*page.Size, page.Transient)
	if err != nil {
		panic(err)
	}
	after := inspect.Stats(a)
	return fmt.Sprintf("pending-flush: %d pending before flush, %d free regions after (reused page %d)",
		before.PendingCount, len(after.FreeRegions), pageIndex(a, reused))
}

func slabBitmap() string {
	buf := page.NewAlignedBuffer(32 * page.Size)
	a := slab.NewStandalone()
	if err := a.Reinit(buf, false); err != nil {
		panic(err)
	}
	ptr, err := a.Malloc(32)
	if err != nil {
		panic(err)
	}
	a.Free(ptr)
	return "slab-bitmap: allocated and freed one 32-byte cell without touching the page allocator again"
}

// cellsPerClass32Slab is (page.Size - 64-byte header) / 32, the number
// of class-32 cells one slab page holds.
const cellsPerClass32Slab = (page.Size - 64) / 32

func slabRollover() string {
	buf := page.NewAlignedBuffer(32 * page.Size)
	a := slab.NewStandalone()
	if err := a.Reinit(buf, false); err != nil {
		panic(err)
	}
	// cellsPerClass32Slab cells fill the first 32-byte slab; the
	// 126th/127th boundary and the rollover onto a second slab page are
	// the scenario's interesting transitions.
	var last unsafe.Pointer
	for i := 0; i < cellsPerClass32Slab+1; i++ {
		p, err := a.Malloc(32)
		if err != nil {
			panic(fmt.Errorf("allocation %d: %w", i, err))
		}
		last = p
	}
	// cellsPerClass32Slab+1 cells at cellsPerClass32Slab cells/slab means
	// the last allocation had to roll over onto a second slab page; the
	// snapshot only reports slabs still on the class list (the first
	// slab unlinked itself on becoming full), so it shows exactly the 1
	// still-open slab here.
	snap := inspect.SlabSnapshot(a)
	openSlabs := 0
	for _, c := range snap.Classes {
		if c.CellSize == 32 {
			openSlabs = c.SlabCount
		}
	}
	return fmt.Sprintf("slab-rollover: %d thirty-two-byte cells allocated, rolling over onto a second slab page (%d slab still open, last cell at %p)",
		cellsPerClass32Slab+1, openSlabs, last)
}

func reclaimCoalesce() string {
	buf := page.NewAlignedBuffer((minPages + 1) * page.Size)
	a := slab.NewStandalone()
	if err := a.Reinit(buf, false); err != nil {
		panic(err)
	}

	// Fill every slab page the arena can hold with class-32 cells, then
	// free them all. Only cell-frees occur here, so the page layer's
	// pending list stays empty and flushPending is a no-op; the freed
	// pages only become available again if Malloc reclaims the
	// now-empty slabs.
	var ptrs []unsafe.Pointer
	for {
		p, err := a.Malloc(32)
		if err != nil {
			if slab.IsExhausted(err) {
				break
			}
			panic(err)
		}
		ptrs = append(ptrs, p)
	}
	for _, p := range ptrs {
		a.Free(p)
	}

	want := (minPages / 2) * page.Size
	_, err := a.Malloc(want)
	if err != nil {
		panic(fmt.Errorf("slab reclaim on oversize request: %w", err))
	}
	return fmt.Sprintf("reclaim-coalesce: filled the arena with %d thirty-two-byte cells, freed them all, then reclaimed %d bytes from the page layer for one oversize request",
		len(ptrs), want)
}

func pageIndex(a *page.Allocator, ptr unsafe.Pointer) uint32 {
	return a.PageIndex(ptr)
}

// Package inspect provides a read-only view over a running
// page.Allocator and slab.Allocator: a snapshot of the free-region
// list, the pending-free count, and per-class slab occupancy. It
// exists purely for diagnostics and for the property checks in
// SPEC_FULL.md §8 — it does not mutate either allocator.
package inspect

import (
	"github.com/fixedalloc/fixedalloc/page"
	"github.com/fixedalloc/fixedalloc/slab"
)

// Region describes one free-region-list entry.
type Region struct {
	StartPage uint32
	Pages     uint32
}

// PageStats is a snapshot of a page.Allocator's free/pending state.
type PageStats struct {
	TotalPages   uint32
	FreeRegions  []Region
	FreePages    uint32
	PendingCount int
}

// Stats snapshots a's free-region list and pending-free count.
func Stats(a *page.Allocator) PageStats {
	stats := PageStats{
		TotalPages:   a.TotalPages(),
		PendingCount: a.PendingCount(),
	}
	a.WalkFree(func(startPage, pages uint32) {
		stats.FreeRegions = append(stats.FreeRegions, Region{StartPage: startPage, Pages: pages})
		stats.FreePages += pages
	})
	return stats
}

// Walk calls fn once per free region, in ascending start-page order,
// without materializing a slice — useful for property checks over a
// very long free list.
func Walk(a *page.Allocator, fn func(Region)) {
	a.WalkFree(func(startPage, pages uint32) {
		fn(Region{StartPage: startPage, Pages: pages})
	})
}

// SlabStats is a snapshot of a slab.Allocator's per-class occupancy.
type SlabStats struct {
	Classes []slab.ClassInfo
}

// SlabSnapshot snapshots a's per-class slab occupancy.
func SlabSnapshot(a *slab.Allocator) SlabStats {
	var stats SlabStats
	a.WalkClasses(func(_ int, info slab.ClassInfo) {
		stats.Classes = append(stats.Classes, info)
	})
	return stats
}

//go:build guard

package page

import (
	"unsafe"

	"github.com/fixedalloc/fixedalloc/list"
)

// Guard mode is enabled: Free and Realloc validate that ptr is a
// page-base address actually owned by this allocator, and Free
// opportunistically scans the (normally short) pending-free list for a
// record already describing ptr's page, catching the common case of a
// double-free that hasn't been coalesced yet. Neither check is
// complete — an already-coalesced double-free, or one that races with
// another allocation, is still undefined — but both are cheap enough
// to always enable once the guard build tag is set.
const guardEnabled = true

func (a *Allocator) checkPointer(ptr unsafe.Pointer, op string) {
	if !a.Aligned(ptr) {
		fatalf("%s: pointer %p is not a page-base address owned by this allocator", op, ptr)
	}
}

func (a *Allocator) checkDoubleFree(sp uint32) {
	list.Do(&a.pendingHead, func(n *list.Node) {
		if regionFromNode(n).startPage == sp {
			fatalf("free: page %d already on the pending-free list (double free)", sp)
		}
	})
}

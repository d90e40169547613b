// Package list implements an intrusive circular doubly-linked list.
//
// Unlike container/list, a Node carries no payload and is never
// heap-allocated by this package: callers embed Node as a field of their
// own record and link/unlink that record directly. This lets records live
// anywhere — including inside a caller-managed byte buffer, addressed
// through unsafe.Pointer rather than the Go heap — which is the whole
// point of an intrusive list: the list costs nothing beyond the two
// pointers already sitting inside the record.
package list

import "unsafe"

// Node is a link in a circular doubly-linked list. Its zero value is not
// a valid empty list; call Init first (or link it into an existing list,
// which overwrites prev/next unconditionally).
type Node struct {
	prev, next *Node
}

// Init makes n a one-element circular list (self-linked) and returns n.
// Use this to create a list head/sentinel before linking entries into it.
func (n *Node) Init() *Node {
	n.prev = n
	n.next = n
	return n
}

// Empty reports whether n is self-linked, i.e. either a freshly
// initialized sentinel or one with no other entries linked into it.
func (n *Node) Empty() bool {
	return n.next == n
}

// Next returns the next node in the list.
func (n *Node) Next() *Node { return n.next }

// Prev returns the previous node in the list.
func (n *Node) Prev() *Node { return n.prev }

// LinkAfter inserts n immediately after at. O(1), no allocation.
func (n *Node) LinkAfter(at *Node) {
	n.prev = at
	n.next = at.next
	at.next.prev = n
	at.next = n
}

// LinkBefore inserts n immediately before at. O(1), no allocation.
// Inserting before a list's sentinel head appends at the tail.
func (n *Node) LinkBefore(at *Node) {
	n.next = at
	n.prev = at.prev
	at.prev.next = n
	at.prev = n
}

// Unlink removes n from whatever list it is linked into, restoring its
// neighbors' links. n's own prev/next are left dangling (still pointing
// at the old neighbors) — callers that want a reusable empty node should
// call UnlinkInit instead.
func (n *Node) Unlink() {
	n.prev.next = n.next
	n.next.prev = n.prev
}

// UnlinkInit removes n from its list and re-initializes it as a
// self-linked, empty node. A no-op if n is already self-linked.
func (n *Node) UnlinkInit() {
	if n.Empty() {
		return
	}
	n.Unlink()
	n.Init()
}

// Swap exchanges the list positions of a and b, which may belong to the
// same or different lists.
func Swap(a, b *Node) {
	if a == b {
		return
	}
	aPrev, aNext := a.prev, a.next
	bPrev, bNext := b.prev, b.next

	// Handle the case where a and b are adjacent, where naively
	// rewriting four neighbor pointers would clobber the link between
	// them before it's used.
	if aNext == b {
		a.prev, a.next = b, bNext
		b.prev, b.next = aPrev, a
		aPrev.next = b
		bNext.prev = a
		return
	}
	if bNext == a {
		Swap(b, a)
		return
	}

	a.prev, a.next = bPrev, bNext
	b.prev, b.next = aPrev, aNext
	aPrev.next, aNext.prev = b, b
	bPrev.next, bNext.prev = a, a
}

// Splice moves every entry out of src (leaving src empty and self-linked)
// and appends them, in order, just before dst. dst must be a list head;
// src may be any node reachable in its own ring but is conventionally
// also a head. A no-op if src is empty.
func Splice(dst, src *Node) {
	if src.Empty() {
		return
	}
	first, last := src.next, src.prev
	dstPrev := dst.prev

	dstPrev.next = first
	first.prev = dstPrev
	last.next = dst
	dst.prev = last

	src.Init()
}

// CutBefore detaches the run of entries [head.Next(), at) from head's
// list — that is, every entry strictly between head and at, not
// including at itself — and returns a new self-linked list head owning
// them. head is left with at and everything after it. Returns an empty
// (self-linked) node if there is nothing to cut (at == head.Next()).
func CutBefore(head, at *Node) *Node {
	cut := new(Node)
	cut.Init()
	if at == head.next {
		return cut
	}
	first := head.next
	last := at.prev

	head.next = at
	at.prev = head

	cut.next = first
	first.prev = cut
	cut.prev = last
	last.next = cut
	return cut
}

// Do calls fn for every entry in the list headed by head, in forward
// order, exactly once. fn must not unlink the entry it is called with;
// use DoSafe if it might.
func Do(head *Node, fn func(*Node)) {
	for n := head.next; n != head; n = n.next {
		fn(n)
	}
}

// DoSafe calls fn for every entry in the list headed by head, in forward
// order, exactly once, tolerating fn unlinking (or relocating, via
// UnlinkInit + re-link) the node it was just called with.
func DoSafe(head *Node, fn func(*Node)) {
	n := head.next
	for n != head {
		next := n.next
		fn(n)
		n = next
	}
}

// EntryOf recovers the address of a record that embeds a Node at the
// given byte offset from the record's own address — the intrusive-list
// equivalent of C's container_of. Most records in this repository embed
// Node as their first field (offset 0), for which EntryOf is equivalent
// to unsafe.Pointer(n); the general form is provided for records that
// don't.
func EntryOf(n *Node, offset uintptr) unsafe.Pointer {
	return unsafe.Pointer(uintptr(unsafe.Pointer(n)) - offset)
}

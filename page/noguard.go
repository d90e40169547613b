//go:build !guard

package page

import "unsafe"

// Guard mode is disabled (the default): pointer-ownership and
// double-free checks compile out entirely rather than costing a branch
// on every Free/Realloc call.
const guardEnabled = false

func (a *Allocator) checkPointer(ptr unsafe.Pointer, op string) {}

func (a *Allocator) checkDoubleFree(sp uint32) {}

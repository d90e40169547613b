package slab

import (
	"fmt"
	"os"
)

// Debugf, Printf and Abort mirror the page package's pluggable
// diagnostic sinks. Kept as a separate set of vars (rather than
// reusing page's) so an embedder can distinguish slab-layer diagnostics
// from page-layer ones, or silence one without the other.
var (
	Debugf = func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, "slab: "+format+"\n", args...)
	}
	Printf = func(format string, args ...any) {
		fmt.Fprintf(os.Stdout, format+"\n", args...)
	}
	Abort = func() {
		os.Exit(2)
	}
)

func fatalf(format string, args ...any) {
	Debugf(format, args...)
	Abort()
	panic(fmt.Sprintf(format, args...))
}

// Command allocbench drives a page+slab allocator through a scripted
// allocate/free workload and reports its internal state via the
// inspect package. It exists as an operational smoke-test harness for
// the six end-to-end scenarios this allocator is expected to handle,
// not as a general-purpose benchmarking tool.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package page

import (
	"fmt"
	"os"
)

// Debugf, Printf and Abort are the three pluggable diagnostic sinks the
// spec calls out as external collaborators: where a debug line goes,
// where an informational line goes, and how the process terminates on
// an unrecoverable caller-contract violation. Tests (and embedders with
// their own logging) may replace them; the zero-value behavior matches
// a typical standalone CLI tool.
var (
	Debugf = func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, "page: "+format+"\n", args...)
	}
	Printf = func(format string, args ...any) {
		fmt.Fprintf(os.Stdout, format+"\n", args...)
	}
	Abort = func() {
		os.Exit(2)
	}
)

// fatalf reports a caller-contract violation through Debugf and then
// terminates via Abort. It never returns; the panic after Abort() is
// only reached if a test has replaced Abort with something that
// doesn't actually stop execution, and exists so the compiler doesn't
// need a bogus return value from the caller.
func fatalf(format string, args ...any) {
	Debugf(format, args...)
	Abort()
	panic(fmt.Sprintf(format, args...))
}

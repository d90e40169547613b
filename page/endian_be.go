//go:build !amd64 && !386 && !arm64 && !arm && !riscv64 && !mips64le && !mipsle && !ppc64le && !wasm

package page

import "encoding/binary"

// On big-endian architectures, fall back to encoding/binary. The
// metadata table's overflow length is always written little-endian
// regardless of host architecture, matching the wire-level invariant
// that buffers are not portable across processes but the encoding rule
// itself is architecture-independent.

func putUint32LE(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
}

func getUint32LE(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

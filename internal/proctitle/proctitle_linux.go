//go:build linux

package proctitle

import (
	"os"
	"unsafe"
)

// platformInit locates the contiguous argv+environ backing array the
// Go runtime inherited from the kernel at process start and returns how
// many bytes of it Set may safely overwrite. Go's runtime does not
// expose this directly, but os.Args[0] and os.Environ() are backed by
// slices into that same original memory until something reassigns them,
// so their combined byte span is exactly the space `ps` reads — the same
// assumption this technique makes about argv/envp
// being adjacent.
func platformInit() (int, []byte) {
	if len(os.Args) == 0 {
		return 0, nil
	}
	start := uintptr(unsafe.Pointer(unsafe.StringData(os.Args[0])))
	end := start + uintptr(len(os.Args[0]))
	for _, e := range os.Environ() {
		a := uintptr(unsafe.Pointer(unsafe.StringData(e)))
		if a < start {
			continue
		}
		if tail := a + uintptr(len(e)); tail > end {
			end = tail
		}
	}
	n := int(end - start)
	if n <= 0 {
		return 0, nil
	}
	return n, unsafe.Slice((*byte)(unsafe.Pointer(start)), n)
}

func platformSet(title string) {
	n := copy(buf, title)
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	if n < len(buf) {
		// leave a trailing NUL inside the truncated region so `ps`
		// stops at the new, shorter title instead of showing leftover
		// bytes from the previous one.
		buf[n] = 0
	}
}


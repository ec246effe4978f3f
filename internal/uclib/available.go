package uclib

import (
	"sync"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"
)

var probeOnce sync.Once

// Available reports whether the native Unicorn library loaded
// successfully. Checked once, lazily, the first time any caller needs
// to know — this is the "process-wide singleton with well-defined
// failure" the re-architecture guidance in spec.md §9 calls for.
func Available() bool {
	probeOnce.Do(func() {
		mu, err := uc.NewUnicorn(uc.ARCH_X86, uc.MODE_32)
		if err != nil {
			libOK = false
			return
		}
		mu.Close()
	})
	return libOK
}

// Command looper is a cooperating fixture for proctrace's integration
// tests: it holds a known value in a package-level variable, prints its
// address, and spins,
// letting a tracer attach, read/write its memory, and inject syscalls
// against it.
package main

import (
	"fmt"
	"os"
	"time"
)

// marker is written at a stable value so tests can locate it with a
// literal scan before overwriting it and confirming the new value
// round-trips through a fresh read.
var marker = [16]byte{0xde, 0xad, 0xbe, 0xef, 0xca, 0xfe, 0xba, 0xbe}

func main() {
	fmt.Fprintf(os.Stderr, "looper pid=%d marker=%p\n", os.Getpid(), &marker)
	for {
		time.Sleep(50 * time.Millisecond)
	}
}

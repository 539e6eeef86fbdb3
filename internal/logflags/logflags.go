// Package logflags configures logrus for every subsystem in this
// module, one *logrus.Entry per concern, mirroring the teacher's
// pkg/logflags: a single Setup call gates verbosity, and each subsystem
// gets its own tagged logger rather than sharing the root logger
// directly.
package logflags

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	setupOnce sync.Once
	root      = logrus.StandardLogger()
)

// Setup installs the module-wide log level and output. Safe to call
// multiple times; only the first call takes effect, matching the
// teacher's own Setup(logFlag bool, logstr string) idempotency.
func Setup(level logrus.Level, out *os.File) {
	setupOnce.Do(func() {
		root.SetLevel(level)
		if out != nil {
			root.SetOutput(out)
		}
		root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	})
}

func subsystem(layer string) *logrus.Entry {
	return root.WithField("layer", layer)
}

// TracerLogger returns the logger used by proc/native.
func TracerLogger() *logrus.Entry { return subsystem("tracer") }

// ProcessLogger returns the logger used by proc process/iteration code.
func ProcessLogger() *logrus.Entry { return subsystem("process") }

// MemEditLogger returns the logger used by proc/memedit.
func MemEditLogger() *logrus.Entry { return subsystem("memedit") }

// ScannerLogger returns the logger used by proc/scanner.
func ScannerLogger() *logrus.Entry { return subsystem("scanner") }

// RegionCacheLogger returns the logger used by proc/regioncache.
func RegionCacheLogger() *logrus.Entry { return subsystem("regioncache") }

// Package safety implements the process-wide path-safety check for a
// candidate local sync root: a path must not be in the disallowed set, must
// exist, and must be a directory. The check is standalone; the sync
// coordinator in pkg/synchronization does not call it.
package safety

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// Sentinel errors, matched with errors.Is by callers.
var (
	// ErrNotFound indicates the path does not exist.
	ErrNotFound = errors.New("path does not exist")
	// ErrNotAFolder indicates the path exists but is not a directory.
	ErrNotAFolder = errors.New("path is not a folder")
	// ErrProtectedFileNotWritable indicates the path is in the disallowed set.
	ErrProtectedFileNotWritable = errors.New("path is protected and cannot be used as a sync root")
)

// registry holds the process-wide disallowed-paths set. It is initialized
// once at startup and read-only thereafter, so no lock is needed once built;
// the sync.Once only guards the one-time construction.
type registry struct {
	once       sync.Once
	disallowed map[string]struct{}
}

var global registry

// Init populates the process-wide disallowed-paths set from a list of
// absolute paths. It is a no-op after the first call: the set is meant to be
// established once at startup and left immutable, per the global-process-
// state design note.
func Init(disallowed []string) {
	global.once.Do(func() {
		set := make(map[string]struct{}, len(disallowed))
		for _, p := range disallowed {
			set[normalize(p)] = struct{}{}
		}
		global.disallowed = set
	})
}

func normalize(p string) string {
	return filepath.Clean(p)
}

// AssertSafePath normalizes p, rejects it if it is in the disallowed set, and
// otherwise stats it to confirm it exists and is a directory.
func AssertSafePath(p string) error {
	clean := normalize(p)

	if _, protected := global.disallowed[clean]; protected {
		return errors.Wrapf(ErrProtectedFileNotWritable, "%s", clean)
	}

	info, err := os.Stat(clean)
	if os.IsNotExist(err) {
		return errors.Wrapf(ErrNotFound, "%s", clean)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.Wrapf(ErrNotAFolder, "%s", clean)
	}
	return nil
}

package synchronization

import "github.com/pkg/errors"

// Sentinel errors matching the semantic error kinds surfaced to callers.
// Callers should test with errors.Is, since these are frequently wrapped
// with path or archive-key context.
var (
	// ErrArchiveNotWritable indicates a folder->archive sync (or any
	// operation that writes to the archive) was attempted on a read-only
	// archive.
	ErrArchiveNotWritable = errors.New("archive is not writable")
	// ErrCycleDetected indicates the diff engine encountered a symlink (or
	// equivalent) cycle. It is surfaced as an event, never returned directly
	// from a debounced sync.
	ErrCycleDetected = errors.New("cycle detected while diffing")
	// ErrNoLocalPath indicates a diff was requested for an archive with no
	// configured (or supplied) local path. DiffListing and DiffFile return it;
	// a sync in the same situation is logged and skipped, returning nil.
	ErrNoLocalPath = errors.New("no local path configured for archive")
	// ErrArchiveNotRegistered indicates a status query named an archive key
	// the Manager has no controller for.
	ErrArchiveNotRegistered = errors.New("archive is not registered with this manager")
)

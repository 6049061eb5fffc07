// Package syncfs defines the filesystem-view contracts that the sync engine
// consumes: a common read/write/stat/readdir surface shared by archives and
// local directories, plus the archive-specific extensions (key, writability,
// version, manifest, change notifications) that the storage layer owns.
package syncfs

import (
	"context"
	"io/fs"
	"time"
)

// EntryKind distinguishes files from directories in a view.
type EntryKind uint8

const (
	// EntryFile indicates a regular file.
	EntryFile EntryKind = iota
	// EntryDirectory indicates a directory.
	EntryDirectory
)

// String returns a human-readable name for the entry kind.
func (k EntryKind) String() string {
	if k == EntryDirectory {
		return "directory"
	}
	return "file"
}

// Stat describes the metadata of a single entry as seen by a view.
type Stat struct {
	// Kind indicates whether the entry is a file or directory.
	Kind EntryKind
	// Size is the file size in bytes. It is meaningless for directories.
	Size int64
	// ModTime is the entry's last modification time.
	ModTime time.Time
}

// DirEntry is a single child returned by View.ReadDir.
type DirEntry struct {
	// Name is the child's base name (no path separators).
	Name string
	// Kind indicates whether the child is a file or directory.
	Kind EntryKind
}

// View is the read/write surface common to both archive handles and local
// directory views. Paths are slash-separated and relative to the view's
// root; the empty string denotes the root itself.
//
// All methods may block on I/O and should be treated as suspension points:
// any invariant a caller depends on (existence, settings, lock ownership)
// must be re-validated after calling one of these methods if it spans a
// re-entrant window.
type View interface {
	// Stat returns metadata for path, or an error satisfying
	// errors.Is(err, fs.ErrNotExist) if it does not exist.
	Stat(ctx context.Context, path string) (*Stat, error)
	// ReadDir lists the immediate children of the directory at path.
	ReadDir(ctx context.Context, path string) ([]DirEntry, error)
	// ReadFile returns the complete contents of the file at path.
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// WriteFile writes data as the complete contents of the file at path,
	// creating it (and any ancestor directories) if necessary.
	WriteFile(ctx context.Context, path string, data []byte, mode fs.FileMode) error
	// Mkdir creates the directory at path, including any ancestors.
	Mkdir(ctx context.Context, path string) error
	// Remove deletes the file or (empty or non-empty) directory at path.
	Remove(ctx context.Context, path string) error
}

// ChangeEvent reports a single change observed by a view's change-notification
// stream.
type ChangeEvent struct {
	// Path is the path that changed, relative to the view's root.
	Path string
}

// ArchiveHandle is the external archive collaborator the sync engine holds a
// non-owning reference to. It is owned and implemented by the storage layer;
// the sync engine never creates or destroys one.
type ArchiveHandle interface {
	View

	// Key returns the archive's stable 32-byte identifier.
	Key() [32]byte
	// Writable reports whether this process holds the signing key required
	// to write to the archive.
	Writable() bool
	// Version returns the archive's current version counter.
	Version() uint64
	// Size returns the total size in bytes of the archive's content.
	Size(ctx context.Context) (int64, error)
	// ReadManifest returns the archive's manifest document, or an empty map
	// if none has been written yet.
	ReadManifest(ctx context.Context) (map[string]interface{}, error)
	// WriteManifest overwrites the archive's manifest document.
	WriteManifest(ctx context.Context, manifest map[string]interface{}) error
	// Watch returns a stream of change notifications and a cancellation
	// function. The stream is closed after the cancellation function is
	// called.
	Watch(ctx context.Context) (<-chan ChangeEvent, func(), error)
}

package diff

import "github.com/beakerbrowser/beaker-sync/pkg/syncfs"

// Kind identifies the nature of a single change.
type Kind uint8

const (
	// Add indicates content present on left (the reference side) but not
	// right; it must be copied to right.
	Add Kind = iota
	// Modify indicates content present on both sides but differing.
	Modify
	// Remove indicates content present on right but not left (the reference
	// side); it must be removed from right.
	Remove
)

// String returns a human-readable name for the change kind.
func (k Kind) String() string {
	switch k {
	case Add:
		return "add"
	case Modify:
		return "modify"
	case Remove:
		return "remove"
	default:
		return "unknown"
	}
}

// Change is a single entry in a diff's ordered change list. Applying a diff's
// changes, in order, to the right side makes its content match the left
// side's.
type Change struct {
	// Kind is the nature of the change.
	Kind Kind
	// Path is the slash-separated path the change applies to, relative to the
	// views being diffed.
	Path string
	// Type indicates whether the changed entry is a file or directory. For
	// Remove changes it describes the entry as it exists on the right (target)
	// side.
	Type syncfs.EntryKind
}

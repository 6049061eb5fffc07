package diff

// Options controls the behavior of a single diff operation.
type Options struct {
	// Shallow, if true (the default), causes a directory that differs between
	// the two sides to be emitted as a single directory-level change rather
	// than descended into.
	Shallow bool
	// CompareContent, if true (the default), causes files whose stats match to
	// be considered equal only after their bodies (or cached fingerprints)
	// compare equal. If false, matching stats imply equal content.
	CompareContent bool
	// Filter, if set, excludes any path for which it returns true from the
	// diff entirely (both sides). It is consulted with the path and whether
	// the entry is known to be a directory on at least one side.
	Filter func(path string, directory bool) bool
	// AddOnly, if true, restricts the result to Add changes only.
	AddOnly bool
}

// DefaultOptions returns the default diff options: shallow directory
// comparisons and full content comparison, no filtering.
func DefaultOptions() Options {
	return Options{Shallow: true, CompareContent: true}
}

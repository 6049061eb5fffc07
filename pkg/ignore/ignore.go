// Package ignore implements the .datignore ruleset: gitignore-style glob
// parsing, matching against a path and its ancestors, and derivation of a
// whitelist-based filter from an explicit path list.
package ignore

import (
	pathpkg "path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// pattern represents a single parsed ignore pattern.
type pattern struct {
	negated       bool
	directoryOnly bool
	// matchLeaf indicates the pattern should also be tried against the path's
	// base name, which applies to patterns with no slash and no leading slash
	// (the usual gitignore shorthand for "match this name anywhere").
	matchLeaf bool
	glob      string
}

// newPattern validates and parses a single line from a .datignore file.
func newPattern(raw string) (*pattern, error) {
	if raw == "" || raw == "!" {
		return nil, errors.New("empty pattern")
	}
	if raw == "/" || raw == "!/" {
		return nil, errors.New("root pattern")
	}

	negated := false
	if raw[0] == '!' {
		negated = true
		raw = raw[1:]
	}
	if raw == "" {
		return nil, errors.New("empty pattern after negation")
	}

	absolute := false
	if raw[0] == '/' {
		absolute = true
		raw = raw[1:]
	}

	directoryOnly := false
	if len(raw) > 0 && raw[len(raw)-1] == '/' {
		directoryOnly = true
		raw = raw[:len(raw)-1]
	}
	if raw == "" {
		return nil, errors.New("empty pattern after trimming")
	}

	containsSlash := strings.IndexByte(raw, '/') >= 0

	if _, err := doublestar.Match(raw, "a"); err != nil {
		return nil, errors.Wrap(err, "invalid glob pattern")
	}

	return &pattern{
		negated:       negated,
		directoryOnly: directoryOnly,
		matchLeaf:     !absolute && !containsSlash,
		glob:          raw,
	}, nil
}

// matches reports whether the pattern applies to path (and, if so, whether
// the match is a negation).
func (p *pattern) matches(path string, directory bool) (matched, negated bool) {
	if p.directoryOnly && !directory {
		return false, false
	}
	if ok, _ := doublestar.Match(p.glob, path); ok {
		return true, p.negated
	}
	if p.matchLeaf && path != "" {
		if ok, _ := doublestar.Match(p.glob, pathpkg.Base(path)); ok {
			return true, p.negated
		}
	}
	return false, false
}

// Ruleset is an ordered, compiled set of ignore patterns.
type Ruleset struct {
	patterns []*pattern
}

// Parse compiles the lines of a .datignore file into a Ruleset. Blank lines
// and lines starting with '#' are skipped, matching gitignore conventions.
// Invalid individual lines are skipped rather than failing the whole parse,
// since a single malformed rule shouldn't disable ignoring altogether.
func Parse(contents string) *Ruleset {
	var patterns []*pattern
	for _, line := range strings.Split(contents, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if p, err := newPattern(line); err == nil {
			patterns = append(patterns, p)
		}
	}
	return &Ruleset{patterns: patterns}
}

// Empty returns a ruleset with no patterns.
func Empty() *Ruleset {
	return &Ruleset{}
}

// matchedAt reports whether path itself (ignoring ancestors) is ignored by
// the ruleset, following gitignore's "last matching pattern wins" rule.
func (r *Ruleset) matchedAt(path string, directory bool) bool {
	ignored := false
	for _, p := range r.patterns {
		if matched, negated := p.matches(path, directory); matched {
			ignored = !negated
		}
	}
	return ignored
}

// ancestors splits path on '/' and returns every non-empty prefix, e.g.
// "a/b/c" -> ["a", "a/b", "a/b/c"]. This lets a single rule like
// "node_modules" exclude an entire subtree: any descendant's ancestor chain
// will include the ignored directory itself.
func ancestors(path string) []string {
	if path == "" {
		return nil
	}
	segments := strings.Split(path, "/")
	prefixes := make([]string, 0, len(segments))
	for i := range segments {
		prefixes = append(prefixes, strings.Join(segments[:i+1], "/"))
	}
	return prefixes
}

// Ignored reports whether path should be excluded from synchronization,
// either because it directly matches a rule or because one of its ancestor
// directories does.
func (r *Ruleset) Ignored(path string, directory bool) bool {
	if r == nil || len(r.patterns) == 0 {
		return false
	}
	prefixes := ancestors(path)
	for i, prefix := range prefixes {
		isLast := i == len(prefixes)-1
		// Only the final (full) path carries the caller's directory bit;
		// every proper ancestor is, by construction, a directory.
		prefixDirectory := directory
		if !isLast {
			prefixDirectory = true
		}
		if r.matchedAt(prefix, prefixDirectory) {
			return true
		}
	}
	return false
}

// Filter returns a predicate suitable for diff/sync options: it reports
// whether a path should be excluded from consideration entirely.
func (r *Ruleset) Filter() func(path string, directory bool) bool {
	return r.Ignored
}

// WhitelistFilter derives a filter from an explicit set of paths: a path is
// included iff it equals a whitelist entry, lies strictly inside one that
// ends in '/', or is a proper ancestor of one (so a diff can still descend
// through intermediate directories to reach it). The returned filter follows
// the same "exclude if true" convention as Ruleset.Filter, so it is inverted
// internally.
func WhitelistFilter(paths []string) func(path string, directory bool) bool {
	cleaned := make([]string, len(paths))
	copy(cleaned, paths)

	included := func(path string) bool {
		for _, entry := range cleaned {
			if strings.HasSuffix(entry, "/") {
				if path == strings.TrimSuffix(entry, "/") || strings.HasPrefix(path, entry) {
					return true
				}
			}
			if path == entry {
				return true
			}
			// Path is a proper ancestor of the whitelist entry: allow descent.
			if strings.HasPrefix(entry, path+"/") {
				return true
			}
		}
		return false
	}

	return func(path string, _ bool) bool {
		if path == "" {
			return false
		}
		return !included(path)
	}
}

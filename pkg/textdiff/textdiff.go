// Package textdiff implements the diffFile preview operation: a line-level
// unified diff between a file's content on two sides of a sync, guarded
// against binary content and oversized files.
package textdiff

import (
	"context"
	stdpath "path"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/beakerbrowser/beaker-sync/pkg/syncfs"
)

// MaxSourceSize is the per-side size cap for a text diff preview. Files
// larger than this on either side are rejected rather than fully read into
// memory and diffed line-by-line.
const MaxSourceSize = 100 * 1024 // 100 KiB

// Sentinel errors returned by File. Callers should use errors.Is to test for
// them, since they may be wrapped with path context.
var (
	// ErrSourceTooLarge indicates one side of the diff exceeds MaxSourceSize.
	ErrSourceTooLarge = errors.New("source too large for text diff")
	// ErrInvalidEncoding indicates one side's content is not valid UTF-8 text,
	// or was sniffed as a binary MIME type.
	ErrInvalidEncoding = errors.New("content is not valid UTF-8 text")
)

// Result is the outcome of diffing a single file between two views.
type Result struct {
	// Path is the path that was diffed.
	Path string
	// Unified is the unified-diff text, empty if the two sides are identical.
	Unified string
	// Identical reports whether the two sides' contents are byte-equal.
	Identical bool
}

// File reads path from both left and right and returns a unified line diff.
// It rejects either side that exceeds MaxSourceSize or that isn't valid
// UTF-8 text, since a line-level diff of binary content is meaningless.
func File(ctx context.Context, left, right syncfs.View, path string) (*Result, error) {
	leftData, err := readGuarded(ctx, left, path)
	if err != nil {
		return nil, errors.Wrapf(err, "left side of %s", path)
	}
	rightData, err := readGuarded(ctx, right, path)
	if err != nil {
		return nil, errors.Wrapf(err, "right side of %s", path)
	}

	if string(leftData) == string(rightData) {
		return &Result{Path: path, Identical: true}, nil
	}

	unified := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(leftData)),
		B:        difflib.SplitLines(string(rightData)),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(unified)
	if err != nil {
		return nil, errors.Wrapf(err, "compute unified diff for %s", path)
	}
	return &Result{Path: path, Unified: text}, nil
}

// readGuarded reads a file's content, enforcing the extension and size
// guards and validating that it looks like UTF-8 text before a line diff is
// attempted against it.
func readGuarded(ctx context.Context, view syncfs.View, path string) ([]byte, error) {
	if isFileNameBinary(path) {
		return nil, errors.Wrapf(ErrInvalidEncoding, "%s has a binary file extension", path)
	}

	stat, err := view.Stat(ctx, path)
	if err != nil {
		return nil, err
	}
	if stat.Size > MaxSourceSize {
		return nil, errors.Wrapf(ErrSourceTooLarge, "%s exceeds %s", path, humanize.Bytes(MaxSourceSize))
	}

	data, err := view.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > MaxSourceSize {
		return nil, errors.Wrapf(ErrSourceTooLarge, "%s exceeds %s", path, humanize.Bytes(MaxSourceSize))
	}

	if !utf8.Valid(data) {
		return nil, ErrInvalidEncoding
	}
	if mtype := mimetype.Detect(data); !isTextMime(mtype.String()) {
		return nil, errors.Wrapf(ErrInvalidEncoding, "detected MIME type %s", mtype.String())
	}
	return data, nil
}

// binaryExtensions holds filename extensions that are unambiguously binary;
// a match here short-circuits the content sniff entirely. For extensions not
// present here isFileNameBinary returns false, and the decision falls through
// to the UTF-8 check and isTextMime's content sniff.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".ico": true, ".webp": true, ".zip": true, ".gz": true, ".tar": true,
	".7z": true, ".rar": true, ".pdf": true, ".exe": true, ".dll": true,
	".so": true, ".dylib": true, ".mp3": true, ".mp4": true, ".mov": true,
	".avi": true, ".wasm": true, ".ttf": true, ".otf": true, ".woff": true,
	".woff2": true, ".sqlite": true, ".db": true,
}

// isFileNameBinary reports whether path's extension unambiguously indicates
// binary content, without reading it.
func isFileNameBinary(path string) bool {
	return binaryExtensions[strings.ToLower(stdpath.Ext(path))]
}

// isTextMime reports whether a sniffed MIME type is safe to treat as text.
// mimetype.Detect falls back to application/octet-stream for content it
// can't classify, which for pure text without a recognizable structure is
// common, so octet-stream is only rejected once UTF-8 validity has already
// failed; here it's accepted alongside the text/* and a handful of
// text-shaped application/* types.
func isTextMime(mtype string) bool {
	if strings.HasPrefix(mtype, "text/") {
		return true
	}
	switch {
	case strings.HasPrefix(mtype, "application/json"),
		strings.HasPrefix(mtype, "application/xml"),
		strings.HasPrefix(mtype, "application/javascript"),
		strings.HasPrefix(mtype, "application/x-yaml"),
		strings.HasPrefix(mtype, "application/octet-stream"):
		return true
	default:
		return false
	}
}

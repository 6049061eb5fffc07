package safety

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func TestAssertSafePathRejectsProtected(t *testing.T) {
	dir := t.TempDir()
	global = registry{}
	Init([]string{dir})

	if err := AssertSafePath(dir); !errors.Is(err, ErrProtectedFileNotWritable) {
		t.Fatalf("expected ErrProtectedFileNotWritable, got %v", err)
	}
}

func TestAssertSafePathRejectsMissing(t *testing.T) {
	global = registry{}
	Init(nil)

	missing := filepath.Join(t.TempDir(), "does-not-exist")
	if err := AssertSafePath(missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAssertSafePathRejectsNonDirectory(t *testing.T) {
	global = registry{}
	Init(nil)

	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if err := AssertSafePath(file); !errors.Is(err, ErrNotAFolder) {
		t.Fatalf("expected ErrNotAFolder, got %v", err)
	}
}

func TestAssertSafePathAcceptsOrdinaryDirectory(t *testing.T) {
	global = registry{}
	Init(nil)

	dir := t.TempDir()
	if err := AssertSafePath(dir); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

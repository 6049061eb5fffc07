package watching

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRecursiveWatcherObservesNewFile(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	w, err := NewRecursiveWatcher(root)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()

	target := filepath.Join(sub, "a.txt")
	if err := os.WriteFile(target, []byte("hi"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	select {
	case <-w.Events():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a watch event")
	}
}

func TestFileWatcherObservesChange(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, ".datignore")
	if err := os.WriteFile(target, []byte("node_modules\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	w, err := NewFileWatcher(target)
	if err != nil {
		t.Fatalf("new file watcher: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(target, []byte("node_modules\nbuild/\n"), 0o644); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}

	select {
	case <-w.Events():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a file-change event")
	}
}

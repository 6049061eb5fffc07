package demoarchive

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Load populates a writable archive from the contents of dir on disk. It
// exists so the CLI can hand the demo archive something durable to run
// against across invocations, since Archive itself keeps no state beyond the
// process's lifetime.
func Load(dir string) (*Archive, error) {
	archive := New(true)

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return archive, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "stat archive directory")
	} else if !info.IsDir() {
		return nil, errors.Errorf("%s is not a directory", dir)
	}

	ctx := context.Background()
	err = filepath.WalkDir(dir, func(full string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, full)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if entry.IsDir() {
			return archive.Mkdir(ctx, rel)
		}
		data, err := os.ReadFile(full)
		if err != nil {
			return errors.Wrapf(err, "read %s", full)
		}
		return archive.WriteFile(ctx, rel, data, 0)
	})
	if err != nil {
		return nil, errors.Wrap(err, "load archive snapshot")
	}
	return archive, nil
}

// Dump writes archive's current content to dir on disk, overwriting any
// files it has entries for. It is the counterpart to Load, used by the CLI
// to persist demo archive state between invocations.
func Dump(archive *Archive, dir string) error {
	archive.mu.Lock()
	files := make(map[string][]byte, len(archive.files))
	for path, data := range archive.files {
		out := make([]byte, len(data))
		copy(out, data)
		files[path] = out
	}
	archive.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create archive directory")
	}
	for path, data := range files {
		full := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return errors.Wrapf(err, "create parent for %s", path)
		}
		if err := os.WriteFile(full, data, 0o644); err != nil {
			return errors.Wrapf(err, "write %s", path)
		}
	}
	return nil
}

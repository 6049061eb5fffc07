package syncfs

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// LocalView is a scoped filesystem view rooted at a local path. It implements
// View directly against the host filesystem.
type LocalView struct {
	root string
}

// toHost converts a view-relative, slash-separated path to a host path rooted
// at the view's root.
func (v *LocalView) toHost(path string) string {
	if path == "" {
		return v.root
	}
	return filepath.Join(v.root, filepath.FromSlash(path))
}

// Root returns the view's root path on the host filesystem.
func (v *LocalView) Root() string {
	return v.root
}

// HostPath converts a view-relative, slash-separated path to a host path
// rooted at the view's root. It exists alongside the unexported toHost so
// that external packages (e.g. the watcher lifecycle, which needs a concrete
// host path to watch) can resolve paths the same way the view itself does.
func (v *LocalView) HostPath(path string) string {
	return v.toHost(path)
}

// Stat implements View.Stat.
func (v *LocalView) Stat(_ context.Context, path string) (*Stat, error) {
	info, err := os.Stat(v.toHost(path))
	if err != nil {
		return nil, err
	}
	kind := EntryFile
	if info.IsDir() {
		kind = EntryDirectory
	}
	return &Stat{Kind: kind, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// ReadDir implements View.ReadDir.
func (v *LocalView) ReadDir(_ context.Context, path string) ([]DirEntry, error) {
	entries, err := os.ReadDir(v.toHost(path))
	if err != nil {
		return nil, err
	}
	result := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		kind := EntryFile
		if e.IsDir() {
			kind = EntryDirectory
		}
		result = append(result, DirEntry{Name: e.Name(), Kind: kind})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// ReadFile implements View.ReadFile.
func (v *LocalView) ReadFile(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(v.toHost(path))
}

// WriteFile implements View.WriteFile.
func (v *LocalView) WriteFile(_ context.Context, path string, data []byte, mode fs.FileMode) error {
	host := v.toHost(path)
	if err := os.MkdirAll(filepath.Dir(host), 0o755); err != nil {
		return errors.Wrap(err, "unable to create parent directory")
	}
	if mode == 0 {
		mode = 0o644
	}
	return os.WriteFile(host, data, mode)
}

// Mkdir implements View.Mkdir.
func (v *LocalView) Mkdir(_ context.Context, path string) error {
	return os.MkdirAll(v.toHost(path), 0o755)
}

// manifestPath is the manifest document's fixed location inside both the
// local root and the archive (spec.md §6: "a JSON document at /dat.json
// inside both").
const manifestPath = "dat.json"

// ReadManifest reads and parses the folder's manifest document, returning an
// empty map if it does not yet exist.
func (v *LocalView) ReadManifest(ctx context.Context) (map[string]interface{}, error) {
	data, err := v.ReadFile(ctx, manifestPath)
	if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
		return map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, err
	}
	manifest := make(map[string]interface{})
	if len(data) == 0 {
		return manifest, nil
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, errors.Wrap(err, "parse manifest")
	}
	return manifest, nil
}

// WriteManifest serializes and overwrites the folder's manifest document.
func (v *LocalView) WriteManifest(ctx context.Context, manifest map[string]interface{}) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode manifest")
	}
	return v.WriteFile(ctx, manifestPath, data, 0o644)
}

// Remove implements View.Remove.
func (v *LocalView) Remove(_ context.Context, path string) error {
	return os.RemoveAll(v.toHost(path))
}

// viewRegistry interns LocalView instances by root path so that at most one
// watcher is ever attached per path, as required by the sync engine's
// concurrency model.
type viewRegistry struct {
	mu    sync.Mutex
	views map[string]*refCountedView
}

type refCountedView struct {
	view     *LocalView
	refCount int
}

var globalViewRegistry = &viewRegistry{views: make(map[string]*refCountedView)}

// AcquireLocalView returns the shared LocalView for the given root path,
// creating it if necessary, and increments its reference count. Callers must
// call the returned release function exactly once when finished with the
// view (e.g. when a watcher is detached or settings are reconfigured).
func AcquireLocalView(root string) (*LocalView, func()) {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}

	globalViewRegistry.mu.Lock()
	entry, ok := globalViewRegistry.views[abs]
	if !ok {
		entry = &refCountedView{view: &LocalView{root: abs}}
		globalViewRegistry.views[abs] = entry
	}
	entry.refCount++
	globalViewRegistry.mu.Unlock()

	released := false
	return entry.view, func() {
		if released {
			return
		}
		released = true
		globalViewRegistry.mu.Lock()
		entry.refCount--
		if entry.refCount == 0 {
			delete(globalViewRegistry.views, abs)
		}
		globalViewRegistry.mu.Unlock()
	}
}

// Package demoarchive provides a minimal in-memory implementation of
// syncfs.ArchiveHandle. It stands in for the real content-addressed archive,
// which is an external collaborator outside this module's scope (spec.md
// §1/§6); it exists purely so the CLI and tests have something concrete to
// sync against.
package demoarchive

import (
	"context"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/beakerbrowser/beaker-sync/pkg/syncfs"
)

// Archive is an in-memory, non-persistent archive handle.
type Archive struct {
	key      [32]byte
	writable bool

	mu       sync.Mutex
	files    map[string][]byte
	dirs     map[string]bool
	version  uint64
	watchers map[int]chan syncfs.ChangeEvent
	nextSub  int
}

// New creates an empty archive. The key is derived from a freshly generated
// UUID so that demo archives created in the same process never collide,
// mirroring the stable-key identity real archives are described as having in
// spec.md §3.
func New(writable bool) *Archive {
	id := uuid.New()
	var key [32]byte
	copy(key[:], id[:])
	return &Archive{
		key:      key,
		writable: writable,
		files:    make(map[string][]byte),
		dirs:     map[string]bool{"": true},
		watchers: make(map[int]chan syncfs.ChangeEvent),
	}
}

// Key returns the archive's stable identifier.
func (a *Archive) Key() [32]byte { return a.key }

// Writable reports whether this archive accepts writes.
func (a *Archive) Writable() bool { return a.writable }

// Version returns the archive's monotonically increasing version counter.
func (a *Archive) Version() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.version
}

// Size returns the total size in bytes of all file content in the archive.
func (a *Archive) Size(context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var total int64
	for _, data := range a.files {
		total += int64(len(data))
	}
	return total, nil
}

func (a *Archive) bump() {
	a.version++
	for _, ch := range a.watchers {
		select {
		case ch <- syncfs.ChangeEvent{}:
		default:
		}
	}
}

func (a *Archive) notify(p string) {
	a.version++
	for _, ch := range a.watchers {
		select {
		case ch <- syncfs.ChangeEvent{Path: p}:
		default:
		}
	}
}

// Stat implements syncfs.View.
func (a *Archive) Stat(_ context.Context, p string) (*syncfs.Stat, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dirs[p] {
		return &syncfs.Stat{Kind: syncfs.EntryDirectory}, nil
	}
	if data, ok := a.files[p]; ok {
		return &syncfs.Stat{Kind: syncfs.EntryFile, Size: int64(len(data))}, nil
	}
	return nil, fs.ErrNotExist
}

// ReadDir implements syncfs.View.
func (a *Archive) ReadDir(_ context.Context, dir string) ([]syncfs.DirEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.dirs[dir] {
		return nil, fs.ErrNotExist
	}
	seen := make(map[string]syncfs.EntryKind)
	consider := func(full string, kind syncfs.EntryKind) {
		rel := full
		if dir != "" {
			prefix := dir + "/"
			if !strings.HasPrefix(full, prefix) {
				return
			}
			rel = full[len(prefix):]
		} else if full == "" {
			return
		}
		if rel == "" {
			return
		}
		if idx := strings.IndexByte(rel, '/'); idx >= 0 {
			seen[rel[:idx]] = syncfs.EntryDirectory
			return
		}
		seen[rel] = kind
	}
	for p := range a.files {
		consider(p, syncfs.EntryFile)
	}
	for p := range a.dirs {
		if p != "" {
			consider(p, syncfs.EntryDirectory)
		}
	}
	entries := make([]syncfs.DirEntry, 0, len(seen))
	for name, kind := range seen {
		entries = append(entries, syncfs.DirEntry{Name: name, Kind: kind})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// ReadFile implements syncfs.View.
func (a *Archive) ReadFile(_ context.Context, p string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.files[p]
	if !ok {
		return nil, fs.ErrNotExist
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// WriteFile implements syncfs.View.
func (a *Archive) WriteFile(_ context.Context, p string, data []byte, _ fs.FileMode) error {
	if !a.writable {
		return errors.New("archive is read-only")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ancestor := range ancestors(p) {
		a.dirs[ancestor] = true
	}
	out := make([]byte, len(data))
	copy(out, data)
	a.files[p] = out
	a.notify(p)
	return nil
}

// Mkdir implements syncfs.View.
func (a *Archive) Mkdir(_ context.Context, p string) error {
	if !a.writable {
		return errors.New("archive is read-only")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dirs[p] = true
	for _, ancestor := range ancestors(p) {
		a.dirs[ancestor] = true
	}
	a.notify(p)
	return nil
}

// Remove implements syncfs.View.
func (a *Archive) Remove(_ context.Context, p string) error {
	if !a.writable {
		return errors.New("archive is read-only")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dirs[p] {
		delete(a.dirs, p)
		prefix := p + "/"
		for f := range a.files {
			if strings.HasPrefix(f, prefix) {
				delete(a.files, f)
			}
		}
		for d := range a.dirs {
			if strings.HasPrefix(d, prefix) {
				delete(a.dirs, d)
			}
		}
	} else {
		delete(a.files, p)
	}
	a.notify(p)
	return nil
}

// ReadManifest implements syncfs.ArchiveHandle.
func (a *Archive) ReadManifest(ctx context.Context) (map[string]interface{}, error) {
	data, err := a.ReadFile(ctx, "dat.json")
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, err
	}
	manifest, err := decodeManifest(data)
	if err != nil {
		return nil, err
	}
	return manifest, nil
}

// WriteManifest implements syncfs.ArchiveHandle.
func (a *Archive) WriteManifest(ctx context.Context, manifest map[string]interface{}) error {
	data, err := encodeManifest(manifest)
	if err != nil {
		return err
	}
	return a.WriteFile(ctx, "dat.json", data, 0)
}

// Watch implements syncfs.ArchiveHandle.
func (a *Archive) Watch(ctx context.Context) (<-chan syncfs.ChangeEvent, func(), error) {
	a.mu.Lock()
	id := a.nextSub
	a.nextSub++
	ch := make(chan syncfs.ChangeEvent, 16)
	a.watchers[id] = ch
	a.mu.Unlock()

	cancel := func() {
		a.mu.Lock()
		if c, ok := a.watchers[id]; ok {
			delete(a.watchers, id)
			close(c)
		}
		a.mu.Unlock()
	}
	return ch, cancel, nil
}

func ancestors(p string) []string {
	if p == "" {
		return nil
	}
	var out []string
	dir := path.Dir(p)
	for dir != "." && dir != "/" {
		out = append(out, dir)
		dir = path.Dir(dir)
	}
	return out
}

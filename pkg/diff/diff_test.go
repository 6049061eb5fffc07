package diff

import (
	"context"
	"io/fs"
	"sort"
	"testing"

	"github.com/beakerbrowser/beaker-sync/pkg/syncfs"
)

// memView is a minimal in-memory syncfs.View used to exercise the diff engine
// without touching the real filesystem.
type memView struct {
	files map[string][]byte
	dirs  map[string]bool
}

func newMemView() *memView {
	return &memView{files: make(map[string][]byte), dirs: map[string]bool{"": true}}
}

func (v *memView) Stat(_ context.Context, path string) (*syncfs.Stat, error) {
	if v.dirs[path] {
		return &syncfs.Stat{Kind: syncfs.EntryDirectory}, nil
	}
	if data, ok := v.files[path]; ok {
		return &syncfs.Stat{Kind: syncfs.EntryFile, Size: int64(len(data))}, nil
	}
	return nil, fs.ErrNotExist
}

func (v *memView) ReadDir(_ context.Context, dir string) ([]syncfs.DirEntry, error) {
	if !v.dirs[dir] {
		return nil, fs.ErrNotExist
	}
	seen := make(map[string]syncfs.EntryKind)
	add := func(full string) {
		rel := full
		if dir != "" {
			if len(full) <= len(dir)+1 || full[:len(dir)+1] != dir+"/" {
				return
			}
			rel = full[len(dir)+1:]
		}
		for i := 0; i < len(rel); i++ {
			if rel[i] == '/' {
				name := rel[:i]
				seen[name] = syncfs.EntryDirectory
				return
			}
		}
		if rel != "" {
			seen[rel] = syncfs.EntryFile
		}
	}
	for p := range v.files {
		add(p)
	}
	for p := range v.dirs {
		if p == "" {
			continue
		}
		add(p)
	}
	var entries []syncfs.DirEntry
	for name, kind := range seen {
		if kind == syncfs.EntryDirectory {
			// an entry seen as a directory prefix of a file always wins
		}
		entries = append(entries, syncfs.DirEntry{Name: name, Kind: kind})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (v *memView) ReadFile(_ context.Context, path string) ([]byte, error) {
	data, ok := v.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (v *memView) WriteFile(_ context.Context, path string, data []byte, _ fs.FileMode) error {
	out := make([]byte, len(data))
	copy(out, data)
	v.files[path] = out
	return nil
}

func (v *memView) Mkdir(_ context.Context, path string) error {
	v.dirs[path] = true
	return nil
}

func (v *memView) Remove(_ context.Context, path string) error {
	if v.dirs[path] {
		delete(v.dirs, path)
		for p := range v.files {
			if len(p) > len(path) && p[:len(path)+1] == path+"/" {
				delete(v.files, p)
			}
		}
		return nil
	}
	delete(v.files, path)
	return nil
}

func put(v *memView, path string, data string) {
	v.files[path] = []byte(data)
}

func mkdir(v *memView, path string) {
	v.dirs[path] = true
}

func kindsSet(changes []*Change) map[string]Kind {
	out := make(map[string]Kind, len(changes))
	for _, c := range changes {
		out[c.Path] = c.Kind
	}
	return out
}

func TestDiffDeterministicOrdering(t *testing.T) {
	left := newMemView()
	right := newMemView()
	put(left, "a.txt", "one")
	put(right, "b.txt", "two")
	put(right, "c.txt", "three")

	opts := DefaultOptions()
	ctx := context.Background()

	var first []*Change
	for i := 0; i < 5; i++ {
		changes, err := Diff(ctx, left, right, opts, NewContentCache())
		if err != nil {
			t.Fatalf("diff: %v", err)
		}
		if i == 0 {
			first = changes
			continue
		}
		if len(changes) != len(first) {
			t.Fatalf("non-deterministic change count: %d vs %d", len(changes), len(first))
		}
		for j := range changes {
			if changes[j].Path != first[j].Path || changes[j].Kind != first[j].Kind {
				t.Fatalf("non-deterministic ordering at index %d: %+v vs %+v", j, changes[j], first[j])
			}
		}
	}

	// Paths must appear in lexicographic order.
	for i := 1; i < len(first); i++ {
		if first[i-1].Path > first[i].Path {
			t.Fatalf("changes not in lexicographic order: %s before %s", first[i-1].Path, first[i].Path)
		}
	}
}

func TestDiffRoundTripIdempotence(t *testing.T) {
	left := newMemView()
	right := newMemView()
	put(left, "keep.txt", "unchanged")
	put(left, "old.txt", "to be removed")
	put(right, "keep.txt", "unchanged")
	put(right, "new.txt", "added")

	ctx := context.Background()
	cache := NewContentCache()
	changes, err := Diff(ctx, left, right, DefaultOptions(), cache)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if err := Apply(ctx, left, right, changes); err != nil {
		t.Fatalf("apply: %v", err)
	}

	again, err := Diff(ctx, left, right, DefaultOptions(), NewContentCache())
	if err != nil {
		t.Fatalf("second diff: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected no changes after applying a diff, got %+v", again)
	}

	// Diffing an unmodified pair again should also be empty (idempotence).
	stillNone, err := Diff(ctx, left, right, DefaultOptions(), NewContentCache())
	if err != nil {
		t.Fatalf("third diff: %v", err)
	}
	if len(stillNone) != 0 {
		t.Fatalf("expected idempotent empty diff, got %+v", stillNone)
	}
}

func TestDiffExclusionFilter(t *testing.T) {
	left := newMemView()
	right := newMemView()
	mkdir(left, "node_modules")
	put(left, "node_modules/pkg.js", "noise")
	put(left, "keep.txt", "signal")

	opts := DefaultOptions()
	opts.Filter = func(path string, directory bool) bool {
		return path == "node_modules" || (len(path) > len("node_modules/") && path[:len("node_modules/")] == "node_modules/")
	}

	changes, err := Diff(context.Background(), left, right, opts, NewContentCache())
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	kinds := kindsSet(changes)
	if _, ok := kinds["node_modules"]; ok {
		t.Fatalf("expected node_modules to be excluded, got %+v", changes)
	}
	if _, ok := kinds["node_modules/pkg.js"]; ok {
		t.Fatalf("expected node_modules/pkg.js to be excluded, got %+v", changes)
	}
	if kinds["keep.txt"] != Add {
		t.Fatalf("expected keep.txt to be added, got %+v", changes)
	}
}

func TestDiffAddOnly(t *testing.T) {
	left := newMemView()
	right := newMemView()
	put(left, "added.txt", "new")
	put(left, "changed.txt", "before")
	put(right, "changed.txt", "after")
	put(right, "removed.txt", "gone")

	opts := DefaultOptions()
	opts.AddOnly = true

	changes, err := Diff(context.Background(), left, right, opts, NewContentCache())
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	for _, c := range changes {
		if c.Kind != Add {
			t.Fatalf("expected only Add changes, got %+v", c)
		}
	}
	kinds := kindsSet(changes)
	if kinds["added.txt"] != Add {
		t.Fatalf("expected added.txt (left-only) to be present as an add, got %+v", changes)
	}
	if _, ok := kinds["changed.txt"]; ok {
		t.Fatalf("expected changed.txt (a modify) to be dropped under AddOnly, got %+v", changes)
	}
	if _, ok := kinds["removed.txt"]; ok {
		t.Fatalf("expected removed.txt (right-only, a remove) to be dropped under AddOnly, got %+v", changes)
	}
}

func TestDiffShallowDirectoryCollapse(t *testing.T) {
	left := newMemView()
	right := newMemView()
	mkdir(left, "sub")
	put(left, "sub/a.txt", "one")
	put(left, "sub/b.txt", "two")

	shallow := DefaultOptions()
	changes, err := Diff(context.Background(), left, right, shallow, NewContentCache())
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if len(changes) != 1 || changes[0].Path != "sub" || changes[0].Type != syncfs.EntryDirectory {
		t.Fatalf("expected a single collapsed directory add, got %+v", changes)
	}

	deep := DefaultOptions()
	deep.Shallow = false
	changes, err = Diff(context.Background(), left, right, deep, NewContentCache())
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	kinds := kindsSet(changes)
	if kinds["sub"] != Add || kinds["sub/a.txt"] != Add || kinds["sub/b.txt"] != Add {
		t.Fatalf("expected individual adds under non-shallow mode, got %+v", changes)
	}
}

package diff

import (
	"context"
	"io/fs"
	"path"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/beakerbrowser/beaker-sync/pkg/syncfs"
)

// Diff walks left (the reference side) and right (the side to be updated) in
// lexicographic order and returns the ordered list of changes that, applied
// to right, make its content match left. I/O errors on any single entry abort
// the whole diff: partial diffs are never returned.
func Diff(ctx context.Context, left, right syncfs.View, opts Options, cache *ContentCache) ([]*Change, error) {
	changes, err := diffDir(ctx, left, right, "", opts, cache)
	if err != nil {
		return nil, err
	}
	if opts.AddOnly {
		filtered := make([]*Change, 0, len(changes))
		for _, c := range changes {
			if c.Kind == Add {
				filtered = append(filtered, c)
			}
		}
		changes = filtered
	}
	return changes, nil
}

// statOrMissing stats path on view, treating fs.ErrNotExist as a nil Stat
// rather than an error.
func statOrMissing(ctx context.Context, view syncfs.View, p string) (*syncfs.Stat, error) {
	stat, err := view.Stat(ctx, p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return stat, nil
}

// listOrMissing reads the directory at path on view, treating a not-exist
// error as an empty listing.
func listOrMissing(ctx context.Context, view syncfs.View, p string) ([]syncfs.DirEntry, error) {
	entries, err := view.ReadDir(ctx, p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func join(dir, name string) string {
	if dir == "" {
		return name
	}
	return path.Join(dir, name)
}

// diffDir compares the children of dirPath across both views and returns the
// changes found, recursing into subdirectories present on both sides.
func diffDir(ctx context.Context, left, right syncfs.View, dirPath string, opts Options, cache *ContentCache) ([]*Change, error) {
	var leftEntries, rightEntries []syncfs.DirEntry
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		entries, err := listOrMissing(gctx, left, dirPath)
		leftEntries = entries
		return err
	})
	group.Go(func() error {
		entries, err := listOrMissing(gctx, right, dirPath)
		rightEntries = entries
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	leftKinds := make(map[string]syncfs.EntryKind, len(leftEntries))
	for _, e := range leftEntries {
		leftKinds[e.Name] = e.Kind
	}
	rightKinds := make(map[string]syncfs.EntryKind, len(rightEntries))
	for _, e := range rightEntries {
		rightKinds[e.Name] = e.Kind
	}

	names := make(map[string]struct{}, len(leftEntries)+len(rightEntries))
	for _, e := range leftEntries {
		names[e.Name] = struct{}{}
	}
	for _, e := range rightEntries {
		names[e.Name] = struct{}{}
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	results := make([][]*Change, len(sorted))
	group, gctx = errgroup.WithContext(ctx)
	for i, name := range sorted {
		i, name := i, name
		childPath := join(dirPath, name)
		leftKind, inLeft := leftKinds[name]
		rightKind, inRight := rightKinds[name]
		directory := (inLeft && leftKind == syncfs.EntryDirectory) || (inRight && rightKind == syncfs.EntryDirectory)
		if opts.Filter != nil && opts.Filter(childPath, directory) {
			continue
		}
		group.Go(func() error {
			childChanges, err := diffChild(gctx, left, right, childPath, inLeft, leftKind, inRight, rightKind, opts, cache)
			if err != nil {
				return err
			}
			results[i] = childChanges
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var changes []*Change
	for _, cs := range results {
		changes = append(changes, cs...)
	}
	return changes, nil
}

// diffChild compares a single named entry that exists on at least one side.
func diffChild(
	ctx context.Context,
	left, right syncfs.View,
	childPath string,
	inLeft bool, leftKind syncfs.EntryKind,
	inRight bool, rightKind syncfs.EntryKind,
	opts Options, cache *ContentCache,
) ([]*Change, error) {
	switch {
	case inLeft && !inRight:
		return oneSidedChanges(ctx, left, childPath, leftKind, Add, opts)
	case !inLeft && inRight:
		return oneSidedChanges(ctx, right, childPath, rightKind, Remove, opts)
	case leftKind != rightKind:
		removed, err := oneSidedChanges(ctx, right, childPath, rightKind, Remove, opts)
		if err != nil {
			return nil, err
		}
		added, err := oneSidedChanges(ctx, left, childPath, leftKind, Add, opts)
		if err != nil {
			return nil, err
		}
		return append(removed, added...), nil
	case leftKind == syncfs.EntryDirectory:
		return diffDir(ctx, left, right, childPath, opts, cache)
	default:
		return diffFileNode(ctx, left, right, childPath, opts, cache)
	}
}

// oneSidedChanges emits the changes for an entry that exists on only one
// side. Under shallow options a directory is emitted as a single change;
// otherwise every descendant is walked and emitted individually.
func oneSidedChanges(ctx context.Context, view syncfs.View, p string, kind syncfs.EntryKind, changeKind Kind, opts Options) ([]*Change, error) {
	if kind == syncfs.EntryFile {
		return []*Change{{Kind: changeKind, Path: p, Type: syncfs.EntryFile}}, nil
	}
	if opts.Shallow {
		return []*Change{{Kind: changeKind, Path: p, Type: syncfs.EntryDirectory}}, nil
	}

	changes := []*Change{{Kind: changeKind, Path: p, Type: syncfs.EntryDirectory}}
	entries, err := listOrMissing(ctx, view, p)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	for _, e := range entries {
		childPath := join(p, e.Name)
		if opts.Filter != nil {
			directory := e.Kind == syncfs.EntryDirectory
			if opts.Filter(childPath, directory) {
				continue
			}
		}
		childChanges, err := oneSidedChanges(ctx, view, childPath, e.Kind, changeKind, opts)
		if err != nil {
			return nil, err
		}
		changes = append(changes, childChanges...)
	}
	return changes, nil
}

// diffFileNode compares a file present on both sides, returning a single
// Modify change if it differs.
func diffFileNode(ctx context.Context, left, right syncfs.View, p string, opts Options, cache *ContentCache) ([]*Change, error) {
	var leftStat, rightStat *syncfs.Stat
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		stat, err := left.Stat(gctx, p)
		leftStat = stat
		return err
	})
	group.Go(func() error {
		stat, err := right.Stat(gctx, p)
		rightStat = stat
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	if !opts.CompareContent {
		if leftStat.Size == rightStat.Size && leftStat.ModTime.Equal(rightStat.ModTime) {
			return nil, nil
		}
		return []*Change{{Kind: Modify, Path: p, Type: syncfs.EntryFile}}, nil
	}

	var leftSum, rightSum [32]byte
	group, gctx = errgroup.WithContext(ctx)
	group.Go(func() error {
		sum, err := cache.Fingerprint(gctx, left, p, leftStat, Left)
		leftSum = sum
		return err
	})
	group.Go(func() error {
		sum, err := cache.Fingerprint(gctx, right, p, rightStat, Right)
		rightSum = sum
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if leftSum == rightSum {
		return nil, nil
	}
	return []*Change{{Kind: Modify, Path: p, Type: syncfs.EntryFile}}, nil
}

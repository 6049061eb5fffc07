package synchronization

import (
	"context"

	"github.com/beakerbrowser/beaker-sync/pkg/diff"
	"github.com/beakerbrowser/beaker-sync/pkg/syncfs"
	"github.com/beakerbrowser/beaker-sync/pkg/textdiff"
)

// DiffListing returns the change list folder -> archive without applying it,
// honoring the same filter and cache policies as a real sync (spec §4.7).
func (c *Controller) DiffListing(ctx context.Context, opts SyncOptions) ([]*diff.Change, error) {
	path, ok := c.resolvePath(opts)
	if !ok {
		return nil, ErrNoLocalPath
	}

	release := c.locks.Lock(c.lockName())
	defer release()

	local, releaseView := syncfs.AcquireLocalView(path)
	defer releaseView()

	diffOpts := diff.DefaultOptions()
	diffOpts.Filter = c.filterFor(opts)
	diffOpts.AddOnly = opts.AddOnly

	c.lifecycleLock.Lock()
	cache := c.cache
	c.lifecycleLock.Unlock()

	return diff.Diff(ctx, local, c.archive, diffOpts, cache)
}

// DiffFile returns a line-level textual diff of path between the folder and
// the archive (spec §4.7).
func (c *Controller) DiffFile(ctx context.Context, opts SyncOptions, path string) (*textdiff.Result, error) {
	localPath, ok := c.resolvePath(opts)
	if !ok {
		return nil, ErrNoLocalPath
	}

	release := c.locks.Lock(c.lockName())
	defer release()

	local, releaseView := syncfs.AcquireLocalView(localPath)
	defer releaseView()

	return textdiff.File(ctx, local, c.archive, path)
}

package synchronization

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/beakerbrowser/beaker-sync/pkg/diff"
	"github.com/beakerbrowser/beaker-sync/pkg/syncfs"
)

// InitialMerge runs the one-time manifest merge and content reconciliation
// described in spec §4.6, invoked once when a writable archive is attached
// to a folder in auto-publish mode.
func (c *Controller) InitialMerge(ctx context.Context, path string) error {
	release := c.locks.Lock(c.lockName())
	defer release()

	local, releaseView := syncfs.AcquireLocalView(path)
	defer releaseView()

	var folderManifest, archiveManifest map[string]interface{}
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		m, err := local.ReadManifest(gctx)
		folderManifest = m
		return err
	})
	group.Go(func() error {
		m, err := c.archive.ReadManifest(gctx)
		archiveManifest = m
		return err
	})
	if err := group.Wait(); err != nil {
		return err
	}

	merged := mergeManifests(folderManifest, archiveManifest)
	if err := local.WriteManifest(ctx, merged); err != nil {
		return err
	}

	c.lifecycleLock.Lock()
	cache := c.cache
	c.lifecycleLock.Unlock()

	// Step 4: add-only archive -> folder, filling in files the folder lacks
	// without overwriting anything it already has.
	if err := c.mergeStep(ctx, c.archive, local, cache, true); err != nil {
		return err
	}
	// Step 5: full folder -> archive, promoting everything the folder has.
	if err := c.mergeStep(ctx, local, c.archive, cache, false); err != nil {
		return err
	}

	c.bus.Publish(Event{Kind: EventMerge, Key: c.archive.Key()})
	return nil
}

// mergeStep runs a single diff+apply pass from left to right as part of the
// initial merge, outside of the queue/debouncer since it runs once under the
// lock already held by InitialMerge.
func (c *Controller) mergeStep(ctx context.Context, left, right syncfs.View, cache *diff.ContentCache, addOnly bool) error {
	opts := diff.DefaultOptions()
	opts.AddOnly = addOnly
	changes, err := diff.Diff(ctx, left, right, opts, cache)
	if err != nil {
		return err
	}
	return diff.Apply(ctx, left, right, changes)
}

// mergeManifests merges folder and archive manifests with folder fields
// winning on key conflict (spec §4.6 step 3).
func mergeManifests(folder, archive map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(folder)+len(archive))
	for k, v := range archive {
		merged[k] = v
	}
	for k, v := range folder {
		merged[k] = v
	}
	return merged
}

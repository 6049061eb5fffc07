// Package synchronization implements the per-archive sync coordinator: the
// named-lock-guarded apply step, the debounced event queue, the watcher
// lifecycle, the initial merge, and the on-demand diff APIs used for preview.
package synchronization

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/beakerbrowser/beaker-sync/pkg/diff"
	"github.com/beakerbrowser/beaker-sync/pkg/ignore"
	"github.com/beakerbrowser/beaker-sync/pkg/logging"
	"github.com/beakerbrowser/beaker-sync/pkg/namedlock"
	"github.com/beakerbrowser/beaker-sync/pkg/state"
	"github.com/beakerbrowser/beaker-sync/pkg/syncfs"
	"github.com/beakerbrowser/beaker-sync/pkg/watching"
)

// SyncOptions controls a single sync invocation.
type SyncOptions struct {
	// Path overrides the archive's configured settings path for this call.
	Path string
	// Paths, when non-empty, restricts the sync to a whitelist (spec §4.5);
	// it takes precedence over the ignore ruleset.
	Paths []string
	// AddOnly restricts the applied diff to Add changes.
	AddOnly bool
}

// Controller is the sync coordinator for a single archive: it owns the
// archive's named lock key, active-sync counter, content-compare cache,
// event queue, and watcher lifecycle. It is modeled on the teacher's
// controller type (pkg/synchronization/controller.go), stripped of the
// remote-endpoint reconciliation/staging machinery spec.md places out of
// scope for this module.
type Controller struct {
	archive syncfs.ArchiveHandle
	locks   *namedlock.Registry
	bus     *Bus
	logger  *logging.Logger

	// lifecycleLock guards the fields below it that are pure bookkeeping:
	// watcher lifecycle, ignore ruleset, and content-compare cache. It is
	// distinct both from the named lock obtained from locks (which
	// serializes sync/apply operations against the archive and folder
	// content per spec §5) and from stateLock (which guards the
	// status-snapshot fields and notifies status watchers on change),
	// mirroring the teacher's split between lifecycleLock and stateLock.
	lifecycleLock sync.Mutex
	settings      *Settings
	ruleset       *ignore.Ruleset
	cache         *diff.ContentCache
	queue         *syncQueue
	generation    uint64
	watcher       *watching.RecursiveWatcher
	ignoreWatcher *watching.FileWatcher
	cancelArchive func()

	// tracker and stateLock implement the status long-poll surface
	// (Manager.WaitForStatusChange): every write to the last* fields below
	// goes through stateLock, which bumps tracker's index and wakes any
	// blocked waiters, the same pattern the teacher uses for session state.
	// activeSyncs is updated atomically and bumps tracker directly.
	tracker       *state.Tracker
	stateLock     *state.TrackingLock
	activeSyncs   int64
	lastDirection direction
	lastSyncTime  time.Time
	lastErr       error
}

// NewController creates a coordinator for archive. The controller has no
// local mirror configured until Configure is called.
func NewController(archive syncfs.ArchiveHandle, locks *namedlock.Registry, bus *Bus, logger *logging.Logger) *Controller {
	tracker := state.NewTracker()
	c := &Controller{
		archive:   archive,
		locks:     locks,
		bus:       bus,
		logger:    logger,
		cache:     diff.NewContentCache(),
		tracker:   tracker,
		stateLock: state.NewTrackingLock(tracker),
	}
	c.queue = newSyncQueue(c.launch)
	return c
}

// Close terminates the controller's status tracker, unblocking any pending
// WaitForStatusChange callers with state.ErrTrackingTerminated. It does not
// tear down watchers; callers should Configure(nil) first for a clean
// shutdown.
func (c *Controller) Close() {
	c.tracker.Terminate()
}

// lockName is the archive's named-mutex key, "sync:<hex>" per spec §5.
func (c *Controller) lockName() string {
	return fmt.Sprintf("sync:%x", c.archive.Key())
}

// ActiveSyncs returns the archive's current active-sync count.
func (c *Controller) ActiveSyncs() int64 {
	return atomic.LoadInt64(&c.activeSyncs)
}

// EnsureSyncFinished implements the quiesce barrier (spec §5): it polls
// activeSyncs under the named lock until it observes zero, with no
// signalling primitive, matching the spec's description exactly.
func (c *Controller) EnsureSyncFinished(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		release := c.locks.Lock(c.lockName())
		quiescent := atomic.LoadInt64(&c.activeSyncs) == 0
		release()
		if quiescent {
			return nil
		}
		select {
		case <-time.After(10 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SyncFolderToArchive applies folder -> archive. Precondition: the archive
// must be writable.
func (c *Controller) SyncFolderToArchive(ctx context.Context, opts SyncOptions) error {
	if !c.archive.Writable() {
		return ErrArchiveNotWritable
	}
	return c.sync(ctx, toArchive, opts)
}

// SyncArchiveToFolder applies archive -> folder.
func (c *Controller) SyncArchiveToFolder(ctx context.Context, opts SyncOptions) error {
	return c.sync(ctx, toFolder, opts)
}

// resolvePath picks the local path to sync against: opts.Path if supplied,
// else the current settings path.
func (c *Controller) resolvePath(opts SyncOptions) (string, bool) {
	if opts.Path != "" {
		return opts.Path, true
	}
	c.lifecycleLock.Lock()
	defer c.lifecycleLock.Unlock()
	if c.settings == nil || c.settings.Path == "" {
		return "", false
	}
	return c.settings.Path, true
}

// filterFor builds the diff filter from opts.Paths (whitelist) or the
// current ignore ruleset, per spec §4.1/§4.5.
func (c *Controller) filterFor(opts SyncOptions) func(string, bool) bool {
	if len(opts.Paths) > 0 {
		return ignore.WhitelistFilter(opts.Paths)
	}
	c.lifecycleLock.Lock()
	ruleset := c.ruleset
	c.lifecycleLock.Unlock()
	if ruleset == nil {
		return nil
	}
	return ruleset.Filter()
}

// recordOutcome updates the status-snapshot fields and notifies anyone
// blocked in Manager.WaitForStatusChange.
func (c *Controller) recordOutcome(dir direction, err error) {
	c.stateLock.Lock()
	c.lastDirection = dir
	c.lastSyncTime = time.Now()
	c.lastErr = err
	c.stateLock.Unlock()
}

// sync is the internal common path for both directions (spec §4.2).
func (c *Controller) sync(ctx context.Context, dir direction, opts SyncOptions) error {
	path, ok := c.resolvePath(opts)
	if !ok {
		c.logger.Debug("sync requested with no local path configured, skipping")
		return nil
	}

	release := c.locks.Lock(c.lockName())
	defer release()

	atomic.AddInt64(&c.activeSyncs, 1)
	c.tracker.NotifyOfChange()
	defer func() {
		atomic.AddInt64(&c.activeSyncs, -1)
		c.tracker.NotifyOfChange()
	}()

	local, releaseView := syncfs.AcquireLocalView(path)
	defer releaseView()

	var left, right syncfs.View
	if dir == toArchive {
		left, right = local, c.archive
	} else {
		left, right = c.archive, local
	}

	diffOpts := diff.DefaultOptions()
	diffOpts.Filter = c.filterFor(opts)
	diffOpts.AddOnly = opts.AddOnly

	c.lifecycleLock.Lock()
	cache := c.cache
	c.lifecycleLock.Unlock()

	changes, err := diff.Diff(ctx, left, right, diffOpts, cache)
	if err != nil {
		if isCycleError(err) {
			c.bus.Publish(Event{Kind: EventError, Key: c.archive.Key(), Err: ErrCycleDetected})
			c.logger.Warn(errors.Wrap(ErrCycleDetected, "sync"))
			c.recordOutcome(dir, ErrCycleDetected)
			return nil
		}
		c.logger.Warn(errors.Wrap(err, "diff failed"))
		c.recordOutcome(dir, err)
		return nil
	}

	if err := diff.Apply(ctx, left, right, changes); err != nil {
		c.logger.Warn(errors.Wrap(err, "apply failed"))
		c.recordOutcome(dir, err)
		return nil
	}

	c.recordOutcome(dir, nil)
	c.bus.Publish(Event{Kind: EventSync, Key: c.archive.Key(), Direction: dir})
	return nil
}

// isCycleError reports whether err represents a symlink cycle surfaced by
// the diff engine. This module's diff engine (pkg/diff) walks syncfs.View
// trees that don't currently expose symlinks, so no path produces this
// today; the hook exists so a future symlink-aware view can signal a cycle
// through the same channel the spec describes without changing this
// function's callers.
func isCycleError(err error) bool {
	return errors.Is(err, errCycleMarker)
}

var errCycleMarker = errors.New("symlink cycle")

// launch is invoked by the queue once its debounce window elapses.
func (c *Controller) launch(dir direction) {
	var err error
	if dir == toArchive {
		err = c.SyncFolderToArchive(context.Background(), SyncOptions{})
	} else {
		err = c.SyncArchiveToFolder(context.Background(), SyncOptions{})
	}
	if err != nil {
		c.logger.Warn(errors.Wrap(err, "debounced sync"))
	}
	c.queue.Done()
}

// notify feeds a single direction into the debounced queue.
func (c *Controller) notify(dir direction) {
	c.queue.Notify(dir)
}

// Settings returns a copy of the controller's current settings, or nil if
// none are configured.
func (c *Controller) Settings() *Settings {
	c.lifecycleLock.Lock()
	defer c.lifecycleLock.Unlock()
	if c.settings == nil {
		return nil
	}
	copied := *c.settings
	return &copied
}

// Key returns the archive's stable key.
func (c *Controller) Key() [32]byte {
	return c.archive.Key()
}

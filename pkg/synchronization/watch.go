package synchronization

import (
	"context"
	"io/fs"
	"os"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/beakerbrowser/beaker-sync/pkg/diff"
	"github.com/beakerbrowser/beaker-sync/pkg/ignore"
	"github.com/beakerbrowser/beaker-sync/pkg/syncfs"
	"github.com/beakerbrowser/beaker-sync/pkg/watching"
)

// Configure reconfigures the controller's local mirror to match settings,
// implementing the watcher lifecycle of spec §4.4. It is re-entrant and
// tolerates rapid repeated invocation: each call captures the current
// generation value, bumps the stored generation, and re-checks after every
// suspension point, aborting silently if a newer call has since started.
// This mirrors the teacher's monotone call-counter guard rather than
// cancellation, per spec §9's design note.
func (c *Controller) Configure(ctx context.Context, settings *Settings) {
	myGen := atomic.AddUint64(&c.generation, 1)

	c.teardown()

	c.lifecycleLock.Lock()
	c.settings = settings
	c.lifecycleLock.Unlock()

	if settings == nil {
		return
	}

	if settings.IsUsingInternal {
		if err := os.MkdirAll(settings.Path, 0o755); err != nil {
			c.logger.Warn(errors.Wrap(err, "create internal sync directory"))
			return
		}
	}

	if !c.stillCurrent(myGen) {
		return
	}

	if _, err := os.Stat(settings.Path); os.IsNotExist(err) {
		c.logger.Debug("configured path does not exist, skipping watcher setup")
		c.lifecycleLock.Lock()
		c.cache = diff.NewContentCache()
		c.lifecycleLock.Unlock()
		return
	} else if err != nil {
		c.logger.Warn(errors.Wrap(err, "stat configured path"))
		return
	}

	local, releaseView := syncfs.AcquireLocalView(settings.Path)
	defer releaseView()

	if !c.stillCurrent(myGen) {
		return
	}

	ruleset := loadRuleset(ctx, local)
	c.lifecycleLock.Lock()
	c.ruleset = ruleset
	c.lifecycleLock.Unlock()

	ignoreWatcher, err := watching.NewFileWatcher(local.HostPath(".datignore"))
	if err != nil {
		c.logger.Warn(errors.Wrap(err, "watch ignore file"))
	} else if c.stillCurrent(myGen) {
		c.lifecycleLock.Lock()
		c.ignoreWatcher = ignoreWatcher
		c.lifecycleLock.Unlock()
		go c.watchIgnoreFile(ctx, myGen, local, ignoreWatcher)
	} else {
		ignoreWatcher.Close()
	}

	if !settings.AutoPublish {
		if err := c.SyncArchiveToFolder(ctx, SyncOptions{Path: settings.Path, AddOnly: true}); err != nil {
			c.logger.Warn(errors.Wrap(err, "initial preview sync"))
		}
		c.watchArchive(ctx, myGen, settings)
		return
	}

	if err := c.InitialMerge(ctx, settings.Path); err != nil {
		c.logger.Warn(errors.Wrap(err, "initial merge"))
		return
	}
	if !c.stillCurrent(myGen) {
		return
	}

	watcher, err := watching.NewRecursiveWatcher(settings.Path)
	if err != nil {
		c.logger.Warn(errors.Wrap(err, "attach recursive watcher"))
		return
	}
	if !c.stillCurrent(myGen) {
		watcher.Close()
		return
	}
	c.lifecycleLock.Lock()
	c.watcher = watcher
	c.lifecycleLock.Unlock()

	go c.watchFolder(myGen, watcher)
	c.watchArchive(ctx, myGen, settings)
}

// stillCurrent reports whether myGen is still the controller's active
// generation, i.e. no subsequent Configure call has superseded it.
func (c *Controller) stillCurrent(myGen uint64) bool {
	return atomic.LoadUint64(&c.generation) == myGen
}

// teardown stops any previously attached watchers, drops the pending queue,
// and replaces the content-compare cache, per spec §4.4's teardown step.
func (c *Controller) teardown() {
	c.lifecycleLock.Lock()
	watcher := c.watcher
	ignoreWatcher := c.ignoreWatcher
	cancelArchive := c.cancelArchive
	c.watcher = nil
	c.ignoreWatcher = nil
	c.cancelArchive = nil
	c.queue = newSyncQueue(c.launch)
	c.cache = diff.NewContentCache()
	c.lifecycleLock.Unlock()

	if watcher != nil {
		watcher.Close()
	}
	if ignoreWatcher != nil {
		ignoreWatcher.Close()
	}
	if cancelArchive != nil {
		cancelArchive()
	}
}

// watchFolder forwards recursive-watcher events into the debounced queue as
// toArchive notifications, as long as this goroutine's generation is still
// current.
func (c *Controller) watchFolder(myGen uint64, watcher *watching.RecursiveWatcher) {
	for range watcher.Events() {
		if !c.stillCurrent(myGen) {
			return
		}
		c.notify(toArchive)
	}
}

// watchIgnoreFile reloads the ignore ruleset whenever the .datignore file
// changes.
func (c *Controller) watchIgnoreFile(ctx context.Context, myGen uint64, local *syncfs.LocalView, watcher *watching.FileWatcher) {
	for range watcher.Events() {
		if !c.stillCurrent(myGen) {
			return
		}
		ruleset := loadRuleset(ctx, local)
		c.lifecycleLock.Lock()
		c.ruleset = ruleset
		c.lifecycleLock.Unlock()
	}
}

// watchArchive subscribes to the archive's own change-notification stream.
// In auto-publish mode, a notification is fed into the queue as toFolder; in
// preview mode it instead triggers a narrow, non-debounced archive->folder
// sync restricted to the changed path, per spec §4.4.
func (c *Controller) watchArchive(ctx context.Context, myGen uint64, settings *Settings) {
	events, cancel, err := c.archive.Watch(ctx)
	if err != nil {
		c.logger.Warn(errors.Wrap(err, "watch archive"))
		return
	}
	if !c.stillCurrent(myGen) {
		cancel()
		return
	}
	c.lifecycleLock.Lock()
	c.cancelArchive = cancel
	c.lifecycleLock.Unlock()

	go func() {
		for event := range events {
			if !c.stillCurrent(myGen) {
				return
			}
			if settings.AutoPublish {
				c.notify(toFolder)
				continue
			}
			if err := c.SyncArchiveToFolder(context.Background(), SyncOptions{
				Path:  settings.Path,
				Paths: []string{event.Path},
			}); err != nil {
				c.logger.Warn(errors.Wrap(err, "preview archive change sync"))
			}
		}
	}()
}

// loadRuleset reads .datignore from local, treating a missing file as an
// empty ruleset.
func loadRuleset(ctx context.Context, local *syncfs.LocalView) *ignore.Ruleset {
	data, err := local.ReadFile(ctx, ".datignore")
	if errors.Is(err, fs.ErrNotExist) {
		return ignore.Empty()
	}
	if err != nil {
		return ignore.Empty()
	}
	return ignore.Parse(string(data))
}

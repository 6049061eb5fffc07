// Package watching implements a recursive local-directory watcher on top of
// fsnotify, plus a narrow single-file watcher used for the ignore file.
package watching

import (
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// Event reports a single filesystem change observed under a watched root.
type Event struct {
	// Path is the path that changed, as reported by fsnotify (under the root
	// as it was passed to NewRecursiveWatcher).
	Path string
}

// RecursiveWatcher watches a directory tree, adding a watch for every
// subdirectory it discovers and following new subdirectories as they appear.
type RecursiveWatcher struct {
	fsWatch *fsnotify.Watcher
	root    string

	mu      sync.Mutex
	watched map[string]struct{}

	events chan Event
	errs   chan error
	done   chan struct{}
}

// NewRecursiveWatcher creates a watcher rooted at root and adds a watch for
// every directory beneath it. Root must exist and be a directory.
func NewRecursiveWatcher(root string) (*RecursiveWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create fsnotify watcher")
	}

	w := &RecursiveWatcher{
		fsWatch: fsWatch,
		root:    root,
		watched: make(map[string]struct{}),
		events:  make(chan Event, 16),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}

	if err := w.addTree(root); err != nil {
		fsWatch.Close()
		return nil, err
	}

	go w.run()
	return w, nil
}

// addTree walks root and adds a watch for every directory found, skipping
// directories already being watched.
func (w *RecursiveWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		w.mu.Lock()
		_, already := w.watched[path]
		w.mu.Unlock()
		if already {
			return nil
		}
		if err := w.fsWatch.Add(path); err != nil {
			return errors.Wrapf(err, "watch %s", path)
		}
		w.mu.Lock()
		w.watched[path] = struct{}{}
		w.mu.Unlock()
		return nil
	})
}

// run forwards fsnotify events, extending the watch to newly created
// subdirectories so the watch stays recursive over time.
func (w *RecursiveWatcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fsWatch.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := filepath.Abs(event.Name); err == nil {
					_ = w.addTree(info)
				}
			}
			select {
			case w.events <- Event{Path: event.Name}:
			default:
			}
		case err, ok := <-w.fsWatch.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

// Events returns the channel of change notifications.
func (w *RecursiveWatcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of watcher-internal errors.
func (w *RecursiveWatcher) Errors() <-chan error {
	return w.errs
}

// Close stops the watcher and releases all underlying OS watches.
func (w *RecursiveWatcher) Close() error {
	err := w.fsWatch.Close()
	<-w.done
	return err
}

// FileWatcher watches a single file for changes, used for the ignore file.
// It watches the file's parent directory, so creation of a file that does
// not exist yet is still observed.
type FileWatcher struct {
	fsWatch *fsnotify.Watcher
	path    string
	events  chan struct{}
	done    chan struct{}
}

// NewFileWatcher watches path's parent directory and reports on Events()
// whenever path itself changes.
func NewFileWatcher(path string) (*FileWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create fsnotify watcher")
	}

	target := path
	if _, err := filepath.Abs(path); err != nil {
		fsWatch.Close()
		return nil, errors.Wrap(err, "resolve absolute path")
	}
	if err := fsWatch.Add(filepath.Dir(path)); err != nil {
		fsWatch.Close()
		return nil, errors.Wrapf(err, "watch parent of %s", path)
	}

	w := &FileWatcher{
		fsWatch: fsWatch,
		path:    target,
		events:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *FileWatcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fsWatch.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			select {
			case w.events <- struct{}{}:
			default:
			}
		case _, ok := <-w.fsWatch.Errors:
			if !ok {
				return
			}
		}
	}
}

// Events returns a channel that receives a notification whenever the watched
// file changes.
func (w *FileWatcher) Events() <-chan struct{} {
	return w.events
}

// Close stops the watcher.
func (w *FileWatcher) Close() error {
	err := w.fsWatch.Close()
	<-w.done
	return err
}

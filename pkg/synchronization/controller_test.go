package synchronization

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/beakerbrowser/beaker-sync/pkg/demoarchive"
	"github.com/beakerbrowser/beaker-sync/pkg/logging"
	"github.com/beakerbrowser/beaker-sync/pkg/namedlock"
)

func newTestController(archive *demoarchive.Archive) *Controller {
	return NewController(archive, namedlock.NewRegistry(), NewBus(), logging.RootLogger.Sublogger("test"))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	full := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// TestSyncFolderToArchiveBasic covers scenario S1: a file on the folder side
// propagates to an empty writable archive.
func TestSyncFolderToArchiveBasic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "1")

	archive := demoarchive.New(true)
	c := newTestController(archive)

	sub, unsubscribe := c.bus.Subscribe()
	defer unsubscribe()

	if err := c.SyncFolderToArchive(context.Background(), SyncOptions{Path: dir}); err != nil {
		t.Fatalf("sync: %v", err)
	}

	data, err := archive.ReadFile(context.Background(), "a.txt")
	if err != nil {
		t.Fatalf("archive read: %v", err)
	}
	if string(data) != "1" {
		t.Fatalf("expected archive content '1', got %q", data)
	}

	select {
	case ev := <-sub:
		if ev.Kind != EventSync {
			t.Fatalf("expected a sync event, got %+v", ev)
		}
	default:
		t.Fatal("expected a buffered sync event")
	}
}

// TestSyncFolderToArchiveReadOnly covers scenario S5: a read-only archive
// rejects folder->archive and makes no writes.
func TestSyncFolderToArchiveReadOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "1")

	archive := demoarchive.New(false)
	c := newTestController(archive)

	err := c.SyncFolderToArchive(context.Background(), SyncOptions{Path: dir})
	if !errors.Is(err, ErrArchiveNotWritable) {
		t.Fatalf("expected ErrArchiveNotWritable, got %v", err)
	}
	if _, err := archive.ReadFile(context.Background(), "a.txt"); err == nil {
		t.Fatal("expected no write to have occurred on the read-only archive")
	}
}

// TestInitialMergeManifest covers scenario S6: folder manifest fields win on
// conflict, and the archive ends up with the folder's content afterward.
func TestInitialMergeManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "dat.json", `{"title":"F"}`)
	writeFile(t, dir, "local-only.txt", "from folder")

	archive := demoarchive.New(true)
	ctx := context.Background()
	if err := archive.WriteManifest(ctx, map[string]interface{}{"title": "A", "description": "D"}); err != nil {
		t.Fatalf("seed archive manifest: %v", err)
	}
	if err := archive.WriteFile(ctx, "archive-only.txt", []byte("from archive"), 0); err != nil {
		t.Fatalf("seed archive file: %v", err)
	}

	c := newTestController(archive)
	if err := c.InitialMerge(ctx, dir); err != nil {
		t.Fatalf("initial merge: %v", err)
	}

	merged, err := archive.ReadManifest(ctx)
	if err != nil {
		t.Fatalf("read merged manifest: %v", err)
	}
	if merged["title"] != "F" {
		t.Fatalf("expected folder's title to win, got %v", merged["title"])
	}
	if merged["description"] != "D" {
		t.Fatalf("expected archive's description to survive, got %v", merged["description"])
	}

	if data, err := os.ReadFile(filepath.Join(dir, "archive-only.txt")); err != nil || string(data) != "from archive" {
		t.Fatalf("expected archive-only.txt to be pulled into the folder, got data=%q err=%v", data, err)
	}
	if data, err := archive.ReadFile(ctx, "local-only.txt"); err != nil || string(data) != "from folder" {
		t.Fatalf("expected local-only.txt to be promoted to the archive, got data=%q err=%v", data, err)
	}
}

// TestEnsureSyncFinishedQuiesceBarrier covers property 8: after
// EnsureSyncFinished returns, activeSyncs is zero.
func TestEnsureSyncFinishedQuiesceBarrier(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "1")

	archive := demoarchive.New(true)
	c := newTestController(archive)

	if err := c.SyncFolderToArchive(context.Background(), SyncOptions{Path: dir}); err != nil {
		t.Fatalf("sync: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.EnsureSyncFinished(ctx); err != nil {
		t.Fatalf("ensure sync finished: %v", err)
	}
	if c.ActiveSyncs() != 0 {
		t.Fatalf("expected activeSyncs to be zero, got %d", c.ActiveSyncs())
	}
}

// TestQueueFeedsController exercises the debouncer end-to-end (scenario S2's
// shape): a notified toArchive direction eventually runs a real sync through
// the controller.
func TestQueueFeedsController(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "x")

	archive := demoarchive.New(true)
	c := newTestController(archive)
	c.lifecycleLock.Lock()
	c.settings = &Settings{Path: dir, AutoPublish: true}
	c.lifecycleLock.Unlock()

	sub, unsubscribe := c.bus.Subscribe()
	defer unsubscribe()

	c.notify(toArchive)

	select {
	case ev := <-sub:
		if ev.Kind != EventSync || ev.Direction != toArchive {
			t.Fatalf("expected a toArchive sync event, got %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced sync to run")
	}

	data, err := archive.ReadFile(context.Background(), "a.txt")
	if err != nil || string(data) != "x" {
		t.Fatalf("expected archive to receive a.txt=x, got data=%q err=%v", data, err)
	}
}

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/beakerbrowser/beaker-sync/pkg/demoarchive"
	"github.com/beakerbrowser/beaker-sync/pkg/logging"
	"github.com/beakerbrowser/beaker-sync/pkg/synchronization"
)

func syncMain(_ *cobra.Command, arguments []string) error {
	folder, archiveDir := arguments[0], arguments[1]

	archive, err := demoarchive.Load(archiveDir)
	if err != nil {
		return fmt.Errorf("load archive directory: %w", err)
	}

	manager := synchronization.NewManager()
	controller := manager.Add(archive, logging.RootLogger.Sublogger("sync"))

	ctx := context.Background()
	opts := synchronization.SyncOptions{Path: folder, AddOnly: syncConfiguration.addOnly}
	if syncConfiguration.paths != "" {
		opts.Paths = strings.Split(syncConfiguration.paths, ",")
	}

	switch syncConfiguration.to {
	case "archive":
		err = controller.SyncFolderToArchive(ctx, opts)
	case "folder":
		err = controller.SyncArchiveToFolder(ctx, opts)
	default:
		return fmt.Errorf("invalid --to value %q, must be \"archive\" or \"folder\"", syncConfiguration.to)
	}
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if err := demoarchive.Dump(archive, archiveDir); err != nil {
		return fmt.Errorf("persist archive directory: %w", err)
	}

	status, _ := manager.Status(archive.Key())
	color.Green("Synced %s -> %s\n", folderOrArchive(syncConfiguration.to == "archive"), folderOrArchive(syncConfiguration.to != "archive"))
	fmt.Printf("Active syncs: %d\n", status.ActiveSyncs)
	fmt.Printf("Last direction: %s\n", status.LastDirection)
	return nil
}

func folderOrArchive(isFolder bool) string {
	if isFolder {
		return "folder"
	}
	return "archive"
}

var syncCommand = &cobra.Command{
	Use:          "sync <folder> <archive-dir>",
	Short:        "Run a single synchronization pass between a folder and an archive snapshot directory",
	Args:         cobra.ExactArgs(2),
	RunE:         syncMain,
	SilenceUsage: true,
}

var syncConfiguration struct {
	// to selects the sync direction: "archive" (folder wins) or "folder"
	// (archive wins).
	to string
	// addOnly restricts the applied diff to additive changes.
	addOnly bool
	// paths, if non-empty, restricts the sync to a comma-separated whitelist.
	paths string
}

func init() {
	flags := syncCommand.Flags()
	flags.SortFlags = false
	flags.StringVar(&syncConfiguration.to, "to", "archive", "Sync direction: \"archive\" or \"folder\"")
	flags.BoolVar(&syncConfiguration.addOnly, "add-only", false, "Only apply additive changes")
	flags.StringVar(&syncConfiguration.paths, "paths", "", "Comma-separated whitelist of paths to restrict the sync to")
}

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

// listMain registers one controller per "<folder>:<archive-dir>" argument
// and prints a status snapshot for each, exercising the Manager/Status
// surface (SPEC_FULL.md §4.9) in the absence of a long-running daemon to
// list against.
func listMain(_ *cobra.Command, arguments []string) error {
	manager := synchronization.NewManager()

	for _, pair := range arguments {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid pair %q, expected \"<folder>:<archive-dir>\"", pair)
		}
		folder, archiveDir := parts[0], parts[1]

		archive, err := demoarchive.Load(archiveDir)
		if err != nil {
			return fmt.Errorf("load archive directory %s: %w", archiveDir, err)
		}
		controller := manager.Add(archive, logging.RootLogger.Sublogger("list"))

		changes, err := controller.DiffListing(context.Background(), synchronization.SyncOptions{Path: folder})
		if err != nil {
			return fmt.Errorf("diff %s: %w", folder, err)
		}

		status, _ := manager.Status(archive.Key())
		fmt.Printf("%x:\n", status.Key)
		fmt.Printf("\tFolder: %s\n", folder)
		fmt.Printf("\tArchive directory: %s\n", archiveDir)
		fmt.Printf("\tWritable: %v\n", archive.Writable())
		if len(changes) == 0 {
			color.Green("\tPending changes: none\n")
		} else {
			color.Yellow("\tPending changes: %d\n", len(changes))
		}
	}

	return nil
}

var listCommand = &cobra.Command{
	Use:          "list <folder>:<archive-dir> ...",
	Short:        "List archives and a pending-change summary for each",
	Args:         cobra.MinimumNArgs(1),
	RunE:         listMain,
	SilenceUsage: true,
}

package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/beakerbrowser/beaker-sync/pkg/demoarchive"
	"github.com/beakerbrowser/beaker-sync/pkg/diff"
	"github.com/beakerbrowser/beaker-sync/pkg/logging"
	"github.com/beakerbrowser/beaker-sync/pkg/synchronization"
)

// printChange prints a single change with a kind-colored prefix, matching
// the teacher's habit of color-coding problem/conflict output in its list
// command.
func printChange(change *diff.Change) {
	switch change.Kind {
	case diff.Add:
		color.Green("  + %s (%s)\n", change.Path, change.Type)
	case diff.Modify:
		color.Yellow("  ~ %s (%s)\n", change.Path, change.Type)
	case diff.Remove:
		color.Red("  - %s (%s)\n", change.Path, change.Type)
	}
}

func diffMain(_ *cobra.Command, arguments []string) error {
	folder, archiveDir := arguments[0], arguments[1]

	archive, err := demoarchive.Load(archiveDir)
	if err != nil {
		return fmt.Errorf("load archive directory: %w", err)
	}

	manager := synchronization.NewManager()
	controller := manager.Add(archive, logging.RootLogger.Sublogger("diff"))

	if diffConfiguration.file != "" {
		result, err := controller.DiffFile(context.Background(), synchronization.SyncOptions{Path: folder}, diffConfiguration.file)
		if err != nil {
			return fmt.Errorf("diff file: %w", err)
		}
		if result.Identical {
			fmt.Println("(no differences)")
			return nil
		}
		fmt.Print(result.Unified)
		return nil
	}

	changes, err := controller.DiffListing(context.Background(), synchronization.SyncOptions{Path: folder})
	if err != nil {
		return fmt.Errorf("diff: %w", err)
	}
	if len(changes) == 0 {
		fmt.Println("(no differences)")
		return nil
	}
	for _, change := range changes {
		printChange(change)
	}
	return nil
}

var diffCommand = &cobra.Command{
	Use:          "diff <folder> <archive-dir>",
	Short:        "Preview the folder -> archive change list without applying it",
	Args:         cobra.ExactArgs(2),
	RunE:         diffMain,
	SilenceUsage: true,
}

var diffConfiguration struct {
	// file, if set, prints a line-level diff of a single path instead of the
	// full change listing.
	file string
}

func init() {
	flags := diffCommand.Flags()
	flags.SortFlags = false
	flags.StringVar(&diffConfiguration.file, "file", "", "Show a line-level diff for a single file path instead")
}

package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/beakerbrowser/beaker-sync/pkg/demoarchive"
	"github.com/beakerbrowser/beaker-sync/pkg/logging"
	"github.com/beakerbrowser/beaker-sync/pkg/synchronization"
)

func mergeMain(_ *cobra.Command, arguments []string) error {
	folder, archiveDir := arguments[0], arguments[1]

	archive, err := demoarchive.Load(archiveDir)
	if err != nil {
		return fmt.Errorf("load archive directory: %w", err)
	}

	manager := synchronization.NewManager()
	controller := manager.Add(archive, logging.RootLogger.Sublogger("merge"))

	if err := controller.InitialMerge(context.Background(), folder); err != nil {
		return fmt.Errorf("initial merge: %w", err)
	}

	if err := demoarchive.Dump(archive, archiveDir); err != nil {
		return fmt.Errorf("persist archive directory: %w", err)
	}

	color.Green("Initial merge complete\n")
	return nil
}

var mergeCommand = &cobra.Command{
	Use:          "merge <folder> <archive-dir>",
	Short:        "Run the one-time manifest merge and content reconciliation between a folder and a new archive",
	Args:         cobra.ExactArgs(2),
	RunE:         mergeMain,
	SilenceUsage: true,
}

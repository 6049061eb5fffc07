// Command beaker-sync is a thin CLI for exercising the synchronization
// engine manually: listing registered archives, previewing a diff, running a
// one-shot sync, or running the initial merge. It is grounded on the
// teacher's cmd/mutagen/sync command tree, scaled down to a single binary
// since this module has no daemon to dispatch subcommands against.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func rootMain(command *cobra.Command, _ []string) {
	command.Help()
}

var rootCommand = &cobra.Command{
	Use:   "beaker-sync",
	Short: "beaker-sync previews and runs local folder/archive synchronization",
	Run:   rootMain,
}

func init() {
	cobra.EnableCommandSorting = false

	rootCommand.AddCommand(
		listCommand,
		diffCommand,
		syncCommand,
		mergeCommand,
	)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}

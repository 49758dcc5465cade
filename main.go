package main

import (
	"os"

	"github.com/spf13/cobra"

	"tangle/cmd"
	"tangle/cmd/config"
)

var app *config.App

func main() {
	rootCmd := &cobra.Command{
		Use:   "tangle",
		Short: "A personal knowledge-capture client",
		Long: `Tangle keeps a folder/note hierarchy in sync with a remote notes service:
lazy tree loading, validated moves, content-derived tag and link sync, and
debounced autosave.`,
		SilenceUsage: true,
	}

	config.AddGlobalFlags(rootCmd)
	cobra.OnInitialize(config.InitConfig)

	rootCmd.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		// This runs once before any subcommand
		var err error
		app, err = config.InitApp()
		return err
	}
	rootCmd.PersistentPostRun = func(c *cobra.Command, args []string) {
		if app != nil {
			app.Close()
		}
	}

	// Add subcommands
	rootCmd.AddCommand(cmd.NewTreeCmd(&app))
	rootCmd.AddCommand(cmd.NewFolderCmd(&app))
	rootCmd.AddCommand(cmd.NewNoteCmd(&app))
	rootCmd.AddCommand(cmd.NewEditCmd(&app))
	rootCmd.AddCommand(cmd.NewSuggestCmd(&app))
	rootCmd.AddCommand(cmd.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tangle/cmd/config"
)

func NewNoteCmd(app **config.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "note",
		Short: "Move and delete notes",
	}

	cmd.AddCommand(newNoteMvCmd(app))
	cmd.AddCommand(newNoteRmCmd(app))

	return cmd
}

func newNoteMvCmd(app **config.App) *cobra.Command {
	var uncategorized bool

	cmd := &cobra.Command{
		Use:   "mv [id] [folder-id]",
		Short: "Move a note to a folder or to uncategorized",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := *app

			newFolderID := ""
			if len(args) == 2 {
				newFolderID = args[1]
			}
			if !uncategorized && newFolderID == "" {
				return fmt.Errorf("pass a folder id or --uncategorized")
			}

			if _, err := a.Store.LoadRoots(cmd.Context()); err != nil {
				return err
			}
			if _, err := a.Store.LoadUncategorized(cmd.Context()); err != nil {
				return err
			}

			if err := a.Store.MoveNote(cmd.Context(), args[0], newFolderID); err != nil {
				return err
			}

			fmt.Println("Moved.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&uncategorized, "uncategorized", false, "Detach the note from its folder")

	return cmd
}

func newNoteRmCmd(app **config.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a note (soft delete)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := *app
			id := args[0]

			if err := a.GW.DeleteNote(cmd.Context(), id); err != nil {
				return fmt.Errorf("delete note: %w", err)
			}
			a.Store.RemoveNote(id)

			fmt.Println("Deleted.")
			return nil
		},
	}

	return cmd
}

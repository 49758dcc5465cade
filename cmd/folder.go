package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tangle/cmd/config"
	"tangle/pkg/gateway"
)

func gatewayFolderPatch(name, color string) gateway.FolderPatch {
	var patch gateway.FolderPatch
	if name != "" {
		patch.Name = &name
	}
	if color != "" {
		patch.Color = &color
	}
	return patch
}

func NewFolderCmd(app **config.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folder",
		Short: "Create, update, move, and delete folders",
	}

	cmd.AddCommand(newFolderNewCmd(app))
	cmd.AddCommand(newFolderSetCmd(app))
	cmd.AddCommand(newFolderMvCmd(app))
	cmd.AddCommand(newFolderRmCmd(app))

	return cmd
}

func newFolderNewCmd(app **config.App) *cobra.Command {
	var parentID, color string

	cmd := &cobra.Command{
		Use:   "new [name]",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := *app

			if _, err := a.Store.LoadRoots(cmd.Context()); err != nil {
				return err
			}

			folder, err := a.GW.CreateFolder(cmd.Context(), args[0], color, parentID)
			if err != nil {
				return fmt.Errorf("create folder: %w", err)
			}
			if err := a.Store.InsertFolder(parentID, folder); err != nil {
				return err
			}

			fmt.Printf("Created folder %s [%s]\n", folder.Name, folder.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&parentID, "parent", "", "Parent folder id (default: top level)")
	cmd.Flags().StringVar(&color, "color", "", "Folder color")

	return cmd
}

func newFolderSetCmd(app **config.App) *cobra.Command {
	var name, color string

	cmd := &cobra.Command{
		Use:   "set [id]",
		Short: "Rename or recolor a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := *app
			id := args[0]

			if name == "" && color == "" {
				return fmt.Errorf("nothing to change: pass --name and/or --color")
			}

			if _, err := a.Store.LoadRoots(cmd.Context()); err != nil {
				return err
			}

			patch := gatewayFolderPatch(name, color)
			folder, err := a.GW.UpdateFolder(cmd.Context(), id, patch)
			if err != nil {
				return fmt.Errorf("update folder: %w", err)
			}
			if err := a.Store.RenameOrRecolor(id, folder.Name, folder.Color); err != nil {
				return err
			}

			fmt.Printf("Updated folder %s [%s]\n", folder.Name, folder.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New folder name")
	cmd.Flags().StringVar(&color, "color", "", "New folder color")

	return cmd
}

func newFolderMvCmd(app **config.App) *cobra.Command {
	var toRoot bool

	cmd := &cobra.Command{
		Use:   "mv [id] [new-parent-id]",
		Short: "Move a folder under a new parent",
		Long: `Move a folder under a new parent, or to the top level with --root.

The move is validated locally before any request: a folder can never be moved
into itself or into one of its own descendants. When the folder's subtree has
not been fully loaded, the move is rejected as unsafe since a cycle cannot be
ruled out; expand the folder first.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := *app

			newParentID := ""
			if len(args) == 2 {
				newParentID = args[1]
			}
			if !toRoot && newParentID == "" {
				return fmt.Errorf("pass a new parent id or --root")
			}

			if _, err := a.Store.LoadRoots(cmd.Context()); err != nil {
				return err
			}

			if err := a.Store.MoveFolder(cmd.Context(), args[0], newParentID); err != nil {
				return err
			}

			fmt.Println("Moved.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&toRoot, "root", false, "Move to the top level")

	return cmd
}

func newFolderRmCmd(app **config.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a folder (soft delete)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := *app
			id := args[0]

			if _, err := a.Store.LoadRoots(cmd.Context()); err != nil {
				return err
			}

			if err := a.GW.DeleteFolder(cmd.Context(), id); err != nil {
				return fmt.Errorf("delete folder: %w", err)
			}
			a.Store.RemoveFolder(id)

			fmt.Println("Deleted.")
			return nil
		},
	}

	return cmd
}

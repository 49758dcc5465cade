package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tangle/cmd/config"
	"tangle/pkg/models"
)

func NewTreeCmd(app **config.App) *cobra.Command {
	var showUncategorized bool

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the folder/note tree",
		Long: `Load the folder hierarchy from the server and print it.

Folders you had expanded in a previous session are re-expanded, using the
locally cached tree shape where it is still fresh.

Examples:
  # Print the tree
  tangle tree

  # Include the notes that belong to no folder
  tangle tree --uncategorized`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := *app

			roots, err := a.Store.LoadRoots(cmd.Context())
			if err != nil {
				return err
			}

			if len(roots) == 0 {
				fmt.Println("No folders yet.")
			}
			for _, n := range roots {
				printNode(n, 0)
			}

			if showUncategorized {
				notes, err := a.Store.LoadUncategorized(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Println("(uncategorized)")
				for _, note := range notes {
					fmt.Printf("  - %s  [%s]\n", note.Title, note.ID)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showUncategorized, "uncategorized", false, "Also list notes without a folder")

	return cmd
}

func printNode(n *models.TreeNode, depth int) {
	indent := strings.Repeat("  ", depth)
	marker := "+"
	if n.Expanded {
		marker = "-"
	}
	fmt.Printf("%s%s %s  [%s]", indent, marker, n.Name, n.ID)
	if !n.ChildrenLoaded && n.HasContents() {
		fmt.Printf("  (%d folders, %d notes)", n.ChildFolderCount, n.NoteCount)
	}
	fmt.Println()

	if !n.Expanded {
		return
	}
	for _, child := range n.ChildFolders {
		printNode(child, depth+1)
	}
	for _, note := range n.Notes {
		fmt.Printf("%s  - %s  [%s]\n", indent, note.Title, note.ID)
	}
}

package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"tangle/cmd/config"
	"tangle/pkg/annotate"
	"tangle/pkg/autosave"
	"tangle/pkg/doc"
	"tangle/pkg/editor"
	"tangle/pkg/frontmatter"
)

func NewEditCmd(app **config.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit [note-id]",
		Short: "Edit a note in $EDITOR",
		Long: `Fetch a note, open it in your editor as markdown with YAML frontmatter,
and push the result back through the save pipeline.

Inline #tags and [[note title]] mentions in the body are reconciled against
the note's tag and link sets on save: markers you added are attached, markers
you removed are detached. Tags that were attached by the suggestion service
are never auto-removed by a content edit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := *app
			ctx := cmd.Context()
			noteID := args[0]

			if a.Editor == "" {
				return fmt.Errorf("no editor configured: set $EDITOR or the editor config key")
			}

			session, err := editor.Open(ctx, a.GW, noteID, editor.Options{
				Log:             a.Log,
				AnnotateOptions: []annotate.Option{annotate.WithDebounce(a.AnnotateDebounce)},
				AutosaveOptions: []autosave.Option{autosave.WithDebounce(a.AutosaveDebounce)},
			})
			if err != nil {
				return err
			}
			defer session.Close()

			body := session.Note.Content
			if session.Note.SerializedState != "" {
				if d, err := doc.Parse(session.Note.SerializedState); err == nil {
					body = d.ToMarkdown()
				} else {
					a.Log.WithError(err).Debug("could not parse serialized state, editing plain content")
				}
			}

			fm := &frontmatter.Frontmatter{
				ID:       session.Note.ID,
				Title:    session.Note.Title,
				Folder:   session.Note.FolderID,
				Tags:     session.Note.TagNames(),
				Created:  frontmatter.FormatTimestamp(session.Note.CreatedAt),
				Modified: frontmatter.FormatTimestamp(session.Note.UpdatedAt),
			}

			path := filepath.Join(os.TempDir(), fmt.Sprintf("tangle-%s.md", uuid.NewString()))
			if err := os.WriteFile(path, []byte(frontmatter.BuildContent(fm, body)), 0600); err != nil {
				return fmt.Errorf("write temp file: %w", err)
			}
			defer os.Remove(path)

			editCmd := exec.Command(a.Editor, path)
			editCmd.Stdin = os.Stdin
			editCmd.Stdout = os.Stdout
			editCmd.Stderr = os.Stderr
			if err := editCmd.Run(); err != nil {
				return fmt.Errorf("editor exited: %w", err)
			}

			edited, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read edited file: %w", err)
			}

			editedFM, editedBody, err := frontmatter.Parse(string(edited))
			if err != nil {
				a.Log.WithError(err).Warn("frontmatter became invalid, keeping original title")
			}
			title := session.Note.Title
			if editedFM != nil && editedFM.Title != "" {
				title = editedFM.Title
			}

			resolver := buildResolver(cmd, a)
			d := doc.FromMarkdown(strings.TrimPrefix(editedBody, "\n"), resolver)

			if err := session.Apply(title, d); err != nil {
				return err
			}
			// The process exits right away, so flush instead of waiting out
			// the debounce windows.
			if err := session.SaveNow(ctx, d); err != nil {
				return err
			}

			status, savedAt := session.Saver.Status()
			if status == autosave.StatusSaved && !savedAt.IsZero() {
				fmt.Printf("Saved at %s\n", savedAt.Format(time.Kitchen))
			} else {
				fmt.Printf("Status: %s\n", status)
			}
			return nil
		},
	}

	return cmd
}

// buildResolver maps mentioned titles to note ids using whatever the tree
// store has loaded. Unresolved mentions stay plain text.
func buildResolver(cmd *cobra.Command, a *config.App) doc.Resolver {
	if _, err := a.Store.LoadRoots(cmd.Context()); err != nil {
		a.Log.WithError(err).Debug("could not load tree for mention resolution")
	}
	if _, err := a.Store.LoadUncategorized(cmd.Context()); err != nil {
		a.Log.WithError(err).Debug("could not load uncategorized notes for mention resolution")
	}

	titles := make(map[string]string)
	for _, ref := range a.Store.LoadedNotes() {
		titles[strings.ToLower(ref.Title)] = ref.ID
	}

	return func(title string) (string, bool) {
		id, ok := titles[strings.ToLower(title)]
		return id, ok
	}
}
